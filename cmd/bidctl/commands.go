package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/report"
	"github.com/spf13/cobra"
)

const defaultPollInterval = 3 * time.Second

func parseProjectId(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", arg)
	}
	return id, nil
}

func newAnalyzeCmd() *cobra.Command {
	var tender string
	var bids []string
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Upload a tender and bid documents and start the analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(bids) == 0 {
				return errors.New("at least one --bid is required")
			}
			cl := newClient()
			projectId, err := cl.Analyze(cmd.Context(), tender, bids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %d created\n", projectId)
			if !wait {
				return nil
			}
			status, err := waitForCompletion(cmd.Context(), cl, projectId, interval, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderStatus(status))
			return nil
		},
	}
	cmd.Flags().StringVar(&tender, "tender", "", "tender document (pdf, xlsx, txt, md or csv)")
	cmd.Flags().StringArrayVar(&bids, "bid", nil, "bid document, repeatable")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the analysis is finished")
	cmd.Flags().DurationVar(&interval, "interval", defaultPollInterval, "status poll interval")
	_ = cmd.MarkFlagRequired("tender")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status PROJECT_ID",
		Short: "Show the analysis progress of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectId, err := parseProjectId(args[0])
			if err != nil {
				return err
			}
			cl := newClient()
			if watch {
				status, err := waitForCompletion(cmd.Context(), cl, projectId, interval, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.RenderStatus(status))
				return nil
			}
			status, err := cl.GetAnalysisStatus(cmd.Context(), projectId)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderStatus(status))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the analysis is finished")
	cmd.Flags().DurationVar(&interval, "interval", defaultPollInterval, "status poll interval")
	return cmd
}

func newResultsCmd() *cobra.Command {
	var opts report.Options
	var filter string
	var desc bool
	var csvFile string

	cmd := &cobra.Command{
		Use:   "results PROJECT_ID",
		Short: "Show the scored results of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectId, err := parseProjectId(args[0])
			if err != nil {
				return err
			}
			switch report.Filter(filter) {
			case report.FilterAll, report.FilterValid, report.FilterInvalid:
				opts.Filter = report.Filter(filter)
			default:
				return fmt.Errorf("unknown filter %q, expected all, valid or invalid", filter)
			}
			if desc {
				opts.Asc = false
			}

			cl := newClient()
			if csvFile != "" {
				f, err := os.Create(csvFile)
				if err != nil {
					return err
				}
				defer f.Close()
				if err = cl.DownloadResultsCsv(cmd.Context(), projectId, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Results exported to %s\n", csvFile)
				return nil
			}

			rules, err := cl.GetScoringRules(cmd.Context(), projectId)
			if err != nil {
				return err
			}
			results, err := cl.GetResults(cmd.Context(), projectId)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderResults(rules, report.Apply(results, opts)))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Search, "search", "", "show only bidders whose name contains the text")
	cmd.Flags().StringVar(&filter, "filter", string(report.FilterAll), "all, valid or invalid")
	cmd.Flags().StringVar(&opts.SortBy, "sort", report.SortByTotal, "rank, name, total, price or a criterion name")
	cmd.Flags().BoolVar(&opts.Asc, "asc", false, "ascending order")
	cmd.Flags().BoolVar(&desc, "desc", false, "descending order")
	cmd.Flags().StringVar(&csvFile, "csv", "", "write the csv export to the file instead of printing")
	cmd.MarkFlagsMutuallyExclusive("asc", "desc")
	return cmd
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules PROJECT_ID",
		Short: "Show the scoring rules of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectId, err := parseProjectId(args[0])
			if err != nil {
				return err
			}
			rules, err := newClient().GetScoringRules(cmd.Context(), projectId)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderRules(rules))
			return nil
		},
	}
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary PROJECT_ID",
		Short: "Show the per criterion summary table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectId, err := parseProjectId(args[0])
			if err != nil {
				return err
			}
			summary, err := newClient().GetDynamicSummary(cmd.Context(), projectId)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderSummary(summary))
			return nil
		},
	}
}

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List analysed projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := newClient().ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderProjects(projects))
			return nil
		},
	}
}

func newChartCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "chart PROJECT_ID",
		Short: "Download the total score chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectId, err := parseProjectId(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("chart_%d.png", projectId)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err = newClient().DownloadChart(cmd.Context(), projectId, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "png file, chart_<id>.png by default")
	return cmd
}

func newRecalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalc PROJECT_ID",
		Short: "Recalculate price scores of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectId, err := parseProjectId(args[0])
			if err != nil {
				return err
			}
			resp, err := newClient().RecalculatePriceScores(cmd.Context(), projectId)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s, %d results updated\n", resp.Message, resp.UpdatedCount)
			for name, score := range resp.PriceScores {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %.2f\n", name, score)
			}
			return nil
		},
	}
}

func newExtractRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract-rules PROJECT_ID",
		Short: "Extract the scoring rules from the tender document again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectId, err := parseProjectId(args[0])
			if err != nil {
				return err
			}
			resp, err := newClient().ExtractScoringRules(cmd.Context(), projectId)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s, %d rules\n", resp.Message, resp.Count)
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderRules(resp.Rules))
			return nil
		},
	}
}

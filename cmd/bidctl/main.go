package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serverUrl string
	apiKey    string
	username  string
	password  string
	verbose   bool
)

// newClient is replaced in tests.
var newClient = func() client.EvaluationClient {
	return client.NewEvaluationClient(serverUrl, client.ClientCredentials{
		ApiKey:   apiKey,
		Username: username,
		Password: password,
	})
}

var rootCmd = &cobra.Command{
	Use:   "bidctl",
	Short: "Command line client of the bid evaluation service",
	Long: `bidctl uploads a tender and its bid documents to the bid evaluation service,
follows the analysis progress and renders the scored results.

Example:
  bidctl analyze --tender tender.pdf --bid a.pdf --bid b.xlsx --wait
  bidctl results 42 --sort price --asc`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverUrl, "server", envOr("BIDCTL_SERVER", "http://localhost:8080"), "bid evaluation service url")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("BIDCTL_API_KEY"), "api key sent in the api-key header")
	rootCmd.PersistentFlags().StringVar(&username, "user", "", "basic auth user")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("BIDCTL_PASSWORD"), "basic auth password")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newStatusCmd(),
		newResultsCmd(),
		newRulesCmd(),
		newSummaryCmd(),
		newProjectsCmd(),
		newChartCmd(),
		newRecalcCmd(),
		newExtractRulesCmd(),
	)
}

func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

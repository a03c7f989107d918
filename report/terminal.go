package report

import (
	"fmt"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	vetoedStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("9"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	progressBarW = 30
)

func newTable(headers []string, rows [][]string, style func(row, col int) lipgloss.Style) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if style != nil {
				return style(row, col)
			}
			return cellStyle
		})
	return t.String()
}

func RenderResults(rules []view.ScoringRule, results []RankedResult) string {
	columns := LeafColumns(rules)
	headers := []string{"排名", "投标人"}
	for _, c := range columns {
		headers = append(headers, columnTitle(c))
	}
	headers = append(headers, "价格分", "总分")

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{fmt.Sprint(r.Rank), r.BidderName}
		for _, c := range columns {
			if v := view.FindCriterionScore(r.DetailedScores, c.CriteriaName); v != nil {
				row = append(row, formatScore(*v))
			} else {
				row = append(row, "-")
			}
		}
		total := formatScore(r.TotalScore)
		if r.IsVetoed {
			total = vetoedMark
		}
		rows = append(rows, append(row, formatScore(r.PriceScore), total))
	}
	return newTable(headers, rows, func(row, col int) lipgloss.Style {
		if row >= 0 && row < len(results) && results[row].IsVetoed {
			return vetoedStyle
		}
		return cellStyle
	})
}

func RenderRules(rules []view.ScoringRule) string {
	var rows [][]string
	var walk func(list []view.ScoringRule, depth int)
	walk = func(list []view.ScoringRule, depth int) {
		for _, r := range list {
			kind := ""
			switch {
			case r.IsVeto:
				kind = "否决项"
			case r.IsPriceCriteria:
				kind = "价格"
			}
			rows = append(rows, []string{
				strings.Repeat("  ", depth) + r.CriteriaName,
				fmt.Sprintf("%g", r.MaxScore),
				kind,
				utils.Truncate(strings.ReplaceAll(r.Description, "\n", " "), 60),
			})
			walk(r.Children, depth+1)
		}
	}
	walk(rules, 0)
	return newTable([]string{"评分项", "分值", "类型", "评分标准"}, rows, nil)
}

// RenderSummary lays the two header rows out on a grid: the first one is the table header,
// the second one is the first body row.
func RenderSummary(summary *view.DynamicSummary) string {
	if summary == nil || len(summary.HeaderRows) == 0 {
		return ""
	}
	var headers, subHeaders []string
	var second []view.HeaderCell
	if len(summary.HeaderRows) > 1 {
		second = summary.HeaderRows[1]
	}
	next := 0
	for _, cell := range summary.HeaderRows[0] {
		if cell.Colspan > 1 {
			for i := 0; i < cell.Colspan; i++ {
				name := ""
				if i == 0 {
					name = cell.Name
				}
				headers = append(headers, name)
				if next < len(second) {
					subHeaders = append(subHeaders, second[next].Name)
					next++
				} else {
					subHeaders = append(subHeaders, "")
				}
			}
			continue
		}
		headers = append(headers, cell.Name)
		subHeaders = append(subHeaders, "")
	}

	rows := [][]string{subHeaders}
	for _, r := range summary.Rows {
		row := []string{fmt.Sprint(r.Rank), r.BidderName}
		for _, s := range r.Scores {
			if s == nil {
				row = append(row, "-")
				continue
			}
			row = append(row, formatScore(*s))
		}
		total := formatScore(r.TotalScore)
		if r.IsVetoed {
			total = vetoedMark
		}
		rows = append(rows, append(row, formatScore(r.PriceScore), total))
	}
	return newTable(headers, rows, func(row, col int) lipgloss.Style {
		if row == 0 {
			return headerStyle
		}
		return cellStyle
	})
}

func RenderProjects(projects []view.Project) string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			fmt.Sprint(p.Id),
			p.ProjectCode,
			p.Name,
			p.CreatedAt.Format("2006-01-02 15:04"),
			string(p.Status),
			fmt.Sprintf("%d/%d", p.ResultCount, p.BidCount),
		})
	}
	return newTable([]string{"ID", "Code", "Name", "Created", "Status", "Results"}, rows, nil)
}

// RenderStatus shows one progress bar per bid.
func RenderStatus(status *view.AnalysisStatus) string {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarW))
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Project status: "+string(status.ProjectStatus)) + "\n\n")
	for _, b := range status.Bids {
		percent := 0.0
		if b.ProgressTotal > 0 {
			percent = float64(b.ProgressCompleted) / float64(b.ProgressTotal)
		}
		if b.Status == view.BidStatusCompleted {
			percent = 1
		}
		sb.WriteString(fmt.Sprintf("%s  [%s]\n", titleStyle.Render(b.BidderName), b.Status))
		sb.WriteString(fmt.Sprintf("%s %d/%d", bar.ViewAs(percent), b.ProgressCompleted, b.ProgressTotal))
		if b.CurrentRule != "" && b.Status == view.BidStatusProcessing {
			sb.WriteString("  " + mutedStyle.Render(b.CurrentRule))
		}
		sb.WriteString("\n")
		if b.ErrorMessage != "" {
			sb.WriteString(errorStyle.Render("error: "+b.ErrorMessage) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

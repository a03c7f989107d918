package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

var ErrSummaryNoRules = errors.New("no scoring rules")
var ErrSummaryNoResults = errors.New("no analysis results")

// SummaryColumns returns the rules that get a score column: top level leaves and direct children of top level rules.
func SummaryColumns(rules []view.ScoringRule) []view.ScoringRule {
	var columns []view.ScoringRule
	for _, r := range rules {
		if len(r.Children) == 0 {
			columns = append(columns, r)
			continue
		}
		columns = append(columns, r.Children...)
	}
	return columns
}

func columnTitle(r view.ScoringRule) string {
	return fmt.Sprintf("%s (%g分)", r.CriteriaName, r.MaxScore)
}

// BuildDynamicSummary builds the two row header and the ranked score rows.
func BuildDynamicSummary(rules []view.ScoringRule, results []entity.AnalysisResult) (*view.DynamicSummary, error) {
	if len(rules) == 0 {
		return nil, ErrSummaryNoRules
	}
	if len(results) == 0 {
		return nil, ErrSummaryNoResults
	}

	row1 := []view.HeaderCell{{Name: "排名", Rowspan: 2}, {Name: "投标人", Rowspan: 2}}
	row2 := []view.HeaderCell{}
	for _, r := range rules {
		if len(r.Children) == 0 {
			row1 = append(row1, view.HeaderCell{Name: columnTitle(r), Rowspan: 2})
			continue
		}
		row1 = append(row1, view.HeaderCell{Name: columnTitle(r), Colspan: len(r.Children)})
		for _, ch := range r.Children {
			row2 = append(row2, view.HeaderCell{Name: columnTitle(ch), FullName: ch.CriteriaName})
		}
	}
	row1 = append(row1, view.HeaderCell{Name: "价格分", Rowspan: 2}, view.HeaderCell{Name: "总分", Rowspan: 2})

	sorted := make([]entity.AnalysisResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalScore > sorted[j].TotalScore })

	columns := SummaryColumns(rules)
	rows := make([]view.SummaryRow, 0, len(sorted))
	for i, r := range sorted {
		scores := make([]*float64, len(columns))
		for c, col := range columns {
			scores[c] = view.FindCriterionScore(r.DetailedScores, col.CriteriaName)
		}
		rows = append(rows, view.SummaryRow{
			Rank:       i + 1,
			BidderName: r.BidderName,
			Scores:     scores,
			PriceScore: r.PriceScore,
			TotalScore: r.TotalScore,
			IsVetoed:   r.IsVetoed,
		})
	}
	return &view.DynamicSummary{HeaderRows: [][]view.HeaderCell{row1, row2}, Rows: rows}, nil
}

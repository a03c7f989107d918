package report

import (
	"sort"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/view"
)

type Filter string

const (
	FilterAll     Filter = "all"
	FilterValid   Filter = "valid"
	FilterInvalid Filter = "invalid"
)

const (
	SortByRank  = "rank"
	SortByName  = "name"
	SortByTotal = "total"
	SortByPrice = "price"
)

// Options control which results are shown and in what order. Any other SortBy value is taken as a criterion name.
type Options struct {
	Search string
	Filter Filter
	SortBy string
	Asc    bool
}

type RankedResult struct {
	Rank int
	view.AnalysisResult
}

// Rank orders results by total score and numbers them from 1. Vetoed bids go last.
func Rank(results []view.AnalysisResult) []RankedResult {
	ranked := make([]RankedResult, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, RankedResult{AnalysisResult: r})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return sortableTotal(ranked[i].AnalysisResult) > sortableTotal(ranked[j].AnalysisResult)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Apply ranks, filters and sorts the results.
func Apply(results []view.AnalysisResult, opts Options) []RankedResult {
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	var filtered []RankedResult
	for _, r := range Rank(results) {
		if search != "" && !strings.Contains(strings.ToLower(r.BidderName), search) {
			continue
		}
		switch opts.Filter {
		case FilterValid:
			if r.IsVetoed {
				continue
			}
		case FilterInvalid:
			if !r.IsVetoed {
				continue
			}
		}
		filtered = append(filtered, r)
	}

	less := lessFunc(opts.SortBy)
	sort.SliceStable(filtered, func(i, j int) bool {
		if opts.Asc {
			return less(filtered[i], filtered[j])
		}
		return less(filtered[j], filtered[i])
	})
	return filtered
}

func lessFunc(sortBy string) func(a, b RankedResult) bool {
	switch sortBy {
	case "", SortByTotal:
		return func(a, b RankedResult) bool { return sortableTotal(a.AnalysisResult) < sortableTotal(b.AnalysisResult) }
	case SortByRank:
		// ascending rank starts from the winner
		return func(a, b RankedResult) bool { return a.Rank < b.Rank }
	case SortByName:
		return func(a, b RankedResult) bool { return strings.ToLower(a.BidderName) < strings.ToLower(b.BidderName) }
	case SortByPrice:
		return func(a, b RankedResult) bool { return a.PriceScore < b.PriceScore }
	default:
		return func(a, b RankedResult) bool {
			return criterionValue(a.DetailedScores, sortBy) < criterionValue(b.DetailedScores, sortBy)
		}
	}
}

func sortableTotal(r view.AnalysisResult) float64 {
	if r.IsVetoed {
		return -1
	}
	return r.TotalScore
}

func criterionValue(scores []view.CriterionScore, name string) float64 {
	if v := view.FindCriterionScore(scores, name); v != nil {
		return *v
	}
	return -1
}

// LeafColumns returns the non price leaf rules, each of them gets a score column.
func LeafColumns(rules []view.ScoringRule) []view.ScoringRule {
	var columns []view.ScoringRule
	for _, leaf := range view.Leaves(rules) {
		if !leaf.IsPriceCriteria {
			columns = append(columns, leaf)
		}
	}
	return columns
}

package service

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

var ErrNoPriceData = errors.New("no price data")

var priceNodeKeywords = []string{"价格", "price", "报价", "投标报价"}

// ComputePriceScores scores every result against the lowest valid price of the project and
// updates price nodes, parent sums and totals. Results are returned in the input order.
func ComputePriceScores(results []entity.AnalysisResult, rules []view.ScoringRule, defaultMaxScore float64) ([]entity.AnalysisResult, map[string]float64, error) {
	prices := make([]float64, len(results))
	minPrice := math.Inf(1)
	for i, r := range results {
		prices[i] = resultPrice(r)
		if prices[i] > 0 && prices[i] < minPrice {
			minPrice = prices[i]
		}
	}
	if math.IsInf(minPrice, 1) {
		return nil, nil, ErrNoPriceData
	}

	priceRule := findPriceRule(rules)
	maxScore := defaultMaxScore
	ruleName := "价格分"
	formula := DefaultPriceFormula
	if priceRule != nil {
		ruleName = priceRule.CriteriaName
		if priceRule.MaxScore > 0 {
			maxScore = priceRule.MaxScore
		}
		source := priceRule.PriceFormula
		if source == "" {
			source = priceRule.Description
		}
		if normalized := NormalizeFormula(source); normalized != "" {
			formula = normalized
		}
	}

	scores := make(map[string]float64, len(results))
	updated := make([]entity.AnalysisResult, len(results))
	for i, r := range results {
		score := 0.0
		reason := "No valid price found"
		if prices[i] > 0 {
			score = priceScore(formula, minPrice, prices[i], maxScore)
			reason = fmt.Sprintf("Price %.2f, lowest price %.2f", prices[i], minPrice)
		}
		scores[r.BidderName] = score

		var price *float64
		if prices[i] > 0 {
			p := prices[i]
			price = &p
		}
		tree, oldScore, found := setPriceNode(r.DetailedScores, score, reason, price)
		if !found {
			oldScore = r.PriceScore
			tree = append(tree, view.CriterionScore{
				CriteriaName:    ruleName,
				MaxScore:        maxScore,
				Score:           score,
				Reason:          reason,
				IsPriceCriteria: true,
				ExtractedPrice:  price,
			})
		}
		r.DetailedScores = tree
		r.TotalScore = utils.Round2(r.TotalScore - oldScore + score)
		r.PriceScore = score
		if r.ExtractedPrice == nil {
			r.ExtractedPrice = price
		}
		updated[i] = r
	}
	return updated, scores, nil
}

func priceScore(formula string, minPrice, price, maxScore float64) float64 {
	score, err := EvaluatePriceFormula(formula, minPrice, price, maxScore)
	if err != nil {
		log.Warnf("Price formula failed, default formula is used: %s", err)
		score, _ = EvaluatePriceFormula(DefaultPriceFormula, minPrice, price, maxScore)
	}
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	return utils.Round2(score)
}

func resultPrice(r entity.AnalysisResult) float64 {
	if r.ExtractedPrice != nil && *r.ExtractedPrice > 0 {
		return *r.ExtractedPrice
	}
	if p := findPriceInScores(r.DetailedScores); p != nil {
		return *p
	}
	return 0
}

func findPriceInScores(scores []view.CriterionScore) *float64 {
	for _, s := range scores {
		if s.ExtractedPrice != nil && *s.ExtractedPrice > 0 && isPriceNode(s) {
			return s.ExtractedPrice
		}
		if p := findPriceInScores(s.Children); p != nil {
			return p
		}
	}
	return nil
}

func isPriceNode(s view.CriterionScore) bool {
	return s.IsPriceCriteria || containsAny(strings.ToLower(s.CriteriaName), priceNodeKeywords)
}

func findPriceRule(rules []view.ScoringRule) *view.ScoringRule {
	for i := range rules {
		if rules[i].IsPriceCriteria {
			return &rules[i]
		}
		if r := findPriceRule(rules[i].Children); r != nil {
			return r
		}
	}
	return nil
}

// setPriceNode returns a copy of the tree with the first price node updated and parent sums recomputed.
func setPriceNode(tree []view.CriterionScore, score float64, reason string, price *float64) ([]view.CriterionScore, float64, bool) {
	result := make([]view.CriterionScore, len(tree))
	copy(result, tree)
	for i := range result {
		node := &result[i]
		if len(node.Children) == 0 && isPriceNode(*node) {
			old := node.Score
			node.Score = score
			node.Reason = reason
			node.IsPriceCriteria = true
			if price != nil {
				node.ExtractedPrice = price
			}
			return result, old, true
		}
		if len(node.Children) > 0 {
			children, old, found := setPriceNode(node.Children, score, reason, price)
			if found {
				node.Children = children
				sum := 0.0
				for _, ch := range children {
					sum += ch.Score
				}
				node.Score = utils.Round2(sum)
				return result, old, true
			}
		}
	}
	return result, 0, false
}

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	"github.com/Netcracker/qubership-bid-evaluation-service/entity"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

var ErrAnalysisTimedOut = errors.New("analysis timed out")

const (
	ScoringMethodAI = "ai"

	maxCurrentRuleChars = 100
	maxPartialResults   = 5
	fallbackContextPage = 3
	truncatedSuffix     = "\n... (truncated)"
)

type ProgressReporter func(ctx context.Context, progress entity.BidProgress)

type BidAnalyzer interface {
	// AnalyzeBid scores every non-price leaf rule against the bid pages and builds the detailed score tree.
	// Price scores are filled later when the whole project is finalized.
	AnalyzeBid(ctx context.Context, bid entity.BidDocument, rules []view.ScoringRule, pages []string, report ProgressReporter) (*entity.AnalysisResult, error)
}

func NewBidAnalyzer(llmClient client.LLMClient, settings RuntimeSettings) BidAnalyzer {
	return &bidAnalyzerImpl{llmClient: llmClient, settings: settings}
}

type bidAnalyzerImpl struct {
	llmClient client.LLMClient
	settings  RuntimeSettings
}

func (b bidAnalyzerImpl) AnalyzeBid(ctx context.Context, bid entity.BidDocument, rules []view.ScoringRule, pages []string, report ProgressReporter) (*entity.AnalysisResult, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("no scoring rules for project %d", bid.ProjectId)
	}
	if !hasText(pages) {
		return nil, fmt.Errorf("no text extracted from %s", bid.FileName)
	}

	price := ExtractBestPrice(pages)
	if price != nil {
		log.Infof("Extracted price %.2f for bid %d (%s)", *price, bid.Id, bid.BidderName)
	}

	var leaves []view.ScoringRule
	for _, leaf := range view.Leaves(rules) {
		if !leaf.IsPriceCriteria {
			leaves = append(leaves, leaf)
		}
	}
	total := len(leaves)
	report(ctx, entity.BidProgress{
		Total:       total,
		CurrentRule: "初始化分析...",
		Details:     fmt.Sprintf("[%s] 初始化分析...", bid.BidderName),
	})

	scored := make([]view.CriterionScore, 0, total)
	var partial []view.PartialResult
	vetoed := false
	for i, leaf := range leaves {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrAnalysisTimedOut
			}
			return nil, ctx.Err()
		}
		node := b.scoreLeaf(ctx, bid.BidderName, leaf, pages)
		if leaf.IsVeto && node.Score == 0 {
			vetoed = true
		}
		scored = append(scored, node)
		if len(partial) < maxPartialResults {
			partial = append(partial, view.PartialResult{
				CriteriaName: node.CriteriaName,
				Score:        node.Score,
				MaxScore:     node.MaxScore,
				Reason:       utils.Truncate(node.Reason, 200),
			})
		}
		report(ctx, entity.BidProgress{
			Completed:      i + 1,
			Total:          total,
			CurrentRule:    utils.Truncate(leaf.CriteriaName, maxCurrentRuleChars),
			Details:        fmt.Sprintf("[%s] %s", bid.BidderName, leaf.CriteriaName),
			PartialResults: partial,
		})
	}

	next := 0
	tree := buildScoreTree(rules, scored, &next, price)
	totalScore := 0.0
	for _, s := range scored {
		totalScore += s.Score
	}

	return &entity.AnalysisResult{
		ProjectId:       bid.ProjectId,
		BidDocumentId:   bid.Id,
		BidderName:      bid.BidderName,
		TotalScore:      utils.Round2(totalScore),
		ExtractedPrice:  price,
		DetailedScores:  tree,
		IsVetoed:        vetoed,
		AnalysisSummary: fmt.Sprintf("%d criteria scored by %s", total, b.llmClient.GetModel()),
		AiModel:         b.llmClient.GetModel(),
		ScoringMethod:   ScoringMethodAI,
		AnalyzedAt:      time.Now(),
	}, nil
}

func (b bidAnalyzerImpl) scoreLeaf(ctx context.Context, bidderName string, leaf view.ScoringRule, pages []string) view.CriterionScore {
	node := view.CriterionScore{
		CriteriaName: leaf.CriteriaName,
		Category:     leaf.Category,
		MaxScore:     leaf.MaxScore,
		IsVeto:       leaf.IsVeto,
	}
	answer, err := b.llmClient.ScoreCriterion(ctx, view.CriterionRequest{
		BidderName:   bidderName,
		CriteriaName: leaf.CriteriaName,
		Category:     leaf.Category,
		Description:  leaf.Description,
		MaxScore:     leaf.MaxScore,
		IsVeto:       leaf.IsVeto,
		Context:      BuildRuleContext(pages, leaf, b.settings.ContextWindowPages, b.settings.MaxContextChars),
	})
	if err != nil {
		log.Warnf("Failed to score criterion '%s' for %s: %s", leaf.CriteriaName, bidderName, err)
		node.Reason = "AI analysis failed: " + err.Error()
		return node
	}
	score, reason, ok := ParseScoreResponse(answer, leaf.MaxScore)
	if !ok {
		node.Reason = "Failed to parse AI response: " + utils.Truncate(answer, 200)
		return node
	}
	node.Score = score
	node.Reason = reason
	return node
}

// buildScoreTree mirrors the rule tree. Non-price leaves take scores in leaf order, parents get the sum of children.
func buildScoreTree(rules []view.ScoringRule, scored []view.CriterionScore, next *int, price *float64) []view.CriterionScore {
	result := make([]view.CriterionScore, 0, len(rules))
	for _, rule := range rules {
		if len(rule.Children) > 0 {
			children := buildScoreTree(rule.Children, scored, next, price)
			sum := 0.0
			for _, ch := range children {
				sum += ch.Score
			}
			result = append(result, view.CriterionScore{
				CriteriaName:    rule.CriteriaName,
				Category:        rule.Category,
				MaxScore:        rule.MaxScore,
				Score:           utils.Round2(sum),
				IsVeto:          rule.IsVeto,
				IsPriceCriteria: rule.IsPriceCriteria,
				Children:        children,
			})
			continue
		}
		if rule.IsPriceCriteria {
			result = append(result, view.CriterionScore{
				CriteriaName:    rule.CriteriaName,
				Category:        rule.Category,
				MaxScore:        rule.MaxScore,
				IsPriceCriteria: true,
				ExtractedPrice:  price,
				Reason:          "Price score is calculated after all bids are analyzed",
			})
			continue
		}
		if *next < len(scored) {
			result = append(result, scored[*next])
			*next++
		}
	}
	return result
}

var keywordSeparators = regexp.MustCompile(`[\s,，.。;；:：、()（）\[\]【】《》"“”'‘’/\\|!！?？]+`)

func ruleKeywords(rule view.ScoringRule) []string {
	seen := map[string]bool{}
	var keywords []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if utf8.RuneCountInString(k) <= 1 || seen[k] {
			return
		}
		seen[k] = true
		keywords = append(keywords, k)
	}
	add(rule.CriteriaName)
	for _, token := range keywordSeparators.Split(rule.CriteriaName+" "+rule.Description, -1) {
		add(token)
	}
	return keywords
}

// BuildRuleContext collects the pages mentioning the rule plus the following window pages,
// grouped into page ranges. Without a match the first pages are used.
func BuildRuleContext(pages []string, rule view.ScoringRule, windowPages int, maxChars int) string {
	keywords := ruleKeywords(rule)
	selected := make([]bool, len(pages))
	matched := false
	for i, page := range pages {
		if page == "" || !containsAny(page, keywords) {
			continue
		}
		matched = true
		for j := i; j <= i+windowPages && j < len(pages); j++ {
			selected[j] = true
		}
	}
	if !matched {
		for i := 0; i < fallbackContextPage && i < len(pages); i++ {
			selected[i] = true
		}
	}

	var sb strings.Builder
	for i := 0; i < len(pages); {
		if !selected[i] {
			i++
			continue
		}
		start := i
		for i < len(pages) && selected[i] {
			i++
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Pages %d-%d ---\n", start+1, i)
		sb.WriteString(strings.Join(pages[start:i], "\n"))
	}

	text := sb.String()
	if utf8.RuneCountInString(text) > maxChars {
		text = utils.Truncate(text, maxChars) + truncatedSuffix
	}
	return text
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

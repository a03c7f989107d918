package service

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

const (
	RuleMethodText    = "text"
	RuleMethodLLM     = "llm"
	RuleMethodDefault = "default"
)

const DefaultPriceFormula = "(min_price / price) * price_max_score"

type RuleExtractionService interface {
	// ExtractRules never returns an empty tree: the default rules are used when nothing can be extracted.
	ExtractRules(ctx context.Context, pages []string) ([]view.RuleDraft, string)
}

func NewRuleExtractionService(llmClient client.LLMClient) RuleExtractionService {
	return &ruleExtractionServiceImpl{llmClient: llmClient}
}

type ruleExtractionServiceImpl struct {
	llmClient client.LLMClient
}

func (r ruleExtractionServiceImpl) ExtractRules(ctx context.Context, pages []string) ([]view.RuleDraft, string) {
	section := LocateScoringSection(pages)

	rules := ParseScoringRules(section)
	if len(rules) > 0 {
		log.Infof("Extracted %d top level scoring rules from text", len(rules))
		return rules, RuleMethodText
	}

	if r.llmClient != nil && strings.TrimSpace(section) != "" {
		drafts, err := r.llmClient.ExtractScoringRules(ctx, section)
		if err != nil {
			log.Errorf("Failed to extract scoring rules with LLM: %s", err)
		} else {
			rules = NormalizeRules(drafts)
			if len(rules) > 0 {
				log.Infof("Extracted %d top level scoring rules with LLM", len(rules))
				return rules, RuleMethodLLM
			}
		}
	}

	log.Warn("No scoring rules found in tender, default rules are used")
	return DefaultRules(), RuleMethodDefault
}

func DefaultRules() []view.RuleDraft {
	return []view.RuleDraft{
		{
			CriteriaName: "技术方案",
			MaxScore:     60,
			Description:  "技术方案的完整性与可行性",
			Children: []view.RuleDraft{
				{CriteriaName: "方案完整性", MaxScore: 30, Description: "技术方案内容完整，覆盖招标要求"},
				{CriteriaName: "方案可行性", MaxScore: 30, Description: "技术方案切实可行，实施计划合理"},
			},
		},
		{
			CriteriaName:    "价格分",
			MaxScore:        40,
			Description:     DefaultPriceFormula,
			IsPriceCriteria: true,
			PriceFormula:    DefaultPriceFormula,
		},
	}
}

var scoringSectionHeadings = []string{"评标办法", "评分标准", "评审标准", "技术评分", "综合评分", "评标标准", "Evaluation criteria", "Scoring criteria"}

var chapterHeading = regexp.MustCompile(`(?m)^\s*第[一二三四五六七八九十百\d]+章`)

// LocateScoringSection returns the text from the first scoring heading to the next chapter,
// or the whole text when no heading is present.
func LocateScoringSection(pages []string) string {
	text := strings.Join(pages, "\n")
	start := -1
	for _, h := range scoringSectionHeadings {
		idx := strings.Index(text, h)
		if idx >= 0 && (start < 0 || idx < start) {
			start = idx
		}
	}
	if start < 0 {
		return text
	}
	section := text[start:]
	firstLineEnd := strings.Index(section, "\n")
	if firstLineEnd < 0 {
		return section
	}
	if loc := chapterHeading.FindStringIndex(section[firstLineEnd:]); loc != nil {
		section = section[:firstLineEnd+loc[0]]
	}
	return section
}

var (
	numberedLine   = regexp.MustCompile(`^(\d{1,2}(?:\.\d{1,2})*)(?:[\.、．\)）]\s*|\s+)(.+)$`)
	scoreInLine    = regexp.MustCompile(`[（\(]?\s*(?:满分\s*)?(\d+(?:\.\d+)?)\s*(?:分|points?)\s*[）\)]?`)
	unnumberedRul  = regexp.MustCompile(`^(.{2,100}?)\s*[（\(]\s*(?:满分\s*)?(\d+(?:\.\d+)?)\s*分\s*[）\)]`)
	priceLine      = regexp.MustCompile(`^(价格分|报价分)[^\n]*?(\d+(?:\.\d+)?)\s*分`)
	nameNoise      = regexp.MustCompile(`^[\s\d\.、．\)）:：\-—]+|[\s:：（\(\-—]+$`)
	chineseOrdinal = regexp.MustCompile(`^[一二三四五六七八九十]+[、．\.]\s*`)
)

var priceRuleKeywords = []string{"价格", "报价", "单价", "金额", "基准价", "price"}
var vetoRuleKeywords = []string{"否决", "废标", "资格审查", "veto"}

var priceFormulaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`投标报价得分[^\n]*?[=＝][^\n]*`),
	regexp.MustCompile(`价格分[^\n]*?[=＝][^\n]*`),
	regexp.MustCompile(`得分[^\n]*?[=＝][^\n]*`),
	regexp.MustCompile(`评标基准价[^\n]*?[=＝][^\n]*`),
	regexp.MustCompile(`基准价[^\n]*?[=＝][^\n]*`),
	regexp.MustCompile(`(?i)score\s*=[^\n]*`),
}

const maxRuleDescriptionChars = 500

type parsedRule struct {
	level int
	rule  view.RuleDraft
}

// ParseScoringRules builds a rule tree from numbered lines like "1.1 方案完整性（10分）".
func ParseScoringRules(text string) []view.RuleDraft {
	var parsed []parsedRule
	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if pr, ok := parseRuleLine(line); ok {
			parsed = append(parsed, pr)
			continue
		}
		if len(parsed) > 0 {
			last := &parsed[len(parsed)-1].rule
			if utf8.RuneCountInString(last.Description) < maxRuleDescriptionChars {
				last.Description = strings.TrimSpace(utils.Truncate(strings.TrimSpace(last.Description+" "+line), maxRuleDescriptionChars))
			}
		}
	}
	if len(parsed) == 0 {
		return nil
	}
	return NormalizeRules(buildRuleTree(parsed))
}

func parseRuleLine(line string) (parsedRule, bool) {
	if m := priceLine.FindStringSubmatch(line); m != nil {
		score, _ := strconv.ParseFloat(m[2], 64)
		if score <= 0 || score > 100 {
			return parsedRule{}, false
		}
		return parsedRule{level: 1, rule: view.RuleDraft{CriteriaName: m[1], MaxScore: score, Description: line}}, true
	}
	if m := numberedLine.FindStringSubmatch(line); m != nil {
		rest := m[2]
		level := len(strings.Split(m[1], "."))
		loc := scoreInLine.FindStringSubmatchIndex(rest)
		if loc == nil {
			return parsedRule{}, false
		}
		score, _ := strconv.ParseFloat(rest[loc[2]:loc[3]], 64)
		if score <= 0 || score > 100 {
			return parsedRule{}, false
		}
		name := cleanRuleName(rest[:loc[0]])
		if !validRuleName(name) {
			return parsedRule{}, false
		}
		description := strings.Trim(strings.TrimSpace(rest[loc[1]:]), "：:，,。;；")
		return parsedRule{level: level, rule: view.RuleDraft{CriteriaName: name, MaxScore: score, Description: description}}, true
	}
	// "一、技术部分（60分）" groups the numbered rules that follow
	level := 1
	if loc := chineseOrdinal.FindStringIndex(line); loc != nil {
		level = 0
		line = line[loc[1]:]
		if m := priceLine.FindStringSubmatch(line); m != nil {
			score, _ := strconv.ParseFloat(m[2], 64)
			if score > 0 && score <= 100 {
				return parsedRule{level: level, rule: view.RuleDraft{CriteriaName: m[1], MaxScore: score, Description: line}}, true
			}
		}
	}
	if m := unnumberedRul.FindStringSubmatch(line); m != nil {
		score, _ := strconv.ParseFloat(m[2], 64)
		name := cleanRuleName(m[1])
		if score <= 0 || score > 100 || !validRuleName(name) {
			return parsedRule{}, false
		}
		description := strings.TrimSpace(line[len(m[0]):])
		return parsedRule{level: level, rule: view.RuleDraft{CriteriaName: name, MaxScore: score, Description: description}}, true
	}
	return parsedRule{}, false
}

func cleanRuleName(name string) string {
	return strings.TrimSpace(nameNoise.ReplaceAllString(strings.TrimSpace(name), ""))
}

func validRuleName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 2 && n <= 100
}

// buildRuleTree nests rules by numbering depth: a rule becomes a child of the closest preceding rule with a lower level.
func buildRuleTree(parsed []parsedRule) []view.RuleDraft {
	type node struct {
		level    int
		rule     view.RuleDraft
		children []*node
	}
	var roots []*node
	var stack []*node
	for _, p := range parsed {
		n := &node{level: p.level, rule: p.rule}
		for len(stack) > 0 && stack[len(stack)-1].level >= n.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
		}
		stack = append(stack, n)
	}
	var convert func(nodes []*node) []view.RuleDraft
	convert = func(nodes []*node) []view.RuleDraft {
		var result []view.RuleDraft
		for _, n := range nodes {
			r := n.rule
			r.Children = convert(n.children)
			result = append(result, r)
		}
		return result
	}
	return convert(roots)
}

// NormalizeRules sets rule flags, merges duplicates and fixes the score sums of the tree.
func NormalizeRules(rules []view.RuleDraft) []view.RuleDraft {
	rules = normalizeRuleNodes(rules)
	if len(rules) == 0 {
		return nil
	}
	return rescaleToHundred(rules)
}

func normalizeRuleNodes(rules []view.RuleDraft) []view.RuleDraft {
	var result []view.RuleDraft
	for _, r := range rules {
		r.CriteriaName = strings.TrimSpace(r.CriteriaName)
		if r.CriteriaName == "" {
			continue
		}
		r.Children = normalizeRuleNodes(r.Children)
		if !r.IsPriceCriteria {
			r.IsPriceCriteria = containsAny(strings.ToLower(r.CriteriaName), priceRuleKeywords)
		}
		if !r.IsVeto {
			r.IsVeto = containsAny(strings.ToLower(r.CriteriaName), vetoRuleKeywords)
		}
		if r.IsPriceCriteria {
			if r.PriceFormula == "" {
				r.PriceFormula = ExtractPriceFormula(r.CriteriaName + "\n" + r.Description)
			}
			// price is scored by formula, sub items are folded into the description
			for _, ch := range r.Children {
				r.Description = strings.TrimSpace(r.Description + " " + ch.CriteriaName + " " + ch.Description)
			}
			r.Children = nil
		}
		if len(r.Children) > 0 {
			sum := 0.0
			for _, ch := range r.Children {
				sum += ch.MaxScore
			}
			if math.Abs(sum-r.MaxScore) > 0.1 {
				log.Debugf("Max score of rule '%s' adjusted from %.2f to children sum %.2f", r.CriteriaName, r.MaxScore, sum)
				r.MaxScore = utils.Round2(sum)
			}
		}
		if r.MaxScore <= 0 && !r.IsVeto {
			continue
		}
		if idx := findSimilarRule(result, r.CriteriaName); idx >= 0 {
			if r.MaxScore > result[idx].MaxScore {
				result[idx] = r
			}
			continue
		}
		result = append(result, r)
	}
	return result
}

func findSimilarRule(rules []view.RuleDraft, name string) int {
	key := ruleNameKey(name)
	for i, r := range rules {
		other := ruleNameKey(r.CriteriaName)
		if key == other || (len(key) > 3 && len(other) > 3 && (strings.Contains(key, other) || strings.Contains(other, key))) {
			return i
		}
	}
	return -1
}

func ruleNameKey(name string) string {
	return strings.ToLower(multiSpace.ReplaceAllString(name, ""))
}

// rescaleToHundred scales non-price rules when a dominant price rule leaves the total off 100.
func rescaleToHundred(rules []view.RuleDraft) []view.RuleDraft {
	total, price := 0.0, 0.0
	for _, r := range rules {
		total += r.MaxScore
		if r.IsPriceCriteria {
			price += r.MaxScore
		}
	}
	nonPrice := total - price
	if math.Abs(total-100) <= 0.1 || price <= 30 || nonPrice <= 0 || price >= 100 {
		return rules
	}
	factor := (100 - price) / nonPrice
	log.Infof("Scoring rules total %.2f is not 100, non price rules are scaled by %.4f", total, factor)
	var scale func(list []view.RuleDraft) []view.RuleDraft
	scale = func(list []view.RuleDraft) []view.RuleDraft {
		result := make([]view.RuleDraft, len(list))
		for i, r := range list {
			if !r.IsPriceCriteria {
				r.MaxScore = utils.Round2(r.MaxScore * factor)
				r.Children = scale(r.Children)
			}
			result[i] = r
		}
		return result
	}
	return scale(rules)
}

func ExtractPriceFormula(text string) string {
	for _, re := range priceFormulaPatterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

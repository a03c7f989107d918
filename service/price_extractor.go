package service

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	log "github.com/sirupsen/logrus"
)

type PriceCandidate struct {
	Value      float64
	Page       int
	Confidence float64
	Reason     string
}

var totalPriceKeywords = []string{"总价", "总报价", "投标报价", "合计", "总计"}

var (
	keywordThenAmount = regexp.MustCompile(`(总价|总报价|投标报价|合计|总计)[:：\s]*?([\d,]+\.?\d*)\s*[\(（]?([\x{4e00}-\x{9fa5}]+)[\)）]?`)
	amountThenKeyword = regexp.MustCompile(`([\d,]+\.?\d*)\s*(总价|总报价|投标报价|合计|总计)`)
	generalPrices     = []*regexp.Regexp{
		regexp.MustCompile(`￥\s*([\d,]+\.?\d*)`),
		regexp.MustCompile(`([\d,]+\.?\d*)\s*元`),
	}
	priceSummarySection = regexp.MustCompile(`投标一览表|开标一览表`)
	priceDocSection     = regexp.MustCompile(`价格文件|报价部分`)
)

var intelligentTotalKeywords = []string{"总价", "总报价", "投标报价", "合计", "总计", "报价总额"}

// ExtractPriceCandidates finds every amount that looks like a price and rates how likely it is the bid total.
func ExtractPriceCandidates(pages []string) []PriceCandidate {
	summaryPages := pagesMatching(pages, priceSummarySection)
	docPages := pagesMatching(pages, priceDocSection)

	var result []PriceCandidate
	for i, page := range pages {
		text := strings.ReplaceAll(page, "\n", " ")

		for _, m := range keywordThenAmount.FindAllStringSubmatch(text, -1) {
			value, ok := parseAmount(m[2])
			if !ok {
				continue
			}
			conf := priceConfidence(i, value, true, m[3], summaryPages, docPages)
			result = append(result, PriceCandidate{Value: value, Page: i, Confidence: conf, Reason: "keyword"})
		}
		for _, m := range amountThenKeyword.FindAllStringSubmatch(text, -1) {
			value, ok := parseAmount(m[1])
			if !ok {
				continue
			}
			conf := priceConfidence(i, value, true, "", summaryPages, docPages)
			result = append(result, PriceCandidate{Value: value, Page: i, Confidence: conf, Reason: "keyword"})
		}
		for _, re := range generalPrices {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				value, ok := parseAmount(m[1])
				if !ok {
					continue
				}
				conf := priceConfidence(i, value, false, "", summaryPages, docPages)
				result = append(result, PriceCandidate{Value: value, Page: i, Confidence: conf, Reason: "general"})
			}
		}
	}
	return result
}

// SelectBestPrice picks the bid total price. Candidates confirmed as a total by their context win,
// the largest of them is taken. Otherwise the most confident candidate is used.
func SelectBestPrice(pages []string, candidates []PriceCandidate) (float64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	unique := dedupeCandidates(candidates)
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Value > unique[j].Value })

	for _, c := range unique {
		context := pages[c.Page]
		if c.Page+1 < len(pages) {
			context += pages[c.Page+1]
		}
		if isTotalPrice(context, c.Value) {
			log.Debugf("Total price %.2f selected from page %d", c.Value, c.Page+1)
			return c.Value, true
		}
	}

	best := unique[0]
	for _, c := range unique[1:] {
		if c.Confidence > best.Confidence || (c.Confidence == best.Confidence && c.Value > best.Value) {
			best = c
		}
	}
	log.Debugf("Price %.2f selected by confidence %.2f from page %d", best.Value, best.Confidence, best.Page+1)
	return best.Value, true
}

// ExtractBestPrice is a shortcut for ExtractPriceCandidates followed by SelectBestPrice.
func ExtractBestPrice(pages []string) *float64 {
	price, ok := SelectBestPrice(pages, ExtractPriceCandidates(pages))
	if !ok {
		return nil
	}
	return &price
}

func priceConfidence(page int, value float64, keyword bool, chineseAmount string, summaryPages, docPages map[int]bool) float64 {
	confidence := 10.0
	if keyword {
		confidence = 50
	}
	if summaryPages[page] {
		confidence += 40
	} else if docPages[page] {
		confidence += 20
	}
	if chineseAmount != "" {
		if cv, ok := ChineseToNumber(chineseAmount); ok && math.Abs(value-cv) < 1.0 {
			confidence += 30
		}
	}
	confidence += math.Min(value/1e6, 5)
	return utils.Round2(confidence)
}

func isTotalPrice(context string, value float64) bool {
	hasKeyword := false
	for _, k := range intelligentTotalKeywords {
		if strings.Contains(context, k) {
			hasKeyword = true
			break
		}
	}
	hasPrice := strings.Contains(context, strconv.FormatFloat(value, 'f', -1, 64)) ||
		strings.Contains(context, formatWithCommas(value))
	if hasKeyword && hasPrice {
		return true
	}
	return value > 10000
}

func dedupeCandidates(candidates []PriceCandidate) []PriceCandidate {
	seen := make(map[float64]bool)
	var result []PriceCandidate
	for _, c := range candidates {
		if seen[c.Value] {
			continue
		}
		seen[c.Value] = true
		result = append(result, c)
	}
	return result
}

func pagesMatching(pages []string, re *regexp.Regexp) map[int]bool {
	result := make(map[int]bool)
	for i, p := range pages {
		if re.MatchString(p) {
			result[i] = true
		}
	}
	return result
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// formatWithCommas renders 1234567.5 as "1,234,567.50".
func formatWithCommas(v float64) string {
	str := fmt.Sprintf("%.2f", v)
	intPart, frac, _ := strings.Cut(str, ".")
	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteRune(',')
		}
		sb.WriteRune(r)
	}
	return sb.String() + "." + frac
}

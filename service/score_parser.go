package service

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
)

var (
	fencedJson     = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	plainJson      = regexp.MustCompile(`(?s)\{.*\}`)
	lazyJson       = regexp.MustCompile(`(?s)\{.*?\}`)
	textScore      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*分`)
	textScoreLatin = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*points?`)
)

const maxReasonChars = 500

// ParseScoreResponse reads a score and its reason from a model answer and clamps the score to [0, maxScore].
// ok is false when nothing resembling a score was found.
func ParseScoreResponse(answer string, maxScore float64) (score float64, reason string, ok bool) {
	answer = strings.TrimSpace(answer)

	candidates := make([]string, 0, 3)
	if m := fencedJson.FindStringSubmatch(answer); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := plainJson.FindString(answer); m != "" {
		candidates = append(candidates, m)
	}
	if m := lazyJson.FindString(answer); m != "" {
		candidates = append(candidates, m)
	}
	for _, c := range candidates {
		if s, r, found := parseScoreJson(c); found {
			return clampScore(s, maxScore), r, true
		}
	}

	for _, re := range []*regexp.Regexp{textScore, textScoreLatin} {
		if m := re.FindStringSubmatch(answer); m != nil {
			if s, err := strconv.ParseFloat(m[1], 64); err == nil {
				return clampScore(s, maxScore), utils.Truncate(answer, maxReasonChars), true
			}
		}
	}
	return 0, "Unable to read a score from the model answer: " + utils.Truncate(answer, maxReasonChars), false
}

func parseScoreJson(str string) (float64, string, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(str), &raw); err != nil {
		return 0, "", false
	}
	var score float64
	switch v := raw["score"].(type) {
	case float64:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "分"), 64)
		if err != nil {
			return 0, "", false
		}
		score = parsed
	default:
		return 0, "", false
	}
	reason, _ := raw["reason"].(string)
	return score, utils.Truncate(reason, maxReasonChars), true
}

func clampScore(score float64, maxScore float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return utils.Round2(score)
}

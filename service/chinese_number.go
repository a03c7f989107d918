package service

import (
	"regexp"
	"strings"
)

var chineseDigits = map[rune]float64{
	'零': 0, '一': 1, '二': 2, '三': 3, '四': 4, '五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
	'壹': 1, '贰': 2, '叁': 3, '肆': 4, '伍': 5, '陆': 6, '柒': 7, '捌': 8, '玖': 9,
	'两': 2,
}

var chineseUnits = map[rune]float64{'十': 10, '百': 100, '千': 1000, '拾': 10, '佰': 100, '仟': 1000}

var chineseNumberNoise = regexp.MustCompile(`[元圆角分整人民币\s]`)

// ChineseToNumber converts amounts like "壹佰贰拾万元整" to 1200000.
// Unknown characters are ignored, ok is false for an empty input.
func ChineseToNumber(text string) (float64, bool) {
	text = chineseNumberNoise.ReplaceAllString(text, "")
	if text == "" {
		return 0, false
	}
	if high, low, found := strings.Cut(text, "亿"); found {
		return convertChineseSegment(high)*1e8 + convertWan(low), true
	}
	return convertWan(text), true
}

func convertWan(text string) float64 {
	if high, low, found := strings.Cut(text, "万"); found {
		return convertChineseSegment(high)*1e4 + convertChineseSegment(low)
	}
	return convertChineseSegment(text)
}

func convertChineseSegment(segment string) float64 {
	total := 0.0
	current := 0.0
	for _, r := range segment {
		if d, ok := chineseDigits[r]; ok {
			current = d
			continue
		}
		if u, ok := chineseUnits[r]; ok {
			if current == 0 {
				current = 1
			}
			total += current * u
			current = 0
		}
	}
	return total + current
}

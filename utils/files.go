package utils

import (
	"math"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFileName keeps letters, digits and a few separators so the name is safe as a storage key part.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune('_')
		}
	}
	res := strings.Trim(sb.String(), ".")
	if res == "" {
		return "file"
	}
	return res
}

func FileExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func BaseNameWithoutExt(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package hashtag

import (
	"strconv"
	"strings"
)

// Normalize trims whitespace, strips the leading marker and lowercases a hashtag.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "#")
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeAll normalizes every entry and drops empty ones.
func NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if n := Normalize(r); n != "" {
			out = append(out, n)
		}
	}
	return out
}

var countSuffixes = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// ParseCount converts display counts such as "1.2M views" or "45.2B" to an integer.
func ParseCount(display string) (int64, bool) {
	fields := strings.Fields(strings.ReplaceAll(display, ",", ""))
	if len(fields) == 0 {
		return 0, false
	}
	num := strings.ToUpper(fields[0])
	mult := 1.0
	if m, ok := countSuffixes[num[len(num)-1]]; ok {
		mult = m
		num = num[:len(num)-1]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return int64(v*mult + 0.5), true
}

// FormatCount renders n the way the platform displays counts (e.g. 45.2B).
func FormatCount(n int64) string {
	switch {
	case n >= 1e9:
		return trimZero(strconv.FormatFloat(float64(n)/1e9, 'f', 1, 64)) + "B"
	case n >= 1e6:
		return trimZero(strconv.FormatFloat(float64(n)/1e6, 'f', 1, 64)) + "M"
	case n >= 1e3:
		return trimZero(strconv.FormatFloat(float64(n)/1e3, 'f', 1, 64)) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}

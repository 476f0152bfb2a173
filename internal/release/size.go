package release

import (
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`(?i)^\s*([\d.,]+)\s*([KMGTP]?i?B)\s*$`)

var sizeUnits = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
	"PB": 1 << 50,
}

// ParseSize converts human size strings like "4.5 GB" or "500 MB" to bytes
// using 1024-base units. Returns 0 for unparseable input; callers omit the
// attribute in that case.
func ParseSize(s string) int64 {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	num := strings.ReplaceAll(m[1], ",", ".")
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}

	unit := strings.ToUpper(strings.ReplaceAll(m[2], "i", ""))
	factor, ok := sizeUnits[unit]
	if !ok {
		return 0
	}
	return int64(value * factor)
}

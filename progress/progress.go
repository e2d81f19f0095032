// Package progress pulls a completion percentage out of a line of workload output.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// None is returned when a line carries no percentage.
const None float64 = -1

// A number must not continue a longer one on its left, so ".5%" reads as 0.5
// and not 5. Thousands separators are accepted.
var percentPattern = regexp.MustCompile(`(?:^|[^\d.])(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+)\s*%`)

// Extract returns the first percentage found in line, or None.
func Extract(line string) float64 {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return None
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return None
	}
	return v
}

// Found reports whether v is a real percentage rather than None.
func Found(v float64) bool {
	return v >= 0
}

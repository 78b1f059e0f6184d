package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var durationPart = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours|hour|hrs|hr|h|minutes|minute|mins|min|m)?`)

// ParseDurationMinutes reads free-text labels such as "10 min" or "1h 30m".
// Labels without a recognisable number count as zero.
func ParseDurationMinutes(label string) int {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return 0
	}

	var total float64
	for _, match := range durationPart.FindAllStringSubmatch(label, -1) {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		switch match[2] {
		case "hours", "hour", "hrs", "hr", "h":
			total += value * 60
		default:
			total += value
		}
	}
	return int(math.Round(total))
}

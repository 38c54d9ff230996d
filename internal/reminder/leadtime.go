// Package reminder turns lead-time preferences and occurrence times into
// concrete reminder fire times, keys and texts.
package reminder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var leadToken = regexp.MustCompile(`^(\d+)([dhm])$`)

// ParseLeadTimes parses a comma-separated spec such as "1d,3h,30m" into
// durations sorted longest first. Tokens that do not match are skipped.
func ParseLeadTimes(spec string) []time.Duration {
	var leads []time.Duration
	for _, part := range strings.Split(spec, ",") {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		m := leadToken.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		var unit time.Duration
		switch m[2] {
		case "d":
			unit = day
		case "h":
			unit = time.Hour
		default:
			unit = time.Minute
		}
		leads = append(leads, time.Duration(n)*unit)
	}

	sort.Slice(leads, func(i, j int) bool { return leads[i] > leads[j] })
	return leads
}

// PrimaryLead returns the longest lead time in spec.
func PrimaryLead(spec string) (time.Duration, bool) {
	leads := ParseLeadTimes(spec)
	if len(leads) == 0 {
		return 0, false
	}
	return leads[0], true
}

// FormatLead renders d in the largest whole unit of the lead-time grammar.
func FormatLead(d time.Duration) string {
	switch {
	case d%day == 0:
		return fmt.Sprintf("%dd", d/day)
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	default:
		return fmt.Sprintf("%dm", d/time.Minute)
	}
}

// ValidSpec reports whether spec is "off" or contains at least one valid token.
func ValidSpec(spec string) bool {
	if strings.EqualFold(strings.TrimSpace(spec), "off") {
		return true
	}
	return len(ParseLeadTimes(spec)) > 0
}

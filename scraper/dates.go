package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativePattern matches expressions like "3 hours ago" or
// "2 days ago". The unit is validated against relativeUnits afterwards.
var relativePattern = regexp.MustCompile(`(?i)(\d+)\s*([a-z]+)\s*ago`)

// relativeUnits maps a relative-time unit to its duration. Months and
// years use fixed approximations (30 and 365 days).
var relativeUnits = map[string]time.Duration{
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"month":   30 * 24 * time.Hour,
	"mnth":    30 * 24 * time.Hour,
	"months":  30 * 24 * time.Hour,
	"year":    365 * 24 * time.Hour,
	"yrs":     365 * 24 * time.Hour,
	"years":   365 * 24 * time.Hour,
}

// absoluteLayouts are tried in order against the truncated date token.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
}

// ParseDate converts a raw date string from a scraped page into a
// timestamp. Relative expressions ("N units ago") are tried first;
// anything else is truncated at the first space (sources often append
// time-of-day or timezone text) and parsed as a calendar date. An
// unparseable string yields nil — publication date is optional, so
// this never errors.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if t := parseRelative(raw, time.Now()); t != nil {
		return t
	}

	token := raw
	if i := strings.IndexByte(token, ' '); i >= 0 {
		token = token[:i]
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return &t
		}
	}

	return nil
}

// parseRelative resolves "N units ago" against the given reference
// time. Returns nil when raw is not a relative expression.
func parseRelative(raw string, now time.Time) *time.Time {
	match := relativePattern.FindStringSubmatch(raw)
	if match == nil {
		return nil
	}

	unit, ok := relativeUnits[strings.ToLower(match[2])]
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}

	t := now.Add(-time.Duration(n) * unit)
	return &t
}

package storage

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var periodPattern = regexp.MustCompile(`^(\d+)\s*(h|hr|hrs|hour|hours|d|day|days|w|week|weeks|m|month|months|y|year|years)$`)

// ParseRetentionPeriod converts a period string to days. It accepts the
// predefined periods ("hourly", "daily", "weekly", "monthly", "yearly")
// and flexible forms like "7 days", "1h" or "2 weeks". Hour-based
// periods round up to at least one day.
func ParseRetentionPeriod(period string) (int, error) {
	if period == "" {
		return 0, errors.New("retention period cannot be empty")
	}

	normalized := strings.ToLower(strings.TrimSpace(period))

	switch normalized {
	case "hourly", "daily":
		return 1, nil
	case "weekly":
		return 7, nil
	case "monthly":
		return 30, nil
	case "yearly":
		return 365, nil
	}

	matches := periodPattern.FindStringSubmatch(normalized)
	if len(matches) != 3 {
		return 0, fmt.Errorf("unsupported retention period format %q: use 'hourly', 'daily', 'weekly', 'monthly', 'yearly', "+
			"or '<number> <unit>' with unit h/hr/hour(s), d/day(s), w/week(s), m/month(s), y/year(s)", period)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number in retention period %q: %w", period, err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("retention period value must be positive, got %d", value)
	}

	switch unit := matches[2]; unit {
	case "h", "hr", "hrs", "hour", "hours":
		return (value + 23) / 24, nil
	case "d", "day", "days":
		return value, nil
	case "w", "week", "weeks":
		return value * 7, nil
	case "m", "month", "months":
		// months approximated as 30 days
		return value * 30, nil
	case "y", "year", "years":
		return value * 365, nil
	default:
		return 0, fmt.Errorf("unsupported time unit %q in retention period %q", unit, period)
	}
}

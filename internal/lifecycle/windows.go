package lifecycle

import (
	"time"

	"orderpulse/internal/domain"
)

const day = 24 * time.Hour

func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// tomorrowWindow is [tomorrow 00:00, day after 00:00) in UTC.
func tomorrowWindow(now time.Time) (from, before time.Time) {
	from = utcMidnight(now).AddDate(0, 0, 1)
	return from, from.AddDate(0, 0, 1)
}

// daysBetween is the whole number of days from then to now, floored.
func daysBetween(then, now time.Time) int {
	if now.Before(then) {
		return 0
	}
	return int(now.Sub(then) / day)
}

func autoStartQuery(now time.Time) domain.Query {
	return domain.Where(domain.Predicate{
		Status:        domain.StatusActive,
		ScheduledDate: domain.Range{Until: &now},
	})
}

func autoExpireQuery(now time.Time, cfg Config) domain.Query {
	openCutoff := now.Add(-cfg.OpenExpiry)
	activeCutoff := now.Add(-cfg.ActiveExpiry)
	return domain.Where(
		domain.Predicate{Status: domain.StatusOpen, ScheduledDate: domain.Range{Until: &openCutoff}},
		domain.Predicate{Status: domain.StatusActive, ScheduledDate: domain.Range{Until: &activeCutoff}},
	)
}

func tomorrowQuery(now time.Time) domain.Query {
	from, before := tomorrowWindow(now)
	return domain.Where(domain.Predicate{
		Status:        domain.StatusActive,
		ScheduledDate: domain.Range{From: &from, Before: &before},
	})
}

func hourlyQuery(now time.Time, cfg Config) domain.Query {
	from, before := now.Add(cfg.HourlyFrom), now.Add(cfg.HourlyTo)
	return domain.Where(domain.Predicate{
		Status:    domain.StatusActive,
		StartTime: domain.Range{From: &from, Before: &before},
	})
}

func overdueQuery(now time.Time, cfg Config) domain.Query {
	cutoff := now.Add(-cfg.OverdueAfter)
	return domain.Where(domain.Predicate{
		Status:    domain.StatusInProgress,
		StartTime: domain.Range{Until: &cutoff},
	})
}

package reminder

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
)

const (
	// neverRemindedDays stands in for "days since last reminder" when none was sent.
	neverRemindedDays = 999
	// acuteCrisisDays is how long a high-severity situation gets daily reminders.
	acuteCrisisDays = 14
)

// ReminderInterval is the cadence in days for a situation of the given severity
// that started elapsedSinceStart days ago.
func ReminderInterval(severity domain.Severity, elapsedSinceStart int) int {
	switch severity {
	case domain.SeverityHigh:
		if elapsedSinceStart <= acuteCrisisDays {
			return 1
		}
		return 7
	case domain.SeverityMedium:
		return 7
	case domain.SeverityLow:
		return 14
	}
	return 7
}

// DaysSinceReminder counts calendar days between the last reminder and today,
// evaluated in loc. Situations never reminded return a large sentinel.
func DaysSinceReminder(last *time.Time, today civil.Date, loc *time.Location) int {
	if last == nil {
		return neverRemindedDays
	}
	return today.DaysSince(civil.DateOf(last.In(loc)))
}

// DueSituations returns active situations whose cadence has elapsed, ordered by
// severity descending then start date ascending.
func DueSituations(items []domain.SituationWithPerson, today civil.Date, loc *time.Location) []domain.DueSituation {
	var due []domain.DueSituation
	for _, item := range items {
		s := item.Situation
		if s.Status != domain.StatusActive {
			continue
		}
		elapsed := today.DaysSince(s.StartedAt)
		interval := ReminderInterval(s.Severity, elapsed)
		if DaysSinceReminder(s.LastReminder, today, loc) < interval {
			continue
		}
		due = append(due, domain.DueSituation{Item: item, ElapsedDays: elapsed, Interval: interval})
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].Item.Situation, due[j].Item.Situation
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.StartedAt.Before(b.StartedAt)
	})
	return due
}

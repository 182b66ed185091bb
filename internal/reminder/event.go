package reminder

import (
	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
)

// DefaultLookaheadDays bounds the event scan window. Any value >= 7 yields the same milestones.
const DefaultLookaheadDays = 14

// DueEventMilestones returns the milestone due today for each event, if any.
// Events without an exact date are skipped. At most one milestone fires per event
// because the lead-day equalities are mutually exclusive.
func DueEventMilestones(events []domain.EventWithPerson, today civil.Date) []domain.DueEvent {
	var due []domain.DueEvent
	for _, item := range events {
		if item.Event.ExactDate == nil {
			continue
		}
		daysUntil := item.Event.ExactDate.DaysSince(today)
		for _, m := range domain.Milestones {
			if daysUntil != m.LeadDays() {
				continue
			}
			if !item.Event.Sent(m) {
				due = append(due, domain.DueEvent{Item: item, Milestone: m, DaysUntil: daysUntil})
			}
			break
		}
	}
	return due
}

// Package message renders due notifications as plain text.
package message

import (
	"fmt"
	"strings"

	"FriendReminder/internal/domain"
)

// Render formats any due notification.
func Render(n domain.DueNotification) (string, error) {
	switch d := n.(type) {
	case domain.DueEvent:
		return Event(d), nil
	case domain.DueSituation:
		return Situation(d), nil
	case domain.DueStaleGroup:
		return Stale(d), nil
	default:
		return "", fmt.Errorf("no formatter for %T", n)
	}
}

// Event renders one event milestone.
func Event(d domain.DueEvent) string {
	ev, p := d.Item.Event, d.Item.Person

	var b strings.Builder
	fmt.Fprintf(&b, "Event reminder (%s): %s (%s)\n", d.Milestone.Label(), p.Name, p.Relationship)

	kind := humanize(string(ev.Type))
	if desc := strings.TrimSpace(ev.Description); desc != "" {
		fmt.Fprintf(&b, "%s: %s\n", kind, desc)
	} else {
		fmt.Fprintf(&b, "%s\n", kind)
	}

	if ev.ExactDate != nil {
		fmt.Fprintf(&b, "Date: %s", ev.ExactDate.String())
	}
	if ev.Recurring {
		b.WriteString(" (every year)")
	}
	return b.String()
}

// Situation renders a support reminder with a suggestion for the current phase.
func Situation(d domain.DueSituation) string {
	s, p := d.Item.Situation, d.Item.Person

	var b strings.Builder
	fmt.Fprintf(&b, "Check in with %s: %s (%s severity, day %d)\n", p.Name, humanizeLower(string(s.Type)), s.Severity, d.ElapsedDays)
	if desc := strings.TrimSpace(s.Description); desc != "" {
		fmt.Fprintf(&b, "%s\n", desc)
	}
	fmt.Fprintf(&b, "Suggestion: %s", Suggestion(s.Type, d.ElapsedDays))
	return b.String()
}

// Stale renders one priority tier of contacts that need attention.
func Stale(g domain.DueStaleGroup) string {
	var b strings.Builder
	switch g.Tier {
	case domain.PriorityHigh:
		fmt.Fprintf(&b, "Close friends you haven't talked to in %d+ days:\n", g.Threshold)
	default:
		fmt.Fprintf(&b, "People you haven't talked to in %d+ days:\n", g.Threshold)
	}

	for _, p := range g.People {
		fmt.Fprintf(&b, "- %s (%s), last contact: %s\n", p.Name, p.Relationship, p.LastContactLabel())
	}
	b.WriteString("Pick one and send a quick message today.")
	return b.String()
}

func humanize(s string) string {
	s = humanizeLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func humanizeLower(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

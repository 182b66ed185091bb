package message

import "FriendReminder/internal/domain"

const (
	breakupEarlyDays = 14
	newJobEarlyDays  = 30
)

type phase int

const (
	phaseOnly phase = iota
	phaseEarly
	phaseLater
)

type suggestionKey struct {
	kind  domain.SituationType
	phase phase
}

var suggestions = map[suggestionKey]string{
	{domain.SituationBreakup, phaseEarly}:        "Check in and mostly listen. Offer to get together this week.",
	{domain.SituationBreakup, phaseLater}:        "Invite them out to something fun and low-key.",
	{domain.SituationSickFamily, phaseOnly}:      "Ask how their family member is doing and offer something practical, like a meal or a ride.",
	{domain.SituationWeddingPlanning, phaseOnly}: "Ask how the planning is going and whether there is anything you can take off their plate.",
	{domain.SituationNewJob, phaseEarly}:         "Ask how the first weeks are going and what the team is like.",
	{domain.SituationNewJob, phaseLater}:         "Ask whether they are settling in and what they enjoy most so far.",
	{domain.SituationToughTime, phaseOnly}:       "Send a short note that you are thinking of them. No need to fix anything.",
	{domain.SituationOther, phaseOnly}:           "Reach out and ask how things are going.",
}

func phaseFor(kind domain.SituationType, elapsedDays int) phase {
	switch kind {
	case domain.SituationBreakup:
		if elapsedDays <= breakupEarlyDays {
			return phaseEarly
		}
		return phaseLater
	case domain.SituationNewJob:
		if elapsedDays <= newJobEarlyDays {
			return phaseEarly
		}
		return phaseLater
	case domain.SituationSickFamily, domain.SituationWeddingPlanning, domain.SituationToughTime, domain.SituationOther:
		return phaseOnly
	}
	return phaseOnly
}

// Suggestion picks the support advice for a situation type at the given age.
func Suggestion(kind domain.SituationType, elapsedDays int) string {
	if s, ok := suggestions[suggestionKey{kind, phaseFor(kind, elapsedDays)}]; ok {
		return s
	}
	return suggestions[suggestionKey{domain.SituationOther, phaseOnly}]
}

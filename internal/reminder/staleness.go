package reminder

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"FriendReminder/internal/domain"
)

// Thresholds are the staleness limits in days per priority tier.
type Thresholds struct {
	PriorityDays int
	NormalDays   int
}

// DefaultThresholds returns 14 days for high priority and 28 for normal.
func DefaultThresholds() Thresholds {
	return Thresholds{PriorityDays: 14, NormalDays: 28}
}

// For returns the threshold applied to the given tier.
func (t Thresholds) For(p domain.Priority) int {
	switch p {
	case domain.PriorityHigh:
		return t.PriorityDays
	case domain.PriorityNormal:
		return t.NormalDays
	}
	return t.NormalDays
}

// IsStale reports whether the person has not been contacted since today minus the tier threshold.
func IsStale(p domain.Person, today civil.Date, t Thresholds) bool {
	if p.LastContact == nil {
		return true
	}
	return p.LastContact.Before(today.AddDays(-t.For(p.Priority)))
}

// StaleGroups selects stale people and groups them by tier, high first.
// Empty tiers produce no group.
func StaleGroups(people []domain.Person, today civil.Date, t Thresholds) []domain.DueStaleGroup {
	byTier := map[domain.Priority][]domain.Person{}
	for _, p := range people {
		if !IsStale(p, today, t) {
			continue
		}
		tier := p.Priority
		if tier != domain.PriorityHigh {
			tier = domain.PriorityNormal
		}
		byTier[tier] = append(byTier[tier], p)
	}

	var groups []domain.DueStaleGroup
	for _, tier := range []domain.Priority{domain.PriorityHigh, domain.PriorityNormal} {
		members := byTier[tier]
		if len(members) == 0 {
			continue
		}
		sortStale(members)
		groups = append(groups, domain.DueStaleGroup{Tier: tier, Threshold: t.For(tier), People: members, AsOf: today})
	}
	return groups
}

// sortStale puts never-contacted people first, then the oldest contact, then by name.
func sortStale(people []domain.Person) {
	sort.SliceStable(people, func(i, j int) bool {
		a, b := people[i].LastContact, people[j].LastContact
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && *a != *b:
			return a.Before(*b)
		}
		return strings.ToLower(people[i].Name) < strings.ToLower(people[j].Name)
	})
}

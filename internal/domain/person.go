package domain

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Relationship classifies how the user knows a person.
type Relationship string

const (
	RelationshipFriend   Relationship = "friend"
	RelationshipFamily   Relationship = "family"
	RelationshipCoworker Relationship = "coworker"
	RelationshipUnknown  Relationship = "unknown"
)

// Relationships lists every relationship value.
var Relationships = []Relationship{RelationshipFriend, RelationshipFamily, RelationshipCoworker, RelationshipUnknown}

// ParseRelationship maps free text onto a known relationship, defaulting to unknown.
// "work" and "colleague" are read as coworker.
func ParseRelationship(s string) Relationship {
	switch Relationship(strings.ToLower(strings.TrimSpace(s))) {
	case RelationshipFriend:
		return RelationshipFriend
	case RelationshipFamily:
		return RelationshipFamily
	case RelationshipCoworker, "work", "colleague":
		return RelationshipCoworker
	default:
		return RelationshipUnknown
	}
}

// Priority selects the staleness threshold applied to a person.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// ParsePriority accepts "high" or "normal" (empty means normal).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "", "normal":
		return PriorityNormal, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Person is someone the user keeps in touch with.
type Person struct {
	ID           string
	Name         string
	Aliases      []string
	Relationship Relationship
	Priority     Priority
	// LastContact is nil when no interaction has been recorded.
	LastContact *civil.Date
}

// Matches reports whether name equals the display name or any alias, ignoring case.
func (p Person) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if strings.EqualFold(p.Name, name) {
		return true
	}
	for _, alias := range p.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// LastContactLabel renders the last contact date or "never".
func (p Person) LastContactLabel() string {
	if p.LastContact == nil {
		return "never"
	}
	return p.LastContact.String()
}

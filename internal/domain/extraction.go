package domain

// ExtractionResult is what the extraction oracle returns for a piece of free text.
type ExtractionResult struct {
	People     []ExtractedPerson    `json:"people"`
	Events     []ExtractedEvent     `json:"events"`
	Situations []ExtractedSituation `json:"situations"`
}

// ExtractedPerson is a mention of someone in the text.
type ExtractedPerson struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}

// ExtractedEvent is a future occurrence mentioned in the text.
type ExtractedEvent struct {
	PersonName  string `json:"person_name"`
	Type        string `json:"event_type"`
	Description string `json:"description"`
	// Date is an ISO date when the text states one exactly.
	Date       string `json:"date"`
	ApproxDate string `json:"approximate_date"`
	Recurring  bool   `json:"is_recurring"`
}

// ExtractedSituation is an ongoing situation mentioned in the text.
type ExtractedSituation struct {
	PersonName  string `json:"person_name"`
	Type        string `json:"situation_type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

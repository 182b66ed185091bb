package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FriendReminder/internal/config"
	"FriendReminder/internal/domain"
)

func TestExtractParsesModelAnswer(t *testing.T) {
	t.Parallel()

	answer := "```json\n" + `{
		"people": [{"name": "Sam", "relationship": "friend"}],
		"events": [{"person_name": "Sam", "event_type": "birthday", "description": "30th", "date": "2026-10-15", "is_recurring": true}],
		"situations": [{"person_name": "Sam", "situation_type": "new_job", "description": "started at Acme", "severity": "low"}]
	}` + "\n```"

	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req struct {
			Model    string        `json:"model"`
			Messages []chatMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) != 2 || req.Messages[1].Content != "Had coffee with Sam" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}))
	defer srv.Close()

	c := NewChatGPTClient(config.LLMConfig{Endpoint: srv.URL, Model: "test-model", APIKey: "key"})
	res, err := c.Extract(context.Background(), "Had coffee with Sam")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if gotModel != "test-model" {
		t.Fatalf("unexpected model %q", gotModel)
	}
	if len(res.People) != 1 || res.People[0].Name != "Sam" {
		t.Fatalf("unexpected people: %+v", res.People)
	}
	if len(res.Events) != 1 || res.Events[0].Date != "2026-10-15" || !res.Events[0].Recurring {
		t.Fatalf("unexpected events: %+v", res.Events)
	}
	if len(res.Situations) != 1 || res.Situations[0].Severity != "low" {
		t.Fatalf("unexpected situations: %+v", res.Situations)
	}
}

func TestExtractHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatGPTClient(config.LLMConfig{Endpoint: srv.URL, Model: "m", APIKey: "key"})
	if _, err := c.Extract(context.Background(), "text"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExtractMisconfigured(t *testing.T) {
	t.Parallel()

	if _, err := NewChatGPTClient(config.LLMConfig{}).Extract(context.Background(), "text"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := parseExtraction("I could not find anything"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestPromptListsDomainRelationships(t *testing.T) {
	t.Parallel()

	for _, r := range domain.Relationships {
		if !strings.Contains(extractionPrompt, string(r)) {
			t.Fatalf("prompt does not offer relationship %q", r)
		}
	}
	for _, v := range []string{"acquaintance", ", work,"} {
		if strings.Contains(extractionPrompt, v) {
			t.Fatalf("prompt offers relationship %q the domain does not know", v)
		}
	}
	if !strings.Contains(extractionPrompt, "friend, family, coworker, unknown") {
		t.Fatalf("unexpected relationship list in prompt:\n%s", extractionPrompt)
	}
}

func TestParseExtractionKeepsCoworker(t *testing.T) {
	t.Parallel()

	res, err := parseExtraction(`{"people": [{"name": "Jordan", "relationship": "coworker"}, {"name": "Kim", "relationship": "work"}]}`)
	if err != nil {
		t.Fatalf("parseExtraction: %v", err)
	}
	if len(res.People) != 2 {
		t.Fatalf("unexpected people: %+v", res.People)
	}
	for _, p := range res.People {
		if got := domain.ParseRelationship(p.Relationship); got != domain.RelationshipCoworker {
			t.Fatalf("%s: relationship %q parsed as %s", p.Name, p.Relationship, got)
		}
	}
}

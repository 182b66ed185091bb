package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FriendReminder/internal/ports"
)

const defaultBaseURL = "https://api.sendgrid.com"

// Config describes the SendGrid v3 mail channel.
type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	ToEmail   string
	Subject   string
	Timeout   time.Duration
}

// Notifier delivers reminders as plain-text email through the SendGrid v3 API.
type Notifier struct {
	cfg        Config
	httpClient *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// New validates cfg and returns a notifier.
func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" || strings.TrimSpace(cfg.ToEmail) == "" {
		return nil, errors.New("sendgrid from and to addresses are required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Subject == "" {
		cfg.Subject = "Friend reminder"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Notifier{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}, nil
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

// Notify sends message as the body of one email. SendGrid answers 202 on acceptance.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	payload := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: n.cfg.ToEmail}}}},
		From:             emailAddress{Email: n.cfg.FromEmail, Name: n.cfg.FromName},
		Subject:          subjectFor(n.cfg.Subject, message),
		Content:          []mailContent{{Type: "text/plain", Value: message}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sendgrid error %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return nil
}

// subjectFor appends the first message line to the base subject.
func subjectFor(base, message string) string {
	first, _, _ := strings.Cut(message, "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return base
	}
	return base + ": " + first
}

package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
	"FriendReminder/internal/usecase"
)

const maxBodySize = 1 << 20

// TickRunner is the part of usecase.Runner the API drives.
type TickRunner interface {
	Tick(ctx context.Context, now time.Time) (domain.TickReport, error)
	LastReport() (domain.TickReport, bool)
}

// TextIngestor is the part of usecase.Ingestor the API drives.
type TextIngestor interface {
	Ingest(ctx context.Context, text string, at time.Time) (usecase.IngestSummary, error)
}

// Deps wires the admin handlers.
type Deps struct {
	Runner TickRunner
	Store  ports.EntityStore
	// Ingestor is optional; POST /ingest answers 503 without it.
	Ingestor TextIngestor
	// Token enables bearer authentication when non-empty.
	Token    string
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewHandler returns the admin API router.
func NewHandler(deps Deps) http.Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(deps.Token))
		r.Get("/ticks/last", handleLastTick(deps))
		r.Post("/ticks", handleRunTick(deps))
		r.Post("/people/{id}/contact", handleRecordContact(deps))
		r.Post("/situations/{id}/resolve", handleResolveSituation(deps))
		r.Get("/reminders", handleListReminders(deps))
		r.Post("/ingest", handleIngest(deps))
	})
	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleLastTick(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report, ok := deps.Runner.LastReport()
		if !ok {
			httpError(w, http.StatusNotFound, "no tick has run yet")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleRunTick(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := deps.Now()
		if raw := r.URL.Query().Get("date"); raw != "" {
			d, err := civil.ParseDate(raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid date %q", raw)
				return
			}
			now = atTimeOfDay(d, now.In(deps.Location))
		}

		report, err := deps.Runner.Tick(r.Context(), now)
		switch {
		case errors.Is(err, usecase.ErrTickInProgress):
			httpError(w, http.StatusConflict, "tick already in progress")
		case err != nil:
			deps.Logger.Error("manual tick failed", "error", err)
			httpError(w, http.StatusInternalServerError, "tick failed: %v", err)
		default:
			writeJSON(w, http.StatusOK, report)
		}
	}
}

type contactRequest struct {
	Date string `json:"date"`
}

func handleRecordContact(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		day := civil.DateOf(deps.Now().In(deps.Location))

		var req contactRequest
		if r.ContentLength != 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
				return
			}
		}
		if req.Date != "" {
			d, err := civil.ParseDate(req.Date)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid date %q", req.Date)
				return
			}
			day = d
		}

		if err := deps.Store.RecordContact(r.Context(), id, day); err != nil {
			storeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleResolveSituation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.ResolveSituation(r.Context(), chi.URLParam(r, "id")); err != nil {
			storeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type reminderLogEntry struct {
	ID          string          `json:"id"`
	Category    domain.Category `json:"category"`
	PersonID    string          `json:"person_id"`
	EventID     string          `json:"event_id,omitempty"`
	SituationID string          `json:"situation_id,omitempty"`
	Message     string          `json:"message"`
	SentAt      time.Time       `json:"sent_at"`
}

func handleListReminders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 500 {
				httpError(w, http.StatusBadRequest, "limit must be between 1 and 500")
				return
			}
			limit = n
		}

		entries, err := deps.Store.ListReminderLog(r.Context(), limit)
		if err != nil {
			storeError(w, deps.Logger, err)
			return
		}
		out := make([]reminderLogEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, reminderLogEntry(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type ingestRequest struct {
	Text string `json:"text"`
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Ingestor == nil {
			httpError(w, http.StatusServiceUnavailable, "ingestion is not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "text is required")
			return
		}

		summary, err := deps.Ingestor.Ingest(r.Context(), req.Text, deps.Now())
		if err != nil {
			deps.Logger.Error("ingest failed", "error", err)
			httpError(w, http.StatusBadGateway, "ingest failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// atTimeOfDay moves clock onto day, keeping the wall-clock time and location.
func atTimeOfDay(day civil.Date, clock time.Time) time.Time {
	return time.Date(day.Year, day.Month, day.Day, clock.Hour(), clock.Minute(), clock.Second(), 0, clock.Location())
}

func storeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		httpError(w, http.StatusNotFound, "%v", err)
		return
	}
	logger.Error("store error", "error", err)
	httpError(w, http.StatusInternalServerError, "internal error")
}

// writeJSON encodes v before the status line goes out, so an unencodable
// value turns into a 500 instead of a truncated success response.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response", "error", err)
		code = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// The client may have gone away; there is nobody left to tell.
	_, _ = w.Write(append(body, '\n'))
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// EventService defines the methods that the event handler requires from the
// service layer.
type EventService interface {
	CreateEvent(ctx context.Context, title string, outcomes []domain.Outcome, deadline time.Time) (domain.Event, error)
	LockEvent(ctx context.Context, eventID string) (domain.Event, error)
	ResolveEvent(ctx context.Context, eventID, winnerOutcomeID string) (domain.Event, error)
	ListOpenEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error)
}

// EventHandler serves event lifecycle HTTP endpoints.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler with the given service and logger.
func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// eventResponse is the wire shape of an event.
type eventResponse struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Status          string            `json:"status"`
	Outcomes        []outcomeResponse `json:"outcomes"`
	WinnerOutcomeID string            `json:"winner_outcome_id,omitempty"`
	Deadline        time.Time         `json:"deadline"`
	ResolutionTime  *time.Time        `json:"resolution_time,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type outcomeResponse struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Odds  float64 `json:"odds"`
}

func toEventResponse(ev domain.Event) eventResponse {
	resp := eventResponse{
		ID:              ev.ID,
		Title:           ev.Title,
		Status:          string(ev.Status),
		Outcomes:        make([]outcomeResponse, 0, len(ev.Outcomes)),
		WinnerOutcomeID: ev.WinnerOutcomeID,
		Deadline:        ev.Deadline,
		CreatedAt:       ev.CreatedAt,
	}
	if !ev.ResolutionTime.IsZero() {
		t := ev.ResolutionTime
		resp.ResolutionTime = &t
	}
	for _, o := range ev.Outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeResponse{
			ID:    o.ID,
			Label: o.Label,
			Odds:  o.Odds,
		})
	}
	return resp
}

// createEventRequest is the admin payload for opening a new event.
type createEventRequest struct {
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	Outcomes []struct {
		ID    string  `json:"id"`
		Label string  `json:"label"`
		Odds  float64 `json:"odds"`
	} `json:"outcomes"`
}

// CreateEvent opens a new betting event.
// POST /api/admin/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	outcomes := make([]domain.Outcome, 0, len(req.Outcomes))
	for _, o := range req.Outcomes {
		outcomes = append(outcomes, domain.Outcome{
			ID:    o.ID,
			Label: o.Label,
			Odds:  o.Odds,
		})
	}

	ev, err := h.events.CreateEvent(r.Context(), req.Title, outcomes, req.Deadline)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(ev))
}

// LockEvent closes an open event to new bets ahead of resolution.
// POST /api/admin/events/{id}/lock
func (h *EventHandler) LockEvent(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing event id")
		return
	}

	ev, err := h.events.LockEvent(r.Context(), id)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to lock event")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

// ResolveEvent settles or voids an event. The winner outcome ID "void"
// refunds all stakes instead of picking a winner.
// POST /api/admin/events/{id}/resolve
func (h *EventHandler) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing event id")
		return
	}

	var req struct {
		WinnerOutcomeID string `json:"winner_outcome_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ev, err := h.events.ResolveEvent(r.Context(), id, req.WinnerOutcomeID)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to resolve event")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

// listEventsResponse wraps the list endpoint output.
type listEventsResponse struct {
	Events []eventResponse `json:"events"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListOpenEvents returns events currently accepting bets.
// GET /api/events?limit=50&offset=0
func (h *EventHandler) ListOpenEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	events, err := h.events.ListOpenEvents(r.Context(), opts)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to list events")
		return
	}

	resp := listEventsResponse{
		Events: make([]eventResponse, 0, len(events)),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, toEventResponse(ev))
	}

	writeJSON(w, http.StatusOK, resp)
}

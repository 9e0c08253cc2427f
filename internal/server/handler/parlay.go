package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/service"
)

// ParlayService defines the methods that the parlay handler requires from the
// service layer.
type ParlayService interface {
	CreateParlay(ctx context.Context, creatorID, title string, picks []service.ParlayPick, stake int64) (domain.Parlay, domain.ParlayWager, error)
	PlaceWager(ctx context.Context, userID, parlayID string, stake int64) (domain.ParlayWager, error)
	GetParlay(ctx context.Context, parlayID string) (domain.Parlay, []domain.LegState, error)
	ListUserWagers(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ParlayWager, error)
}

// ParlayHandler serves parlay ticket and wager HTTP endpoints.
type ParlayHandler struct {
	parlays ParlayService
	logger  *slog.Logger
}

// NewParlayHandler creates a ParlayHandler with the given service and logger.
func NewParlayHandler(parlays ParlayService, logger *slog.Logger) *ParlayHandler {
	return &ParlayHandler{
		parlays: parlays,
		logger:  logger,
	}
}

// parlayResponse is the wire shape of a parlay ticket. Leg states are derived
// at read time, never stored.
type parlayResponse struct {
	ID              string        `json:"id"`
	CreatorID       string        `json:"creator_id"`
	Title           string        `json:"title"`
	Legs            []legResponse `json:"legs"`
	BaseMultiplier  float64       `json:"base_multiplier"`
	BonusRate       float64       `json:"bonus_rate"`
	FinalMultiplier float64       `json:"final_multiplier"`
	CreatedAt       time.Time     `json:"created_at"`
}

type legResponse struct {
	EventID   string  `json:"event_id"`
	OutcomeID string  `json:"outcome_id"`
	Odds      float64 `json:"odds"`
	State     string  `json:"state,omitempty"`
}

func toParlayResponse(p domain.Parlay, states []domain.LegState) parlayResponse {
	resp := parlayResponse{
		ID:              p.ID,
		CreatorID:       p.CreatorID,
		Title:           p.Title,
		Legs:            make([]legResponse, 0, len(p.Legs)),
		BaseMultiplier:  p.BaseMultiplier,
		BonusRate:       p.BonusRate,
		FinalMultiplier: p.FinalMultiplier,
		CreatedAt:       p.CreatedAt,
	}
	for i, leg := range p.Legs {
		lr := legResponse{
			EventID:   leg.EventID,
			OutcomeID: leg.OutcomeID,
			Odds:      leg.Odds,
		}
		if i < len(states) {
			lr.State = states[i].String()
		}
		resp.Legs = append(resp.Legs, lr)
	}
	return resp
}

// wagerResponse is the wire shape of a stake on a parlay.
type wagerResponse struct {
	ID              string     `json:"id"`
	ParlayID        string     `json:"parlay_id"`
	UserID          string     `json:"user_id"`
	Amount          int64      `json:"amount"`
	PotentialPayout int64      `json:"potential_payout"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

func toWagerResponse(wg domain.ParlayWager) wagerResponse {
	return wagerResponse{
		ID:              wg.ID,
		ParlayID:        wg.ParlayID,
		UserID:          wg.UserID,
		Amount:          wg.Amount,
		PotentialPayout: wg.PotentialPayout,
		Status:          string(wg.Status),
		CreatedAt:       wg.CreatedAt,
		SettledAt:       wg.SettledAt,
	}
}

// createParlayRequest is the payload for building a ticket with the creator's
// initial stake.
type createParlayRequest struct {
	Title string `json:"title"`
	Stake int64  `json:"stake"`
	Picks []struct {
		EventID   string `json:"event_id"`
		OutcomeID string `json:"outcome_id"`
	} `json:"picks"`
}

// CreateParlay builds a multi-leg ticket and stakes the creator on it in one
// step. Odds are snapshotted per leg at creation.
// POST /api/parlays
func (h *ParlayHandler) CreateParlay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createParlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	picks := make([]service.ParlayPick, 0, len(req.Picks))
	for _, p := range req.Picks {
		picks = append(picks, service.ParlayPick{
			EventID:   p.EventID,
			OutcomeID: p.OutcomeID,
		})
	}

	parlay, wager, err := h.parlays.CreateParlay(r.Context(), userID, req.Title, picks, req.Stake)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to create parlay")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"parlay": toParlayResponse(parlay, nil),
		"wager":  toWagerResponse(wager),
	})
}

// PlaceWager tails an existing parlay with the calling user's own stake.
// POST /api/parlays/{id}/wagers
func (h *ParlayHandler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing parlay id")
		return
	}

	var req struct {
		Stake int64 `json:"stake"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	wager, err := h.parlays.PlaceWager(r.Context(), userID, id, req.Stake)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to place wager")
		return
	}

	writeJSON(w, http.StatusCreated, toWagerResponse(wager))
}

// GetParlay returns a ticket with the current derived state of each leg.
// GET /api/parlays/{id}
func (h *ParlayHandler) GetParlay(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing parlay id")
		return
	}

	parlay, states, err := h.parlays.GetParlay(r.Context(), id)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to get parlay")
		return
	}

	writeJSON(w, http.StatusOK, toParlayResponse(parlay, states))
}

// listWagersResponse wraps the list endpoint output.
type listWagersResponse struct {
	Wagers []wagerResponse `json:"wagers"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListWagers returns the calling user's parlay wagers, newest first.
// GET /api/parlays/wagers?limit=50&offset=0
func (h *ParlayHandler) ListWagers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	opts := parseListOpts(r)
	wagers, err := h.parlays.ListUserWagers(r.Context(), userID, opts)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to list wagers")
		return
	}

	resp := listWagersResponse{
		Wagers: make([]wagerResponse, 0, len(wagers)),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, wg := range wagers {
		resp.Wagers = append(resp.Wagers, toWagerResponse(wg))
	}

	writeJSON(w, http.StatusOK, resp)
}

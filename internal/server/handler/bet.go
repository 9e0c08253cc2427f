package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// BetService defines the methods that the bet handler requires from the
// service layer.
type BetService interface {
	PlaceBet(ctx context.Context, userID, eventID, outcomeID string, amount int64) (domain.Bet, error)
	GetBet(ctx context.Context, betID string) (domain.Bet, error)
	ListUserBets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error)
}

// BetHandler serves single-bet HTTP endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logger,
	}
}

// betResponse is the wire shape of a bet.
type betResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	EventID         string     `json:"event_id"`
	OutcomeID       string     `json:"outcome_id"`
	Amount          int64      `json:"amount"`
	Odds            float64    `json:"odds"`
	PotentialPayout int64      `json:"potential_payout"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

func toBetResponse(b domain.Bet) betResponse {
	return betResponse{
		ID:              b.ID,
		UserID:          b.UserID,
		EventID:         b.EventID,
		OutcomeID:       b.OutcomeID,
		Amount:          b.Amount,
		Odds:            b.Odds,
		PotentialPayout: b.PotentialPayout,
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt,
		SettledAt:       b.SettledAt,
	}
}

// PlaceBet stakes the calling user's balance on an event outcome.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		EventID   string `json:"event_id"`
		OutcomeID string `json:"outcome_id"`
		Amount    int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	bet, err := h.bets.PlaceBet(r.Context(), userID, req.EventID, req.OutcomeID, req.Amount)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to place bet")
		return
	}

	writeJSON(w, http.StatusCreated, toBetResponse(bet))
}

// GetBet returns a single bet. Only the bet's owner may read it.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	bet, err := h.bets.GetBet(r.Context(), id)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to get bet")
		return
	}
	if bet.UserID != userID {
		writeError(w, http.StatusNotFound, "bet not found")
		return
	}

	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

// listBetsResponse wraps the list endpoint output.
type listBetsResponse struct {
	Bets   []betResponse `json:"bets"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListBets returns the calling user's bets, newest first.
// GET /api/bets?limit=50&offset=0
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	opts := parseListOpts(r)
	bets, err := h.bets.ListUserBets(r.Context(), userID, opts)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to list bets")
		return
	}

	resp := listBetsResponse{
		Bets:   make([]betResponse, 0, len(bets)),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, b := range bets {
		resp.Bets = append(resp.Bets, toBetResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

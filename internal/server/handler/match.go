package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// MatchService defines the methods that the match handler requires from the
// service layer.
type MatchService interface {
	CreateMatch(ctx context.Context, creatorID string, wager int64, matchType int, privateOpponent string) (domain.Match, error)
	JoinMatch(ctx context.Context, matchID, userID string) (domain.Match, error)
	CancelMatch(ctx context.Context, matchID, userID string) (domain.Match, error)
	MakeMove(ctx context.Context, matchID, userID string, cell int) (domain.Match, error)
	ClaimTimeout(ctx context.Context, matchID, userID string) (domain.Match, error)
	GetMatch(ctx context.Context, matchID string) (domain.Match, error)
	ListOpenMatches(ctx context.Context, opts domain.ListOpts) ([]domain.Match, error)
	ListUserMatches(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Match, error)
}

// MatchHandler serves wagered-match HTTP endpoints.
type MatchHandler struct {
	matches MatchService
	logger  *slog.Logger
}

// NewMatchHandler creates a MatchHandler with the given service and logger.
func NewMatchHandler(matches MatchService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{
		matches: matches,
		logger:  logger,
	}
}

// matchResponse is the wire shape of a match.
type matchResponse struct {
	ID              string                   `json:"id"`
	CreatorID       string                   `json:"creator_id"`
	PrivateOpponent string                   `json:"private_opponent,omitempty"`
	Wager           int64                    `json:"wager"`
	Pot             int64                    `json:"pot"`
	Status          string                   `json:"status"`
	Players         map[string]playerDetail  `json:"players"`
	CurrentTurn     string                   `json:"current_turn,omitempty"`
	LastMoveAt      *time.Time               `json:"last_move_at,omitempty"`
	MatchType       int                      `json:"match_type"`
	Board           []string                 `json:"board"`
	Round           int                      `json:"round"`
	Result          string                   `json:"result,omitempty"`
	WinnerID        string                   `json:"winner_id,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	CompletedAt     *time.Time               `json:"completed_at,omitempty"`
}

type playerDetail struct {
	Symbol    string `json:"symbol"`
	RoundWins int    `json:"round_wins"`
}

func toMatchResponse(m domain.Match) matchResponse {
	resp := matchResponse{
		ID:              m.ID,
		CreatorID:       m.CreatorID,
		PrivateOpponent: m.PrivateOpponent,
		Wager:           m.Wager,
		Pot:             m.Pot,
		Status:          string(m.Status),
		Players:         make(map[string]playerDetail, len(m.Players)),
		CurrentTurn:     m.CurrentTurn,
		MatchType:       m.MatchType,
		Board:           m.Board[:],
		Round:           m.Round,
		Result:          string(m.Result),
		WinnerID:        m.WinnerID,
		CreatedAt:       m.CreatedAt,
		CompletedAt:     m.CompletedAt,
	}
	if !m.LastMoveAt.IsZero() {
		t := m.LastMoveAt
		resp.LastMoveAt = &t
	}
	for id, p := range m.Players {
		resp.Players[id] = playerDetail{
			Symbol:    p.Symbol,
			RoundWins: p.RoundWins,
		}
	}
	return resp
}

// CreateMatch opens a wagered match and escrows the creator's stake.
// POST /api/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Wager           int64  `json:"wager"`
		MatchType       int    `json:"match_type"`
		PrivateOpponent string `json:"private_opponent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	match, err := h.matches.CreateMatch(r.Context(), userID, req.Wager, req.MatchType, req.PrivateOpponent)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to create match")
		return
	}

	writeJSON(w, http.StatusCreated, toMatchResponse(match))
}

// JoinMatch seats the calling user as the second player, escrows their
// stake, and starts the first round.
// POST /api/matches/{id}/join
func (h *MatchHandler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	match, err := h.matches.JoinMatch(r.Context(), id, userID)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to join match")
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

// CancelMatch withdraws an unjoined match and releases the creator's escrow.
// POST /api/matches/{id}/cancel
func (h *MatchHandler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	match, err := h.matches.CancelMatch(r.Context(), id, userID)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to cancel match")
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

// MakeMove places the calling user's symbol on a board cell (0-8).
// POST /api/matches/{id}/moves
func (h *MatchHandler) MakeMove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	var req struct {
		Cell int `json:"cell"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	match, err := h.matches.MakeMove(r.Context(), id, userID, req.Cell)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to make move")
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

// ClaimTimeout awards the match to the calling user when their opponent has
// let the turn clock expire.
// POST /api/matches/{id}/claim-timeout
func (h *MatchHandler) ClaimTimeout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	match, err := h.matches.ClaimTimeout(r.Context(), id, userID)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to claim timeout")
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

// GetMatch returns a single match by ID.
// GET /api/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return
	}

	match, err := h.matches.GetMatch(r.Context(), id)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to get match")
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

// listMatchesResponse wraps the list endpoint output.
type listMatchesResponse struct {
	Matches []matchResponse `json:"matches"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMatches returns open matches (the default lobby view) or, with
// scope=mine, the calling user's own matches.
// GET /api/matches?scope=open|mine&limit=50&offset=0
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		matches []domain.Match
		err     error
	)
	if r.URL.Query().Get("scope") == "mine" {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		matches, err = h.matches.ListUserMatches(r.Context(), userID, opts)
	} else {
		matches, err = h.matches.ListOpenMatches(r.Context(), opts)
	}
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to list matches")
		return
	}

	resp := listMatchesResponse{
		Matches: make([]matchResponse, 0, len(matches)),
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, toMatchResponse(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

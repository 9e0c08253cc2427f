package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/service"
)

// WalletService defines the methods that the wallet handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type WalletService interface {
	CreateUser(ctx context.Context, username string) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	Transfer(ctx context.Context, fromID, toID string, amount int64) (service.TransferResult, error)
	Leaderboard(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (int64, error)
}

// WalletHandler serves user and wallet HTTP endpoints.
type WalletHandler struct {
	wallets WalletService
	logger  *slog.Logger
}

// NewWalletHandler creates a WalletHandler with the given service and logger.
func NewWalletHandler(wallets WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		wallets: wallets,
		logger:  logger,
	}
}

// userResponse is the wire shape of a user wallet.
type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Balance       int64     `json:"balance"`
	LockedBalance int64     `json:"locked_balance"`
	NetWorth      int64     `json:"net_worth"`
	Rank          int64     `json:"rank,omitempty"` // 1-based; 0 when unranked
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Balance:       u.Balance,
		LockedBalance: u.LockedBalance,
		NetWorth:      u.NetWorth(),
		CreatedAt:     u.CreatedAt,
	}
}

// CreateUser registers a new user and grants the signup balance.
// POST /api/users
func (h *WalletHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, err := h.wallets.CreateUser(r.Context(), req.Username)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// GetWallet returns the calling user's wallet.
// GET /api/wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.wallets.GetUser(r.Context(), userID)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to get wallet")
		return
	}

	resp := toUserResponse(user)
	// The wallet itself is authoritative; a cache failure only costs the
	// rank field.
	rank, err := h.wallets.Rank(r.Context(), userID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "leaderboard rank lookup failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else {
		resp.Rank = rank
	}

	writeJSON(w, http.StatusOK, resp)
}

// leaderboardResponse wraps the net-worth ranking.
type leaderboardResponse struct {
	Entries []leaderboardEntry `json:"entries"`
}

type leaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	NetWorth int64  `json:"net_worth"`
}

// Leaderboard returns the top users by net worth (balance plus locked).
// GET /api/leaderboard?n=10
func (h *WalletHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if n > 100 {
		n = 100
	}

	entries, err := h.wallets.Leaderboard(r.Context(), n)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to load leaderboard")
		return
	}

	resp := leaderboardResponse{Entries: make([]leaderboardEntry, 0, len(entries))}
	for i, e := range entries {
		resp.Entries = append(resp.Entries, leaderboardEntry{
			Rank:     i + 1,
			UserID:   e.UserID,
			NetWorth: e.NetWorth,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Transfer moves funds between two users, reporting any shortfall when the
// source wallet cannot cover the full amount.
// POST /api/admin/transfer
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromID string `json:"from_id"`
		ToID   string `json:"to_id"`
		Amount int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.wallets.Transfer(r.Context(), req.FromID, req.ToID, req.Amount)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, err, "failed to transfer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":      toUserResponse(result.From),
		"to":        toUserResponse(result.To),
		"requested": result.Requested,
		"recovered": result.Recovered,
		"shortfall": result.Shortfall,
	})
}

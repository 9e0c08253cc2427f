package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// Signal bus channels for post-commit record change fan-out. The ws hub and
// any other read-layer subscriber listen on these.
const (
	ChannelBets    = "records:bets"
	ChannelEvents  = "records:events"
	ChannelParlays = "records:parlays"
	ChannelMatches = "records:matches"
	ChannelWallets = "records:wallets"
)

// recordChange is the envelope published on the signal bus after a commit.
type recordChange struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Record any    `json:"record,omitempty"`
}

// publishChange serializes and publishes a record change. Publish failures
// are logged and swallowed: the bus is a side channel, never part of the
// transaction.
func publishChange(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel, kind, id string, record any) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(recordChange{Kind: kind, ID: id, Record: record})
	if err != nil {
		logger.WarnContext(ctx, "publish: marshal record change failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "publish: record change failed",
			slog.String("channel", channel),
			slog.String("kind", kind),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

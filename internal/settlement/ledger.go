package settlement

import (
	"context"
	"errors"
	"time"
)

// ErrInsufficientFunds is returned by Debit when the account cannot cover
// the requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// HistoryEntry is one human-readable line of a participant's account history.
type HistoryEntry struct {
	ParticipantID string    `json:"participant_id"`
	RoundID       string    `json:"round_id"`
	Description   string    `json:"description"`
	Delta         float64   `json:"delta"`
	CreatedAt     time.Time `json:"created_at"`
}

// Ledger is the external account service. Balances and transaction history
// live outside the game core; the core only ever supplies deltas keyed by
// (participant, round).
type Ledger interface {
	// Debit removes funds, failing with ErrInsufficientFunds when the
	// balance cannot cover the amount.
	Debit(ctx context.Context, participantID string, amount float64) error

	// Credit adds funds, creating the account if needed.
	Credit(ctx context.Context, participantID string, amount float64) error

	// RecordHistory writes one history line. The (participantID, roundID)
	// pair is the dedup key: a duplicate write is a no-op.
	RecordHistory(ctx context.Context, participantID, roundID, description string, delta float64) error

	// Settle applies a payout credit and writes the history line as one
	// idempotent step keyed on (participantID, roundID). It reports whether
	// this call applied the settlement or an earlier attempt already had.
	Settle(ctx context.Context, participantID, roundID, description string, delta, payout float64) (bool, error)

	Balance(ctx context.Context, participantID string) (float64, error)
	History(ctx context.Context, participantID string, limit int) ([]HistoryEntry, error)
}

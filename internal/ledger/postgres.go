package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crashpit/internal/settlement"
)

// Postgres implements settlement.Ledger on the accounts schema owned by the
// migrations in this repository.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ settlement.Ledger = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Debit is a conditional update: it only applies when the balance covers
// the amount, so a stake can never drive an account negative.
func (p *Postgres) Debit(ctx context.Context, participantID string, amount float64) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE accounts
		    SET balance = balance - $2, updated_at = now()
		  WHERE participant_id = $1 AND balance >= $2`,
		participantID, amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", participantID, err)
	}
	if tag.RowsAffected() == 0 {
		return settlement.ErrInsufficientFunds
	}
	return nil
}

func (p *Postgres) Credit(ctx context.Context, participantID string, amount float64) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO accounts (participant_id, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (participant_id)
		 DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()`,
		participantID, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", participantID, err)
	}
	return nil
}

// RecordHistory writes one history line. (participant_id, round_id) is
// unique, so a duplicate write is silently dropped.
func (p *Postgres) RecordHistory(ctx context.Context, participantID, roundID, description string, delta float64) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO account_history (participant_id, round_id, description, delta)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (participant_id, round_id) DO NOTHING`,
		participantID, roundID, description, delta)
	if err != nil {
		return fmt.Errorf("record history %s/%s: %w", participantID, roundID, err)
	}
	return nil
}

// Settle writes the history line and applies the payout credit in one
// transaction. The history insert is the dedup gate: if the line already
// exists the payout was applied by an earlier attempt, and nothing happens.
func (p *Postgres) Settle(ctx context.Context, participantID, roundID, description string, delta, payout float64) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("settle %s/%s: %w", participantID, roundID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO account_history (participant_id, round_id, description, delta)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (participant_id, round_id) DO NOTHING`,
		participantID, roundID, description, delta)
	if err != nil {
		return false, fmt.Errorf("settle %s/%s: %w", participantID, roundID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if payout > 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO accounts (participant_id, balance)
			 VALUES ($1, $2)
			 ON CONFLICT (participant_id)
			 DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()`,
			participantID, payout); err != nil {
			return false, fmt.Errorf("settle %s/%s: %w", participantID, roundID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("settle %s/%s: %w", participantID, roundID, err)
	}
	return true, nil
}

func (p *Postgres) Balance(ctx context.Context, participantID string) (float64, error) {
	var balance float64
	err := p.pool.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE participant_id = $1`,
		participantID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", participantID, err)
	}
	return balance, nil
}

func (p *Postgres) History(ctx context.Context, participantID string, limit int) ([]settlement.HistoryEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT participant_id, round_id, description, delta, created_at
		   FROM account_history
		  WHERE participant_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		participantID, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", participantID, err)
	}
	defer rows.Close()

	var entries []settlement.HistoryEntry
	for rows.Next() {
		var e settlement.HistoryEntry
		if err := rows.Scan(&e.ParticipantID, &e.RoundID, &e.Description, &e.Delta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history %s: %w", participantID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"crashpit/internal/game"
)

// memLedger is an in-memory Ledger with the same dedup semantics as the
// postgres implementation. failures lets a test inject transient errors.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]float64
	settled  map[string]bool // participantID|roundID
	history  []HistoryEntry
	failures int // remaining Settle calls to fail
}

func newMemLedger() *memLedger {
	return &memLedger{
		balances: make(map[string]float64),
		settled:  make(map[string]bool),
	}
}

func (l *memLedger) Debit(ctx context.Context, participantID string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[participantID] < amount {
		return ErrInsufficientFunds
	}
	l.balances[participantID] -= amount
	return nil
}

func (l *memLedger) Credit(ctx context.Context, participantID string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[participantID] += amount
	return nil
}

func (l *memLedger) RecordHistory(ctx context.Context, participantID, roundID, description string, delta float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := participantID + "|" + roundID
	if l.settled[key] {
		return nil
	}
	l.settled[key] = true
	l.history = append(l.history, HistoryEntry{
		ParticipantID: participantID,
		RoundID:       roundID,
		Description:   description,
		Delta:         delta,
		CreatedAt:     time.Now(),
	})
	return nil
}

func (l *memLedger) Settle(ctx context.Context, participantID, roundID, description string, delta, payout float64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures > 0 {
		l.failures--
		return false, errors.New("ledger unavailable")
	}
	key := participantID + "|" + roundID
	if l.settled[key] {
		return false, nil
	}
	l.settled[key] = true
	l.history = append(l.history, HistoryEntry{
		ParticipantID: participantID,
		RoundID:       roundID,
		Description:   description,
		Delta:         delta,
		CreatedAt:     time.Now(),
	})
	l.balances[participantID] += payout
	return true, nil
}

func (l *memLedger) Balance(ctx context.Context, participantID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[participantID], nil
}

func (l *memLedger) History(ctx context.Context, participantID string, limit int) ([]HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []HistoryEntry
	for i := len(l.history) - 1; i >= 0 && len(out) < limit; i-- {
		if l.history[i].ParticipantID == participantID {
			out = append(out, l.history[i])
		}
	}
	return out, nil
}

func newTestGateway(ledger Ledger) *Gateway {
	g := NewGateway(ledger)
	g.retryInterval = 5 * time.Millisecond
	return g
}

func TestGateway_ReserveAndRefund(t *testing.T) {
	ledger := newMemLedger()
	ledger.balances["alice"] = 100
	g := newTestGateway(ledger)
	ctx := context.Background()

	if err := g.Reserve(ctx, "alice", 10); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if bal, _ := ledger.Balance(ctx, "alice"); bal != 90 {
		t.Errorf("balance after reserve = %v, want 90", bal)
	}

	if err := g.Reserve(ctx, "alice", 1000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Reserve() over balance error = %v, want %v", err, ErrInsufficientFunds)
	}
	if err := g.Reserve(ctx, "broke", 10); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Reserve() for unknown account error = %v, want %v", err, ErrInsufficientFunds)
	}

	if err := g.Refund(ctx, "alice", 10); err != nil {
		t.Fatalf("Refund() error = %v", err)
	}
	if bal, _ := ledger.Balance(ctx, "alice"); bal != 100 {
		t.Errorf("balance after refund = %v, want 100", bal)
	}
}

func TestGateway_SettlesWinOnce(t *testing.T) {
	ledger := newMemLedger()
	g := newTestGateway(ledger)
	g.Start()

	win := game.Outcome{
		Kind:          game.OutcomeWin,
		RoundID:       "round-1",
		ParticipantID: "alice",
		Stake:         10,
		Multiplier:    1.5,
		Profit:        4.75,
	}
	// A crash and a redelivery can both hand the same outcome over; only the
	// first may move money.
	g.Submit(win)
	g.Submit(win)
	g.Stop()

	ctx := context.Background()
	if bal, _ := ledger.Balance(ctx, "alice"); bal != 14.75 {
		t.Errorf("balance = %v, want 14.75 (stake plus profit, credited once)", bal)
	}
	hist, _ := ledger.History(ctx, "alice", 10)
	if len(hist) != 1 {
		t.Fatalf("history has %d entries, want 1", len(hist))
	}
	if hist[0].Delta != 4.75 {
		t.Errorf("history delta = %v, want 4.75", hist[0].Delta)
	}
}

func TestGateway_LossMovesNoMoney(t *testing.T) {
	ledger := newMemLedger()
	g := newTestGateway(ledger)
	g.Start()

	g.Submit(game.Outcome{
		Kind:          game.OutcomeLoss,
		RoundID:       "round-1",
		ParticipantID: "bob",
		Stake:         25,
		Profit:        -25,
	})
	g.Stop()

	ctx := context.Background()
	// The stake was debited at bet time; a loss credits nothing back.
	if bal, _ := ledger.Balance(ctx, "bob"); bal != 0 {
		t.Errorf("balance = %v, want 0", bal)
	}
	hist, _ := ledger.History(ctx, "bob", 10)
	if len(hist) != 1 || hist[0].Delta != -25 {
		t.Errorf("history = %+v, want one entry at -25", hist)
	}
}

func TestGateway_RefundOutcomeReturnsStake(t *testing.T) {
	ledger := newMemLedger()
	g := newTestGateway(ledger)
	g.Start()

	g.Submit(game.Outcome{
		Kind:          game.OutcomeRefund,
		RoundID:       "round-1",
		ParticipantID: "carol",
		Stake:         10,
	})
	g.Stop()

	ctx := context.Background()
	if bal, _ := ledger.Balance(ctx, "carol"); bal != 10 {
		t.Errorf("balance = %v, want 10", bal)
	}
	hist, _ := ledger.History(ctx, "carol", 10)
	if len(hist) != 1 || hist[0].Delta != 0 {
		t.Errorf("history = %+v, want one entry at 0", hist)
	}
}

// stalledLedger blocks every Settle until release is closed, simulating a
// sustained ledger outage.
type stalledLedger struct {
	*memLedger
	release chan struct{}
}

func (l *stalledLedger) Settle(ctx context.Context, participantID, roundID, description string, delta, payout float64) (bool, error) {
	<-l.release
	return l.memLedger.Settle(ctx, participantID, roundID, description, delta, payout)
}

// TestGateway_SubmitNeverBlocksDuringOutage pins the intake contract: the
// round goroutine calls Submit with its clock running, so a dead ledger must
// grow the backlog, never stall the submitter.
func TestGateway_SubmitNeverBlocksDuringOutage(t *testing.T) {
	ledger := &stalledLedger{memLedger: newMemLedger(), release: make(chan struct{})}
	g := newTestGateway(ledger)
	g.Start()

	const outcomes = 2000
	submitted := make(chan struct{})
	go func() {
		for i := 0; i < outcomes; i++ {
			g.Submit(game.Outcome{
				Kind:          game.OutcomeWin,
				RoundID:       fmt.Sprintf("round-%d", i),
				ParticipantID: "alice",
				Stake:         1,
			})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked while the ledger was down")
	}

	close(ledger.release)
	g.Stop()

	if bal, _ := ledger.Balance(context.Background(), "alice"); bal != outcomes {
		t.Errorf("balance after recovery = %v, want %v (every outcome settled)", bal, outcomes)
	}
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	ledger := newMemLedger()
	ledger.failures = 3
	g := newTestGateway(ledger)
	g.Start()

	g.Submit(game.Outcome{
		Kind:          game.OutcomeWin,
		RoundID:       "round-1",
		ParticipantID: "alice",
		Stake:         10,
		Multiplier:    2.0,
		Profit:        9.5,
	})
	g.Stop()

	if bal, _ := ledger.Balance(context.Background(), "alice"); bal != 19.5 {
		t.Errorf("balance = %v, want 19.5 after retries", bal)
	}
}

func TestPayout(t *testing.T) {
	tests := []struct {
		name string
		o    game.Outcome
		want float64
	}{
		{name: "win returns stake plus profit", o: game.Outcome{Kind: game.OutcomeWin, Stake: 10, Profit: 4.75}, want: 14.75},
		{name: "loss returns nothing", o: game.Outcome{Kind: game.OutcomeLoss, Stake: 10, Profit: -10}, want: 0},
		{name: "refund returns the stake", o: game.Outcome{Kind: game.OutcomeRefund, Stake: 10}, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payout(tt.o); got != tt.want {
				t.Errorf("payout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistoryDelta(t *testing.T) {
	tests := []struct {
		name string
		o    game.Outcome
		want float64
	}{
		{name: "win", o: game.Outcome{Kind: game.OutcomeWin, Profit: 4.75}, want: 4.75},
		{name: "loss", o: game.Outcome{Kind: game.OutcomeLoss, Profit: -10}, want: -10},
		{name: "refund", o: game.Outcome{Kind: game.OutcomeRefund, Stake: 10}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := historyDelta(tt.o); got != tt.want {
				t.Errorf("historyDelta() = %v, want %v", got, tt.want)
			}
		})
	}
}

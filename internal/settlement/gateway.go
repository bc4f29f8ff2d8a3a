package settlement

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"crashpit/internal/game"
)

const settleTimeout = 10 * time.Second

// Gateway delivers terminal bet outcomes to the external ledger at most
// once per (participant, round). Outcomes land in an unbounded pending list
// so ledger latency never stalls the round engine: Submit only appends, and
// delivery is retried by the worker until the ledger accepts. Settlement is
// money movement and is never dropped.
type Gateway struct {
	ledger Ledger
	stop   chan struct{}
	done   chan struct{}
	kick   chan struct{}

	mu      sync.Mutex
	pending []game.Outcome

	retryInterval time.Duration
}

func NewGateway(ledger Ledger) *Gateway {
	return &Gateway{
		ledger:        ledger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		kick:          make(chan struct{}, 1),
		retryInterval: 500 * time.Millisecond,
	}
}

func (g *Gateway) Start() {
	go g.run()
}

// Stop drains everything already submitted, then shuts the worker down.
func (g *Gateway) Stop() {
	close(g.stop)
	<-g.done
}

// Submit enqueues a finalized outcome. Never blocks: the round goroutine
// calls this with its clock running, so a dead ledger grows the backlog
// instead of freezing the game.
func (g *Gateway) Submit(o game.Outcome) {
	g.mu.Lock()
	g.pending = append(g.pending, o)
	g.mu.Unlock()

	select {
	case g.kick <- struct{}{}:
	default:
	}
}

// Reserve debits the stake before the bet enters the round, on the request
// path, so the round engine never waits on ledger I/O.
func (g *Gateway) Reserve(ctx context.Context, participantID string, amount float64) error {
	return g.ledger.Debit(ctx, participantID, amount)
}

// Refund returns a reserved stake after the round rejected the bet.
func (g *Gateway) Refund(ctx context.Context, participantID string, amount float64) error {
	return g.ledger.Credit(ctx, participantID, amount)
}

func (g *Gateway) take() (game.Outcome, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) == 0 {
		return game.Outcome{}, false
	}
	o := g.pending[0]
	g.pending = g.pending[1:]
	return o, true
}

func (g *Gateway) run() {
	defer close(g.done)
	for {
		if o, ok := g.take(); ok {
			g.settle(o)
			continue
		}
		select {
		case <-g.kick:
		case <-g.stop:
			for {
				o, ok := g.take()
				if !ok {
					return
				}
				g.settle(o)
			}
		}
	}
}

// settle retries until the ledger accepts. The (participant, round) dedup
// key makes a retry after a half-applied failure harmless.
func (g *Gateway) settle(o game.Outcome) {
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()

		applied, err := g.ledger.Settle(ctx, o.ParticipantID, o.RoundID, describe(o), historyDelta(o), payout(o))
		if err != nil {
			log.Printf("[SETTLE] ledger rejected round %s participant %s, retrying: %v", o.RoundID, o.ParticipantID, err)
			return err
		}
		if !applied {
			log.Printf("[SETTLE] round %s participant %s already settled, skipped", o.RoundID, o.ParticipantID)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.retryInterval
	policy.MaxElapsedTime = 0 // retry until the ledger accepts

	if err := backoff.Retry(op, policy); err != nil {
		log.Printf("[SETTLE] unrecoverable settlement failure for round %s participant %s: %v", o.RoundID, o.ParticipantID, err)
		return
	}
	log.Printf("[SETTLE] round %s participant %s settled (%s, payout %.2f)", o.RoundID, o.ParticipantID, o.Kind, payout(o))
}

// payout is the amount credited back to the account: stake plus net profit
// on a win, the bare stake on a refund, nothing on a loss (the stake was
// debited when the bet was placed).
func payout(o game.Outcome) float64 {
	switch o.Kind {
	case game.OutcomeWin:
		return o.Stake + o.Profit
	case game.OutcomeRefund:
		return o.Stake
	default:
		return 0
	}
}

// historyDelta is the net account movement shown in the history line.
func historyDelta(o game.Outcome) float64 {
	if o.Kind == game.OutcomeRefund {
		return 0
	}
	return o.Profit
}

func describe(o game.Outcome) string {
	switch o.Kind {
	case game.OutcomeWin:
		return fmt.Sprintf("crash round %s: cashed out at %.2fx", o.RoundID, o.Multiplier)
	case game.OutcomeRefund:
		return fmt.Sprintf("crash round %s: stake refunded", o.RoundID)
	default:
		return fmt.Sprintf("crash round %s: lost at crash", o.RoundID)
	}
}

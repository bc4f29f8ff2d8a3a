package game

import "time"

type State string

const (
	StateWaiting State = "waiting"
	StateRunning State = "running"
	StateCrashed State = "crashed"
)

// Bet is one participant's stake in exactly one round. Multiplier and Profit
// are written exactly once, at cashout or at the crash, never after.
type Bet struct {
	ParticipantID string
	DisplayName   string
	Amount        float64
	PlacedAt      time.Time
	CashedOut     bool
	Multiplier    float64 // cashout multiplier, meaningful only when CashedOut
	Profit        float64 // net result, meaningful only when settled
	settled       bool
}

// Round is one play cycle. It is owned by exactly one scheduler goroutine;
// none of its methods are safe for concurrent use.
type Round struct {
	ID         string
	State      State
	CrashPoint float64 // fixed at creation, hidden from clients until reached
	StartTime  time.Time
	Current    float64       // last computed multiplier
	Countdown  time.Duration // remaining betting window while waiting

	cfg        Config
	crashAfter time.Duration // elapsed running time at which CrashPoint is reached
	ledger     *betLedger
}

func NewRound(id string, crashPoint float64, cfg Config) *Round {
	return &Round{
		ID:         id,
		State:      StateWaiting,
		CrashPoint: crashPoint,
		Current:    MinMultiplier,
		Countdown:  cfg.Countdown,
		cfg:        cfg,
		ledger:     newBetLedger(),
	}
}

// Register places a bet during the betting window.
func (r *Round) Register(participantID, displayName string, amount float64, now time.Time) (*Bet, error) {
	if r.State != StateWaiting {
		return nil, ErrRoundNotAcceptingBets
	}
	if amount < r.cfg.MinBet {
		return nil, ErrBetTooSmall
	}
	if amount > r.cfg.MaxBet {
		return nil, ErrBetTooLarge
	}
	return r.ledger.register(participantID, displayName, amount, now)
}

// Start moves the round into the running phase and fixes the instant at
// which the crash point will be reached.
func (r *Round) Start(now time.Time) {
	r.State = StateRunning
	r.StartTime = now
	r.Current = MinMultiplier
	r.Countdown = 0
	r.crashAfter = ElapsedFor(r.CrashPoint, r.cfg.GrowthRate)
}

// CrashAfter reports the elapsed running time at which the round crashes.
func (r *Round) CrashAfter() time.Duration {
	return r.crashAfter
}

// CashOut settles a bet at the given multiplier. The caller computes the
// multiplier from its own clock at processing time; it is never taken from
// the client.
func (r *Round) CashOut(participantID string, multiplier float64) (*Bet, error) {
	if r.State != StateRunning {
		return nil, ErrRoundNotRunning
	}
	return r.ledger.cashOut(participantID, multiplier, r.cfg.HouseEdge)
}

// Crash freezes the multiplier at the crash point and finalizes every bet
// without a committed cashout as a total loss. Returns the bets settled here.
func (r *Round) Crash() []*Bet {
	r.State = StateCrashed
	r.Current = r.CrashPoint
	return r.ledger.finalizeLosses()
}

// Abort terminates a round whose invariants can no longer be trusted. All
// unsettled bets are voided so their stakes can be refunded.
func (r *Round) Abort() []*Bet {
	r.State = StateCrashed
	return r.ledger.finalizeVoided()
}

// Bets returns the bets in placement order.
func (r *Round) Bets() []*Bet {
	return r.ledger.all()
}

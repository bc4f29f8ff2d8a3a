package game

import "time"

type BetRequest struct {
	ParticipantID string           `json:"participant_id"`
	DisplayName   string           `json:"display_name"`
	Amount        float64          `json:"amount"`
	ResponseChan  chan BetResponse `json:"-"`
	Deadline      time.Time        `json:"-"` // set by the scheduler; a request processed after it is void
}

type BetResponse struct {
	Success bool    `json:"success"`
	Reason  string  `json:"reason,omitempty"`
	Message string  `json:"message,omitempty"`
	RoundID string  `json:"round_id,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
}

type CashoutRequest struct {
	ParticipantID string               `json:"participant_id"`
	ResponseChan  chan CashoutResponse `json:"-"`
	Deadline      time.Time            `json:"-"`
}

type CashoutResponse struct {
	Success    bool    `json:"success"`
	Reason     string  `json:"reason,omitempty"`
	Message    string  `json:"message,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Profit     float64 `json:"profit,omitempty"`
	Payout     float64 `json:"payout,omitempty"`
}

// PlayerView is the public projection of one bet. Multiplier and Profit
// appear only once the bet is settled.
type PlayerView struct {
	ParticipantID string   `json:"participant_id"`
	DisplayName   string   `json:"display_name"`
	Amount        float64  `json:"amount"`
	CashedOut     bool     `json:"cashed_out"`
	Multiplier    *float64 `json:"multiplier,omitempty"`
	Profit        *float64 `json:"profit,omitempty"`
}

// The public round view is a tagged variant: each phase carries only the
// fields meaningful in that phase. The crash point appears only once the
// round has crashed.

type WaitingSnapshot struct {
	State     State        `json:"state"`
	RoundID   string       `json:"round_id"`
	Countdown float64      `json:"countdown"` // seconds until the round starts
	Players   []PlayerView `json:"players"`
}

type RunningSnapshot struct {
	State      State        `json:"state"`
	RoundID    string       `json:"round_id"`
	Multiplier float64      `json:"multiplier"`
	StartTime  time.Time    `json:"start_time"`
	Players    []PlayerView `json:"players"`
}

type CrashedSnapshot struct {
	State      State        `json:"state"`
	RoundID    string       `json:"round_id"`
	CrashPoint float64      `json:"crash_point"`
	Players    []PlayerView `json:"players"`
}

// Envelope wraps every hub broadcast.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type BetPlacedEvent struct {
	RoundID       string  `json:"round_id"`
	ParticipantID string  `json:"participant_id"`
	DisplayName   string  `json:"display_name"`
	Amount        float64 `json:"amount"`
}

type CashoutEvent struct {
	RoundID       string  `json:"round_id"`
	ParticipantID string  `json:"participant_id"`
	DisplayName   string  `json:"display_name"`
	Multiplier    float64 `json:"multiplier"`
	Profit        float64 `json:"profit"`
}

// OutcomeKind classifies a terminal bet result.
type OutcomeKind string

const (
	OutcomeWin    OutcomeKind = "win"
	OutcomeLoss   OutcomeKind = "loss"
	OutcomeRefund OutcomeKind = "refund"
)

// Outcome is one bet's terminal result, handed to settlement exactly once
// after the state transition that produced it has committed.
type Outcome struct {
	Kind          OutcomeKind
	RoundID       string
	ParticipantID string
	DisplayName   string
	Stake         float64
	Multiplier    float64 // zero unless Kind is win
	Profit        float64 // negative stake for a loss, zero for a refund
}

// RoundRecord is the archived summary of a finished round.
type RoundRecord struct {
	RoundID    string    `json:"round_id"`
	CrashPoint float64   `json:"crash_point"`
	CrashedAt  time.Time `json:"crashed_at"`
	Bets       int       `json:"bets"`
}

func playerViews(bets []*Bet) []PlayerView {
	views := make([]PlayerView, 0, len(bets))
	for _, bet := range bets {
		view := PlayerView{
			ParticipantID: bet.ParticipantID,
			DisplayName:   bet.DisplayName,
			Amount:        bet.Amount,
			CashedOut:     bet.CashedOut,
		}
		if bet.CashedOut {
			m := bet.Multiplier
			view.Multiplier = &m
		}
		if bet.settled {
			p := bet.Profit
			view.Profit = &p
		}
		views = append(views, view)
	}
	return views
}

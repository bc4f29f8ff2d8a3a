package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	betSubmitTimeout     = 5 * time.Second
	cashoutSubmitTimeout = 500 * time.Millisecond
)

// Broadcaster receives every public state change. Implemented by Hub.
type Broadcaster interface {
	Broadcast(v any)
}

// Settler receives finalized outcomes once their state transition has
// committed. Implemented by the settlement gateway.
type Settler interface {
	Submit(o Outcome)
}

// RoundRecorder archives finished rounds. Implemented by the cache layer.
type RoundRecorder interface {
	SaveRound(rec RoundRecord)
}

// command is one serialized inbound request. Exactly one field is set.
type command struct {
	bet     *BetRequest
	cashout *CashoutRequest
}

// Scheduler drives the round lifecycle for one room. All round state is
// owned by its single goroutine; bets, cashouts and timer events are
// processed one at a time, in arrival order, so settlement is fair under
// any number of concurrent clients.
type Scheduler struct {
	cfg      Config
	clock    clockwork.Clock
	gen      CrashPointGenerator
	hub      Broadcaster
	settler  Settler
	recorder RoundRecorder

	commands chan command
	stop     chan struct{}
	done     chan struct{}

	mu       sync.RWMutex
	snapshot any
}

func NewScheduler(cfg Config, clock clockwork.Clock, gen CrashPointGenerator, hub Broadcaster, settler Settler) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		clock:    clock,
		gen:      gen,
		hub:      hub,
		settler:  settler,
		commands: make(chan command, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetRecorder wires an optional round archive. Must be called before Start.
func (s *Scheduler) SetRecorder(r RoundRecorder) {
	s.recorder = r
}

func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Snapshot returns the last published public round view, or nil before the
// first round is created.
func (s *Scheduler) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// PlaceBet submits a bet and waits for the round engine's verdict. Safe for
// any number of concurrent callers. The deadline caps how long a queued
// request stays live: once the caller gives up and treats the bet as failed,
// the engine must not register it after the fact.
func (s *Scheduler) PlaceBet(req BetRequest) BetResponse {
	respChan := make(chan BetResponse, 1)
	req.ResponseChan = respChan
	req.Deadline = s.clock.Now().Add(betSubmitTimeout)

	select {
	case s.commands <- command{bet: &req}:
	default:
		return BetResponse{Reason: ReasonInternal, Message: "bet queue full"}
	}

	select {
	case resp := <-respChan:
		return resp
	case <-time.After(betSubmitTimeout):
		select {
		case resp := <-respChan:
			return resp
		default:
		}
		return BetResponse{Reason: ReasonInternal, Message: "bet timed out"}
	}
}

// Cashout submits a cashout request. The multiplier applied is whatever the
// engine computes at the instant the request is processed.
func (s *Scheduler) Cashout(req CashoutRequest) CashoutResponse {
	respChan := make(chan CashoutResponse, 1)
	req.ResponseChan = respChan
	req.Deadline = s.clock.Now().Add(cashoutSubmitTimeout)

	select {
	case s.commands <- command{cashout: &req}:
	default:
		return CashoutResponse{Reason: ReasonInternal, Message: "cashout queue full"}
	}

	select {
	case resp := <-respChan:
		return resp
	case <-time.After(cashoutSubmitTimeout):
		select {
		case resp := <-respChan:
			return resp
		default:
		}
		return CashoutResponse{Reason: ReasonInternal, Message: "cashout timed out"}
	}
}

func (s *Scheduler) run() {
	defer close(s.done)
	log.Println("[GAME] round engine started")
	for {
		select {
		case <-s.stop:
			log.Println("[GAME] round engine stopped")
			return
		default:
		}
		if !s.playRound() {
			log.Println("[GAME] round engine stopped")
			return
		}
	}
}

// playRound drives one full cycle: waiting -> running -> crashed -> cooldown.
// Returns false when the engine has been stopped.
func (s *Scheduler) playRound() bool {
	round := NewRound(uuid.NewString(), s.gen.CrashPoint(), s.cfg)
	log.Printf("[GAME] round %s created, crash point %.2fx (hidden)", round.ID, round.CrashPoint)

	if round.CrashPoint < MinMultiplier {
		s.abort(round, fmt.Sprintf("crash point %.2f below minimum", round.CrashPoint))
		return s.runCooldown(round)
	}

	if !s.runWaiting(round) {
		return false
	}

	round.Start(s.clock.Now())
	s.publishRunning(round, "round_running")

	if !s.runRunning(round) {
		return false
	}
	return s.runCooldown(round)
}

// runWaiting ticks the betting countdown once per second. Bets are accepted
// here and nowhere else.
func (s *Scheduler) runWaiting(round *Round) bool {
	s.publishWaiting(round)

	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for round.Countdown > 0 {
		select {
		case <-ticker.Chan():
			round.Countdown -= time.Second
			if round.Countdown > 0 {
				s.publishWaiting(round)
			}
		case cmd := <-s.commands:
			s.handleCommand(round, cmd)
		case <-s.stop:
			return false
		}
	}
	return true
}

// runRunning recomputes and broadcasts the multiplier on every tick. The
// crash transition is scheduled by timer at the precomputed instant; the
// elapsed-time recheck on the other arms makes the crash authoritative no
// matter which event fires first.
func (s *Scheduler) runRunning(round *Round) bool {
	crashTimer := s.clock.NewTimer(round.CrashAfter())
	defer crashTimer.Stop()
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-crashTimer.Chan():
			s.crash(round)
			return true

		case <-ticker.Chan():
			elapsed := s.clock.Since(round.StartTime)
			if elapsed >= round.CrashAfter() {
				s.crash(round)
				return true
			}
			mult := MultiplierAt(elapsed, s.cfg.GrowthRate)
			if mult < round.Current {
				s.abort(round, fmt.Sprintf("multiplier regressed %.2f -> %.2f", round.Current, mult))
				return true
			}
			round.Current = mult
			s.publishRunning(round, "round_tick")

		case cmd := <-s.commands:
			// The crash instant preempts queued requests: a cashout that was
			// merely delayed in the queue can never beat the crash.
			if s.clock.Since(round.StartTime) >= round.CrashAfter() {
				s.crash(round)
				s.handleCommand(round, cmd)
				return true
			}
			s.handleCommand(round, cmd)

		case <-s.stop:
			return false
		}
	}
}

// runCooldown keeps rejecting requests for the cooldown window, then lets a
// fresh round begin. Timers fire even with zero connected viewers.
func (s *Scheduler) runCooldown(round *Round) bool {
	timer := s.clock.NewTimer(s.cfg.Cooldown)
	defer timer.Stop()

	for {
		select {
		case <-timer.Chan():
			return true
		case cmd := <-s.commands:
			s.handleCommand(round, cmd)
		case <-s.stop:
			return false
		}
	}
}

func (s *Scheduler) handleCommand(round *Round, cmd command) {
	switch {
	case cmd.bet != nil:
		s.handleBet(round, cmd.bet)
	case cmd.cashout != nil:
		s.handleCashout(round, cmd.cashout)
	}
}

func (s *Scheduler) handleBet(round *Round, req *BetRequest) {
	resp := BetResponse{}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	// The caller stopped waiting and already treats this bet as failed; its
	// stake may have been refunded, so registering now would double-spend.
	if !req.Deadline.IsZero() && s.clock.Now().After(req.Deadline) {
		resp.Reason = ReasonInternal
		resp.Message = "bet expired in queue"
		return
	}

	bet, err := round.Register(req.ParticipantID, req.DisplayName, req.Amount, s.clock.Now())
	if err != nil {
		resp.Reason = Reason(err)
		resp.Message = err.Error()
		return
	}

	resp.Success = true
	resp.RoundID = round.ID
	resp.Amount = bet.Amount

	s.refreshSnapshot(round)
	s.hub.Broadcast(Envelope{Type: "bet_placed", Data: BetPlacedEvent{
		RoundID:       round.ID,
		ParticipantID: bet.ParticipantID,
		DisplayName:   bet.DisplayName,
		Amount:        bet.Amount,
	}})
	log.Printf("[GAME] %s bet %.2f on round %s", bet.ParticipantID, bet.Amount, round.ID)
}

func (s *Scheduler) handleCashout(round *Round, req *CashoutRequest) {
	resp := CashoutResponse{}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	if !req.Deadline.IsZero() && s.clock.Now().After(req.Deadline) {
		resp.Reason = ReasonInternal
		resp.Message = "cashout expired in queue"
		return
	}

	if round.State != StateRunning {
		resp.Reason = ReasonRoundNotRunning
		resp.Message = ErrRoundNotRunning.Error()
		return
	}

	// The multiplier is read at processing time from the engine's own clock,
	// never from the client.
	elapsed := s.clock.Since(round.StartTime)
	if elapsed >= round.CrashAfter() {
		resp.Reason = ReasonRoundNotRunning
		resp.Message = ErrRoundNotRunning.Error()
		return
	}
	mult := MultiplierAt(elapsed, s.cfg.GrowthRate)

	bet, err := round.CashOut(req.ParticipantID, mult)
	if err != nil {
		resp.Reason = Reason(err)
		resp.Message = err.Error()
		return
	}

	resp.Success = true
	resp.Multiplier = bet.Multiplier
	resp.Profit = bet.Profit
	resp.Payout = roundToCent(bet.Amount + bet.Profit)

	s.settler.Submit(Outcome{
		Kind:          OutcomeWin,
		RoundID:       round.ID,
		ParticipantID: bet.ParticipantID,
		DisplayName:   bet.DisplayName,
		Stake:         bet.Amount,
		Multiplier:    bet.Multiplier,
		Profit:        bet.Profit,
	})

	s.refreshSnapshot(round)
	s.hub.Broadcast(Envelope{Type: "cashout", Data: CashoutEvent{
		RoundID:       round.ID,
		ParticipantID: bet.ParticipantID,
		DisplayName:   bet.DisplayName,
		Multiplier:    bet.Multiplier,
		Profit:        bet.Profit,
	}})
	log.Printf("[GAME] %s cashed out at %.2fx (profit %.2f)", bet.ParticipantID, bet.Multiplier, bet.Profit)
}

// crash freezes the round, finalizes every remaining bet as a loss, and
// dispatches the losses to settlement.
func (s *Scheduler) crash(round *Round) {
	losses := round.Crash()
	log.Printf("[GAME] round %s crashed at %.2fx (%d bets lost)", round.ID, round.CrashPoint, len(losses))

	s.publishCrashed(round, "round_crashed")

	for _, bet := range losses {
		s.settler.Submit(Outcome{
			Kind:          OutcomeLoss,
			RoundID:       round.ID,
			ParticipantID: bet.ParticipantID,
			DisplayName:   bet.DisplayName,
			Stake:         bet.Amount,
			Profit:        bet.Profit,
		})
	}

	if s.recorder != nil {
		rec := RoundRecord{
			RoundID:    round.ID,
			CrashPoint: round.CrashPoint,
			CrashedAt:  s.clock.Now(),
			Bets:       round.ledger.size(),
		}
		go s.recorder.SaveRound(rec)
	}
}

// abort handles an invariant violation: the round ends without payouts and
// every unsettled stake is refunded through the ledger.
func (s *Scheduler) abort(round *Round, reason string) {
	log.Printf("[GAME] round %s aborted: %s", round.ID, reason)

	voided := round.Abort()
	s.publishCrashed(round, "round_aborted")

	for _, bet := range voided {
		s.settler.Submit(Outcome{
			Kind:          OutcomeRefund,
			RoundID:       round.ID,
			ParticipantID: bet.ParticipantID,
			DisplayName:   bet.DisplayName,
			Stake:         bet.Amount,
		})
	}
}

func (s *Scheduler) publishWaiting(round *Round) {
	snap := WaitingSnapshot{
		State:     StateWaiting,
		RoundID:   round.ID,
		Countdown: round.Countdown.Seconds(),
		Players:   playerViews(round.Bets()),
	}
	s.setSnapshot(snap)
	s.hub.Broadcast(Envelope{Type: "round_waiting", Data: snap})
}

func (s *Scheduler) publishRunning(round *Round, msgType string) {
	snap := RunningSnapshot{
		State:      StateRunning,
		RoundID:    round.ID,
		Multiplier: round.Current,
		StartTime:  round.StartTime,
		Players:    playerViews(round.Bets()),
	}
	s.setSnapshot(snap)
	s.hub.Broadcast(Envelope{Type: msgType, Data: snap})
}

func (s *Scheduler) publishCrashed(round *Round, msgType string) {
	snap := CrashedSnapshot{
		State:      StateCrashed,
		RoundID:    round.ID,
		CrashPoint: round.CrashPoint,
		Players:    playerViews(round.Bets()),
	}
	s.setSnapshot(snap)
	s.hub.Broadcast(Envelope{Type: msgType, Data: snap})
}

// refreshSnapshot updates the stored view without a phase broadcast; used
// after a bet or cashout mutates the player list.
func (s *Scheduler) refreshSnapshot(round *Round) {
	switch round.State {
	case StateWaiting:
		s.setSnapshot(WaitingSnapshot{
			State:     StateWaiting,
			RoundID:   round.ID,
			Countdown: round.Countdown.Seconds(),
			Players:   playerViews(round.Bets()),
		})
	case StateRunning:
		s.setSnapshot(RunningSnapshot{
			State:      StateRunning,
			RoundID:    round.ID,
			Multiplier: round.Current,
			StartTime:  round.StartTime,
			Players:    playerViews(round.Bets()),
		})
	case StateCrashed:
		s.setSnapshot(CrashedSnapshot{
			State:      StateCrashed,
			RoundID:    round.ID,
			CrashPoint: round.CrashPoint,
			Players:    playerViews(round.Bets()),
		})
	}
}

func (s *Scheduler) setSnapshot(v any) {
	s.mu.Lock()
	s.snapshot = v
	s.mu.Unlock()
}

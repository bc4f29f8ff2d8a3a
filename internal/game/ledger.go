package game

import "time"

// betLedger is the per-round bet book: one record per participant, in
// placement order. Owned by the round; never shared between goroutines.
type betLedger struct {
	bets  map[string]*Bet
	order []string
}

func newBetLedger() *betLedger {
	return &betLedger{bets: make(map[string]*Bet)}
}

func (l *betLedger) register(participantID, displayName string, amount float64, now time.Time) (*Bet, error) {
	if _, ok := l.bets[participantID]; ok {
		return nil, ErrAlreadyBet
	}
	bet := &Bet{
		ParticipantID: participantID,
		DisplayName:   displayName,
		Amount:        amount,
		PlacedAt:      now,
	}
	l.bets[participantID] = bet
	l.order = append(l.order, participantID)
	return bet, nil
}

// cashOut settles one bet. gross = amount * multiplier, the house takes
// edge of the winnings, and everything is rounded to cents.
func (l *betLedger) cashOut(participantID string, multiplier, edge float64) (*Bet, error) {
	bet, ok := l.bets[participantID]
	if !ok {
		return nil, ErrNoSuchBet
	}
	if bet.CashedOut {
		return nil, ErrAlreadyCashedOut
	}

	gross := roundToCent(bet.Amount * multiplier)
	tax := roundToCent((gross - bet.Amount) * edge)

	bet.CashedOut = true
	bet.Multiplier = multiplier
	bet.Profit = roundToCent(gross - bet.Amount - tax)
	bet.settled = true
	return bet, nil
}

// finalizeLosses marks every unsettled bet as a total loss. Called exactly
// once, at the crash transition; already settled bets are never touched.
func (l *betLedger) finalizeLosses() []*Bet {
	var losses []*Bet
	for _, id := range l.order {
		bet := l.bets[id]
		if bet.settled {
			continue
		}
		bet.Profit = -bet.Amount
		bet.settled = true
		losses = append(losses, bet)
	}
	return losses
}

// finalizeVoided settles every remaining bet at zero profit so an aborted
// round can refund stakes instead of paying out.
func (l *betLedger) finalizeVoided() []*Bet {
	var voided []*Bet
	for _, id := range l.order {
		bet := l.bets[id]
		if bet.settled {
			continue
		}
		bet.Profit = 0
		bet.settled = true
		voided = append(voided, bet)
	}
	return voided
}

func (l *betLedger) all() []*Bet {
	out := make([]*Bet, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.bets[id])
	}
	return out
}

func (l *betLedger) size() int {
	return len(l.order)
}

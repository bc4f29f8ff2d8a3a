package game

import "errors"

var (
	ErrAlreadyBet            = errors.New("participant already has a bet this round")
	ErrBetTooSmall           = errors.New("bet below the minimum")
	ErrBetTooLarge           = errors.New("bet above the maximum")
	ErrRoundNotAcceptingBets = errors.New("round is not accepting bets")
	ErrNoSuchBet             = errors.New("no bet for this participant")
	ErrAlreadyCashedOut      = errors.New("bet already cashed out")
	ErrRoundNotRunning       = errors.New("round is not running")
)

// Wire reason codes reported back to the sender on a rejected request.
const (
	ReasonAlreadyBet            = "AlreadyBet"
	ReasonBetTooSmall           = "BetTooSmall"
	ReasonBetTooLarge           = "BetTooLarge"
	ReasonRoundNotAcceptingBets = "RoundNotAcceptingBets"
	ReasonNoSuchBet             = "NoSuchBet"
	ReasonAlreadyCashedOut      = "AlreadyCashedOut"
	ReasonRoundNotRunning       = "RoundNotRunning"
	ReasonInternal              = "Internal"
)

// Reason maps a round error to its wire reason code.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyBet):
		return ReasonAlreadyBet
	case errors.Is(err, ErrBetTooSmall):
		return ReasonBetTooSmall
	case errors.Is(err, ErrBetTooLarge):
		return ReasonBetTooLarge
	case errors.Is(err, ErrRoundNotAcceptingBets):
		return ReasonRoundNotAcceptingBets
	case errors.Is(err, ErrNoSuchBet):
		return ReasonNoSuchBet
	case errors.Is(err, ErrAlreadyCashedOut):
		return ReasonAlreadyCashedOut
	case errors.Is(err, ErrRoundNotRunning):
		return ReasonRoundNotRunning
	default:
		return ReasonInternal
	}
}

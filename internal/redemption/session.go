package redemption

import (
	"context"
	"errors"
)

type State string

const (
	StateIdle       State = "idle"
	StateClassified State = "classified"
	StateCommitted  State = "committed"
	StateRaceLost   State = "race_lost"
)

var (
	// ErrScanInProgress is returned by Scan when the previous attempt has not
	// been reset.
	ErrScanInProgress = errors.New("previous scan not reset")
	// ErrNotConfirmable is returned by Confirm unless the current attempt
	// was classified Valid.
	ErrNotConfirmable = errors.New("only a valid ticket can be confirmed")
)

// Session walks one scanner through Idle -> Classified -> Committed|RaceLost.
// A Session belongs to a single device and is not safe for concurrent use.
type Session struct {
	engine  *Engine
	state   State
	current Result
}

func NewSession(engine *Engine) *Session {
	return &Session{engine: engine, state: StateIdle}
}

func (s *Session) State() State {
	return s.state
}

// Current returns the last result of this attempt, if any.
func (s *Session) Current() (Result, bool) {
	if s.state == StateIdle {
		return Result{}, false
	}
	return s.current, true
}

// Scan classifies code. It is only allowed from Idle.
func (s *Session) Scan(ctx context.Context, code string) (Result, error) {
	if s.state != StateIdle {
		return s.current, ErrScanInProgress
	}
	s.current = s.engine.Classify(ctx, code)
	s.state = StateClassified
	return s.current, nil
}

// Confirm commits the booking behind a Valid classification. A store
// outage leaves the attempt confirmable so it can be retried.
func (s *Session) Confirm(ctx context.Context) (Result, error) {
	if s.state != StateClassified || s.current.Kind != KindValid || s.current.Booking == nil {
		return s.current, ErrNotConfirmable
	}

	res := s.engine.Commit(ctx, s.current.Booking.BookingID)
	switch res.Kind {
	case KindStoreUnavailable:
		return res, nil
	case KindCommitted:
		s.state = StateCommitted
	case KindRaceLost:
		s.state = StateRaceLost
	default:
		// cancelled or removed between classify and commit
		s.state = StateClassified
	}
	s.current = res
	return res, nil
}

// Reset discards the current attempt.
func (s *Session) Reset() {
	s.state = StateIdle
	s.current = Result{}
}

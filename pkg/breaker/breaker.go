// Package breaker guards calls to an unreliable dependency with a
// circuit breaker: a sliding window of recent outcomes drives the
// Closed -> Open -> HalfOpen transitions, and while the circuit is open
// calls fail fast without touching the dependency.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the operation while the circuit
// is open or while another half-open trial is already in flight.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values fall back to the defaults:
// a window of the 5 most recent outcomes, a 50% failure threshold, a 5s
// open timeout and a single half-open trial call.
type Settings struct {
	Window      int
	Threshold   float64
	OpenTimeout time.Duration
	MaxTrials   int
}

const (
	defaultWindow      = 5
	defaultThreshold   = 0.5
	defaultOpenTimeout = 5 * time.Second
	defaultMaxTrials   = 1
)

// Breaker is shared by every concurrent caller of one dependency. All
// state changes happen under a single mutex so outcome reports and
// transition checks are atomic.
type Breaker struct {
	log *slog.Logger

	window      int
	threshold   float64
	openTimeout time.Duration
	maxTrials   int
	now         func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	outcomes   []bool
	next       int
	openedAt   time.Time
	trials     int
}

func New(log *slog.Logger, s Settings) *Breaker {
	if s.Window <= 0 {
		s.Window = defaultWindow
	}
	if s.Threshold <= 0 {
		s.Threshold = defaultThreshold
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = defaultOpenTimeout
	}
	if s.MaxTrials <= 0 {
		s.MaxTrials = defaultMaxTrials
	}
	return &Breaker{
		log:         log,
		window:      s.Window,
		threshold:   s.Threshold,
		openTimeout: s.OpenTimeout,
		maxTrials:   s.MaxTrials,
		now:         time.Now,
		outcomes:    make([]bool, s.Window),
	}
}

// Do runs op through the breaker. A non-nil error from op counts as a
// failure outcome; a successful call with a negative business answer is
// not a failure and must be modelled as a nil error by the caller.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	gen, err := b.allow()
	if err != nil {
		return err
	}
	err = op(ctx)
	b.record(gen, err != nil)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return b.generation, nil
	case Open:
		if b.now().Sub(b.openedAt) < b.openTimeout {
			return 0, ErrOpen
		}
		b.transition(HalfOpen)
		b.trials++
		return b.generation, nil
	default: // HalfOpen
		if b.trials >= b.maxTrials {
			return 0, ErrOpen
		}
		b.trials++
		return b.generation, nil
	}
}

// record reports the outcome of a call admitted in generation gen.
// Outcomes from a superseded generation are dropped: the transition that
// bumped the generation already reset the window they belonged to.
func (b *Breaker) record(gen uint64, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}

	switch b.state {
	case Closed:
		b.outcomes[b.next] = failed
		b.next = (b.next + 1) % b.window
		if failed && b.failureRate() >= b.threshold {
			b.transition(Open)
		}
	case HalfOpen:
		if failed {
			b.transition(Open)
		} else {
			b.transition(Closed)
		}
	}
}

// failureRate uses the window size as the denominator, so a cold breaker
// opens after ceil(window*threshold) consecutive failures rather than
// waiting for the window to fill.
func (b *Breaker) failureRate() float64 {
	failures := 0
	for _, failed := range b.outcomes {
		if failed {
			failures++
		}
	}
	return float64(failures) / float64(b.window)
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.generation++
	b.outcomes = make([]bool, b.window)
	b.next = 0
	b.trials = 0
	if to == Open {
		b.openedAt = b.now()
	}
	b.log.Info("circuit state changed", "from", from.String(), "to", to.String())
}

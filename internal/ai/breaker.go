package ai

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the shared circuit breaker.
type BreakerSettings struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

// BreakerSnapshot is a point-in-time view of breaker state.
type BreakerSnapshot struct {
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	LastTransition      time.Time `json:"last_transition,omitempty"`
}

// Breaker is the process-wide failure tracker for generation calls. It opens after
// FailureThreshold consecutive failures, rejects calls for Cooldown, then lets exactly
// one trial through: success closes it, failure reopens it with a fresh cooldown.
// Construct one per process and pass it to every Generator that shares the downstream.
type Breaker struct {
	cb *gobreaker.CircuitBreaker

	mu             sync.Mutex
	lastTransition time.Time
}

// NewBreaker builds a closed breaker.
func NewBreaker(name string, s BreakerSettings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	b := &Breaker{lastTransition: time.Now()}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		// A caller hanging up is not a downstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCanceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.mu.Lock()
			b.lastTransition = time.Now()
			b.mu.Unlock()
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("generation circuit state changed")
		},
	})
	return b
}

// Execute runs fn under the breaker. The outcome of fn is recorded after it returns;
// no lock is held while fn runs.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// Snapshot reports the current state.
func (b *Breaker) Snapshot() BreakerSnapshot {
	state := b.cb.State()
	counts := b.cb.Counts()
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:               state.String(),
		ConsecutiveFailures: counts.ConsecutiveFailures,
		LastTransition:      b.lastTransition,
	}
}

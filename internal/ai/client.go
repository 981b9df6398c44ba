package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

// GeneratorConfig bounds a single generation request.
type GeneratorConfig struct {
	Model          string
	CallTimeout    time.Duration
	TotalBudget    time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 8 * time.Second
	}
	if c.TotalBudget <= 0 {
		c.TotalBudget = 12 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 200 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = c.BackoffInitial
	}
	return c
}

// Generator produces qualitative reports through an external completion service under
// a total time budget, bounded transport retries, one schema correction and a shared
// circuit breaker.
type Generator struct {
	completer Completer
	breaker   *Breaker
	cfg       GeneratorConfig
}

// NewGenerator wires a completer to a breaker. A nil completer yields a disabled generator.
func NewGenerator(completer Completer, breaker *Breaker, cfg GeneratorConfig) *Generator {
	if breaker == nil {
		breaker = NewBreaker("generation", BreakerSettings{})
	}
	return &Generator{completer: completer, breaker: breaker, cfg: cfg.withDefaults()}
}

// Enabled reports whether outbound calls can be made.
func (g *Generator) Enabled() bool {
	return g != nil && g.completer != nil
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.cfg.Model
}

// Breaker exposes the shared breaker for health reporting.
func (g *Generator) Breaker() *Breaker {
	if g == nil {
		return nil
	}
	return g.breaker
}

// Generate returns a validated report for r. Each call that reaches the breaker records
// exactly one outcome on it; when the breaker is open it returns ErrCircuitOpen without
// calling out. A caller that has already gone away gets ErrCanceled.
func (g *Generator) Generate(ctx context.Context, r *payload.FeatureReport, analysisID string) (report.QualitativeReport, error) {
	if !g.Enabled() {
		return report.QualitativeReport{}, ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return report.QualitativeReport{}, contextError(ctx, err)
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.TotalBudget)
	defer cancel()

	var out report.QualitativeReport
	err := g.breaker.Execute(func() error {
		var err error
		out, err = g.generate(ctx, r, analysisID)
		return err
	})
	if err != nil {
		return report.QualitativeReport{}, err
	}
	return out, nil
}

func (g *Generator) generate(ctx context.Context, r *payload.FeatureReport, analysisID string) (report.QualitativeReport, error) {
	messages := BuildPrompt(r, analysisID)
	content, err := g.complete(ctx, messages)
	if err != nil {
		return report.QualitativeReport{}, err
	}

	out, violation := decodeReport(content)
	if violation != nil {
		logrus.WithFields(logrus.Fields{
			"analysis_id": analysisID,
			"violation":   violation.Error(),
		}).Warn("generated report rejected, requesting correction")
		messages = append(messages, Message{Role: roleAssistant, Content: content}, correctionPrompt(violation))
		content, err = g.complete(ctx, messages)
		if err != nil {
			return report.QualitativeReport{}, err
		}
		out, violation = decodeReport(content)
		if violation != nil {
			return report.QualitativeReport{}, fmt.Errorf("%w: %v", ErrInvalidOutput, violation)
		}
	}

	if out.AnalysisID == "" {
		out.AnalysisID = analysisID
		if out.AnalysisID == "" {
			out.AnalysisID = uuid.NewString()
		}
	}
	out.RequestID = r.RequestID
	out.CustomerID = r.CustomerID
	return out, nil
}

// complete performs one logical completion with transport retries. Each attempt gets
// its own call timeout inside the request budget.
func (g *Generator) complete(ctx context.Context, messages []Message) (string, error) {
	attempts := 0
	operation := func() (string, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()

		content, err := g.completer.Complete(callCtx, messages)
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(contextError(ctx, err))
		}
		if !transient(err) {
			return "", backoff.Permanent(err)
		}
		logrus.WithError(err).WithField("attempt", attempts).Warn("generation attempt failed")
		return "", err
	}

	content, err := backoff.RetryWithData(operation, backoff.WithContext(g.newBackOff(), ctx))
	switch {
	case err == nil:
		return content, nil
	case errors.Is(err, ErrBudgetExceeded), errors.Is(err, ErrCanceled):
		return "", err
	case ctx.Err() != nil:
		return "", contextError(ctx, err)
	default:
		return "", &DownstreamError{Attempts: attempts, Err: err}
	}
}

func (g *Generator) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.cfg.BackoffInitial
	exp.MaxInterval = g.cfg.BackoffMax
	exp.Multiplier = 2.5
	exp.RandomizationFactor = 0.2
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(g.cfg.MaxAttempts-1))
}

// contextError labels a failure caused by ctx ending. Cancellation by the caller is
// kept apart from the request budget running out.
func contextError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	return fmt.Errorf("%w: %v", ErrBudgetExceeded, err)
}

// transient reports whether err is a retryable transport failure: 429, 5xx, a timeout
// or a dial/connection error such as a refused or reset connection.
func transient(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

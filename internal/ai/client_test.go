package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

const validReply = `{
  "executive_summary": "Stable salaried applicant.",
  "ability_to_repay": "Residual income covers obligations.",
  "willingness_to_repay": "No recent delinquencies.",
  "liquidity_assessment": "Forty days of buffer.",
  "identity_and_fraud_assessment": "Fayda verified.",
  "macroeconomic_context": "Inflation elevated.",
  "key_risk_synthesis": "Overdraft usage.",
  "key_strengths_synthesis": "Consistent salary.",
  "nbe_compliance_summary": "COMPLIANT",
  "final_recommendation": "Approve with Conditions",
  "recommendation_justification": "Capacity is adequate."
}`

type reply func(ctx context.Context) (string, error)

func text(s string) reply {
	return func(context.Context) (string, error) { return s, nil }
}

func fail(err error) reply {
	return func(context.Context) (string, error) { return "", err }
}

func hang(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// scripted replays replies in order and repeats the last one.
type scripted struct {
	mu       sync.Mutex
	replies  []reply
	calls    int
	messages [][]Message
}

func (s *scripted) Complete(ctx context.Context, messages []Message) (string, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	s.messages = append(s.messages, messages)
	r := s.replies[i]
	s.mu.Unlock()
	return r(ctx)
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig() GeneratorConfig {
	return GeneratorConfig{
		Model:          "test-model",
		CallTimeout:    time.Second,
		TotalBudget:    5 * time.Second,
		MaxAttempts:    3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}
}

func sampleReport() *payload.FeatureReport {
	return &payload.FeatureReport{RequestID: "r1", CustomerID: "c1", ModelVersion: "v1"}
}

func TestGenerateFillsIdentifiers(t *testing.T) {
	fake := &scripted{replies: []reply{text(validReply)}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3}), testConfig())

	out, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", out.AnalysisID)
	assert.Equal(t, "r1", out.RequestID)
	assert.Equal(t, "c1", out.CustomerID)
	assert.Equal(t, report.ApproveWithConditions, out.FinalRecommendation)

	out, err = g.Generate(context.Background(), sampleReport(), "")
	require.NoError(t, err)
	_, err = uuid.Parse(out.AnalysisID)
	assert.NoError(t, err, "omitted analysis id must be replaced by a fresh uuid")
}

func TestGenerateCorrectionBudgetIsOne(t *testing.T) {
	fake := &scripted{replies: []reply{text(`{"executive_summary": 3}`), text(`not json`), text(validReply)}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3}), testConfig())

	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.ErrorIs(t, err, ErrInvalidOutput)
	assert.Equal(t, 2, fake.count(), "a third attempt must never be made")

	require.Len(t, fake.messages, 2)
	second := fake.messages[1]
	require.Len(t, second, 4)
	assert.Equal(t, roleAssistant, second[2].Role)
	assert.Contains(t, second[3].Content, "executive_summary")
}

func TestGenerateCorrectionRecovers(t *testing.T) {
	fake := &scripted{replies: []reply{text(`{"final_recommendation": "Maybe"}`), text(validReply)}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3}), testConfig())

	out, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLIANT", out.ComplianceSummary)
	assert.Equal(t, 2, fake.count())
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	fake := &scripted{replies: []reply{
		fail(&StatusError{Code: 503}),
		fail(&StatusError{Code: 429}),
		text(validReply),
	}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3}), testConfig())

	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.count())
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	fake := &scripted{replies: []reply{fail(&StatusError{Code: 502})}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 10}), testConfig())

	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	var downstream *DownstreamError
	require.ErrorAs(t, err, &downstream)
	assert.Equal(t, 3, downstream.Attempts)
	assert.Equal(t, 3, fake.count())
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	fake := &scripted{replies: []reply{fail(&StatusError{Code: 401})}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3}), testConfig())

	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, 401, status.Code)
	assert.Equal(t, 1, fake.count())
}

func TestGenerateBudgetExceeded(t *testing.T) {
	fake := &scripted{replies: []reply{hang}}
	cfg := testConfig()
	cfg.TotalBudget = 30 * time.Millisecond
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3}), cfg)

	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, 1, fake.count())
}

func TestGenerateRetriesConnectionErrors(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	fake := &scripted{replies: []reply{fail(refused), text(validReply)}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3}), testConfig())

	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.count())
}

func TestTransient(t *testing.T) {
	reset := &url.Error{Op: "Post", URL: "http://llm", Err: &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &StatusError{Code: 429}, true},
		{"503", &StatusError{Code: 503}, true},
		{"400", &StatusError{Code: 400}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"connection reset", reset, true},
		{"refused", fmt.Errorf("post: %w", syscall.ECONNREFUSED), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transient(tc.err))
		})
	}
}

func TestCallerCancellationDoesNotTripBreaker(t *testing.T) {
	var hangUp context.CancelFunc
	disconnect := func(ctx context.Context) (string, error) {
		hangUp()
		<-ctx.Done()
		return "", ctx.Err()
	}
	fake := &scripted{replies: []reply{disconnect, disconnect, disconnect, text(validReply)}}
	cfg := testConfig()
	cfg.MaxAttempts = 1
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3, Cooldown: time.Minute}), cfg)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		hangUp = cancel
		_, err := g.Generate(ctx, sampleReport(), "a1")
		cancel()
		require.ErrorIs(t, err, ErrCanceled)
		assert.False(t, errors.Is(err, ErrBudgetExceeded))
	}
	assert.Equal(t, 3, fake.count())
	assert.Equal(t, "closed", g.Breaker().Snapshot().State)

	out, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.NoError(t, err)
	assert.Equal(t, report.ApproveWithConditions, out.FinalRecommendation)
}

func TestGenerateWithCanceledContextSkipsCall(t *testing.T) {
	fake := &scripted{replies: []reply{text(validReply)}}
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 1, Cooldown: time.Minute}), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, sampleReport(), "a1")
	require.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, 0, fake.count())
	assert.Equal(t, "closed", g.Breaker().Snapshot().State)
}

func TestBreakerOpensAfterConsecutiveTimeouts(t *testing.T) {
	fake := &scripted{replies: []reply{hang}}
	cfg := testConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	cfg.MaxAttempts = 1
	g := NewGenerator(fake, NewBreaker("test", BreakerSettings{FailureThreshold: 3, Cooldown: time.Minute}), cfg)

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), sampleReport(), "a1")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen), "call %d should reach the network", i+1)
	}
	assert.Equal(t, 3, fake.count())

	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, fake.count(), "open circuit must not attempt network I/O")
	assert.Equal(t, "open", g.Breaker().Snapshot().State)
}

func TestBreakerHalfOpenAllowsOneTrial(t *testing.T) {
	b := NewBreaker("test", BreakerSettings{FailureThreshold: 1, Cooldown: 40 * time.Millisecond})
	boom := errors.New("boom")

	require.ErrorIs(t, b.Execute(func() error { return boom }), boom)
	ran := false
	require.ErrorIs(t, b.Execute(func() error { ran = true; return nil }), ErrCircuitOpen)
	assert.False(t, ran)

	time.Sleep(60 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	require.ErrorIs(t, b.Execute(func() error { ran = true; return nil }), ErrCircuitOpen)
	assert.False(t, ran, "only one trial call may run while half-open")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "closed", b.Snapshot().State)
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	b := NewBreaker("test", BreakerSettings{FailureThreshold: 1, Cooldown: 40 * time.Millisecond})
	boom := errors.New("boom")

	require.Error(t, b.Execute(func() error { return boom }))
	opened := b.Snapshot().LastTransition
	time.Sleep(60 * time.Millisecond)

	require.ErrorIs(t, b.Execute(func() error { return boom }), boom)
	snap := b.Snapshot()
	assert.Equal(t, "open", snap.State)
	assert.True(t, snap.LastTransition.After(opened))
	require.ErrorIs(t, b.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestGenerateDisabled(t *testing.T) {
	g := NewGenerator(nil, nil, testConfig())
	assert.False(t, g.Enabled())
	_, err := g.Generate(context.Background(), sampleReport(), "a1")
	assert.ErrorIs(t, err, ErrDisabled)
}

package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanbogale/CrediSynth/internal/engine"
)

func TestJobRunnerRejectsAfterClose(t *testing.T) {
	runner := newJobRunner(analyzerFunc(func(context.Context, engine.Request) (*engine.Result, error) {
		return &engine.Result{}, nil
	}), 1, nil)
	runner.Close()
	runner.Close()

	_, err := runner.Submit([]byte(`{}`), "")
	assert.ErrorIs(t, err, errRunnerStopped)
}

func TestJobRunnerPassesJobIdentity(t *testing.T) {
	seen := make(chan engine.Request, 1)
	runner := newJobRunner(analyzerFunc(func(_ context.Context, req engine.Request) (*engine.Result, error) {
		seen <- req
		return &engine.Result{AnalysisID: req.AnalysisID, CorrelationID: req.CorrelationID}, nil
	}), 1, nil)
	t.Cleanup(runner.Close)

	job, err := runner.Submit([]byte(`{"a":1}`), "corr")
	require.NoError(t, err)
	assert.Equal(t, JobQueued, job.Status)
	assert.Equal(t, job.JobID, job.AnalysisID)

	select {
	case req := <-seen:
		assert.Equal(t, job.JobID, req.AnalysisID)
		assert.Equal(t, "corr", req.CorrelationID)
		assert.JSONEq(t, `{"a":1}`, string(req.Body))
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}

	require.Eventually(t, func() bool {
		got, ok := runner.Get(job.JobID)
		return ok && got.Status == JobCompleted && got.FinishedAt != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestJobRunnerPrunesFinishedJobs(t *testing.T) {
	runner := newJobRunner(analyzerFunc(func(context.Context, engine.Request) (*engine.Result, error) {
		return &engine.Result{}, nil
	}), 1, nil)
	t.Cleanup(runner.Close)

	now := time.Now().UTC()
	runner.mu.Lock()
	runner.jobs["old"] = &analysisJob{id: "old", status: JobCompleted, finishedAt: now.Add(-2 * jobRetention)}
	runner.jobs["fresh"] = &analysisJob{id: "fresh", status: JobCompleted, finishedAt: now}
	runner.jobs["pending"] = &analysisJob{id: "pending", status: JobQueued}
	runner.pruneLocked(now)
	runner.mu.Unlock()

	_, ok := runner.Get("old")
	assert.False(t, ok)
	_, ok = runner.Get("fresh")
	assert.True(t, ok)
	_, ok = runner.Get("pending")
	assert.True(t, ok)
}

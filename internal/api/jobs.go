package api

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nathanbogale/CrediSynth/internal/engine"
)

// Job lifecycle states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const (
	jobQueueCapacity = 256
	jobRetention     = time.Hour
)

var (
	errQueueFull     = errors.New("analysis queue is full")
	errRunnerStopped = errors.New("analysis runner is stopped")
)

// analysisJob tracks one asynchronous analysis.
type analysisJob struct {
	id            string
	correlationID string
	body          []byte
	status        string
	outcome       string
	err           *engine.Error
	queuedAt      time.Time
	startedAt     time.Time
	finishedAt    time.Time
}

func (j *analysisJob) dto() JobDTO {
	dto := JobDTO{
		JobID:         j.id,
		AnalysisID:    j.id,
		CorrelationID: j.correlationID,
		Status:        j.status,
		Outcome:       j.outcome,
		QueuedAt:      j.queuedAt,
	}
	if !j.startedAt.IsZero() {
		started := j.startedAt
		dto.StartedAt = &started
	}
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		dto.FinishedAt = &finished
	}
	if j.err != nil {
		dto.Error = &ErrorBody{Status: string(j.err.Kind), Message: j.err.Message(), Path: j.err.Path}
	}
	return dto
}

// jobRunner executes queued analyses on a bounded worker pool.
type jobRunner struct {
	analyzer Analyzer
	onDone   func(job JobDTO, res *engine.Result, err error)

	mu      sync.Mutex
	jobs    map[string]*analysisJob
	queue   chan *analysisJob
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newJobRunner(analyzer Analyzer, workers int, onDone func(JobDTO, *engine.Result, error)) *jobRunner {
	if workers <= 0 {
		workers = determineWorkerCount()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &jobRunner{
		analyzer: analyzer,
		onDone:   onDone,
		jobs:     make(map[string]*analysisJob),
		queue:    make(chan *analysisJob, jobQueueCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	logrus.WithField("workers", workers).Info("analysis job runner started")
	return r
}

func determineWorkerCount() int {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 12 {
		workers = 12
	}
	return workers
}

// Submit queues body for analysis and returns the job snapshot.
func (r *jobRunner) Submit(body []byte, correlationID string) (JobDTO, error) {
	job := &analysisJob{
		id:            uuid.NewString(),
		correlationID: correlationID,
		body:          body,
		status:        JobQueued,
		queuedAt:      time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return JobDTO{}, errRunnerStopped
	}
	r.pruneLocked(job.queuedAt)
	select {
	case r.queue <- job:
	default:
		return JobDTO{}, errQueueFull
	}
	r.jobs[job.id] = job
	return job.dto(), nil
}

// Get returns the snapshot of a known job.
func (r *jobRunner) Get(id string) (JobDTO, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return JobDTO{}, false
	}
	return job.dto(), true
}

// Pending is the number of queued jobs not yet picked up.
func (r *jobRunner) Pending() int {
	return len(r.queue)
}

// Close stops the workers after their current job; queued jobs are abandoned.
func (r *jobRunner) Close() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *jobRunner) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case job := <-r.queue:
			r.run(job)
		}
	}
}

func (r *jobRunner) run(job *analysisJob) {
	r.mu.Lock()
	job.status = JobRunning
	job.startedAt = time.Now().UTC()
	body := job.body
	r.mu.Unlock()

	res, err := r.analyzer.Analyze(r.ctx, engine.Request{
		Body:          body,
		CorrelationID: job.correlationID,
		AnalysisID:    job.id,
	})

	r.mu.Lock()
	job.finishedAt = time.Now().UTC()
	job.body = nil
	if err != nil {
		job.status = JobFailed
		job.err = asEngineError(err)
	} else {
		job.status = JobCompleted
		job.outcome = res.Outcome()
		job.correlationID = res.CorrelationID
	}
	if job.err != nil && job.err.CorrelationID != "" {
		job.correlationID = job.err.CorrelationID
	}
	dto := job.dto()
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"job":            job.id,
		"correlation_id": dto.CorrelationID,
		"status":         dto.Status,
		"duration":       job.finishedAt.Sub(job.startedAt),
	}).Info("analysis job finished")

	if r.onDone != nil {
		r.onDone(dto, res, err)
	}
}

// pruneLocked drops finished jobs older than the retention window.
func (r *jobRunner) pruneLocked(now time.Time) {
	for id, job := range r.jobs {
		if job.finishedAt.IsZero() {
			continue
		}
		if now.Sub(job.finishedAt) > jobRetention {
			delete(r.jobs, id)
		}
	}
}

func asEngineError(err error) *engine.Error {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		return engineErr
	}
	return &engine.Error{Kind: engine.KindInternal, Err: err}
}

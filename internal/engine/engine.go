package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
	"github.com/nathanbogale/CrediSynth/internal/scoring"
	"github.com/nathanbogale/CrediSynth/internal/util"
)

// Synthesizer produces the qualitative report of a feature report.
type Synthesizer interface {
	Synthesize(ctx context.Context, r *payload.FeatureReport, analysisID string) (report.QualitativeReport, report.Synthesis, error)
}

// Auditor persists the lifecycle of an analysis. Failures are logged and never fail
// the analysis.
type Auditor interface {
	RecordCreated(ctx context.Context, analysisID, correlationID, shape string, request []byte) error
	RecordCompleted(ctx context.Context, analysisID string, response []byte) error
	RecordFailed(ctx context.Context, analysisID, reason string) error
}

// Request is one analysis call.
type Request struct {
	Body []byte
	// CorrelationID is the transport-level identifier, e.g. the X-Correlation-ID header.
	// It wins over a correlation_id field in the body.
	CorrelationID string
	// AnalysisID is assigned up front by asynchronous callers; empty means generate one.
	AnalysisID string
}

// Result is a successful analysis. Exactly one of Feature or Assessment is set.
type Result struct {
	AnalysisID    string
	CorrelationID string
	Shape         payload.Shape
	Feature       *report.FeatureResponse
	Assessment    *report.AssessmentResponse
	Synthesis     *report.Synthesis
	Elapsed       time.Duration
	body          []byte
}

// Body is the JSON response document.
func (r *Result) Body() []byte {
	return r.body
}

// Outcome is the headline decision of the result, used for logs and events.
func (r *Result) Outcome() string {
	switch {
	case r.Feature != nil:
		return string(r.Feature.Report.FinalRecommendation)
	case r.Assessment != nil:
		return string(r.Assessment.Decisions.FinalDecision)
	}
	return ""
}

// Option customises an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the analysis and correlation id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithClock replaces the timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// Engine runs classify, normalize, synthesize or map, and assemble for one payload.
type Engine struct {
	synth Synthesizer
	audit Auditor
	newID func() string
	now   func() time.Time
}

// New builds an engine. audit may be nil when auditing is disabled.
func New(synth Synthesizer, audit Auditor, opts ...Option) *Engine {
	e := &Engine{
		synth: synth,
		audit: audit,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze processes one payload. Every failure is returned as *Error.
func (e *Engine) Analyze(ctx context.Context, req Request) (res *Result, err error) {
	timer := util.StartTimer()
	analysisID := strings.TrimSpace(req.AnalysisID)
	if analysisID == "" {
		analysisID = e.newID()
	}
	correlationID := strings.TrimSpace(req.CorrelationID)

	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithFields(logrus.Fields{
				"analysis_id":    analysisID,
				"correlation_id": correlationID,
				"panic":          rec,
				"stack":          string(debug.Stack()),
			}).Error("analysis panicked")
			res = nil
			err = e.fail(ctx, &Error{Kind: KindInternal, Err: fmt.Errorf("panic: %v", rec)}, analysisID, correlationID)
		}
	}()

	raw, decodeErr := payload.Decode(req.Body)
	if correlationID == "" {
		correlationID = bodyCorrelationID(raw)
	}
	if correlationID == "" {
		correlationID = e.newID()
	}

	var shape payload.Shape
	var classifyErr error
	if decodeErr == nil {
		shape, classifyErr = payload.Classify(raw)
	}
	e.recordCreated(ctx, analysisID, correlationID, shape, req.Body)

	log := logrus.WithFields(logrus.Fields{
		"analysis_id":    analysisID,
		"correlation_id": correlationID,
	})
	if decodeErr != nil {
		return nil, e.fail(ctx, decodeErr, analysisID, correlationID)
	}
	if classifyErr != nil {
		return nil, e.fail(ctx, classifyErr, analysisID, correlationID)
	}

	p, err := payload.Normalize(raw, shape)
	if err != nil {
		return nil, e.fail(ctx, err, analysisID, correlationID)
	}
	for _, w := range p.Warnings {
		log.WithFields(logrus.Fields{
			"path":       w.Path,
			"request_id": p.RequestID(),
		}).Warn(w.Message)
	}

	res = &Result{AnalysisID: analysisID, CorrelationID: correlationID, Shape: shape}
	switch shape {
	case payload.ShapeFeatureReport:
		resp, syn, err := e.analyzeFeature(ctx, p, analysisID, correlationID)
		if err != nil {
			return nil, e.fail(ctx, err, analysisID, correlationID)
		}
		res.Feature = resp
		res.Synthesis = &syn
	case payload.ShapeAssessmentBundle:
		res.Assessment = e.analyzeAssessment(p.Bundle, analysisID, correlationID)
	}

	res.Elapsed = timer.Elapsed()
	stamp := e.now()
	if res.Feature != nil {
		res.Feature.ProcessingTimeMs = timer.ElapsedMs()
		res.Feature.Timestamp = stamp
		res.body, err = json.Marshal(res.Feature)
	} else {
		res.Assessment.ProcessingTimeMs = timer.ElapsedMs()
		res.Assessment.Timestamp = stamp
		res.body, err = json.Marshal(res.Assessment)
	}
	if err != nil {
		return nil, e.fail(ctx, fmt.Errorf("encode response: %w", err), analysisID, correlationID)
	}

	if e.audit != nil {
		if auditErr := e.audit.RecordCompleted(ctx, analysisID, res.body); auditErr != nil {
			log.WithError(auditErr).Warn("audit completed record")
		}
	}

	fields := logrus.Fields{
		"shape":      shape,
		"request_id": p.RequestID(),
		"outcome":    res.Outcome(),
		"elapsed_ms": timer.ElapsedMs(),
	}
	if res.Synthesis != nil {
		fields["source"] = res.Synthesis.Source
		fields["degraded"] = res.Synthesis.Degraded
	}
	log.WithFields(fields).Info("analysis completed")
	return res, nil
}

func (e *Engine) analyzeFeature(ctx context.Context, p payload.Payload, analysisID, correlationID string) (*report.FeatureResponse, report.Synthesis, error) {
	r := p.Feature
	qr, syn, err := e.synth.Synthesize(ctx, r, analysisID)
	if err != nil {
		return nil, report.Synthesis{}, err
	}
	qr.AnalysisID = analysisID
	if qr.RequestID == "" {
		qr.RequestID = r.RequestID
	}
	if qr.CustomerID == "" {
		qr.CustomerID = r.CustomerID
	}

	profile := scoring.BuildProfile(r)
	var overall *float64
	if profile.DefaultProbability != nil {
		v := *profile.DefaultProbability * 100
		overall = &v
	}

	return &report.FeatureResponse{
		AnalysisID:         analysisID,
		RequestID:          r.RequestID,
		CustomerID:         r.CustomerID,
		CorrelationID:      correlationID,
		ModelVersion:       r.ModelVersion,
		RiskLevel:          profile.RiskLevel,
		RiskCategory:       profile.RiskCategory,
		DefaultProbability: profile.DefaultProbability,
		CreditScore:        profile.CreditScore,
		FeaturesCount:      r.FeaturesCount,
		FeatureImportance:  profile.Importance,
		RiskDimensions:     profile.Dimensions,
		Compliance:         r.Compliance,
		Report:             qr,
		Scores: report.FeatureScores{
			CreditScore:         profile.CreditScore,
			DefaultProbability:  profile.DefaultProbability,
			OverallRiskScore:    overall,
			ApprovalProbability: scoring.ApprovalProbability(qr.FinalRecommendation),
		},
		Synthesis: syn,
		Warnings:  p.Warnings,
	}, syn, nil
}

func (e *Engine) analyzeAssessment(b *payload.AssessmentBundle, analysisID, correlationID string) *report.AssessmentResponse {
	record := scoring.MapDecision(b)
	recommendations := record.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}
	return &report.AssessmentResponse{
		AnalysisID:      analysisID,
		RequestID:       b.RequestID,
		CustomerID:      b.CustomerID,
		CorrelationID:   correlationID,
		AssessmentID:    b.AssessmentID,
		Scores:          scoring.AssessmentScores(b),
		Analysis:        scoring.AssessmentAnalysis(b),
		Decisions:       record.Decisions,
		Recommendations: recommendations,
	}
}

func (e *Engine) recordCreated(ctx context.Context, analysisID, correlationID string, shape payload.Shape, body []byte) {
	if e.audit == nil {
		return
	}
	if err := e.audit.RecordCreated(ctx, analysisID, correlationID, string(shape), body); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"analysis_id":    analysisID,
			"correlation_id": correlationID,
		}).Warn("audit created record")
	}
}

// fail classifies err, logs it, marks the audit record failed and returns the *Error.
func (e *Engine) fail(ctx context.Context, err error, analysisID, correlationID string) error {
	out := classifyError(err)
	out.AnalysisID = analysisID
	out.CorrelationID = correlationID

	entry := logrus.WithError(out.Err).WithFields(logrus.Fields{
		"analysis_id":    analysisID,
		"correlation_id": correlationID,
		"kind":           out.Kind,
	})
	if out.Path != "" {
		entry = entry.WithField("path", out.Path)
	}
	switch out.Kind {
	case KindInternal:
		entry.Error("analysis failed")
	case KindDownstreamUnavailable:
		entry.Warn("analysis failed")
	default:
		entry.Info("analysis rejected")
	}

	if e.audit != nil {
		reason := fmt.Sprintf("%s: %v", out.Kind, out.Err)
		if auditErr := e.audit.RecordFailed(ctx, analysisID, reason); auditErr != nil {
			logrus.WithError(auditErr).WithField("analysis_id", analysisID).Warn("audit failed record")
		}
	}
	return out
}

func bodyCorrelationID(raw payload.Raw) string {
	if raw == nil {
		return ""
	}
	s, _ := raw["correlation_id"].(string)
	return strings.TrimSpace(s)
}

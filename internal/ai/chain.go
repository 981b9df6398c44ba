package ai

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

// Generative is the model-backed report producer.
type Generative interface {
	Enabled() bool
	Model() string
	Generate(ctx context.Context, r *payload.FeatureReport, analysisID string) (report.QualitativeReport, error)
}

// Fallback is the deterministic report producer used when generation cannot answer.
type Fallback interface {
	Synthesize(r *payload.FeatureReport, analysisID string) report.QualitativeReport
}

// Chain picks between the generative path and the fallback.
type Chain struct {
	primary         Generative
	fallback        Fallback
	fallbackOnError bool
}

// WithFallback returns a chain that tries primary first. Disabled generation and an
// open circuit always degrade to fallback; other generation failures degrade only when
// fallbackOnError is set and are returned otherwise.
func WithFallback(primary Generative, fallback Fallback, fallbackOnError bool) *Chain {
	return &Chain{primary: primary, fallback: fallback, fallbackOnError: fallbackOnError}
}

// Synthesize produces a report and states which path produced it.
func (c *Chain) Synthesize(ctx context.Context, r *payload.FeatureReport, analysisID string) (report.QualitativeReport, report.Synthesis, error) {
	if c.primary == nil || !c.primary.Enabled() {
		return c.degrade(r, analysisID, ErrDisabled)
	}

	out, err := c.primary.Generate(ctx, r, analysisID)
	if err == nil {
		return out, report.Synthesis{Source: report.SourceGenerative, Model: c.primary.Model()}, nil
	}

	logrus.WithError(err).WithField("analysis_id", analysisID).Warn("generation failed")
	if errors.Is(err, ErrDisabled) || errors.Is(err, ErrCircuitOpen) || c.fallbackOnError {
		return c.degrade(r, analysisID, err)
	}
	return report.QualitativeReport{}, report.Synthesis{}, err
}

func (c *Chain) degrade(r *payload.FeatureReport, analysisID string, cause error) (report.QualitativeReport, report.Synthesis, error) {
	if c.fallback == nil {
		return report.QualitativeReport{}, report.Synthesis{}, cause
	}
	return c.fallback.Synthesize(r, analysisID), report.Synthesis{
		Source:   report.SourceHeuristic,
		Degraded: true,
		Reason:   cause.Error(),
	}, nil
}

package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

type stubGenerative struct {
	enabled bool
	out     report.QualitativeReport
	err     error
	calls   int
}

func (s *stubGenerative) Enabled() bool { return s.enabled }
func (s *stubGenerative) Model() string { return "stub-model" }
func (s *stubGenerative) Generate(context.Context, *payload.FeatureReport, string) (report.QualitativeReport, error) {
	s.calls++
	return s.out, s.err
}

type stubFallback struct{}

func (stubFallback) Synthesize(r *payload.FeatureReport, analysisID string) report.QualitativeReport {
	return report.QualitativeReport{AnalysisID: analysisID, FinalRecommendation: report.ManualReview}
}

func TestChain(t *testing.T) {
	downstream := &DownstreamError{Attempts: 3, Err: &StatusError{Code: 503}}
	tests := []struct {
		name            string
		primary         *stubGenerative
		fallbackOnError bool
		source          report.Source
		degraded        bool
		err             error
	}{
		{"generative success", &stubGenerative{enabled: true, out: report.QualitativeReport{FinalRecommendation: report.Approve}}, false, report.SourceGenerative, false, nil},
		{"disabled degrades", &stubGenerative{enabled: false}, false, report.SourceHeuristic, true, nil},
		{"open circuit degrades", &stubGenerative{enabled: true, err: ErrCircuitOpen}, false, report.SourceHeuristic, true, nil},
		{"downstream failure surfaces", &stubGenerative{enabled: true, err: downstream}, false, "", false, downstream},
		{"downstream failure degrades when allowed", &stubGenerative{enabled: true, err: downstream}, true, report.SourceHeuristic, true, nil},
		{"invalid output surfaces", &stubGenerative{enabled: true, err: ErrInvalidOutput}, false, "", false, ErrInvalidOutput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chain := WithFallback(tc.primary, stubFallback{}, tc.fallbackOnError)
			out, meta, err := chain.Synthesize(context.Background(), sampleReport(), "a1")
			if tc.err != nil {
				require.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.source, meta.Source)
			assert.Equal(t, tc.degraded, meta.Degraded)
			if tc.degraded {
				assert.Equal(t, "a1", out.AnalysisID)
				assert.NotEmpty(t, meta.Reason)
			} else {
				assert.Equal(t, "stub-model", meta.Model)
			}
		})
	}
}

func TestChainDisabledNeverCallsPrimary(t *testing.T) {
	primary := &stubGenerative{enabled: false}
	_, _, err := WithFallback(primary, stubFallback{}, false).Synthesize(context.Background(), sampleReport(), "a1")
	require.NoError(t, err)
	assert.Zero(t, primary.calls)
}

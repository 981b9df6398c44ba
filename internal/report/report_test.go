package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeReport() QualitativeReport {
	return QualitativeReport{
		ExecutiveSummary:            "summary",
		AbilityToRepay:              "capacity",
		WillingnessToRepay:          "intent",
		LiquidityAssessment:         "liquidity",
		IdentityAndFraudAssessment:  "identity",
		MacroeconomicContext:        "macro",
		KeyRiskSynthesis:            "risks",
		KeyStrengthsSynthesis:       "strengths",
		ComplianceSummary:           "COMPLIANT",
		FinalRecommendation:         ManualReview,
		RecommendationJustification: "because",
	}
}

func TestValidate(t *testing.T) {
	r := completeReport()
	require.NoError(t, r.Validate())

	tests := []struct {
		name  string
		edit  func(*QualitativeReport)
		field string
	}{
		{"blank narrative", func(r *QualitativeReport) { r.LiquidityAssessment = "  " }, "liquidity_assessment"},
		{"free text recommendation", func(r *QualitativeReport) { r.FinalRecommendation = "Approve, probably" }, "final_recommendation"},
		{"lower case recommendation", func(r *QualitativeReport) { r.FinalRecommendation = "decline" }, "final_recommendation"},
		{"missing compliance summary", func(r *QualitativeReport) { r.ComplianceSummary = "" }, "nbe_compliance_summary"},
		{"missing justification", func(r *QualitativeReport) { r.RecommendationJustification = "" }, "recommendation_justification"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := completeReport()
			tc.edit(&r)
			var verr *ValidationError
			require.ErrorAs(t, r.Validate(), &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestApprovalProbability(t *testing.T) {
	want := map[Recommendation]float64{Approve: 0.85, ApproveWithConditions: 0.65, ManualReview: 0.45, Decline: 0.10}
	for _, rec := range Recommendations {
		p, ok := rec.ApprovalProbability()
		require.True(t, ok)
		assert.Equal(t, want[rec], p)
	}
	_, ok := Recommendation("Maybe").ApprovalProbability()
	assert.False(t, ok)
}

package report

import (
	"fmt"
	"strings"
)

// Recommendation is the closed set of final recommendations a reviewer can receive.
type Recommendation string

const (
	Approve               Recommendation = "Approve"
	ApproveWithConditions Recommendation = "Approve with Conditions"
	ManualReview          Recommendation = "Manual Review"
	Decline               Recommendation = "Decline"
)

// Recommendations lists the closed set in severity order.
var Recommendations = []Recommendation{Approve, ApproveWithConditions, ManualReview, Decline}

// Valid reports whether r is exactly one of the four literals.
func (r Recommendation) Valid() bool {
	switch r {
	case Approve, ApproveWithConditions, ManualReview, Decline:
		return true
	}
	return false
}

// ApprovalProbability maps a recommendation onto the base approval likelihood shown to reviewers.
func (r Recommendation) ApprovalProbability() (float64, bool) {
	switch r {
	case Approve:
		return 0.85, true
	case ApproveWithConditions:
		return 0.65, true
	case ManualReview:
		return 0.45, true
	case Decline:
		return 0.10, true
	}
	return 0, false
}

// QualitativeReport is the reviewer-facing narrative shared by the heuristic and generative paths.
type QualitativeReport struct {
	AnalysisID string `json:"analysis_id"`
	RequestID  string `json:"qse_request_id"`
	CustomerID string `json:"customer_id"`

	ExecutiveSummary            string         `json:"executive_summary"`
	AbilityToRepay              string         `json:"ability_to_repay"`
	WillingnessToRepay          string         `json:"willingness_to_repay"`
	LiquidityAssessment         string         `json:"liquidity_assessment"`
	IdentityAndFraudAssessment  string         `json:"identity_and_fraud_assessment"`
	MacroeconomicContext        string         `json:"macroeconomic_context"`
	KeyRiskSynthesis            string         `json:"key_risk_synthesis"`
	KeyStrengthsSynthesis       string         `json:"key_strengths_synthesis"`
	ComplianceSummary           string         `json:"nbe_compliance_summary"`
	FinalRecommendation         Recommendation `json:"final_recommendation"`
	RecommendationJustification string         `json:"recommendation_justification"`
}

// Narrative is one named prose section of a report.
type Narrative struct {
	Field string
	Text  string
}

// Narratives returns the eight prose sections in contract order.
func (r *QualitativeReport) Narratives() []Narrative {
	return []Narrative{
		{"executive_summary", r.ExecutiveSummary},
		{"ability_to_repay", r.AbilityToRepay},
		{"willingness_to_repay", r.WillingnessToRepay},
		{"liquidity_assessment", r.LiquidityAssessment},
		{"identity_and_fraud_assessment", r.IdentityAndFraudAssessment},
		{"macroeconomic_context", r.MacroeconomicContext},
		{"key_risk_synthesis", r.KeyRiskSynthesis},
		{"key_strengths_synthesis", r.KeyStrengthsSynthesis},
	}
}

// ValidationError names the first field of a report that breaks the output contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("report field %s %s", e.Field, e.Reason)
}

// Validate checks structural conformance only. Identifiers are not checked because
// the producer fills them after generation.
func (r *QualitativeReport) Validate() error {
	for _, n := range r.Narratives() {
		if strings.TrimSpace(n.Text) == "" {
			return &ValidationError{Field: n.Field, Reason: "must be a non-empty string"}
		}
	}
	if strings.TrimSpace(r.ComplianceSummary) == "" {
		return &ValidationError{Field: "nbe_compliance_summary", Reason: "must be a non-empty string"}
	}
	if !r.FinalRecommendation.Valid() {
		return &ValidationError{
			Field:  "final_recommendation",
			Reason: fmt.Sprintf("must be one of %q, %q, %q, %q; got %q", Approve, ApproveWithConditions, ManualReview, Decline, r.FinalRecommendation),
		}
	}
	if strings.TrimSpace(r.RecommendationJustification) == "" {
		return &ValidationError{Field: "recommendation_justification", Reason: "must be a non-empty string"}
	}
	return nil
}

package report

import (
	"time"

	"github.com/nathanbogale/CrediSynth/internal/payload"
)

// Source names the producer of a qualitative report.
type Source string

const (
	SourceGenerative Source = "generative"
	SourceHeuristic  Source = "heuristic"
)

// Synthesis describes how the qualitative report was produced.
type Synthesis struct {
	Source   Source `json:"source"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"degraded_reason,omitempty"`
	Model    string `json:"model,omitempty"`
}

// FeatureImportance is one ranked driver of the outcome.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Impact     string  `json:"impact"`
}

// RiskDimensions are normalised 0..1 risk components; nil means not derivable.
type RiskDimensions struct {
	Capacity  *float64 `json:"capacity_risk"`
	Liquidity *float64 `json:"liquidity_risk"`
	Credit    *float64 `json:"credit_risk"`
	Character *float64 `json:"character_risk"`
}

// FeatureScores are the consolidated numbers of the feature report path.
type FeatureScores struct {
	CreditScore         *int     `json:"credit_score"`
	DefaultProbability  *float64 `json:"default_probability"`
	OverallRiskScore    *float64 `json:"overall_risk_score"`
	ApprovalProbability *float64 `json:"approval_probability"`
}

// FeatureResponse is the external contract for a feature report.
type FeatureResponse struct {
	AnalysisID    string `json:"analysis_id"`
	RequestID     string `json:"request_id"`
	CustomerID    string `json:"customer_id"`
	CorrelationID string `json:"correlation_id"`
	ModelVersion  string `json:"model_version,omitempty"`

	RiskLevel          string   `json:"risk_level,omitempty"`
	RiskCategory       string   `json:"risk_category,omitempty"`
	DefaultProbability *float64 `json:"default_probability"`
	CreditScore        *int     `json:"credit_score"`
	FeaturesCount      *int     `json:"features_count,omitempty"`

	FeatureImportance []FeatureImportance `json:"feature_importance"`
	RiskDimensions    RiskDimensions      `json:"risk_dimensions"`
	Compliance        *payload.Compliance `json:"nbe_compliance_status,omitempty"`

	Report    QualitativeReport `json:"qaa_report"`
	Scores    FeatureScores     `json:"scores"`
	Synthesis Synthesis         `json:"synthesis"`
	Warnings  []payload.Warning `json:"warnings,omitempty"`

	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

// AssessmentScores consolidates the numeric sub-results of a bundle.
type AssessmentScores struct {
	CreditScore                 *float64                       `json:"credit_score"`
	CreditComponents            *payload.CreditScoreComponents `json:"credit_score_components,omitempty"`
	FraudScore                  float64                        `json:"fraud_score"`
	DefaultProbability          float64                        `json:"default_probability"`
	RiskScores                  *payload.RiskBreakdown         `json:"risk_scores,omitempty"`
	OverallRiskScore            *float64                       `json:"overall_risk_score,omitempty"`
	DefaultPredictionConfidence *float64                       `json:"default_prediction_confidence,omitempty"`
	AbilityToPay                *float64                       `json:"ability_to_pay_score"`
	WillingnessToPay            *float64                       `json:"willingness_to_pay_score"`
	CombinedATPWTP              *float64                       `json:"combined_atp_wtp_score"`
	ATPWTP                      *payload.ATPWTPAnalysis        `json:"atp_wtp_analysis,omitempty"`
}

// CreditAnalysis is always present, even when every field is unknown.
type CreditAnalysis struct {
	CreditScore   *float64 `json:"credit_score"`
	RiskLevel     string   `json:"risk_level,omitempty"`
	RiskCategory  string   `json:"risk_category,omitempty"`
	ModelVersion  string   `json:"model_version,omitempty"`
	ModelTypeUsed string   `json:"model_type_used,omitempty"`
}

// AssessmentAnalysis is the detailed breakdown of a bundle.
type AssessmentAnalysis struct {
	Risk                *payload.RiskAnalysis           `json:"risk_analysis,omitempty"`
	Fraud               *payload.FraudResult            `json:"fraud_analysis,omitempty"`
	Credit              CreditAnalysis                  `json:"credit_analysis"`
	DefaultPrediction   *payload.DefaultPrediction      `json:"default_prediction,omitempty"`
	Compliance          *payload.ComplianceCheck        `json:"compliance_analysis,omitempty"`
	Products            []payload.ProductRecommendation `json:"product_analysis,omitempty"`
	FeatureCompleteness *payload.FeatureCompleteness    `json:"feature_analysis,omitempty"`
	Explainability      map[string]any                  `json:"explainability,omitempty"`
	ReasonCodes         []string                        `json:"reason_codes,omitempty"`
}

// AssessmentResponse is the external contract for an assessment bundle.
type AssessmentResponse struct {
	AnalysisID    string `json:"analysis_id"`
	RequestID     string `json:"request_id"`
	CustomerID    string `json:"customer_id"`
	CorrelationID string `json:"correlation_id"`
	AssessmentID  string `json:"assessment_id"`

	Scores          AssessmentScores   `json:"scores"`
	Analysis        AssessmentAnalysis `json:"analysis"`
	Decisions       Decisions          `json:"decisions"`
	Recommendations []string           `json:"recommendations"`

	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

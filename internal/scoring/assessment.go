package scoring

import (
	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

// AssessmentScores consolidates the numeric sub-results of a bundle. Unknown fraud
// score and default probability are reported as zero.
func AssessmentScores(b *payload.AssessmentBundle) report.AssessmentScores {
	s := report.AssessmentScores{
		CreditScore:      b.CreditScore,
		CreditComponents: b.CreditComponents,
		OverallRiskScore: b.OverallRiskScore,
		AbilityToPay:     b.AbilityToPay,
		WillingnessToPay: b.WillingnessToPay,
		CombinedATPWTP:   b.CombinedATPWTP,
		ATPWTP:           b.ATPWTP,
		RiskScores:       b.RiskBreakdown,
	}
	switch {
	case b.FraudScore != nil:
		s.FraudScore = *b.FraudScore
	case b.Fraud != nil:
		s.FraudScore = b.Fraud.Score
	}
	if p, ok := b.EffectiveDefaultProbability(); ok {
		s.DefaultProbability = p
	}
	if s.RiskScores == nil && b.Risk != nil {
		s.RiskScores = b.Risk.Breakdown
	}
	if s.OverallRiskScore == nil && b.Risk != nil {
		score := b.Risk.OverallScore
		s.OverallRiskScore = &score
	}
	if b.DefaultPrediction != nil {
		conf := b.DefaultPrediction.Confidence
		s.DefaultPredictionConfidence = &conf
	}
	return s
}

// AssessmentAnalysis returns the detailed breakdown of a bundle. Sub-results that
// were not supplied stay absent.
func AssessmentAnalysis(b *payload.AssessmentBundle) report.AssessmentAnalysis {
	return report.AssessmentAnalysis{
		Risk:  b.Risk,
		Fraud: b.EffectiveFraud(),
		Credit: report.CreditAnalysis{
			CreditScore:   b.CreditScore,
			RiskLevel:     b.RiskLevel,
			RiskCategory:  b.RiskCategory,
			ModelVersion:  b.ModelVersion,
			ModelTypeUsed: b.ModelTypeUsed,
		},
		DefaultPrediction:   b.DefaultPrediction,
		Compliance:          b.Compliance,
		Products:            b.Products,
		FeatureCompleteness: b.FeatureCompleteness,
		Explainability:      b.Explainability,
		ReasonCodes:         b.ReasonCodes,
	}
}

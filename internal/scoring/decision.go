package scoring

import (
	"fmt"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

// MapDecision merges the fraud, compliance and risk sub-results of a bundle into one
// decision. Fraud blocks, fraud review flags and compliance failures win outright;
// an explicit upstream decision only replaces the risk-level outcome.
func MapDecision(b *payload.AssessmentBundle) report.DecisionRecord {
	d := report.Decisions{
		FinalDecision:  report.DecisionRequiresReview,
		ApprovalStatus: report.StatusRequiresReview,
		DecisionReason: "Assessment completed",
	}
	if b.DecisionReason != "" {
		d.DecisionReason = b.DecisionReason
	}

	fraud := b.EffectiveFraud()
	if fraud != nil {
		d.Fraud = &report.FraudDecision{
			BlockTransaction:    fraud.BlockTransaction,
			RequireManualReview: fraud.RequireManualReview,
			Recommendation:      fraud.Recommendation,
		}
	}
	if level, score, ok := riskLevel(b); ok {
		d.Risk = &report.RiskDecision{
			RiskLevel:        string(level),
			OverallRiskScore: score,
			Decision:         riskDecision(level),
		}
	}
	if b.Compliance != nil {
		d.Compliance = &report.ComplianceDecision{
			Compliant:         b.Compliance.Compliant,
			OverallCompliance: b.Compliance.OverallCompliance,
			OneThirdRule:      b.Compliance.OneThirdRule,
		}
	}

	switch {
	case fraud != nil && fraud.BlockTransaction:
		d.FinalDecision = report.DecisionDecline
		d.ApprovalStatus = report.StatusDeclined
		d.DecisionReason = "Transaction blocked due to fraud indicators"
	case fraud != nil && fraud.RequireManualReview:
		d.FinalDecision = report.DecisionRequiresReview
		d.ApprovalStatus = report.StatusPendingManualReview
		d.DecisionReason = "Fraud indicators require manual review"
	case b.Compliance != nil && !b.Compliance.Compliant:
		d.FinalDecision = report.DecisionDecline
		d.ApprovalStatus = report.StatusDeclined
		d.DecisionReason = "NBE compliance requirements not met"
	case b.FinalDecision != "":
		d.FinalDecision = report.Decision(b.FinalDecision)
		d.ApprovalStatus = b.ApprovalStatus
		if d.ApprovalStatus == "" {
			d.ApprovalStatus = b.FinalDecision
		}
	case d.Risk != nil:
		d.FinalDecision = d.Risk.Decision
		d.ApprovalStatus = approvalStatus(d.Risk.Decision)
		if b.DecisionReason == "" {
			d.DecisionReason = fmt.Sprintf("Risk level %s", d.Risk.RiskLevel)
		}
	}

	return report.DecisionRecord{
		Decisions:       d,
		Recommendations: Recommend(b),
	}
}

// riskLevel prefers the risk analysis block and falls back to the top-level grade.
func riskLevel(b *payload.AssessmentBundle) (payload.RiskLevel, float64, bool) {
	if b.Risk != nil && b.Risk.Level != "" {
		return b.Risk.Level, b.Risk.OverallScore, true
	}
	level, ok := payload.ParseRiskLevel(b.RiskLevel)
	if !ok {
		return "", 0, false
	}
	var score float64
	if b.OverallRiskScore != nil {
		score = *b.OverallRiskScore
	}
	return level, score, true
}

func riskDecision(level payload.RiskLevel) report.Decision {
	switch level {
	case payload.RiskLow:
		return report.DecisionApprove
	case payload.RiskMedium:
		return report.DecisionApproveWithConditions
	default:
		return report.DecisionRequiresReview
	}
}

func approvalStatus(d report.Decision) string {
	switch d {
	case report.DecisionApprove:
		return report.StatusApproved
	case report.DecisionApproveWithConditions:
		return report.StatusApprovedWithConditions
	case report.DecisionDecline:
		return report.StatusDeclined
	default:
		return report.StatusRequiresReview
	}
}

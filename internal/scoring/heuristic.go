package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

// Thresholds are the policy limits used by the heuristic synthesizer.
type Thresholds struct {
	MaxDTI            float64
	MinResidualIncome float64
	MaxDSTI           float64
}

// DefaultThresholds mirrors the lending policy defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxDTI: 0.35, MinResidualIncome: 5000, MaxDSTI: 0.35}
}

// Heuristic produces qualitative reports from rules alone. It holds no mutable state
// and is safe for concurrent use.
type Heuristic struct {
	thresholds Thresholds
}

// NewHeuristic builds a synthesizer with the supplied thresholds.
func NewHeuristic(t Thresholds) *Heuristic {
	return &Heuristic{thresholds: t}
}

// Synthesize renders a report for r. Identical input always yields an identical report.
func (h *Heuristic) Synthesize(r *payload.FeatureReport, analysisID string) report.QualitativeReport {
	rec, justification := h.decide(r)
	return report.QualitativeReport{
		AnalysisID:                  analysisID,
		RequestID:                   r.RequestID,
		CustomerID:                  r.CustomerID,
		ExecutiveSummary:            executiveSummary(r, rec),
		AbilityToRepay:              abilityToRepay(r),
		WillingnessToRepay:          willingnessToRepay(r),
		LiquidityAssessment:         liquidityAssessment(r),
		IdentityAndFraudAssessment:  identityAssessment(r),
		MacroeconomicContext:        macroContext(r),
		KeyRiskSynthesis:            keyRisks(r),
		KeyStrengthsSynthesis:       keyStrengths(r),
		ComplianceSummary:           h.ComplianceSummary(r),
		FinalRecommendation:         rec,
		RecommendationJustification: justification,
	}
}

// decide applies the policy in order: compliance failure, then the capacity rule,
// then manual review.
func (h *Heuristic) decide(r *payload.FeatureReport) (report.Recommendation, string) {
	if r.Compliance != nil && r.Compliance.Status == payload.NonCompliant {
		reasons := "no reasons supplied"
		if len(r.Compliance.Reasons) > 0 {
			reasons = strings.Join(r.Compliance.Reasons, "; ")
		}
		return report.Decline, fmt.Sprintf("Decline: NBE compliance status is NON_COMPLIANT (%s).", reasons)
	}

	var unmet []string
	dti, hasDTI := r.Number(payload.GroupAffordability, "debt_to_income_ratio")
	switch {
	case !hasDTI:
		unmet = append(unmet, "debt-to-income ratio unavailable")
	case dti >= h.thresholds.MaxDTI:
		unmet = append(unmet, fmt.Sprintf("DTI %s is not below %s", num(dti), num(h.thresholds.MaxDTI)))
	}
	residual, _ := r.Number(payload.GroupAffordability, "residual_income_etb")
	if residual <= h.thresholds.MinResidualIncome {
		unmet = append(unmet, fmt.Sprintf("residual income %s ETB does not exceed %s ETB", num(residual), num(h.thresholds.MinResidualIncome)))
	}
	fayda, _ := r.Text(payload.GroupIdentityFraud, "fayda_verification_status")
	if fayda != "Verified" {
		unmet = append(unmet, fmt.Sprintf("Fayda verification status is %s", orNA(fayda)))
	}

	if len(unmet) == 0 {
		return report.ApproveWithConditions, fmt.Sprintf(
			"Approve with conditions: DTI %s is below %s, residual income %s ETB exceeds %s ETB and identity is verified. "+
				"Monitor liquidity and spending volatility; reassess if inflation worsens.",
			num(dti), num(h.thresholds.MaxDTI), num(residual), num(h.thresholds.MinResidualIncome))
	}
	return report.ManualReview, "Manual review advised: " + strings.Join(unmet, "; ") + "."
}

// ComplianceSummary prefers the explicit compliance block and otherwise derives a
// verdict from identity and debt-service signals.
func (h *Heuristic) ComplianceSummary(r *payload.FeatureReport) string {
	if r.Compliance != nil {
		if r.Compliance.Status == payload.Compliant {
			return "COMPLIANT"
		}
		if len(r.Compliance.Reasons) == 0 {
			return "NON-COMPLIANT: no reasons supplied"
		}
		return "NON-COMPLIANT: " + strings.Join(r.Compliance.Reasons, "; ")
	}

	var issues []string
	if hit, ok := r.Flag(payload.GroupIdentityFraud, "pep_or_sanctions_hit_flag"); !ok || hit {
		issues = append(issues, "PEP/sanctions screening not clear")
	}
	switch kyc, _ := r.Text(payload.GroupIdentityFraud, "kyc_level"); kyc {
	case "Enhanced", "Standard":
	default:
		issues = append(issues, fmt.Sprintf("KYC level %s", orNA(kyc)))
	}
	if fayda, _ := r.Text(payload.GroupIdentityFraud, "fayda_verification_status"); fayda != "Verified" {
		issues = append(issues, fmt.Sprintf("Fayda status %s", orNA(fayda)))
	}
	dsti, ok := r.Number(payload.GroupAffordability, "debt_service_to_income_ratio_dsti")
	if !ok {
		dsti = 1
	}
	if dsti > h.thresholds.MaxDSTI {
		issues = append(issues, fmt.Sprintf("DSTI %s above %s", num(dsti), num(h.thresholds.MaxDSTI)))
	}
	if len(issues) == 0 {
		return "COMPLIANT"
	}
	return "NON-COMPLIANT: " + strings.Join(issues, "; ")
}

func executiveSummary(r *payload.FeatureReport, rec report.Recommendation) string {
	level := r.RiskLevel
	if level == "" {
		level = "unrated"
	}
	p := "n/a"
	if r.DefaultProbability != nil {
		p = num(*r.DefaultProbability)
	} else if r.Risk != nil && r.Risk.DefaultProbability != nil {
		p = num(*r.Risk.DefaultProbability)
	}
	var closing string
	switch rec {
	case report.Decline:
		closing = "Regulatory compliance failure prevents approval."
	case report.ApproveWithConditions:
		closing = "Repayment capacity and verified identity support a conditional approval."
	default:
		closing = "Available signals do not support an automated approval."
	}
	return fmt.Sprintf("Customer %s is rated %s risk with a default probability of %s. %s", r.CustomerID, level, p, closing)
}

func abilityToRepay(r *payload.FeatureReport) string {
	return fmt.Sprintf("Residual income %s ETB and DTI %s describe repayment capacity; salary inflow consistency is %s.",
		metric(r, payload.GroupAffordability, "residual_income_etb"),
		metric(r, payload.GroupAffordability, "debt_to_income_ratio"),
		metric(r, payload.GroupBankDynamics, "salary_inflow_consistency_score"))
}

func willingnessToRepay(r *payload.FeatureReport) string {
	return fmt.Sprintf("Delinquencies of 30+ days in the last 12 months: %s. Behavioral consistency %s and conscientiousness %s indicate intent to repay.",
		metric(r, payload.GroupCoreCredit, "delinquency_30d_count_12m"),
		metric(r, payload.GroupBehavioral, "behavioral_consistency_score"),
		metric(r, payload.GroupBehavioral, "conscientiousness_score"))
}

func liquidityAssessment(r *payload.FeatureReport) string {
	return fmt.Sprintf("Cash buffer covers %s days; overdraft was used on %s of the last 90 days; savings behavior score is %s.",
		metric(r, payload.GroupAffordability, "cash_buffer_days"),
		metric(r, payload.GroupBankDynamics, "overdraft_usage_days_90d"),
		metric(r, payload.GroupDigitalBehavior, "savings_behavior_score"))
}

func identityAssessment(r *payload.FeatureReport) string {
	pep := "unknown"
	if hit, ok := r.Flag(payload.GroupIdentityFraud, "pep_or_sanctions_hit_flag"); ok {
		pep = "clear"
		if hit {
			pep = "hit"
		}
	}
	return fmt.Sprintf("Fayda verification %s, KYC level %s, PEP/sanctions screening %s.",
		metric(r, payload.GroupIdentityFraud, "fayda_verification_status"),
		metric(r, payload.GroupIdentityFraud, "kyc_level"),
		pep)
}

func macroContext(r *payload.FeatureReport) string {
	return fmt.Sprintf("Recent inflation %s%% and sector cyclicality index %s frame the external risk environment.",
		metric(r, payload.GroupMacro, "inflation_rate_recent"),
		metric(r, payload.GroupMacro, "sector_cyclicality_index"))
}

func keyRisks(r *payload.FeatureReport) string {
	var parts []string
	if r.Explainability != nil {
		for _, f := range head(r.Explainability.RiskFactors, 3) {
			parts = append(parts, fmt.Sprintf("%s (impact %s)", f.Name, num(f.Impact)))
		}
	}
	if r.Risk != nil {
		for _, sc := range r.Risk.Scenarios {
			if sc.Severity == payload.SeverityHigh || sc.Severity == payload.SeverityMedium {
				parts = append(parts, fmt.Sprintf("%s scenario (%s severity)", sc.Name, strings.ToLower(string(sc.Severity))))
			}
		}
	}
	if len(parts) == 0 {
		return "No explicit risk drivers supplied; monitor overdraft usage and spending volatility."
	}
	return "Key risks: " + strings.Join(parts, "; ") + "."
}

func keyStrengths(r *payload.FeatureReport) string {
	var parts []string
	if r.Explainability != nil {
		for _, f := range head(r.Explainability.ConfidenceFactors, 3) {
			parts = append(parts, fmt.Sprintf("%s (impact %s)", f.Name, num(f.Impact)))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Identity %s, KYC %s, savings behavior %s.",
			metric(r, payload.GroupIdentityFraud, "fayda_verification_status"),
			metric(r, payload.GroupIdentityFraud, "kyc_level"),
			metric(r, payload.GroupDigitalBehavior, "savings_behavior_score"))
	}
	return "Key strengths: " + strings.Join(parts, "; ") + "."
}

// metric renders a feature value for narrative text.
func metric(r *payload.FeatureReport, group, key string) string {
	if v, ok := r.Number(group, key); ok {
		return num(v)
	}
	if s, ok := r.Text(group, key); ok {
		return orNA(s)
	}
	if b, ok := r.Flag(group, key); ok {
		return strconv.FormatBool(b)
	}
	return "n/a"
}

func head(factors []payload.ShapFactor, n int) []payload.ShapFactor {
	if len(factors) > n {
		return factors[:n]
	}
	return factors
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

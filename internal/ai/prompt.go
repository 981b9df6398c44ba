package ai

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nathanbogale/CrediSynth/internal/payload"
)

// Prompt size limits. Upstream payloads may grow without bound; the prompt may not.
const (
	maxFactors   = 5
	maxScenarios = 5
	maxReasons   = 5
	maxValueLen  = 80
)

// narrativeField maps upstream feature keys onto the narrative theme they feed.
type narrativeField struct {
	theme string
	group string
	keys  []string
}

var narrativeFields = []narrativeField{
	{"capacity", payload.GroupAffordability, []string{
		"debt_to_income_ratio", "debt_service_to_income_ratio_dsti", "residual_income_etb",
		"residual_income_ratio", "affordability_buffer_ratio",
	}},
	{"liquidity", payload.GroupAffordability, []string{"cash_buffer_days"}},
	{"liquidity", payload.GroupBankDynamics, []string{
		"salary_inflow_consistency_score", "overdraft_usage_days_90d", "average_monthly_balance_etb",
		"mobile_money_inflow_volatility",
	}},
	{"intent", payload.GroupCoreCredit, []string{
		"delinquency_30d_count_12m", "delinquency_60d_count_12m", "delinquency_90d_count_12m",
		"credit_history_length_months",
	}},
	{"intent", payload.GroupBehavioral, []string{
		"behavioral_consistency_score", "conscientiousness_score", "payment_discipline_score",
	}},
	{"intent", payload.GroupDigitalBehavior, []string{"savings_behavior_score", "digital_behavior_intelligence"}},
	{"identity_fraud", payload.GroupIdentityFraud, []string{
		"fayda_verification_status", "kyc_level", "pep_or_sanctions_hit_flag", "device_risk_score",
	}},
	{"macro", payload.GroupMacro, []string{
		"inflation_rate_recent", "sector_cyclicality_index", "regional_unemployment_rate",
	}},
	{"product", payload.GroupProduct, []string{"product_type", "requested_amount_etb", "requested_tenor_months"}},
	{"product", payload.GroupLoanDetails, []string{"loan_amount", "loan_term_months", "loan_purpose"}},
	{"governance", payload.GroupGovernance, []string{
		"model_version", "final_risk_level", "model_confidence_score", "data_quality_score",
	}},
}

const systemPrompt = "You are CrediSynth, a senior credit risk analyst at the National Bank of Ethiopia. " +
	"Write a concise qualitative assessment for a human reviewer. Reply with one JSON object and nothing else, " +
	"with string keys executive_summary, ability_to_repay, willingness_to_repay, liquidity_assessment, " +
	"identity_and_fraud_assessment, macroeconomic_context, key_risk_synthesis, key_strengths_synthesis, " +
	"nbe_compliance_summary, final_recommendation and recommendation_justification. Every value must be a non-empty string. " +
	"nbe_compliance_summary is either COMPLIANT or NON-COMPLIANT: followed by the reason. " +
	"final_recommendation must be exactly one of: Approve, Approve with Conditions, Manual Review, Decline."

// BuildPrompt renders the bounded conversation for one feature report. Only the mapped
// fields, the leading explainability factors and a capped scenario list are included.
func BuildPrompt(r *payload.FeatureReport, analysisID string) []Message {
	b := &strings.Builder{}
	fmt.Fprintf(b, "analysis_id: %s\n", analysisID)
	fmt.Fprintf(b, "qse_request_id: %s\n", truncate(r.RequestID))
	fmt.Fprintf(b, "customer_id: %s\n", truncate(r.CustomerID))
	if r.ModelVersion != "" {
		fmt.Fprintf(b, "model_version: %s\n", truncate(r.ModelVersion))
	}
	if r.RiskLevel != "" {
		fmt.Fprintf(b, "risk_level: %s\n", truncate(r.RiskLevel))
	}
	if r.CreditScore != nil {
		fmt.Fprintf(b, "credit_score: %s\n", formatFloat(*r.CreditScore))
	}
	if r.DefaultProbability != nil {
		fmt.Fprintf(b, "default_probability: %s\n", formatFloat(*r.DefaultProbability))
	}

	theme := ""
	for _, f := range narrativeFields {
		for _, key := range f.keys {
			v, ok := renderValue(r.Group(f.group)[key])
			if !ok {
				continue
			}
			if f.theme != theme {
				fmt.Fprintf(b, "\n[%s]\n", f.theme)
				theme = f.theme
			}
			fmt.Fprintf(b, "%s: %s\n", key, v)
		}
	}

	if e := r.Explainability; e != nil {
		writeFactors(b, "risk_factors", e.RiskFactors)
		writeFactors(b, "confidence_factors", e.ConfidenceFactors)
	}
	if r.Risk != nil && len(r.Risk.Scenarios) > 0 {
		b.WriteString("\n[scenarios]\n")
		for i, sc := range r.Risk.Scenarios {
			if i == maxScenarios {
				break
			}
			fmt.Fprintf(b, "- %s (%s): %s\n", truncate(sc.Name), sc.Severity, truncate(sc.Description))
		}
	}
	if c := r.Compliance; c != nil {
		fmt.Fprintf(b, "\n[compliance]\nstatus: %s\n", c.Status)
		for i, reason := range c.Reasons {
			if i == maxReasons {
				break
			}
			fmt.Fprintf(b, "- %s\n", truncate(reason))
		}
	}

	return []Message{
		{Role: roleSystem, Content: systemPrompt},
		{Role: roleUser, Content: b.String()},
	}
}

// correctionPrompt asks the model to repair one specific violation.
func correctionPrompt(violation error) Message {
	return Message{
		Role: roleUser,
		Content: fmt.Sprintf("Your previous reply was rejected: %v. "+
			"Reply again with only the corrected JSON object, keeping every required key.", violation),
	}
}

func writeFactors(b *strings.Builder, name string, factors []payload.ShapFactor) {
	if len(factors) == 0 {
		return
	}
	fmt.Fprintf(b, "\n[%s]\n", name)
	for i, f := range factors {
		if i == maxFactors {
			break
		}
		fmt.Fprintf(b, "- %s: %s (%s)\n", truncate(f.Name), formatFloat(f.Impact), f.Direction)
	}
}

// renderValue formats scalar feature values; nested structures are never sent.
func renderValue(v any) (string, bool) {
	switch val := v.(type) {
	case float64:
		return formatFloat(val), true
	case bool:
		return strconv.FormatBool(val), true
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return truncate(val), true
	}
	return "", false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxValueLen {
		return string(r[:maxValueLen]) + "…"
	}
	return s
}

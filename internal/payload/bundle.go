package payload

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RiskLevel is the pre-scored risk grade of an assessment bundle.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel accepts LOW/MEDIUM/HIGH in any case, with an optional " RISK" suffix.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	level := strings.ToUpper(strings.TrimSpace(s))
	level = strings.TrimSpace(strings.TrimSuffix(level, "RISK"))
	switch RiskLevel(level) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(level), true
	}
	return "", false
}

// CreditScoreComponents breaks the ensemble score into its inputs.
type CreditScoreComponents struct {
	Traditional *float64 `json:"traditional_score,omitempty"`
	Alternative *float64 `json:"alternative_score,omitempty"`
	Realtime    *float64 `json:"realtime_score,omitempty"`
	Ensemble    *float64 `json:"ensemble_score,omitempty"`
}

// FraudResult is the fraud detection sub-result.
type FraudResult struct {
	Score               float64  `json:"fraud_score"`
	RiskLevel           string   `json:"fraud_risk_level,omitempty"`
	Signals             []string `json:"fraud_signals"`
	SignalsCount        int      `json:"fraud_signals_count"`
	Recommendation      string   `json:"recommendation,omitempty"`
	BlockTransaction    bool     `json:"block_transaction"`
	RequireManualReview bool     `json:"require_manual_review"`
}

// DefaultPrediction is the survival-model sub-result.
type DefaultPrediction struct {
	Probability         float64  `json:"default_probability"`
	RiskLevel           string   `json:"risk_level,omitempty"`
	TimeToDefaultMonths *float64 `json:"time_to_default_months,omitempty"`
	Confidence          float64  `json:"confidence_score"`
}

// RiskBreakdown splits the overall risk score by dimension.
type RiskBreakdown struct {
	CreditRisk    float64 `json:"credit_risk"`
	CapacityRisk  float64 `json:"capacity_risk"`
	LiquidityRisk float64 `json:"liquidity_risk"`
	CharacterRisk float64 `json:"character_risk"`
}

// RiskAnalysis is the risk sub-result of an assessment bundle.
type RiskAnalysis struct {
	OverallScore    float64        `json:"overall_risk_score"`
	Level           RiskLevel      `json:"risk_level,omitempty"`
	Breakdown       *RiskBreakdown `json:"risk_breakdown,omitempty"`
	CriticalFactors []string       `json:"critical_risk_factors,omitempty"`
	Confidence      float64        `json:"confidence_score"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// ATPWTPAnalysis summarises ability and willingness to pay.
type ATPWTPAnalysis struct {
	Score      float64  `json:"score"`
	Factors    []string `json:"factors,omitempty"`
	Confidence float64  `json:"confidence"`
	Assessment string   `json:"assessment,omitempty"`
}

// ComplianceCheck is the regulator sub-result of an assessment bundle.
type ComplianceCheck struct {
	Compliant           bool               `json:"compliant"`
	OverallCompliance   string             `json:"overall_compliance"`
	OneThirdRule        string             `json:"one_third_rule,omitempty"`
	OneThirdRuleDetails map[string]any     `json:"one_third_rule_details,omitempty"`
	InterestRateRange   map[string]float64 `json:"interest_rate_range,omitempty"`
	LoanAmountLimits    map[string]float64 `json:"loan_amount_limits,omitempty"`
}

// ProductRecommendation is one upstream product offer.
type ProductRecommendation struct {
	Type              string          `json:"product_type"`
	Key               string          `json:"product_key,omitempty"`
	Eligible          bool            `json:"eligible"`
	CreditScore       *float64        `json:"credit_score,omitempty"`
	RiskLevel         string          `json:"risk_level,omitempty"`
	MaxAmount         decimal.Decimal `json:"max_amount"`
	RecommendedAmount decimal.Decimal `json:"recommended_amount"`
	Suitability       float64         `json:"suitability_score"`
	KeyBenefits       []string        `json:"key_benefits,omitempty"`
	Terms             map[string]any  `json:"product_specific_data,omitempty"`
}

// FeatureCompleteness reports how much of the feature vector was observed.
type FeatureCompleteness struct {
	Completeness    map[string]any `json:"completeness,omitempty"`
	MinRequired     *float64       `json:"min_completeness_required,omitempty"`
	MeetsThreshold  *bool          `json:"meets_threshold,omitempty"`
	Missing         []string       `json:"missing_features,omitempty"`
	Defaulted       []string       `json:"default_features,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// AssessmentBundle is the pre-aggregated canonical shape. Every sub-result is optional;
// a nil sub-result means unknown.
type AssessmentBundle struct {
	RequestID     string `json:"request_id"`
	CustomerID    string `json:"customer_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	AssessmentID  string `json:"assessment_id,omitempty"`
	Success       *bool  `json:"success,omitempty"`

	ModelVersion  string `json:"model_version,omitempty"`
	ModelTypeUsed string `json:"model_type_used,omitempty"`
	RiskLevel     string `json:"risk_level,omitempty"`
	RiskCategory  string `json:"risk_category,omitempty"`

	CreditScore      *float64               `json:"credit_score,omitempty"`
	CreditComponents *CreditScoreComponents `json:"credit_score_components,omitempty"`

	FraudScore *float64     `json:"fraud_score,omitempty"`
	Fraud      *FraudResult `json:"fraud_detection_result,omitempty"`

	// Flattened fraud fields some gateways send next to, or instead of, the sub-result.
	FraudRiskLevel        string   `json:"fraud_risk_level,omitempty"`
	FraudSignals          []string `json:"fraud_signals,omitempty"`
	FraudBlockTransaction bool     `json:"fraud_block_transaction,omitempty"`

	DefaultProbability *float64           `json:"default_probability,omitempty"`
	DefaultPrediction  *DefaultPrediction `json:"default_prediction,omitempty"`

	Risk                *RiskAnalysis  `json:"risk_analysis,omitempty"`
	OverallRiskScore    *float64       `json:"overall_risk_score,omitempty"`
	RiskBreakdown       *RiskBreakdown `json:"risk_breakdown,omitempty"`
	RiskRecommendations []string       `json:"risk_recommendations,omitempty"`

	AbilityToPay     *float64        `json:"ability_to_pay_score,omitempty"`
	WillingnessToPay *float64        `json:"willingness_to_pay_score,omitempty"`
	CombinedATPWTP   *float64        `json:"combined_atp_wtp_score,omitempty"`
	ATPWTP           *ATPWTPAnalysis `json:"atp_wtp_analysis,omitempty"`

	Compliance *ComplianceCheck `json:"nbe_compliance_status,omitempty"`

	Products            []ProductRecommendation `json:"product_recommendations,omitempty"`
	FeatureCompleteness *FeatureCompleteness    `json:"feature_completeness,omitempty"`
	TierImprovements    []string                `json:"tier_improvement_recommendations,omitempty"`

	Explainability map[string]any `json:"explainability,omitempty"`
	ReasonCodes    []string       `json:"reason_codes,omitempty"`

	FinalDecision  string `json:"final_decision,omitempty"`
	ApprovalStatus string `json:"approval_status,omitempty"`
	DecisionReason string `json:"decision_reason,omitempty"`

	Extensions map[string]any `json:"-"`
}

// EffectiveFraud merges the flattened fraud fields into the fraud sub-result. A block
// flag set at either level blocks; signals are unioned keeping first occurrence. It
// returns nil when the bundle carries no fraud information at all.
func (b *AssessmentBundle) EffectiveFraud() *FraudResult {
	flat := b.FraudBlockTransaction || b.FraudRiskLevel != "" || len(b.FraudSignals) > 0
	if !flat {
		return b.Fraud
	}
	out := FraudResult{}
	if b.Fraud != nil {
		out = *b.Fraud
		out.Signals = append([]string(nil), b.Fraud.Signals...)
	} else if b.FraudScore != nil {
		out.Score = *b.FraudScore
	}
	out.BlockTransaction = out.BlockTransaction || b.FraudBlockTransaction
	if out.RiskLevel == "" {
		out.RiskLevel = b.FraudRiskLevel
	}
	seen := make(map[string]struct{}, len(out.Signals))
	for _, s := range out.Signals {
		seen[s] = struct{}{}
	}
	for _, s := range b.FraudSignals {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out.Signals = append(out.Signals, s)
	}
	if len(out.Signals) > out.SignalsCount {
		out.SignalsCount = len(out.Signals)
	}
	return &out
}

// EffectiveDefaultProbability prefers the top-level value over the prediction block.
func (b *AssessmentBundle) EffectiveDefaultProbability() (float64, bool) {
	if b.DefaultProbability != nil {
		return *b.DefaultProbability, true
	}
	if b.DefaultPrediction != nil {
		return b.DefaultPrediction.Probability, true
	}
	return 0, false
}

var bundleKeys = keySet(
	"success", "request_id", "customer_id", "correlation_id", "assessment_id",
	"model_version", "model_type_used", "risk_level", "risk_category",
	"credit_score", "credit_score_components", "fraud_score", "fraud_detection_result",
	"fraud_risk_level", "fraud_signals", "fraud_block_transaction",
	"default_probability", "default_prediction", "risk_analysis", "overall_risk_score",
	"risk_breakdown", "risk_recommendations", "ability_to_pay_score", "willingness_to_pay_score",
	"combined_atp_wtp_score", "atp_wtp_analysis", "nbe_compliance_status", "product_recommendations",
	"feature_completeness", "tier_improvement_recommendations", "explainability", "reason_codes",
	"final_decision", "approval_status", "decision_reason",
)

// NormalizeAssessmentBundle maps a raw document onto an AssessmentBundle.
func NormalizeAssessmentBundle(raw Raw) (*AssessmentBundle, error) {
	obj := map[string]any(raw)
	d := &decoder{}
	b := &AssessmentBundle{
		RequestID:           d.requiredStr(obj, "request_id", ""),
		CustomerID:          d.requiredStr(obj, "customer_id", ""),
		CorrelationID:       d.str(obj, "correlation_id", ""),
		AssessmentID:        d.str(obj, "assessment_id", ""),
		Success:             d.boolean(obj, "success", ""),
		ModelVersion:        d.str(obj, "model_version", ""),
		ModelTypeUsed:       d.str(obj, "model_type_used", ""),
		RiskLevel:           d.str(obj, "risk_level", ""),
		RiskCategory:        d.str(obj, "risk_category", ""),
		CreditScore:         d.float(obj, "credit_score", ""),
		FraudScore:          d.float(obj, "fraud_score", ""),
		FraudRiskLevel:      d.str(obj, "fraud_risk_level", ""),
		FraudSignals:        d.stringList(obj, "fraud_signals", ""),
		DefaultProbability:  d.probability(obj, "default_probability", ""),
		OverallRiskScore:    d.float(obj, "overall_risk_score", ""),
		RiskRecommendations: d.stringList(obj, "risk_recommendations", ""),
		AbilityToPay:        d.float(obj, "ability_to_pay_score", ""),
		WillingnessToPay:    d.float(obj, "willingness_to_pay_score", ""),
		CombinedATPWTP:      d.float(obj, "combined_atp_wtp_score", ""),
		TierImprovements:    d.stringList(obj, "tier_improvement_recommendations", ""),
		Explainability:      d.object(obj, "explainability", ""),
		ReasonCodes:         d.stringList(obj, "reason_codes", ""),
		FinalDecision:       d.str(obj, "final_decision", ""),
		ApprovalStatus:      d.str(obj, "approval_status", ""),
		DecisionReason:      d.str(obj, "decision_reason", ""),
	}

	if c := d.object(obj, "credit_score_components", ""); c != nil {
		const p = "credit_score_components"
		b.CreditComponents = &CreditScoreComponents{
			Traditional: d.float(c, "traditional_score", p),
			Alternative: d.float(c, "alternative_score", p),
			Realtime:    d.float(c, "realtime_score", p),
			Ensemble:    d.float(c, "ensemble_score", p),
		}
	}

	b.FraudBlockTransaction = d.flag(obj, "fraud_block_transaction", "")

	if f := d.object(obj, "fraud_detection_result", ""); f != nil {
		const p = "fraud_detection_result"
		b.Fraud = &FraudResult{
			RiskLevel:           d.str(f, "fraud_risk_level", p),
			Signals:             d.stringList(f, "fraud_signals", p),
			Recommendation:      d.str(f, "recommendation", p),
			BlockTransaction:    d.flag(f, "block_transaction", p),
			RequireManualReview: d.flag(f, "require_manual_review", p),
		}
		if score := d.float(f, "fraud_score", p); score != nil {
			b.Fraud.Score = *score
		}
		if n := d.integer(f, "fraud_signals_count", p); n != nil {
			b.Fraud.SignalsCount = *n
		} else {
			b.Fraud.SignalsCount = len(b.Fraud.Signals)
		}
	}

	if dp := d.object(obj, "default_prediction", ""); dp != nil {
		const p = "default_prediction"
		b.DefaultPrediction = &DefaultPrediction{
			RiskLevel:           d.str(dp, "risk_level", p),
			TimeToDefaultMonths: d.float(dp, "time_to_default_months", p),
		}
		if prob := d.probability(dp, "default_probability", p); prob != nil {
			b.DefaultPrediction.Probability = *prob
		} else if d.err == nil {
			d.fail(join(p, "default_probability"), "required")
		}
		if conf := d.float(dp, "confidence_score", p); conf != nil {
			b.DefaultPrediction.Confidence = *conf
		}
	}

	if rb := d.object(obj, "risk_breakdown", ""); rb != nil {
		b.RiskBreakdown = decodeBreakdown(d, rb, "risk_breakdown")
	}

	if ra := d.object(obj, "risk_analysis", ""); ra != nil {
		const p = "risk_analysis"
		b.Risk = &RiskAnalysis{
			CriticalFactors: d.stringList(ra, "critical_risk_factors", p),
			Recommendations: d.stringList(ra, "recommendations", p),
		}
		if v := d.float(ra, "overall_risk_score", p); v != nil {
			b.Risk.OverallScore = *v
		}
		if v := d.float(ra, "confidence_score", p); v != nil {
			b.Risk.Confidence = *v
		}
		if level := d.str(ra, "risk_level", p); level != "" {
			parsed, ok := ParseRiskLevel(level)
			if !ok {
				d.fail(join(p, "risk_level"), fmt.Sprintf("must be LOW, MEDIUM or HIGH; got %q", level))
			}
			b.Risk.Level = parsed
		}
		if rb := d.object(ra, "risk_breakdown", p); rb != nil {
			b.Risk.Breakdown = decodeBreakdown(d, rb, join(p, "risk_breakdown"))
		}
	}

	if a := d.object(obj, "atp_wtp_analysis", ""); a != nil {
		const p = "atp_wtp_analysis"
		b.ATPWTP = &ATPWTPAnalysis{
			Score:      d.requiredFloat(a, "score", p),
			Factors:    d.stringList(a, "factors", p),
			Assessment: d.str(a, "assessment", p),
		}
		if v := d.float(a, "confidence", p); v != nil {
			b.ATPWTP.Confidence = *v
		}
	}

	if c := d.object(obj, "nbe_compliance_status", ""); c != nil {
		b.Compliance = decodeComplianceCheck(d, c, "nbe_compliance_status")
	}

	for i, item := range d.objects(obj, "product_recommendations", "") {
		b.Products = append(b.Products, decodeProduct(d, item, index("product_recommendations", i)))
	}

	if fc := d.object(obj, "feature_completeness", ""); fc != nil {
		const p = "feature_completeness"
		b.FeatureCompleteness = &FeatureCompleteness{
			Completeness:    d.object(fc, "completeness", p),
			MinRequired:     d.float(fc, "min_completeness_required", p),
			MeetsThreshold:  d.boolean(fc, "meets_threshold", p),
			Missing:         d.stringList(fc, "missing_features", p),
			Defaulted:       d.stringList(fc, "default_features", p),
			Recommendations: d.stringList(fc, "recommendations", p),
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	b.Extensions = extensions(obj, bundleKeys)
	return b, nil
}

func decodeBreakdown(d *decoder, obj map[string]any, path string) *RiskBreakdown {
	rb := &RiskBreakdown{}
	fields := []struct {
		key string
		dst *float64
	}{
		{"credit_risk", &rb.CreditRisk},
		{"capacity_risk", &rb.CapacityRisk},
		{"liquidity_risk", &rb.LiquidityRisk},
		{"character_risk", &rb.CharacterRisk},
	}
	for _, f := range fields {
		if v := d.float(obj, f.key, path); v != nil {
			*f.dst = *v
		}
	}
	return rb
}

func decodeComplianceCheck(d *decoder, obj map[string]any, path string) *ComplianceCheck {
	c := &ComplianceCheck{
		OverallCompliance:   strings.ToLower(d.str(obj, "overall_compliance", path)),
		OneThirdRule:        strings.ToLower(d.str(obj, "one_third_rule", path)),
		OneThirdRuleDetails: d.object(obj, "one_third_rule_details", path),
		InterestRateRange:   d.floatMap(obj, "interest_rate_range", path),
		LoanAmountLimits:    d.floatMap(obj, "loan_amount_limits", path),
	}
	switch c.OverallCompliance {
	case "", "pass", "fail":
	default:
		d.fail(join(path, "overall_compliance"), fmt.Sprintf("must be pass or fail; got %q", c.OverallCompliance))
	}
	explicit := d.boolean(obj, "compliant", path)
	switch {
	case explicit != nil:
		c.Compliant = *explicit
		if c.OverallCompliance == "" {
			c.OverallCompliance = "fail"
			if c.Compliant {
				c.OverallCompliance = "pass"
			}
		}
	case c.OverallCompliance != "":
		c.Compliant = c.OverallCompliance == "pass"
	default:
		// Neither marker present: the verdict is unknown, which never counts as failing.
		c.Compliant = true
	}
	return c
}

func decodeProduct(d *decoder, obj map[string]any, path string) ProductRecommendation {
	p := ProductRecommendation{
		Type:        d.requiredStr(obj, "product_type", path),
		Key:         d.str(obj, "product_key", path),
		Eligible:    d.flag(obj, "eligible", path),
		CreditScore: d.float(obj, "credit_score", path),
		RiskLevel:   d.str(obj, "risk_level", path),
		KeyBenefits: d.stringList(obj, "key_benefits", path),
		Terms:       d.object(obj, "product_specific_data", path),
	}
	if v := d.float(obj, "max_amount", path); v != nil {
		p.MaxAmount = decimal.NewFromFloat(*v)
	}
	if v := d.float(obj, "recommended_amount", path); v != nil {
		p.RecommendedAmount = decimal.NewFromFloat(*v)
	}
	if v := d.float(obj, "suitability_score", path); v != nil {
		p.Suitability = *v
	}
	return p
}

package payload

import (
	"fmt"
	"strings"
)

// Feature groups carried by the feature report. Their contents are free-form.
const (
	GroupCoreCredit      = "core_credit_performance"
	GroupAffordability   = "affordability_and_obligations"
	GroupBankDynamics    = "bank_and_mobile_money_dynamics"
	GroupIdentityFraud   = "identity_and_fraud_intelligence"
	GroupStability       = "personal_and_professional_stability"
	GroupMacro           = "contextual_and_macroeconomic_factors"
	GroupProduct         = "product_specific_intelligence"
	GroupBusiness        = "business_and_receivables_finance"
	GroupBehavioral      = "behavioral_intelligence"
	GroupGovernance      = "model_governance_and_monitoring"
	GroupLoanDetails     = "loan_details"
	GroupAdditional      = "additional_context"
	GroupDigitalBehavior = "digital_behavioral_intelligence"
)

// FeatureGroups lists every recognised feature group in a stable order.
var FeatureGroups = []string{
	GroupCoreCredit,
	GroupAffordability,
	GroupBankDynamics,
	GroupIdentityFraud,
	GroupStability,
	GroupMacro,
	GroupProduct,
	GroupBusiness,
	GroupBehavioral,
	GroupGovernance,
	GroupLoanDetails,
	GroupAdditional,
	GroupDigitalBehavior,
}

// Direction is the declared effect of an explainability factor.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// Severity grades a risk scenario.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ComplianceStatus is the regulator verdict attached to a feature report.
type ComplianceStatus string

const (
	Compliant    ComplianceStatus = "COMPLIANT"
	NonCompliant ComplianceStatus = "NON_COMPLIANT"
)

// ShapFactor is one explainability contribution.
type ShapFactor struct {
	Name      string    `json:"name"`
	Impact    float64   `json:"impact"`
	Direction Direction `json:"direction"`
}

// Explainability holds the ordered factor lists.
type Explainability struct {
	RiskFactors           []ShapFactor `json:"risk_factors"`
	ConfidenceFactors     []ShapFactor `json:"confidence_factors"`
	GlobalImportanceOrder []string     `json:"global_importance_order,omitempty"`
}

// RiskScenario is a named stress scenario.
type RiskScenario struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// RiskBlock groups scenarios with an optional default probability.
type RiskBlock struct {
	Scenarios          []RiskScenario `json:"scenarios"`
	DefaultProbability *float64       `json:"default_probability,omitempty"`
}

// Compliance is the feature report compliance block.
type Compliance struct {
	Status  ComplianceStatus `json:"status"`
	Reasons []string         `json:"reasons"`
}

// Insights carries free-text notes from the scoring engine.
type Insights struct {
	Notes string   `json:"notes,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// FeatureReport is the explainability-rich canonical shape.
type FeatureReport struct {
	RequestID     string `json:"request_id"`
	CustomerID    string `json:"customer_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	ModelVersion  string `json:"model_version,omitempty"`

	CreditScore        *float64 `json:"credit_score,omitempty"`
	RiskLevel          string   `json:"risk_level,omitempty"`
	DefaultProbability *float64 `json:"default_probability,omitempty"`
	FeaturesCount      *int     `json:"features_count,omitempty"`

	Features        map[string]map[string]any `json:"features,omitempty"`
	FeatureAnalysis map[string]any            `json:"feature_analysis,omitempty"`
	Explainability  *Explainability           `json:"explainability,omitempty"`
	Risk            *RiskBlock                `json:"risk_analysis,omitempty"`
	Compliance      *Compliance               `json:"nbe_compliance_status,omitempty"`
	Insights        *Insights                 `json:"additional_insights,omitempty"`

	// Extensions keeps unrecognised top-level fields; nothing reads them.
	Extensions map[string]any `json:"-"`
}

// Number returns a numeric feature value.
func (r *FeatureReport) Number(group, key string) (float64, bool) {
	v, ok := r.value(group, key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Text returns a string feature value.
func (r *FeatureReport) Text(group, key string) (string, bool) {
	v, ok := r.value(group, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Flag returns a boolean feature value.
func (r *FeatureReport) Flag(group, key string) (bool, bool) {
	v, ok := r.value(group, key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Group returns the raw contents of a feature group.
func (r *FeatureReport) Group(name string) map[string]any {
	if r == nil {
		return nil
	}
	return r.Features[name]
}

func (r *FeatureReport) value(group, key string) (any, bool) {
	g := r.Group(group)
	if g == nil {
		return nil, false
	}
	v, ok := g[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

var featureKeys = keySet(append([]string{
	"request_id", "customer_id", "correlation_id", "model_version",
	"credit_score", "risk_level", "default_probability", "features_count",
	"feature_analysis", "explainability", "risk_analysis", "nbe_compliance_status",
	"additional_insights",
}, FeatureGroups...)...)

// NormalizeFeatureReport maps a raw document onto a FeatureReport.
func NormalizeFeatureReport(raw Raw) (*FeatureReport, []Warning, error) {
	obj := map[string]any(raw)
	d := &decoder{}
	r := &FeatureReport{
		RequestID:          d.requiredStr(obj, "request_id", ""),
		CustomerID:         d.requiredStr(obj, "customer_id", ""),
		CorrelationID:      d.str(obj, "correlation_id", ""),
		ModelVersion:       d.str(obj, "model_version", ""),
		CreditScore:        d.float(obj, "credit_score", ""),
		RiskLevel:          d.str(obj, "risk_level", ""),
		DefaultProbability: d.probability(obj, "default_probability", ""),
		FeaturesCount:      d.integer(obj, "features_count", ""),
		FeatureAnalysis:    d.object(obj, "feature_analysis", ""),
	}

	for _, group := range FeatureGroups {
		if g := d.object(obj, group, ""); g != nil {
			if r.Features == nil {
				r.Features = make(map[string]map[string]any)
			}
			r.Features[group] = g
		}
	}

	var warnings []Warning
	if expl := d.object(obj, "explainability", ""); expl != nil {
		r.Explainability = &Explainability{
			GlobalImportanceOrder: d.stringList(expl, "global_importance_order", "explainability"),
		}
		var w []Warning
		r.Explainability.RiskFactors, w = decodeFactors(d, expl, "risk_factors", "explainability")
		warnings = append(warnings, w...)
		r.Explainability.ConfidenceFactors, w = decodeFactors(d, expl, "confidence_factors", "explainability")
		warnings = append(warnings, w...)
	}

	if risk := d.object(obj, "risk_analysis", ""); risk != nil {
		r.Risk = &RiskBlock{DefaultProbability: d.probability(risk, "default_probability", "risk_analysis")}
		for i, sc := range d.objects(risk, "scenarios", "risk_analysis") {
			path := index("risk_analysis.scenarios", i)
			scenario := RiskScenario{
				Name:        d.requiredStr(sc, "name", path),
				Description: d.str(sc, "description", path),
				Severity:    Severity(d.requiredStr(sc, "severity", path)),
			}
			if d.err == nil && !validSeverity(scenario.Severity) {
				d.fail(join(path, "severity"), fmt.Sprintf("must be one of Low, Medium, High; got %q", scenario.Severity))
			}
			r.Risk.Scenarios = append(r.Risk.Scenarios, scenario)
		}
	}

	if comp := d.object(obj, "nbe_compliance_status", ""); comp != nil {
		status := ComplianceStatus(strings.ToUpper(d.requiredStr(comp, "status", "nbe_compliance_status")))
		if d.err == nil && status != Compliant && status != NonCompliant {
			d.fail("nbe_compliance_status.status", fmt.Sprintf("must be COMPLIANT or NON_COMPLIANT; got %q", status))
		}
		r.Compliance = &Compliance{
			Status:  status,
			Reasons: d.stringList(comp, "reasons", "nbe_compliance_status"),
		}
	}

	if ins := d.object(obj, "additional_insights", ""); ins != nil {
		r.Insights = &Insights{
			Notes: d.str(ins, "notes", "additional_insights"),
			Tags:  d.stringList(ins, "tags", "additional_insights"),
		}
	}

	if d.err != nil {
		return nil, nil, d.err
	}
	r.Extensions = extensions(obj, featureKeys)
	return r, warnings, nil
}

func decodeFactors(d *decoder, obj map[string]any, key, path string) ([]ShapFactor, []Warning) {
	var factors []ShapFactor
	var warnings []Warning
	for i, f := range d.objects(obj, key, path) {
		p := index(join(path, key), i)
		factor := ShapFactor{
			Name:      d.requiredStr(f, "name", p),
			Impact:    d.requiredFloat(f, "impact", p),
			Direction: Direction(strings.ToLower(d.requiredStr(f, "direction", p))),
		}
		if d.err != nil {
			return nil, nil
		}
		switch factor.Direction {
		case DirectionPositive, DirectionNegative:
		default:
			d.fail(join(p, "direction"), fmt.Sprintf("must be positive or negative; got %q", factor.Direction))
			return nil, nil
		}
		if (factor.Impact > 0 && factor.Direction == DirectionNegative) || (factor.Impact < 0 && factor.Direction == DirectionPositive) {
			warnings = append(warnings, Warning{
				Path:    p,
				Message: fmt.Sprintf("direction %s disagrees with impact %g", factor.Direction, factor.Impact),
			})
		}
		factors = append(factors, factor)
	}
	return factors, warnings
}

func validSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

package scoring

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

// Profile is the set of figures derived from a feature report for the response envelope.
type Profile struct {
	RiskLevel          string
	RiskCategory       string
	DefaultProbability *float64
	CreditScore        *int
	Importance         []report.FeatureImportance
	Dimensions         report.RiskDimensions
}

// BuildProfile derives the envelope figures of r without any external call.
func BuildProfile(r *payload.FeatureReport) Profile {
	level := r.RiskLevel
	if level == "" {
		if v, ok := r.Text(payload.GroupGovernance, "final_risk_level"); ok {
			level = v
		}
	}
	p := defaultProbability(r, level)
	importance := FeatureImportance(r)
	return Profile{
		RiskLevel:          level,
		RiskCategory:       RiskCategory(level, p),
		DefaultProbability: p,
		CreditScore:        CreditScore(r.CreditScore, p),
		Importance:         importance,
		Dimensions:         Dimensions(r, importance),
	}
}

// defaultProbability walks the fallback chain: top level, risk block, peer default
// rate, then an estimate from the risk level.
func defaultProbability(r *payload.FeatureReport, level string) *float64 {
	if r.DefaultProbability != nil {
		return r.DefaultProbability
	}
	if r.Risk != nil && r.Risk.DefaultProbability != nil {
		return r.Risk.DefaultProbability
	}
	if v, ok := r.Number(payload.GroupDigitalBehavior, "anonymized_peer_default_rate"); ok {
		return &v
	}
	parsed, ok := payload.ParseRiskLevel(level)
	if !ok {
		return nil
	}
	var v float64
	switch parsed {
	case payload.RiskLow:
		v = 0.08
	case payload.RiskMedium:
		v = 0.18
	default:
		v = 0.35
	}
	return &v
}

// RiskCategory names the band of a risk level, or of the default probability when
// the level is unusable.
func RiskCategory(level string, p *float64) string {
	if parsed, ok := payload.ParseRiskLevel(level); ok {
		s := strings.ToLower(string(parsed))
		return strings.ToUpper(s[:1]) + s[1:]
	}
	if p == nil {
		return ""
	}
	switch {
	case *p < 0.1:
		return "Low"
	case *p < 0.25:
		return "Medium"
	default:
		return "High"
	}
}

// CreditScore clamps a supplied score into 300..850 or estimates one from the
// default probability.
func CreditScore(score, p *float64) *int {
	var v float64
	switch {
	case score != nil:
		v = *score
	case p != nil:
		v = 850 - *p*550
	default:
		return nil
	}
	n := int(math.Round(v))
	n = max(300, min(850, n))
	return &n
}

// ApprovalProbability returns the base approval likelihood for rec.
func ApprovalProbability(rec report.Recommendation) *float64 {
	p, ok := rec.ApprovalProbability()
	if !ok {
		return nil
	}
	return &p
}

// FeatureImportance returns the top five drivers, from upstream global importance
// when supplied, otherwise from a fixed set of affordability and behavior signals.
func FeatureImportance(r *payload.FeatureReport) []report.FeatureImportance {
	var entries []report.FeatureImportance
	if items, ok := r.FeatureAnalysis["global_importance"].([]any); ok {
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["feature"].(string)
			imp, _ := m["importance"].(float64)
			impact := "positive"
			if imp < 0 {
				impact = "negative"
			}
			entries = append(entries, report.FeatureImportance{Feature: name, Importance: imp, Impact: impact})
		}
	}
	if len(entries) == 0 {
		entries = heuristicDrivers(r)
	}
	slices.SortStableFunc(entries, func(a, b report.FeatureImportance) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	if len(entries) > 5 {
		entries = entries[:5]
	}
	return entries
}

func heuristicDrivers(r *payload.FeatureReport) []report.FeatureImportance {
	var out []report.FeatureImportance
	add := func(group, key string, scale func(float64) (float64, string)) {
		v, ok := r.Number(group, key)
		if !ok {
			return
		}
		imp, impact := scale(v)
		out = append(out, report.FeatureImportance{Feature: key, Importance: imp, Impact: impact})
	}
	fixed := func(div float64, impact string) func(float64) (float64, string) {
		return func(v float64) (float64, string) { return v / div, impact }
	}

	add(payload.GroupAffordability, "debt_to_income_ratio", fixed(1, "negative"))
	add(payload.GroupAffordability, "residual_income_ratio", func(v float64) (float64, string) {
		if v < 0.5 {
			return v, "positive"
		}
		return v, "negative"
	})
	add(payload.GroupAffordability, "cash_buffer_days", fixed(90, "positive"))
	add(payload.GroupCoreCredit, "delinquency_30d_count_12m", fixed(10, "negative"))
	add(payload.GroupBehavioral, "behavioral_consistency_score", fixed(100, "positive"))
	add(payload.GroupBehavioral, "conscientiousness_score", fixed(100, "positive"))
	add(payload.GroupDigitalBehavior, "savings_behavior_score", fixed(100, "positive"))
	return out
}

// Dimensions computes normalised capacity, liquidity, credit and character risk.
func Dimensions(r *payload.FeatureReport, importance []report.FeatureImportance) report.RiskDimensions {
	var d report.RiskDimensions

	buffer, okBuf := r.Number(payload.GroupAffordability, "affordability_buffer_ratio")
	residual, okRes := r.Number(payload.GroupAffordability, "residual_income_ratio")
	if okBuf && okRes {
		v := clamp01((1-buffer)*0.6 + (1-residual)*0.4)
		d.Capacity = &v
	}

	days, okDays := r.Number(payload.GroupAffordability, "cash_buffer_days")
	overdraft, okOver := r.Number(payload.GroupBankDynamics, "overdraft_usage_days_90d")
	if okDays || okOver {
		var v float64
		if okDays {
			v = clamp01(1 - math.Min(days/90, 1))
		}
		if okOver {
			v = v*0.5 + clamp01(overdraft/90)*0.5
		}
		d.Liquidity = &v
	}

	if dti, ok := r.Number(payload.GroupAffordability, "debt_to_income_ratio"); ok {
		del30, _ := r.Number(payload.GroupCoreCredit, "delinquency_30d_count_12m")
		del60, _ := r.Number(payload.GroupCoreCredit, "delinquency_60d_count_12m")
		del90, _ := r.Number(payload.GroupCoreCredit, "delinquency_90d_count_12m")
		delinquency := clamp01((del30 + 2*del60 + 3*del90) / 10)
		v := round4(math.Min(1, clamp01(dti/0.6)*0.7+delinquency*0.3))
		d.Credit = &v
	}

	character := round4(clamp01(1 - characterBaseline(r, importance)/100))
	d.Character = &character
	return d
}

// characterBaseline averages behavioral signals on a 0..100 scale. Without signals it
// falls back to weighted importance entries, then to a neutral 55.
func characterBaseline(r *payload.FeatureReport, importance []report.FeatureImportance) float64 {
	signals := []struct{ group, key string }{
		{payload.GroupBehavioral, "behavioral_consistency_score"},
		{payload.GroupBehavioral, "conscientiousness_score"},
		{payload.GroupDigitalBehavior, "digital_behavior_intelligence"},
		{payload.GroupDigitalBehavior, "savings_behavior_score"},
		{payload.GroupBehavioral, "payment_discipline_score"},
	}
	var sum float64
	var n int
	for _, s := range signals {
		if v, ok := r.Number(s.group, s.key); ok {
			sum += math.Max(0, math.Min(100, v))
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}

	weights := map[string]float64{
		"conscientiousness_score":       1.0,
		"behavioral_consistency_score":  1.0,
		"digital_behavior_intelligence": 0.8,
		"savings_behavior_score":        0.7,
		"payment_discipline_score":      1.0,
	}
	for _, e := range importance {
		w, ok := weights[e.Feature]
		if !ok {
			continue
		}
		sum += math.Max(0, math.Min(100, 50+50*e.Importance)) * w
		n++
	}
	if n > 0 {
		return sum / float64(n)
	}
	return 55
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

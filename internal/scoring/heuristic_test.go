package scoring

import (
	"strings"
	"testing"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

func mustFeatureReport(t *testing.T, body string) *payload.FeatureReport {
	t.Helper()
	p, err := payload.Parse([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Shape != payload.ShapeFeatureReport {
		t.Fatalf("expected feature report, got %s", p.Shape)
	}
	return p.Feature
}

func TestHeuristicDecisions(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected report.Recommendation
	}{
		{
			"non compliant declines",
			`{"request_id":"r1","customer_id":"c1","model_version":"v1","nbe_compliance_status":{"status":"NON_COMPLIANT","reasons":["sanctions hit"]}}`,
			report.Decline,
		},
		{
			"non compliant wins over strong capacity",
			`{"request_id":"r1","customer_id":"c1","affordability_and_obligations":{"debt_to_income_ratio":0.1,"residual_income_etb":9000},"identity_and_fraud_intelligence":{"fayda_verification_status":"Verified"},"nbe_compliance_status":{"status":"NON_COMPLIANT","reasons":["kyc expired"]}}`,
			report.Decline,
		},
		{
			"capacity rule approves with conditions",
			`{"request_id":"r1","customer_id":"c1","affordability_and_obligations":{"debt_to_income_ratio":0.28,"residual_income_etb":8200},"identity_and_fraud_intelligence":{"fayda_verification_status":"Verified"}}`,
			report.ApproveWithConditions,
		},
		{
			"dti at threshold needs review",
			`{"request_id":"r1","customer_id":"c1","affordability_and_obligations":{"debt_to_income_ratio":0.35,"residual_income_etb":8200},"identity_and_fraud_intelligence":{"fayda_verification_status":"Verified"}}`,
			report.ManualReview,
		},
		{
			"unverified identity needs review",
			`{"request_id":"r1","customer_id":"c1","affordability_and_obligations":{"debt_to_income_ratio":0.2,"residual_income_etb":8200},"identity_and_fraud_intelligence":{"fayda_verification_status":"Pending"}}`,
			report.ManualReview,
		},
		{
			"missing metrics need review",
			`{"request_id":"r1","customer_id":"c1","explainability":{}}`,
			report.ManualReview,
		},
	}

	h := NewHeuristic(DefaultThresholds())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := h.Synthesize(mustFeatureReport(t, tc.body), "a1")
			if out.FinalRecommendation != tc.expected {
				t.Fatalf("expected %s got %s", tc.expected, out.FinalRecommendation)
			}
			if err := out.Validate(); err != nil {
				t.Fatalf("heuristic report invalid: %v", err)
			}
		})
	}
}

func TestHeuristicDeclineCitesReasons(t *testing.T) {
	r := mustFeatureReport(t, `{"request_id":"r1","customer_id":"c1","model_version":"v1","nbe_compliance_status":{"status":"NON_COMPLIANT","reasons":["sanctions hit"]}}`)
	out := NewHeuristic(DefaultThresholds()).Synthesize(r, "a1")
	if !strings.Contains(out.RecommendationJustification, "sanctions hit") {
		t.Fatalf("justification %q does not cite the compliance reason", out.RecommendationJustification)
	}
	if out.ComplianceSummary != "NON-COMPLIANT: sanctions hit" {
		t.Fatalf("unexpected compliance summary %q", out.ComplianceSummary)
	}
	if out.AnalysisID != "a1" || out.RequestID != "r1" || out.CustomerID != "c1" {
		t.Fatalf("identifiers not carried: %+v", out)
	}
}

func TestHeuristicIsDeterministic(t *testing.T) {
	body := `{"request_id":"r1","customer_id":"c1","risk_level":"Low","default_probability":0.07,
		"affordability_and_obligations":{"debt_to_income_ratio":0.28,"residual_income_etb":8200,"cash_buffer_days":40},
		"identity_and_fraud_intelligence":{"fayda_verification_status":"Verified","kyc_level":"Enhanced","pep_or_sanctions_hit_flag":false},
		"explainability":{"risk_factors":[{"name":"overdraft","impact":0.2,"direction":"positive"}],"confidence_factors":[{"name":"salary","impact":-0.3,"direction":"negative"}]},
		"risk_analysis":{"scenarios":[{"name":"Inflation","description":"CPI","severity":"High"}]}}`
	h := NewHeuristic(DefaultThresholds())
	first := h.Synthesize(mustFeatureReport(t, body), "a1")
	for i := 0; i < 5; i++ {
		again := h.Synthesize(mustFeatureReport(t, body), "a1")
		if again != first {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestComplianceSummaryDerived(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			"all signals clear",
			`{"request_id":"r","customer_id":"c","affordability_and_obligations":{"debt_service_to_income_ratio_dsti":0.3},"identity_and_fraud_intelligence":{"fayda_verification_status":"Verified","kyc_level":"Standard","pep_or_sanctions_hit_flag":false}}`,
			"COMPLIANT",
		},
		{
			"missing dsti counts against",
			`{"request_id":"r","customer_id":"c","identity_and_fraud_intelligence":{"fayda_verification_status":"Verified","kyc_level":"Standard","pep_or_sanctions_hit_flag":false}}`,
			"NON-COMPLIANT: DSTI 1 above 0.35",
		},
		{
			"explicit block wins",
			`{"request_id":"r","customer_id":"c","nbe_compliance_status":{"status":"COMPLIANT","reasons":[]},"identity_and_fraud_intelligence":{"pep_or_sanctions_hit_flag":true}}`,
			"COMPLIANT",
		},
	}
	h := NewHeuristic(DefaultThresholds())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := h.ComplianceSummary(mustFeatureReport(t, tc.body))
			if got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}

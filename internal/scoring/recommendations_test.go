package scoring

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nathanbogale/CrediSynth/internal/payload"
)

func TestRecommendOrder(t *testing.T) {
	b := mustBundle(t, `{
		"success": true, "request_id": "r", "customer_id": "c",
		"risk_recommendations": ["Verify employer"],
		"risk_analysis": {"risk_level": "MEDIUM", "recommendations": ["Verify employer", "Shorten tenor"]},
		"fraud_detection_result": {"fraud_signals": ["device_mismatch"]},
		"feature_completeness": {"recommendations": ["Collect tax id"], "meets_threshold": false, "missing_features": ["tax_id", "employer"]},
		"tier_improvement_recommendations": ["Grow savings for next tier"],
		"product_recommendations": [
			{"product_type": "Micro Loan", "eligible": true, "recommended_amount": 12000, "suitability_score": 70},
			{"product_type": "Salary Advance", "eligible": true, "recommended_amount": 1250000, "suitability_score": 82}
		],
		"ability_to_pay_score": 45,
		"willingness_to_pay_score": 60,
		"default_probability": 0.2,
		"nbe_compliance_status": {"overall_compliance": "pass", "one_third_rule": "fail"}
	}`)

	expected := []string{
		"Verify employer",
		"Shorten tenor",
		"Investigate fraud signal: device_mismatch",
		"Collect tax id",
		"Collect missing features: tax_id, employer",
		"Grow savings for next tier",
		"Recommended product: Salary Advance (Amount: 1,250,000 ETB, Suitability: 82%)",
		"Ability to pay score is low (45) - consider lower loan amount or longer term",
		"Moderate default probability - enhanced monitoring recommended",
		"One-third rule compliance issue - adjust loan amount or terms",
	}
	got := Recommend(b)
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected recommendations:\n got %q\nwant %q", got, expected)
	}
}

func TestRecommendEmptyCategoriesContributeNothing(t *testing.T) {
	got := Recommend(mustBundle(t, `{"success":true,"request_id":"r","customer_id":"c"}`))
	if len(got) != 0 {
		t.Fatalf("expected no recommendations, got %q", got)
	}
}

func TestRecommendFraudAdvisories(t *testing.T) {
	tests := []struct {
		name     string
		fraud    string
		expected []string
	}{
		{"manual review", `{"require_manual_review":true,"fraud_signals_count":2}`, []string{"Manual review required due to fraud risk indicators"}},
		{"count only", `{"fraud_signals_count":2}`, []string{"Monitor 2 fraud signal(s)"}},
		{"no signals", `{"fraud_score":0.01}`, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Recommend(mustBundle(t, `{"request_id":"r","customer_id":"c","fraud_detection_result":`+tc.fraud+`}`))
			if !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}

func TestRecommendTopLevelFraudSignals(t *testing.T) {
	b := mustBundle(t, `{"success":true,"request_id":"r","customer_id":"c",
		"fraud_block_transaction":true,"fraud_signals":["device farm","velocity"],
		"fraud_detection_result":{"fraud_signals":["velocity"]}}`)

	expected := []string{
		"Investigate fraud signal: velocity",
		"Investigate fraud signal: device farm",
	}
	got := Recommend(b)
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %q got %q", expected, got)
	}
	rec := MapDecision(b)
	if rec.Decisions.Fraud == nil || !rec.Decisions.Fraud.BlockTransaction {
		t.Fatalf("expected fraud decision to carry the block flag, got %+v", rec.Decisions.Fraud)
	}
}

func TestBestProductTieBreak(t *testing.T) {
	products := []payload.ProductRecommendation{
		{Type: "A", Eligible: true, Suitability: 80, RecommendedAmount: decimal.NewFromInt(50000)},
		{Type: "B", Eligible: false, Suitability: 99, RecommendedAmount: decimal.NewFromInt(100)},
		{Type: "C", Eligible: true, Suitability: 80, RecommendedAmount: decimal.NewFromInt(20000)},
		{Type: "D", Eligible: true, Suitability: 80, RecommendedAmount: decimal.NewFromInt(20000)},
	}
	best, ok := BestProduct(products)
	if !ok || best.Type != "C" {
		t.Fatalf("expected C got %+v", best)
	}

	if _, ok := BestProduct(products[1:2]); ok {
		t.Fatalf("ineligible products must not be suggested")
	}
}

func TestGroupThousands(t *testing.T) {
	tests := map[string]string{"0": "0", "999": "999", "1000": "1,000", "1234567.6": "1,234,568", "-45000": "-45,000"}
	for in, expected := range tests {
		if got := groupThousands(decimal.RequireFromString(in)); got != expected {
			t.Fatalf("%s: expected %s got %s", in, expected, got)
		}
	}
}

package scoring

import (
	"testing"

	"github.com/nathanbogale/CrediSynth/internal/payload"
	"github.com/nathanbogale/CrediSynth/internal/report"
)

func mustBundle(t *testing.T, body string) *payload.AssessmentBundle {
	t.Helper()
	p, err := payload.Parse([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Shape != payload.ShapeAssessmentBundle {
		t.Fatalf("expected assessment bundle, got %s", p.Shape)
	}
	return p.Bundle
}

func TestMapDecisionPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		decision report.Decision
		status   string
	}{
		{
			"fraud block beats low risk",
			`{"success":true,"request_id":"r","customer_id":"c","fraud_detection_result":{"block_transaction":true},"risk_analysis":{"risk_level":"LOW"}}`,
			report.DecisionDecline, report.StatusDeclined,
		},
		{
			"top-level fraud block beats low risk",
			`{"success":true,"request_id":"r","customer_id":"c","fraud_block_transaction":true,"fraud_signals":["device farm"],"risk_analysis":{"risk_level":"LOW"}}`,
			report.DecisionDecline, report.StatusDeclined,
		},
		{
			"top-level fraud block with clear sub-result",
			`{"success":true,"request_id":"r","customer_id":"c","fraud_block_transaction":true,"fraud_detection_result":{"block_transaction":false},"final_decision":"approve"}`,
			report.DecisionDecline, report.StatusDeclined,
		},
		{
			"fraud block beats upstream approval",
			`{"success":true,"request_id":"r","customer_id":"c","fraud_detection_result":{"block_transaction":true,"require_manual_review":true},"nbe_compliance_status":{"overall_compliance":"pass"},"final_decision":"approve"}`,
			report.DecisionDecline, report.StatusDeclined,
		},
		{
			"fraud review beats compliance failure",
			`{"success":true,"request_id":"r","customer_id":"c","fraud_detection_result":{"require_manual_review":true},"nbe_compliance_status":{"overall_compliance":"fail"}}`,
			report.DecisionRequiresReview, report.StatusPendingManualReview,
		},
		{
			"compliance failure declines",
			`{"success":true,"request_id":"r","customer_id":"c","nbe_compliance_status":{"compliant":false},"risk_analysis":{"risk_level":"LOW"}}`,
			report.DecisionDecline, report.StatusDeclined,
		},
		{
			"medium risk compliant",
			`{"success":true,"request_id":"r","customer_id":"c","fraud_detection_result":{"block_transaction":false},"nbe_compliance_status":{"overall_compliance":"pass"},"risk_analysis":{"risk_level":"MEDIUM"}}`,
			report.DecisionApproveWithConditions, report.StatusApprovedWithConditions,
		},
		{
			"low risk approves",
			`{"success":true,"request_id":"r","customer_id":"c","risk_analysis":{"risk_level":"Low Risk"}}`,
			report.DecisionApprove, report.StatusApproved,
		},
		{
			"high risk needs review",
			`{"success":true,"request_id":"r","customer_id":"c","risk_analysis":{"risk_level":"HIGH"}}`,
			report.DecisionRequiresReview, report.StatusRequiresReview,
		},
		{
			"upstream decision overrides risk level",
			`{"success":true,"request_id":"r","customer_id":"c","risk_analysis":{"risk_level":"HIGH"},"final_decision":"approve","approval_status":"approved"}`,
			report.DecisionApprove, report.StatusApproved,
		},
		{
			"upstream decision without status",
			`{"success":true,"request_id":"r","customer_id":"c","final_decision":"decline"}`,
			"decline", "decline",
		},
		{
			"absent sub-results are unknown",
			`{"success":true,"request_id":"r","customer_id":"c"}`,
			report.DecisionRequiresReview, report.StatusRequiresReview,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := MapDecision(mustBundle(t, tc.body))
			if rec.Decisions.FinalDecision != tc.decision {
				t.Fatalf("expected decision %s got %s", tc.decision, rec.Decisions.FinalDecision)
			}
			if rec.Decisions.ApprovalStatus != tc.status {
				t.Fatalf("expected status %s got %s", tc.status, rec.Decisions.ApprovalStatus)
			}
		})
	}
}

func TestMapDecisionPerDomain(t *testing.T) {
	rec := MapDecision(mustBundle(t, `{"success":true,"request_id":"r","customer_id":"c",
		"fraud_detection_result":{"require_manual_review":false,"recommendation":"proceed"},
		"risk_analysis":{"risk_level":"MEDIUM","overall_risk_score":41},
		"nbe_compliance_status":{"overall_compliance":"pass","one_third_rule":"pass"}}`))

	d := rec.Decisions
	if d.Fraud == nil || d.Fraud.Recommendation != "proceed" {
		t.Fatalf("fraud decision not populated: %+v", d.Fraud)
	}
	if d.Risk == nil || d.Risk.Decision != report.DecisionApproveWithConditions || d.Risk.OverallRiskScore != 41 {
		t.Fatalf("risk decision not populated: %+v", d.Risk)
	}
	if d.Compliance == nil || !d.Compliance.Compliant {
		t.Fatalf("compliance decision not populated: %+v", d.Compliance)
	}
	if d.DecisionReason != "Risk level MEDIUM" {
		t.Fatalf("unexpected reason %q", d.DecisionReason)
	}
}

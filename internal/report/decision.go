package report

// Decision is the machine-readable outcome of the assessment path.
type Decision string

const (
	DecisionApprove               Decision = "approve"
	DecisionApproveWithConditions Decision = "approve_with_conditions"
	DecisionRequiresReview        Decision = "requires_review"
	DecisionDecline               Decision = "decline"
)

// Approval statuses paired with decisions.
const (
	StatusApproved               = "approved"
	StatusApprovedWithConditions = "approved_with_conditions"
	StatusRequiresReview         = "requires_review"
	StatusPendingManualReview    = "pending_manual_review"
	StatusDeclined               = "declined"
)

// FraudDecision echoes the fraud sub-result flags that drove the outcome.
type FraudDecision struct {
	BlockTransaction    bool   `json:"block_transaction"`
	RequireManualReview bool   `json:"require_manual_review"`
	Recommendation      string `json:"recommendation,omitempty"`
}

// RiskDecision is the risk-level outcome before precedence is applied.
type RiskDecision struct {
	RiskLevel        string   `json:"risk_level"`
	OverallRiskScore float64  `json:"overall_risk_score"`
	Decision         Decision `json:"decision"`
}

// ComplianceDecision is the regulator outcome.
type ComplianceDecision struct {
	Compliant         bool   `json:"compliant"`
	OverallCompliance string `json:"overall_compliance,omitempty"`
	OneThirdRule      string `json:"one_third_rule,omitempty"`
}

// Decisions carries the final and per-domain decisions.
type Decisions struct {
	FinalDecision  Decision            `json:"final_decision"`
	ApprovalStatus string              `json:"approval_status"`
	DecisionReason string              `json:"decision_reason"`
	Fraud          *FraudDecision      `json:"fraud_decision,omitempty"`
	Risk           *RiskDecision       `json:"risk_decision,omitempty"`
	Compliance     *ComplianceDecision `json:"compliance_decision,omitempty"`
}

// DecisionRecord is the mapper output for one assessment bundle.
type DecisionRecord struct {
	Decisions       Decisions
	Recommendations []string
}

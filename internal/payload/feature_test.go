package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeatureReport = `{
  "request_id": "req-1",
  "customer_id": "cust-1",
  "model_version": "qse-2.3",
  "risk_level": "Low",
  "default_probability": 0.07,
  "features_count": 42,
  "affordability_and_obligations": {"debt_to_income_ratio": 0.28, "residual_income_etb": 8200},
  "identity_and_fraud_intelligence": {"fayda_verification_status": "Verified", "kyc_level": "Enhanced"},
  "explainability": {
    "risk_factors": [{"name": "overdraft_usage", "impact": 0.12, "direction": "positive"}],
    "confidence_factors": [{"name": "salary_consistency", "impact": -0.3, "direction": "positive"}]
  },
  "risk_analysis": {
    "scenarios": [{"name": "Inflation shock", "description": "CPI +10%", "severity": "Medium"}],
    "default_probability": 0.09
  },
  "nbe_compliance_status": {"status": "COMPLIANT", "reasons": []},
  "upstream_debug": {"trace": "abc"}
}`

func TestNormalizeFeatureReport(t *testing.T) {
	raw, err := Decode([]byte(sampleFeatureReport))
	require.NoError(t, err)

	report, warnings, err := NormalizeFeatureReport(raw)
	require.NoError(t, err)

	assert.Equal(t, "req-1", report.RequestID)
	assert.Equal(t, "qse-2.3", report.ModelVersion)
	require.NotNil(t, report.DefaultProbability)
	assert.InDelta(t, 0.07, *report.DefaultProbability, 1e-9)
	require.NotNil(t, report.FeaturesCount)
	assert.Equal(t, 42, *report.FeaturesCount)

	dti, ok := report.Number(GroupAffordability, "debt_to_income_ratio")
	require.True(t, ok)
	assert.InDelta(t, 0.28, dti, 1e-9)
	status, ok := report.Text(GroupIdentityFraud, "fayda_verification_status")
	require.True(t, ok)
	assert.Equal(t, "Verified", status)

	require.NotNil(t, report.Explainability)
	assert.Len(t, report.Explainability.RiskFactors, 1)
	require.Len(t, report.Risk.Scenarios, 1)
	assert.Equal(t, SeverityMedium, report.Risk.Scenarios[0].Severity)
	assert.Equal(t, Compliant, report.Compliance.Status)

	assert.Contains(t, report.Extensions, "upstream_debug")
	assert.NotContains(t, report.Extensions, "request_id")

	require.Len(t, warnings, 1)
	assert.Equal(t, "explainability.confidence_factors[0]", warnings[0].Path)
}

func TestNormalizeFeatureReportMissingOptionalFields(t *testing.T) {
	raw, err := Decode([]byte(`{"request_id":"r1","customer_id":"c1","model_version":"v1"}`))
	require.NoError(t, err)

	report, warnings, err := NormalizeFeatureReport(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Nil(t, report.DefaultProbability)
	assert.Nil(t, report.Explainability)
	assert.Nil(t, report.Risk)
	assert.Nil(t, report.Compliance)
	assert.Nil(t, report.Features)
	_, ok := report.Number(GroupAffordability, "debt_to_income_ratio")
	assert.False(t, ok)
}

func TestNormalizeFeatureReportSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		path string
	}{
		{"string credit score", `{"request_id":"r","customer_id":"c","credit_score":"700"}`, "credit_score"},
		{"probability out of range", `{"request_id":"r","customer_id":"c","default_probability":1.5}`, "default_probability"},
		{"fractional features count", `{"request_id":"r","customer_id":"c","features_count":4.5}`, "features_count"},
		{"impact as string", `{"request_id":"r","customer_id":"c","explainability":{"risk_factors":[{"name":"a","impact":"high","direction":"positive"}]}}`, "explainability.risk_factors[0].impact"},
		{"unknown direction", `{"request_id":"r","customer_id":"c","explainability":{"risk_factors":[{"name":"a","impact":0.1,"direction":"up"}]}}`, "explainability.risk_factors[0].direction"},
		{"bad severity", `{"request_id":"r","customer_id":"c","risk_analysis":{"scenarios":[{"name":"s","severity":"Extreme"}]}}`, "risk_analysis.scenarios[0].severity"},
		{"bad compliance status", `{"request_id":"r","customer_id":"c","nbe_compliance_status":{"status":"MAYBE"}}`, "nbe_compliance_status.status"},
		{"reasons not strings", `{"request_id":"r","customer_id":"c","nbe_compliance_status":{"status":"COMPLIANT","reasons":[1]}}`, "nbe_compliance_status.reasons[0]"},
		{"group not object", `{"request_id":"r","customer_id":"c","loan_details":[1]}`, "loan_details"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Decode([]byte(tc.body))
			require.NoError(t, err)
			_, _, err = NormalizeFeatureReport(raw)
			var verr *SchemaValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.path, verr.Path)
		})
	}
}

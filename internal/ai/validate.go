package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nathanbogale/CrediSynth/internal/report"
)

// decodeReport parses model output into a report and enforces the output contract.
// The returned error describes the violation in terms the model can act on.
func decodeReport(content string) (report.QualitativeReport, error) {
	var out report.QualitativeReport
	block := normalizeJSONBlock(content)
	if block == "" {
		return out, errors.New("the reply was empty")
	}
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return out, fmt.Errorf("field %s must be a %s, not %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return out, fmt.Errorf("the reply was not a valid JSON object (%v)", err)
	}
	sanitizeReport(&out)
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

// sanitizeReport trims whitespace and folds recommendation casing onto the closed set.
// Anything still outside the set is left for Validate to reject.
func sanitizeReport(r *report.QualitativeReport) {
	fields := []*string{
		&r.AnalysisID, &r.RequestID, &r.CustomerID,
		&r.ExecutiveSummary, &r.AbilityToRepay, &r.WillingnessToRepay, &r.LiquidityAssessment,
		&r.IdentityAndFraudAssessment, &r.MacroeconomicContext, &r.KeyRiskSynthesis,
		&r.KeyStrengthsSynthesis, &r.ComplianceSummary, &r.RecommendationJustification,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
	rec := strings.TrimSpace(string(r.FinalRecommendation))
	for _, candidate := range report.Recommendations {
		if strings.EqualFold(rec, string(candidate)) {
			rec = string(candidate)
			break
		}
	}
	r.FinalRecommendation = report.Recommendation(rec)
}

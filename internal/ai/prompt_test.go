package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanbogale/CrediSynth/internal/payload"
)

func TestBuildPromptIsBounded(t *testing.T) {
	r := sampleReport()
	r.Features = map[string]map[string]any{
		payload.GroupAffordability: {
			"debt_to_income_ratio": 0.28,
			"unmapped_internal_key": "should not appear",
		},
		payload.GroupIdentityFraud: {
			"fayda_verification_status": strings.Repeat("V", 500),
			"pep_or_sanctions_hit_flag": false,
		},
		payload.GroupAdditional: {"blob": strings.Repeat("x", 10000)},
	}
	r.Explainability = &payload.Explainability{}
	for i := 0; i < 20; i++ {
		r.Explainability.RiskFactors = append(r.Explainability.RiskFactors,
			payload.ShapFactor{Name: fmt.Sprintf("factor_%02d", i), Impact: 0.1, Direction: payload.DirectionPositive})
	}

	msgs := BuildPrompt(r, "a1")
	require.Len(t, msgs, 2)
	user := msgs[1].Content

	assert.Contains(t, user, "[capacity]")
	assert.Contains(t, user, "debt_to_income_ratio: 0.28")
	assert.Contains(t, user, "pep_or_sanctions_hit_flag: false")
	assert.NotContains(t, user, "unmapped_internal_key")
	assert.NotContains(t, user, "blob")
	assert.Contains(t, user, "factor_04")
	assert.NotContains(t, user, "factor_05")
	assert.NotContains(t, user, strings.Repeat("V", maxValueLen+1))
	assert.Less(t, len(user), 2000)
}

func TestCorrectionPromptNamesViolation(t *testing.T) {
	msg := correctionPrompt(fmt.Errorf("field final_recommendation must be one of the allowed values"))
	assert.Equal(t, roleUser, msg.Role)
	assert.Contains(t, msg.Content, "final_recommendation")
}

package scoring

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nathanbogale/CrediSynth/internal/payload"
)

// Recommend assembles reviewer advisories in a fixed category order: risk, fraud,
// feature completeness, best product, ability/willingness to pay, default probability
// and compliance. Duplicates are dropped keeping the first occurrence.
func Recommend(b *payload.AssessmentBundle) []string {
	var out []string

	out = append(out, b.RiskRecommendations...)
	if b.Risk != nil {
		out = append(out, b.Risk.Recommendations...)
	}

	if f := b.EffectiveFraud(); f != nil {
		if f.RequireManualReview {
			out = append(out, "Manual review required due to fraud risk indicators")
		}
		switch {
		case len(f.Signals) > 0:
			for _, s := range f.Signals {
				out = append(out, "Investigate fraud signal: "+s)
			}
		case f.SignalsCount > 0 && !f.RequireManualReview:
			out = append(out, fmt.Sprintf("Monitor %d fraud signal(s)", f.SignalsCount))
		}
	}

	if fc := b.FeatureCompleteness; fc != nil {
		out = append(out, fc.Recommendations...)
		if fc.MeetsThreshold != nil && !*fc.MeetsThreshold && len(fc.Missing) > 0 {
			out = append(out, "Collect missing features: "+strings.Join(fc.Missing, ", "))
		}
	}
	out = append(out, b.TierImprovements...)

	if p, ok := BestProduct(b.Products); ok {
		out = append(out, fmt.Sprintf("Recommended product: %s (Amount: %s ETB, Suitability: %s%%)",
			p.Type, groupThousands(p.RecommendedAmount), num(p.Suitability)))
	}

	if b.AbilityToPay != nil && *b.AbilityToPay < 50 {
		out = append(out, fmt.Sprintf("Ability to pay score is low (%s) - consider lower loan amount or longer term", num(*b.AbilityToPay)))
	}
	if b.WillingnessToPay != nil && *b.WillingnessToPay < 50 {
		out = append(out, fmt.Sprintf("Willingness to pay score is low (%s) - additional verification recommended", num(*b.WillingnessToPay)))
	}

	if p, ok := b.EffectiveDefaultProbability(); ok {
		switch {
		case p > 0.25:
			out = append(out, "High default probability - consider risk mitigation measures")
		case p > 0.15:
			out = append(out, "Moderate default probability - enhanced monitoring recommended")
		}
	}

	if c := b.Compliance; c != nil {
		if c.OneThirdRule != "" && c.OneThirdRule != "pass" {
			out = append(out, "One-third rule compliance issue - adjust loan amount or terms")
		}
		if !c.Compliant {
			out = append(out, "Resolve NBE compliance issues before disbursement")
		}
	}

	return dedupe(out)
}

// BestProduct picks the eligible product with the highest suitability; ties go to
// the lower recommended amount, then to the earlier entry.
func BestProduct(products []payload.ProductRecommendation) (payload.ProductRecommendation, bool) {
	var best payload.ProductRecommendation
	found := false
	for _, p := range products {
		if !p.Eligible {
			continue
		}
		switch {
		case !found:
		case p.Suitability > best.Suitability:
		case p.Suitability == best.Suitability && p.RecommendedAmount.LessThan(best.RecommendedAmount):
		default:
			continue
		}
		best, found = p, true
	}
	return best, found
}

// dedupe keeps the first occurrence of each entry.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, item := range in {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func groupThousands(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

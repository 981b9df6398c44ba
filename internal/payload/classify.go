package payload

// Shape tags which canonical representation a payload resolved to.
type Shape string

const (
	ShapeFeatureReport    Shape = "feature_report"
	ShapeAssessmentBundle Shape = "assessment_bundle"
)

// Payload is the classified and normalized request. Exactly one of Feature or Bundle
// is set, matching Shape.
type Payload struct {
	Shape    Shape
	Feature  *FeatureReport
	Bundle   *AssessmentBundle
	Warnings []Warning
}

// RequestID returns the upstream request identifier of either variant.
func (p Payload) RequestID() string {
	switch p.Shape {
	case ShapeFeatureReport:
		return p.Feature.RequestID
	case ShapeAssessmentBundle:
		return p.Bundle.RequestID
	}
	return ""
}

// CustomerID returns the customer identifier of either variant.
func (p Payload) CustomerID() string {
	switch p.Shape {
	case ShapeFeatureReport:
		return p.Feature.CustomerID
	case ShapeAssessmentBundle:
		return p.Bundle.CustomerID
	}
	return ""
}

// CorrelationID returns the body-supplied correlation identifier, if any.
func (p Payload) CorrelationID() string {
	switch p.Shape {
	case ShapeFeatureReport:
		return p.Feature.CorrelationID
	case ShapeAssessmentBundle:
		return p.Bundle.CorrelationID
	}
	return ""
}

// Structural markers. A success flag or any fraud/product/compliance-pass marker
// identifies an assessment bundle; explainability, feature analysis, scenario lists,
// a status-style compliance block or any feature group identify a feature report.
var (
	assessmentMarkers = []string{
		"success",
		"fraud_detection_result",
		"fraud_block_transaction",
		"product_recommendations",
		"nbe_compliance_status.overall_compliance",
	}
	featureMarkers = append([]string{
		"explainability",
		"feature_analysis",
		"risk_analysis.scenarios",
		"nbe_compliance_status.status",
	}, FeatureGroups...)
)

// Classify decides which canonical shape applies. Identifiers are mandatory for
// both shapes. When both marker sets match, the assessment bundle wins.
func Classify(raw Raw) (Shape, error) {
	d := &decoder{}
	d.requiredStr(raw, "request_id", "")
	d.requiredStr(raw, "customer_id", "")
	if d.err != nil {
		return "", d.err
	}
	switch {
	case raw.hasAny(assessmentMarkers):
		return ShapeAssessmentBundle, nil
	case raw.hasAny(featureMarkers):
		return ShapeFeatureReport, nil
	}
	return "", ErrClassificationAmbiguous
}

func (r Raw) hasAny(paths []string) bool {
	for _, p := range paths {
		if r.has(p) {
			return true
		}
	}
	return false
}

// Normalize maps raw onto the canonical structure for shape.
func Normalize(raw Raw, shape Shape) (Payload, error) {
	switch shape {
	case ShapeFeatureReport:
		report, warnings, err := NormalizeFeatureReport(raw)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Shape: shape, Feature: report, Warnings: warnings}, nil
	case ShapeAssessmentBundle:
		bundle, err := NormalizeAssessmentBundle(raw)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Shape: shape, Bundle: bundle}, nil
	}
	return Payload{}, ErrClassificationAmbiguous
}

// Parse decodes, classifies and normalizes a request body.
func Parse(body []byte) (Payload, error) {
	raw, err := Decode(body)
	if err != nil {
		return Payload{}, err
	}
	shape, err := Classify(raw)
	if err != nil {
		return Payload{}, err
	}
	return Normalize(raw, shape)
}

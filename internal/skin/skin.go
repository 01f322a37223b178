package skin

import (
	"errors"
	"fmt"
	"strings"
)

// SkinType is the categorical skin classification returned by the model.
type SkinType string

const (
	Dry         SkinType = "Dry"
	Oily        SkinType = "Oily"
	Combination SkinType = "Combination"
	Sensitive   SkinType = "Sensitive"
	Normal      SkinType = "Normal"
)

// SkinTypes lists every valid skin type in schema order.
var SkinTypes = []SkinType{Dry, Oily, Combination, Sensitive, Normal}

// ParseSkinType matches s case-insensitively against the known skin types.
func ParseSkinType(s string) (SkinType, error) {
	s = strings.TrimSpace(s)
	for _, t := range SkinTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown skin type %q", s)
}

// Valid reports whether t is one of SkinTypes.
func (t SkinType) Valid() bool {
	for _, known := range SkinTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Metric names, in the order the model schema and the charts use them.
const (
	MetricHydration    = "hydration"
	MetricOiliness     = "oiliness"
	MetricTroubles     = "troubles"
	MetricPigmentation = "pigmentation"
	MetricPores        = "pores"
	MetricWrinkles     = "wrinkles"
)

var MetricNames = []string{
	MetricHydration,
	MetricOiliness,
	MetricTroubles,
	MetricPigmentation,
	MetricPores,
	MetricWrinkles,
}

// HigherIsBetter reports the polarity of a metric. Only hydration improves as
// it grows; the rest describe problems (0 none, 100 severe).
func HigherIsBetter(metric string) bool {
	return metric == MetricHydration
}

// Metrics holds the six 0-100 scores.
type Metrics struct {
	Hydration    float64 `json:"hydration"`
	Oiliness     float64 `json:"oiliness"`
	Troubles     float64 `json:"troubles"` // 0 (none) to 100 (severe)
	Pigmentation float64 `json:"pigmentation"`
	Pores        float64 `json:"pores"`
	Wrinkles     float64 `json:"wrinkles"`
}

// Value returns the score for a metric name, or false if the name is unknown.
func (m Metrics) Value(metric string) (float64, bool) {
	switch metric {
	case MetricHydration:
		return m.Hydration, true
	case MetricOiliness:
		return m.Oiliness, true
	case MetricTroubles:
		return m.Troubles, true
	case MetricPigmentation:
		return m.Pigmentation, true
	case MetricPores:
		return m.Pores, true
	case MetricWrinkles:
		return m.Wrinkles, true
	default:
		return 0, false
	}
}

// Routine is the suggested care routine split into morning and evening steps.
type Routine struct {
	Morning []string `json:"morning"`
	Evening []string `json:"evening"`
}

// AnalysisResult is the skin report produced by one successful analysis.
type AnalysisResult struct {
	OverallScore           float64  `json:"overallScore"`
	SkinType               SkinType `json:"skinType"`
	Metrics                Metrics  `json:"metrics"`
	ExpertCommentary       string   `json:"expertCommentary"`
	RecommendedIngredients []string `json:"recommendedIngredients"`
	SuggestedRoutine       Routine  `json:"suggestedRoutine"`
}

// ErrInvalidResult is wrapped by Validate failures.
var ErrInvalidResult = errors.New("invalid analysis result")

// Validate checks score ranges and the skin type. The skin type is
// normalised to its canonical casing when it matches case-insensitively.
func (r *AnalysisResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrInvalidResult)
	}
	if !inRange(r.OverallScore) {
		return fmt.Errorf("%w: overallScore %v out of range", ErrInvalidResult, r.OverallScore)
	}
	for _, name := range MetricNames {
		v, _ := r.Metrics.Value(name)
		if !inRange(v) {
			return fmt.Errorf("%w: %s %v out of range", ErrInvalidResult, name, v)
		}
	}
	t, err := ParseSkinType(string(r.SkinType))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	r.SkinType = t
	return nil
}

// Clone returns a deep copy so callers cannot mutate a stored result.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.RecommendedIngredients = append([]string(nil), r.RecommendedIngredients...)
	c.SuggestedRoutine.Morning = append([]string(nil), r.SuggestedRoutine.Morning...)
	c.SuggestedRoutine.Evening = append([]string(nil), r.SuggestedRoutine.Evening...)
	return &c
}

func inRange(v float64) bool {
	return v >= 0 && v <= 100
}

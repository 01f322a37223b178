package dashboard

import (
	"strings"
	"time"

	"github.com/raine/skinlog-bot/internal/catalog"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/skin"
)

// ScoreRingCircumference is the stroke length of the overall score ring (r=58).
const ScoreRingCircumference = 364.4

// MaxProducts is how many product cards the dashboard shows.
const MaxProducts = 3

// ScoreRingOffset returns the dash offset that leaves score percent of the
// ring visible.
func ScoreRingOffset(score float64) float64 {
	return ScoreRingCircumference * (1 - score/100)
}

// Band is the severity colour of a raw metric value.
type Band struct {
	Name  string
	Color string
	Emoji string
}

var (
	BandHigh     = Band{Name: "high", Color: "#ef4444", Emoji: "🔴"}
	BandModerate = Band{Name: "moderate", Color: "#f59e0b", Emoji: "🟠"}
	BandLow      = Band{Name: "low", Color: "#10b981", Emoji: "🟢"}
)

// BandFor maps a 0-100 value to its bar colour: above 70 red, above 40 amber,
// otherwise green.
func BandFor(value float64) Band {
	switch {
	case value > 70:
		return BandHigh
	case value > 40:
		return BandModerate
	default:
		return BandLow
	}
}

// RadarPoint is one axis of the health web. Value is framed so that higher is
// always better.
type RadarPoint struct {
	Metric string
	Label  string
	Value  float64
}

// Bar is one row of the detailed metrics chart with the raw model value.
type Bar struct {
	Metric string
	Label  string
	Value  float64
	Band   Band
}

func metricLabel(labels i18n.MetricLabels, metric string) string {
	switch metric {
	case skin.MetricHydration:
		return labels.Hydration
	case skin.MetricOiliness:
		return labels.Oiliness
	case skin.MetricTroubles:
		return labels.Troubles
	case skin.MetricPigmentation:
		return labels.Pigmentation
	case skin.MetricPores:
		return labels.Pores
	case skin.MetricWrinkles:
		return labels.Wrinkles
	default:
		return metric
	}
}

// RadarPoints returns the six axes in display order. Problem metrics are
// inverted (100 - v), hydration is used as-is.
func RadarPoints(m skin.Metrics, labels i18n.MetricLabels) []RadarPoint {
	points := make([]RadarPoint, 0, len(skin.MetricNames))
	for _, name := range skin.MetricNames {
		v, _ := m.Value(name)
		if !skin.HigherIsBetter(name) {
			v = 100 - v
		}
		points = append(points, RadarPoint{Metric: name, Label: metricLabel(labels, name), Value: v})
	}
	return points
}

// Bars returns the six raw metric values with their bands.
func Bars(m skin.Metrics, labels i18n.MetricLabels) []Bar {
	bars := make([]Bar, 0, len(skin.MetricNames))
	for _, name := range skin.MetricNames {
		v, _ := m.Value(name)
		bars = append(bars, Bar{Metric: name, Label: metricLabel(labels, name), Value: v, Band: BandFor(v)})
	}
	return bars
}

// MatchProducts picks up to MaxProducts catalog items that contain an
// ingredient named inside any recommended ingredient, compared
// case-insensitively. With no match it falls back to the first items.
func MatchProducts(c *catalog.Catalog, recommended []string) []catalog.Product {
	all := c.All()
	lowered := make([]string, len(recommended))
	for i, r := range recommended {
		lowered[i] = strings.ToLower(r)
	}

	var matched []catalog.Product
	for _, p := range all {
		if productMatches(p, lowered) {
			matched = append(matched, p)
			if len(matched) == MaxProducts {
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}
	if len(all) > MaxProducts {
		all = all[:MaxProducts]
	}
	return all
}

func productMatches(p catalog.Product, recommended []string) bool {
	for _, ing := range p.Ingredients {
		ing = strings.ToLower(ing)
		for _, r := range recommended {
			if strings.Contains(r, ing) {
				return true
			}
		}
	}
	return false
}

// View is everything the result screen shows, derived from one result.
type View struct {
	Language        i18n.Language
	Strings         i18n.Strings
	Date            string
	SkinType        skin.SkinType
	SkinTypeColor   catalog.SkinTypeColor
	Score           float64
	ScoreRingOffset float64
	Radar           []RadarPoint
	Bars            []Bar
	Commentary      string
	Ingredients     []string
	Morning         []string
	Evening         []string
	Products        []catalog.Product
}

// FormatDate renders t the way each locale writes a short date.
func FormatDate(t time.Time, lang i18n.Language) string {
	if lang == i18n.Korean {
		return t.Format("2006. 1. 2.")
	}
	return t.Format("1/2/2006")
}

// Build derives the dashboard view. It does not modify result.
func Build(result *skin.AnalysisResult, lang i18n.Language, c *catalog.Catalog, now time.Time) View {
	s := i18n.For(lang)
	r := result.Clone()
	return View{
		Language:        lang,
		Strings:         s,
		Date:            FormatDate(now, lang),
		SkinType:        r.SkinType,
		SkinTypeColor:   catalog.ColorFor(r.SkinType),
		Score:           r.OverallScore,
		ScoreRingOffset: ScoreRingOffset(r.OverallScore),
		Radar:           RadarPoints(r.Metrics, s.Metrics),
		Bars:            Bars(r.Metrics, s.Metrics),
		Commentary:      r.ExpertCommentary,
		Ingredients:     r.RecommendedIngredients,
		Morning:         r.SuggestedRoutine.Morning,
		Evening:         r.SuggestedRoutine.Evening,
		Products:        MatchProducts(c, r.RecommendedIngredients),
	}
}

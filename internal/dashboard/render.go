package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const gaugeWidth = 10

// gauge draws value (0-100) as a fixed-width bar.
func gauge(value float64, full, empty string) string {
	n := int(math.Round(value / 100 * gaugeWidth))
	n = max(0, min(gaugeWidth, n))
	return strings.Repeat(full, n) + strings.Repeat(empty, gaugeWidth-n)
}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// entityText drops the characters legacy Markdown cannot escape inside an
// entity.
var entityText = strings.NewReplacer("*", "", "_", "", "`", "", "[", "").Replace

// markup formats the pieces of a chat message for one parse mode.
type markup struct {
	bold func(string) string
	code func(string) string
	text func(string) string
}

var telegramMarkup = markup{
	bold: func(s string) string { return "*" + entityText(s) + "*" },
	code: func(s string) string { return "`" + entityText(s) + "`" },
	text: esc,
}

func identity(s string) string { return s }

var plainMarkup = markup{bold: identity, code: identity, text: identity}

// RenderMarkdown renders the view as a Telegram (legacy) Markdown message.
// Model-written text is only ever escaped, never placed inside an entity.
func RenderMarkdown(v View) string {
	return renderChat(v, telegramMarkup)
}

// RenderPlain renders the same message without any parse mode.
func RenderPlain(v View) string {
	return renderChat(v, plainMarkup)
}

func renderChat(v View, m markup) string {
	s := v.Strings
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", m.bold(s.ReportTitle))
	fmt.Fprintf(&b, "%s %s\n", m.text(s.AnalysisDate), m.text(v.Date))
	fmt.Fprintf(&b, "%s %s: %s\n\n", v.SkinTypeColor.Emoji, m.text(s.SkinType), m.bold(string(v.SkinType)))

	fmt.Fprintf(&b, "%s %.0f/100\n%s\n\n", m.bold(s.ScoreLabel), v.Score, m.code(gauge(v.Score, "●", "○")))

	fmt.Fprintf(&b, "%s\n", m.bold(s.HealthWebTitle))
	for _, p := range v.Radar {
		fmt.Fprintf(&b, "%s %s %.0f\n", m.code(gauge(p.Value, "▰", "▱")), m.text(p.Label), p.Value)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s\n", m.bold(s.DetailedMetricsTitle))
	for _, bar := range v.Bars {
		fmt.Fprintf(&b, "%s %s: %.0f\n", bar.Band.Emoji, m.text(bar.Label), bar.Value)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s\n💬 %s\n", m.bold(s.AIInsightTitle), m.text(v.Commentary))
	if len(v.Ingredients) > 0 {
		tags := make([]string, len(v.Ingredients))
		for i, ing := range v.Ingredients {
			tags[i] = "#" + m.text(strings.ReplaceAll(ing, " ", ""))
		}
		b.WriteString(strings.Join(tags, " ") + "\n")
	}
	b.WriteString("\n")

	writeRoutine(&b, m, "☀️ "+s.MorningRoutine, v.Morning)
	writeRoutine(&b, m, "🌙 "+s.EveningRoutine, v.Evening)

	fmt.Fprintf(&b, "%s\n", m.bold(s.BestMatches))
	for _, p := range v.Products {
		fmt.Fprintf(&b, "• %s %s (%s)\n", m.bold(p.Brand), m.text(p.Name), m.text(p.Category))
		if p.MatchReason != "" {
			fmt.Fprintf(&b, "  ↳ %s\n", m.text(p.MatchReason))
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s\n%s", m.bold(strings.ToUpper(s.DisclaimerTitle)), m.text(s.DisclaimerText))
	return b.String()
}

func writeRoutine(b *strings.Builder, m markup, title string, steps []string) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintf(b, "%s\n", m.bold(title))
	for i, step := range steps {
		fmt.Fprintf(b, "%d. %s\n", i+1, m.text(step))
	}
	b.WriteString("\n")
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4f46e5"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1f2937")).MarginTop(1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	scoreStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4f46e5"))
	insightStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#3730a3")).
			Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#c7d2fe")).Padding(0, 1)
	tagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4f46e5"))
	cardStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#e5e7eb")).Padding(0, 1).Width(28)
)

// RenderTerminal renders the view for a terminal using lipgloss styles.
func RenderTerminal(v View) string {
	s := v.Strings
	var b strings.Builder

	b.WriteString(titleStyle.Render(s.ReportTitle) + "\n")
	b.WriteString(mutedStyle.Render(s.AnalysisDate+" "+v.Date) + "\n")
	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1).
		Foreground(lipgloss.Color(v.SkinTypeColor.Foreground)).
		Background(lipgloss.Color(v.SkinTypeColor.Background))
	b.WriteString(badge.Render(fmt.Sprintf("%s: %s", s.SkinType, v.SkinType)) + "\n")
	b.WriteString(scoreStyle.Render(fmt.Sprintf("%s %.0f  %s", s.ScoreLabel, v.Score, gauge(v.Score, "●", "○"))) + "\n")

	b.WriteString(headingStyle.Render(s.HealthWebTitle) + "\n")
	for _, p := range v.Radar {
		fmt.Fprintf(&b, "  %-14s %s %3.0f\n", p.Label, gauge(p.Value, "▰", "▱"), p.Value)
	}

	b.WriteString(headingStyle.Render(s.DetailedMetricsTitle) + "\n")
	for _, bar := range v.Bars {
		barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(bar.Band.Color))
		fmt.Fprintf(&b, "  %-14s %s %3.0f\n", bar.Label, barStyle.Render(gauge(bar.Value, "█", "░")), bar.Value)
	}

	b.WriteString(headingStyle.Render(s.AIInsightTitle) + "\n")
	b.WriteString(insightStyle.Render(`"`+v.Commentary+`"`) + "\n")
	if len(v.Ingredients) > 0 {
		tags := make([]string, len(v.Ingredients))
		for i, ing := range v.Ingredients {
			tags[i] = tagStyle.Render("#" + ing)
		}
		b.WriteString(strings.Join(tags, " ") + "\n")
	}

	for _, r := range []struct {
		title string
		steps []string
	}{{s.MorningRoutine, v.Morning}, {s.EveningRoutine, v.Evening}} {
		b.WriteString(headingStyle.Render(r.title) + "\n")
		for i, step := range r.steps {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}

	b.WriteString(headingStyle.Render(s.BestMatches) + "\n")
	cards := make([]string, len(v.Products))
	for i, p := range v.Products {
		cards[i] = cardStyle.Render(strings.Join([]string{
			mutedStyle.Render(strings.ToUpper(p.Brand)),
			lipgloss.NewStyle().Bold(true).Render(p.Name),
			tagStyle.Render(p.Category),
		}, "\n"))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...) + "\n\n")

	b.WriteString(mutedStyle.Render(strings.ToUpper(s.DisclaimerTitle)+"\n"+s.DisclaimerText) + "\n")
	return b.String()
}

package tui

import (
	"fmt"
	"strings"

	"caspview/internal/stats"
	"caspview/internal/survey"

	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth   = 30
	labelWidth = 28
)

// bar renders value/limit as a horizontal bar of at most barWidth cells
func bar(value, limit float64, style lipgloss.Style) string {
	n := 0
	if limit > 0 {
		n = int(value / limit * barWidth)
	}
	if value > 0 && n == 0 {
		n = 1
	}
	if n > barWidth {
		n = barWidth
	}
	return style.Render(strings.Repeat("█", n)) + mutedStyle.Render(strings.Repeat("░", barWidth-n))
}

func padLabel(s string) string {
	if lipgloss.Width(s) > labelWidth {
		r := []rune(s)
		s = string(r[:labelWidth-1]) + "…"
	}
	return s + strings.Repeat(" ", labelWidth-lipgloss.Width(s))
}

func (m Model) viewStats() string {
	var b strings.Builder
	q := m.session.Question

	b.WriteString(titleStyle.Render(fmt.Sprintf("Statistics • %s: %s", survey.Label(q), m.label(q))))
	b.WriteString("\n")

	completion := stats.CompletionRate(m.survey)
	b.WriteString(mutedStyle.Render(completion.String()))
	b.WriteString("\n")

	// Answer distribution for the current question
	b.WriteString(chartTitleStyle.Render("Answer distribution"))
	b.WriteString("\n")
	dist := stats.Distribution(m.survey, q)
	total := 0
	for _, s := range dist {
		total += s.Count
	}
	for _, s := range dist {
		pct := 0.0
		if total > 0 {
			pct = float64(s.Count) / float64(total) * 100
		}
		b.WriteString(fmt.Sprintf("%s %s %d (%.0f%%)\n",
			padLabel(string(s.Choice)), bar(float64(s.Count), float64(total), m.answers[s.Choice]), s.Count, pct))
	}

	b.WriteString(chartTitleStyle.Render("Top voted responses"))
	b.WriteString("\n")
	top := stats.TopVoted(m.survey, m.ledger.Counts(), stats.DefaultTopVoted)
	if len(top) == 0 {
		b.WriteString(subtitleStyle.Render("No votes yet"))
		b.WriteString("\n")
	}
	for _, e := range top {
		b.WriteString(fmt.Sprintf("%s %s %d\n", padLabel(e.Label), bar(e.Value, top[0].Value, topVotedStyle), int(e.Value)))
	}

	b.WriteString(chartTitleStyle.Render("Uncertainty (% Can't Tell)"))
	b.WriteString("\n")
	cantTell := m.answers[survey.CantTell]
	for _, e := range stats.Uncertainty(m.survey) {
		b.WriteString(fmt.Sprintf("%s %s %.1f%%\n", padLabel(e.Label), bar(e.Value, 100, cantTell), e.Value))
	}

	return b.String()
}

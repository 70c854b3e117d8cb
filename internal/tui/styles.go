package tui

import (
	"caspview/internal/config"
	"caspview/internal/survey"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	dangerColor    = lipgloss.Color("#EF4444") // Red
	infoColor      = lipgloss.Color("#3B82F6") // Blue
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	primaryColor   = lipgloss.Color("#8B5CF6") // Purple
	highlightColor = lipgloss.Color("#EC4899") // Pink

	baseStyle = lipgloss.NewStyle().
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	questionStyle = lipgloss.NewStyle().
			Bold(true)

	considerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			PaddingLeft(2)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	selectedCardStyle = cardStyle.
				BorderForeground(primaryColor)

	studentStyle = lipgloss.NewStyle().
			Bold(true)

	topVotedStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)

	votedStyle = lipgloss.NewStyle().
			Foreground(successColor)

	pendingStyle = lipgloss.NewStyle().
			Foreground(infoColor).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	infoStyle = lipgloss.NewStyle().
			Foreground(infoColor)

	// Border box for toasts
	messageBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1).
			MarginTop(1)

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(dangerColor).
			Padding(1, 2)

	chartTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginTop(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(primaryColor)
)

// answerStyles colors answer badges and chart bars from the configured palette.
type answerStyles map[survey.Choice]lipgloss.Style

func newAnswerStyles(colors config.ColorConfig) answerStyles {
	return answerStyles{
		survey.Yes:      lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Yes)).Bold(true),
		survey.No:       lipgloss.NewStyle().Foreground(lipgloss.Color(colors.No)).Bold(true),
		survey.CantTell: lipgloss.NewStyle().Foreground(lipgloss.Color(colors.CantTell)).Bold(true),
	}
}

// badge renders an answer value, uncolored when it is not a known choice
func (s answerStyles) badge(a survey.Answer) string {
	c, ok := a.Choice()
	if !ok {
		if a.Value == "" {
			return mutedStyle.Render("(no answer)")
		}
		return mutedStyle.Render(a.Value)
	}
	return s[c].Render(string(c))
}

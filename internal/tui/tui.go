package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caspview/internal/config"
	"caspview/internal/query"
	"caspview/internal/session"
	"caspview/internal/survey"
	"caspview/internal/viewer"
	"caspview/internal/votes"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const toastDuration = 3 * time.Second

type viewState int

const (
	viewResponses viewState = iota
	viewStats
	viewJump
)

// Messages
type loadedMsg struct {
	snap viewer.Snapshot
	err  error
}

type voteDoneMsg struct {
	key votes.Key
	err error
}

// refreshTickMsg fires the auto-refresh schedule identified by gen
type refreshTickMsg struct {
	gen uint64
}

type toastExpiredMsg struct {
	id int
}

type Model struct {
	config   *config.Config
	viewer   *viewer.Viewer
	session  session.State
	ledger   *votes.Ledger
	survey   *survey.Model
	loadedAt time.Time

	view         viewState
	cursor       int
	showConsider bool
	pending      map[votes.Key]bool
	loading      bool

	banner  viewer.Notice
	toast   viewer.Notice
	toastID int

	jumpForm *huh.Form
	answers  answerStyles
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	width    int
	height   int
}

func NewModel(cfg *config.Config, v *viewer.Viewer) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	h := help.New()
	h.ShowAll = false

	return Model{
		config:  cfg,
		viewer:  v,
		session: session.New(cfg.TotalQuestions, cfg.AutoRefresh),
		ledger:  votes.NewLedger(nil),
		pending: make(map[votes.Key]bool),
		loading: true,
		answers: newAnswerStyles(cfg.Colors),
		spinner: sp,
		help:    h,
		keys:    keys,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.load()}
	if m.session.AutoRefresh {
		cmds = append(cmds, m.scheduleRefresh())
	}
	return tea.Batch(cmds...)
}

func (m Model) load() tea.Cmd {
	v := m.viewer
	return func() tea.Msg {
		snap, err := v.Load(context.Background())
		return loadedMsg{snap: snap, err: err}
	}
}

func (m Model) castVote(k votes.Key) tea.Cmd {
	v := m.viewer
	return func() tea.Msg {
		return voteDoneMsg{key: k, err: v.Cast(context.Background(), k)}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	gen := m.session.Generation
	return tea.Tick(m.config.RefreshInterval.Duration, func(time.Time) tea.Msg {
		return refreshTickMsg{gen: gen}
	})
}

// showToast replaces the current toast and schedules its removal
func (m *Model) showToast(n viewer.Notice) tea.Cmd {
	m.toastID++
	m.toast = n
	id := m.toastID
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

// result is the card list for the current question and filter
func (m Model) result() query.Result {
	return query.View(m.survey, m.ledger, m.session.Question, m.session.Filter)
}

func (m Model) label(q int) string {
	return m.config.Label(q)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view == viewJump && m.jumpForm != nil {
		return m.updateJumpForm(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.loading || len(m.pending) > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case loadedMsg:
		return m.applyLoad(msg)

	case voteDoneMsg:
		delete(m.pending, msg.key)
		if msg.err != nil {
			return m, m.showToast(viewer.ClassifyVote(msg.err))
		}
		m.ledger.RecordLocalVote(msg.key)
		return m, m.showToast(viewer.VoteRecorded)

	case refreshTickMsg:
		if !m.session.AcceptTick(msg.gen) {
			return m, nil
		}
		cmds := []tea.Cmd{m.scheduleRefresh()}
		if !m.loading {
			m.loading = true
			cmds = append(cmds, m.load(), m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case toastExpiredMsg:
		if msg.id == m.toastID {
			m.toast = viewer.Notice{}
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m Model) applyLoad(msg loadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		notice := viewer.Classify(msg.err)
		if !notice.Persistent {
			return m, m.showToast(notice)
		}
		m.banner = notice
		if !notice.Retryable {
			// Nothing to retry until the config changes
			m.session = m.session.Stop()
		}
		return m, nil
	}

	snap := msg.snap
	m.banner = viewer.Notice{}
	m.survey = snap.Model
	m.loadedAt = snap.LoadedAt

	m.ledger.AddMarks(snap.Marks)
	if snap.VotesErr == nil {
		m.ledger.Replace(snap.Counts)
	}

	count := snap.Model.QuestionCount()
	if count == 0 {
		count = m.config.TotalQuestions
	}
	m.session = m.session.WithQuestionCount(count)
	m.clampCursor()

	if snap.VotesErr != nil {
		return m, m.showToast(viewer.Notice{Level: viewer.LevelWarning, Text: "Could not load votes; showing last known counts"})
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session = m.session.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if m.banner.Retryable {
			m.banner = viewer.Notice{}
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.load())

	case key.Matches(msg, m.keys.AutoRefresh):
		m.session = m.session.ToggleAutoRefresh()
		if m.session.AutoRefresh {
			return m, tea.Batch(
				m.showToast(viewer.Notice{Level: viewer.LevelInfo, Text: "Auto-refresh on (every " + m.config.RefreshInterval.String() + ")"}),
				m.scheduleRefresh(),
			)
		}
		return m, m.showToast(viewer.Notice{Level: viewer.LevelInfo, Text: "Auto-refresh off"})
	}

	// Everything below works on the last loaded snapshot
	if m.survey == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Stats):
		if !m.config.EnableStatistics {
			return m, nil
		}
		if m.view == viewStats {
			m.view = viewResponses
		} else {
			m.view = viewStats
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevQuestion):
		m.session = m.session.Previous()
		m.cursor = 0

	case key.Matches(msg, m.keys.NextQuestion):
		m.session = m.session.Next()
		m.cursor = 0

	case key.Matches(msg, m.keys.Jump):
		m.jumpForm = m.newJumpForm()
		m.view = viewJump
		return m, m.jumpForm.Init()

	case key.Matches(msg, m.keys.Filter):
		next, err := m.session.SetFilter(string(m.session.Filter.Next()))
		if err == nil {
			m.session = next
		}
		m.cursor = 0

	case key.Matches(msg, m.keys.Consider):
		m.showConsider = !m.showConsider

	case key.Matches(msg, m.keys.Up):
		if m.view == viewResponses && m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.view == viewResponses && m.cursor < m.result().Shown()-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Vote):
		if m.view == viewResponses {
			return m.vote()
		}
	}

	return m, nil
}

func (m Model) vote() (tea.Model, tea.Cmd) {
	if !m.config.EnableVoting {
		return m, nil
	}
	res := m.result()
	if m.cursor < 0 || m.cursor >= res.Shown() {
		return m, nil
	}

	k := res.Cards[m.cursor].Key
	if m.pending[k] {
		return m, nil
	}
	if m.ledger.HasVoted(k) {
		return m, m.showToast(viewer.Classify(viewer.ErrAlreadyVoted))
	}

	m.pending[k] = true
	return m, tea.Batch(m.spinner.Tick, m.castVote(k))
}

func (m *Model) clampCursor() {
	shown := m.result().Shown()
	if m.cursor >= shown {
		m.cursor = shown - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) newJumpForm() *huh.Form {
	options := make([]huh.Option[int], 0, m.session.QuestionCount)
	for q := 0; q < m.session.QuestionCount; q++ {
		options = append(options, huh.NewOption(fmt.Sprintf("%s  %s", survey.Label(q), m.label(q)), q))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Key("question").
				Title("Go to question").
				Options(options...),
		),
	).WithShowHelp(true)
}

func (m Model) updateJumpForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.view = viewResponses
		m.jumpForm = nil
		return m, nil
	}

	form, cmd := m.jumpForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.jumpForm = f

		if m.jumpForm.State == huh.StateCompleted {
			if q, ok := m.jumpForm.Get("question").(int); ok {
				m.session = m.session.GoToQuestion(q)
				m.cursor = 0
			}
			m.view = viewResponses
			m.jumpForm = nil
			return m, nil
		}

		if m.jumpForm.State == huh.StateAborted {
			m.view = viewResponses
			m.jumpForm = nil
			return m, nil
		}
	}

	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")

	if m.banner.Persistent {
		b.WriteString(m.viewBanner())
		b.WriteString("\n")
	}

	switch {
	case m.survey == nil:
		if !m.banner.Persistent {
			b.WriteString(fmt.Sprintf("%s Loading responses...", m.spinner.View()))
		}
	case m.view == viewJump && m.jumpForm != nil:
		b.WriteString(m.jumpForm.View())
	case m.view == viewStats:
		b.WriteString(m.viewStats())
	default:
		b.WriteString(m.viewResponses())
	}

	if m.toast.Text != "" {
		b.WriteString("\n")
		b.WriteString(messageBoxStyle.Render(noticeStyle(m.toast.Level).Render(m.toast.Text)))
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return baseStyle.Render(b.String())
}

func (m Model) viewHeader() string {
	parts := []string{titleStyle.Render("CASP Responses")}

	if m.survey != nil {
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d students", m.survey.TotalStudents)))
	}
	if m.loading && m.survey != nil {
		parts = append(parts, m.spinner.View()+" refreshing")
	} else if !m.loadedAt.IsZero() {
		parts = append(parts, mutedStyle.Render("Last updated "+humanize.Time(m.loadedAt)))
	}
	if m.session.AutoRefresh {
		parts = append(parts, infoStyle.Render("auto-refresh "+m.config.RefreshInterval.String()))
	}

	return strings.Join(parts, mutedStyle.Render(" • "))
}

func (m Model) viewBanner() string {
	text := errorStyle.Render(m.banner.Text)
	if m.banner.Retryable {
		text += "\n\n" + mutedStyle.Render("Press r to retry or esc to dismiss")
	}
	return bannerStyle.Render(text)
}

func (m Model) viewQuestion() string {
	var b strings.Builder
	q := m.session.Question

	b.WriteString(titleStyle.Render(fmt.Sprintf("Question %d of %d: %s", q+1, m.session.QuestionCount, m.label(q))))
	b.WriteString("\n")

	question, ok := m.survey.Question(q)
	if ok {
		b.WriteString(questionStyle.Render(question.Text))
		b.WriteString("\n")
		if prompts := question.ConsiderPrompts(); len(prompts) > 0 {
			if m.showConsider {
				b.WriteString(subtitleStyle.Render("Consider:"))
				b.WriteString("\n")
				for _, p := range prompts {
					b.WriteString(considerStyle.Render("• " + p))
					b.WriteString("\n")
				}
			} else {
				b.WriteString(mutedStyle.Render(fmt.Sprintf("c: show %d consider prompts", len(prompts))))
				b.WriteString("\n")
			}
		}
	}

	nav := []string{}
	if m.session.HasPrevious() {
		nav = append(nav, "← "+survey.Label(q-1))
	}
	if m.session.HasNext() {
		nav = append(nav, survey.Label(q+1)+" →")
	}
	if len(nav) > 0 {
		b.WriteString(mutedStyle.Render(strings.Join(nav, "   ")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewResponses() string {
	var b strings.Builder
	b.WriteString(m.viewQuestion())

	res := m.result()
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Filter: %s • Showing %d of %d responses", res.Filter, res.Shown(), res.Total)))
	b.WriteString("\n")

	switch res.Status {
	case query.StatusNoResponses:
		b.WriteString(subtitleStyle.Render("No responses for this question yet."))
		return b.String()
	case query.StatusNoMatch:
		b.WriteString(subtitleStyle.Render("No responses match the current filter."))
		return b.String()
	}

	header := b.String()
	budget := m.height - lipgloss.Height(header) - 10
	if budget < 5 {
		budget = 5
	}

	cards := make([]string, len(res.Cards))
	for i, c := range res.Cards {
		cards[i] = m.viewCard(c, i == m.cursor)
	}

	// Keep the cursor card on screen
	offset := 0
	for offset < m.cursor && heightOf(cards[offset:m.cursor+1]) > budget {
		offset++
	}

	used := 0
	for i := offset; i < len(cards); i++ {
		h := lipgloss.Height(cards[i])
		if used > 0 && used+h > budget {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("… %d more", len(cards)-i)))
			break
		}
		b.WriteString(cards[i])
		b.WriteString("\n")
		used += h
	}

	return b.String()
}

func heightOf(blocks []string) int {
	h := 0
	for _, s := range blocks {
		h += lipgloss.Height(s)
	}
	return h
}

func (m Model) viewCard(c query.Card, selected bool) string {
	var b strings.Builder

	b.WriteString(studentStyle.Render(c.Row.StudentID))
	b.WriteString("  ")
	b.WriteString(m.answers.badge(c.Answer))
	if c.TopVoted {
		b.WriteString("  ")
		b.WriteString(topVotedStyle.Render("★ Top voted"))
	}
	b.WriteString("\n")

	explanation := c.Answer.DisplayExplanation(m.config.MaxExplanationLength)
	if c.Answer.HasExplanation() {
		b.WriteString(explanation)
	} else {
		b.WriteString(subtitleStyle.Render(explanation))
	}

	if m.config.EnableVoting {
		b.WriteString("\n")
		switch {
		case m.pending[c.Key]:
			b.WriteString(pendingStyle.Render(fmt.Sprintf("%s Voting... (%d)", m.spinner.View(), c.Votes)))
		case c.Voted:
			b.WriteString(votedStyle.Render(fmt.Sprintf("✓ Voted (%d)", c.Votes)))
		default:
			b.WriteString(mutedStyle.Render(fmt.Sprintf("▲ %d", c.Votes)))
		}
	}

	style := cardStyle
	if selected {
		style = selectedCardStyle
	}
	if m.width > 0 {
		style = style.Width(m.width - 8)
	}
	return style.Render(b.String())
}

func noticeStyle(l viewer.Level) lipgloss.Style {
	switch l {
	case viewer.LevelSuccess:
		return successStyle
	case viewer.LevelWarning:
		return warningStyle
	case viewer.LevelError:
		return errorStyle
	default:
		return infoStyle
	}
}

func Run(cfg *config.Config, v *viewer.Viewer) error {
	m := NewModel(cfg, v)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package survey

import (
	"strings"
	"unicode/utf8"
)

// Choice is one of the closed set of checklist answers.
type Choice string

const (
	Yes      Choice = "Yes"
	No       Choice = "No"
	CantTell Choice = "Can't Tell"
)

// Choices lists the recognised answers in chart order.
var Choices = []Choice{Yes, No, CantTell}

const noExplanation = "No explanation provided"

type Question struct {
	Text           string `json:"questionText"`
	ConsiderPrompt string `json:"considerPrompt"` // bullet blob, lines joined with "\n• "
}

// ConsiderPrompts splits the prompt blob back into lines, dropping bullet markers
func (q Question) ConsiderPrompts() []string {
	var prompts []string
	for _, line := range strings.Split(q.ConsiderPrompt, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "•") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "•"))
		} else if strings.HasPrefix(line, "-") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		}
		if line != "" {
			prompts = append(prompts, line)
		}
	}
	return prompts
}

type Answer struct {
	Value       string `json:"answer"`
	Explanation string `json:"explanation"`
}

// Choice reports the recognised answer, or false for missing/unknown values
func (a Answer) Choice() (Choice, bool) {
	switch c := Choice(a.Value); c {
	case Yes, No, CantTell:
		return c, true
	}
	return "", false
}

// HasExplanation is false for empty and placeholder explanations
func (a Answer) HasExplanation() bool {
	text := strings.TrimSpace(a.Explanation)
	switch strings.ToLower(text) {
	case "", "-", "n/a":
		return false
	}
	return true
}

// DisplayExplanation returns the explanation as shown on a card, truncated to
// limit runes. A limit of zero or less disables truncation.
func (a Answer) DisplayExplanation(limit int) string {
	if !a.HasExplanation() {
		return noExplanation
	}
	text := a.Explanation
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// Row is one respondent's answers, one slot per question.
type Row struct {
	Index     int       `json:"index"`
	StudentID string    `json:"studentId"`
	Answers   []*Answer `json:"answers"`
}

// AnswerAt returns the answer for question q, or nil when unanswered or out of range
func (r Row) AnswerAt(q int) *Answer {
	if q < 0 || q >= len(r.Answers) {
		return nil
	}
	return r.Answers[q]
}

// Complete reports whether every one of n questions has a recognised answer
func (r Row) Complete(n int) bool {
	if n <= 0 {
		return false
	}
	for q := 0; q < n; q++ {
		a := r.AnswerAt(q)
		if a == nil {
			return false
		}
		if _, ok := a.Choice(); !ok {
			return false
		}
	}
	return true
}

type Model struct {
	Questions     []Question `json:"questions"`
	Responses     []Row      `json:"responses"`
	TotalStudents int        `json:"totalStudents"`
	LastUpdated   string     `json:"lastUpdated,omitempty"`
}

func (m *Model) QuestionCount() int {
	if m == nil {
		return 0
	}
	return len(m.Questions)
}

// Question returns the question at index q
func (m *Model) Question(q int) (Question, bool) {
	if m == nil || q < 0 || q >= len(m.Questions) {
		return Question{}, false
	}
	return m.Questions[q], true
}

// Row finds a respondent by its upstream row index
func (m *Model) Row(index int) (Row, bool) {
	if m == nil {
		return Row{}, false
	}
	for _, r := range m.Responses {
		if r.Index == index {
			return r, true
		}
	}
	return Row{}, false
}

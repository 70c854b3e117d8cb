package stats

import (
	"fmt"
	"slices"

	"caspview/internal/survey"
	"caspview/internal/votes"
)

// DefaultTopVoted is how many responses the top-voted chart shows.
const DefaultTopVoted = 5

// Slice is one segment of the answer distribution chart.
type Slice struct {
	Choice survey.Choice
	Count  int
}

// Entry is one bar of a ranked chart.
type Entry struct {
	Label string
	Value float64
}

type Completion struct {
	Completed int
	Total     int
	Rate      float64 // percent
}

func (c Completion) String() string {
	return fmt.Sprintf("%d of %d students (%.1f%%) completed all questions", c.Completed, c.Total, c.Rate)
}

// Distribution counts the recognised answers to question q
func Distribution(model *survey.Model, q int) []Slice {
	counts := make(map[survey.Choice]int, len(survey.Choices))
	if model != nil {
		for _, r := range model.Responses {
			a := r.AnswerAt(q)
			if a == nil {
				continue
			}
			if c, ok := a.Choice(); ok {
				counts[c]++
			}
		}
	}

	out := make([]Slice, 0, len(survey.Choices))
	for _, c := range survey.Choices {
		out = append(out, Slice{Choice: c, Count: counts[c]})
	}
	return out
}

type voted struct {
	key   votes.Key
	label string
	count int
}

// TopVoted returns the n highest voted responses across all questions,
// labelled "<student> (Q<n>)". Counts for unknown rows are skipped.
func TopVoted(model *survey.Model, counts votes.Counts, n int) []Entry {
	if model == nil || n <= 0 {
		return nil
	}

	var all []voted
	for k, c := range counts {
		if c <= 0 {
			continue
		}
		row, ok := model.Row(k.Row)
		if !ok {
			continue
		}
		all = append(all, voted{
			key:   k,
			label: fmt.Sprintf("%s (%s)", row.StudentID, survey.Label(k.Question)),
			count: c,
		})
	}

	// Map iteration is random; order ties by question then row so output is stable.
	slices.SortFunc(all, func(a, b voted) int {
		if a.count != b.count {
			return b.count - a.count
		}
		if a.key.Question != b.key.Question {
			return a.key.Question - b.key.Question
		}
		return a.key.Row - b.key.Row
	})

	if len(all) > n {
		all = all[:n]
	}

	entries := make([]Entry, 0, len(all))
	for _, v := range all {
		entries = append(entries, Entry{Label: v.label, Value: float64(v.count)})
	}
	return entries
}

// Uncertainty ranks questions by the share of recognised answers that are
// "Can't Tell", highest first
func Uncertainty(model *survey.Model) []Entry {
	if model == nil {
		return nil
	}

	entries := make([]Entry, 0, len(model.Questions))
	for q := range model.Questions {
		total, cantTell := 0, 0
		for _, r := range model.Responses {
			a := r.AnswerAt(q)
			if a == nil {
				continue
			}
			c, ok := a.Choice()
			if !ok {
				continue
			}
			total++
			if c == survey.CantTell {
				cantTell++
			}
		}

		pct := 0.0
		if total > 0 {
			pct = float64(cantTell) / float64(total) * 100
		}
		entries = append(entries, Entry{Label: survey.Label(q), Value: pct})
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
	return entries
}

// CompletionRate counts respondents with a recognised answer for every question
func CompletionRate(model *survey.Model) Completion {
	if model == nil || len(model.Responses) == 0 {
		return Completion{}
	}

	c := Completion{Total: len(model.Responses)}
	for _, r := range model.Responses {
		if r.Complete(model.QuestionCount()) {
			c.Completed++
		}
	}
	c.Rate = float64(c.Completed) / float64(c.Total) * 100
	return c
}

// Package session holds the viewer's navigation state. Every transition is a
// value method that returns the next State, so the UI can swap states without
// shared mutation.
package session

import (
	"caspview/internal/query"
)

// State is the current question, filter and refresh schedule.
//
// Generation identifies the live refresh schedule. Any change to the schedule
// bumps it, so ticks scheduled under an older generation are ignored.
type State struct {
	Question      int
	QuestionCount int
	Filter        query.Filter
	AutoRefresh   bool
	Generation    uint64
}

// New returns a state on the first question with no filter
func New(questionCount int, autoRefresh bool) State {
	s := State{QuestionCount: questionCount, Filter: query.All}
	if autoRefresh {
		s = s.StartAutoRefresh()
	}
	return s
}

func (s State) clamp(i int) int {
	if s.QuestionCount <= 0 || i < 0 {
		return 0
	}
	if i > s.QuestionCount-1 {
		return s.QuestionCount - 1
	}
	return i
}

// GoToQuestion moves to question i, clamped to the valid range
func (s State) GoToQuestion(i int) State {
	s.Question = s.clamp(i)
	return s
}

func (s State) Next() State {
	return s.GoToQuestion(s.Question + 1)
}

func (s State) Previous() State {
	return s.GoToQuestion(s.Question - 1)
}

func (s State) HasPrevious() bool {
	return s.Question > 0
}

func (s State) HasNext() bool {
	return s.Question < s.QuestionCount-1
}

// WithQuestionCount adopts a new question count, keeping the current question in range
func (s State) WithQuestionCount(n int) State {
	s.QuestionCount = n
	s.Question = s.clamp(s.Question)
	return s
}

// SetFilter rejects anything but the four valid filters and leaves s unchanged
func (s State) SetFilter(f string) (State, error) {
	parsed, err := query.ParseFilter(f)
	if err != nil {
		return s, err
	}
	s.Filter = parsed
	return s, nil
}

// StartAutoRefresh enables refresh under a new generation, which cancels any
// schedule already running
func (s State) StartAutoRefresh() State {
	s.AutoRefresh = true
	s.Generation++
	return s
}

// Stop cancels the refresh schedule
func (s State) Stop() State {
	s.AutoRefresh = false
	s.Generation++
	return s
}

func (s State) ToggleAutoRefresh() State {
	if s.AutoRefresh {
		return s.Stop()
	}
	return s.StartAutoRefresh()
}

// AcceptTick reports whether a tick scheduled under gen belongs to the live schedule
func (s State) AcceptTick(gen uint64) bool {
	return s.AutoRefresh && gen == s.Generation
}

package query

import (
	"errors"
	"reflect"
	"testing"

	"caspview/internal/survey"
	"caspview/internal/votes"
)

const totalQuestions = 13

func answersAt(q int, a *survey.Answer) []*survey.Answer {
	answers := make([]*survey.Answer, totalQuestions)
	answers[q] = a
	return answers
}

// scenarioModel builds rows 5, 2, 9 in that discovery order for question 0
func scenarioModel() *survey.Model {
	return &survey.Model{
		Questions: make([]survey.Question, totalQuestions),
		Responses: []survey.Row{
			{Index: 5, StudentID: "S5", Answers: answersAt(0, &survey.Answer{Value: "Yes", Explanation: "a"})},
			{Index: 2, StudentID: "S2", Answers: answersAt(0, &survey.Answer{Value: "No", Explanation: "b"})},
			{Index: 9, StudentID: "S9", Answers: answersAt(0, &survey.Answer{Value: "Yes", Explanation: "c"})},
		},
	}
}

func scenarioLedger() *votes.Ledger {
	l := votes.NewLedger(nil)
	l.Replace(votes.Counts{{Question: 0, Row: 5}: 2, {Question: 0, Row: 2}: 2})
	return l
}

func ids(cards []Card) []int {
	var out []int
	for _, c := range cards {
		out = append(out, c.Row.Index)
	}
	return out
}

func TestViewScenarioAll(t *testing.T) {
	res := View(scenarioModel(), scenarioLedger(), 0, All)

	if res.Status != StatusOK {
		t.Fatalf("Expected StatusOK, got %v", res.Status)
	}
	if got := ids(res.Cards); !reflect.DeepEqual(got, []int{5, 2, 9}) {
		t.Fatalf("Expected order [5 2 9], got %v", got)
	}
	if res.MaxVotes != 2 {
		t.Errorf("Expected maxVotes 2, got %d", res.MaxVotes)
	}

	wantTop := []bool{true, true, false}
	wantVotes := []int{2, 2, 0}
	for i, c := range res.Cards {
		if c.TopVoted != wantTop[i] {
			t.Errorf("Card %d: expected TopVoted %v", c.Row.Index, wantTop[i])
		}
		if c.Votes != wantVotes[i] {
			t.Errorf("Card %d: expected %d votes, got %d", c.Row.Index, wantVotes[i], c.Votes)
		}
	}
	if res.Total != 3 || res.Shown() != 3 {
		t.Errorf("Expected 3 of 3 shown, got %d of %d", res.Shown(), res.Total)
	}
}

func TestViewScenarioFilterNo(t *testing.T) {
	res := View(scenarioModel(), scenarioLedger(), 0, No)

	if got := ids(res.Cards); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("Expected only [2], got %v", got)
	}
	if res.Total != 3 {
		t.Errorf("Expected total before filtering to be 3, got %d", res.Total)
	}
	if !res.Cards[0].TopVoted {
		t.Error("Expected sole card with votes to be top voted")
	}
}

func TestViewSortIsStable(t *testing.T) {
	model := &survey.Model{Questions: make([]survey.Question, totalQuestions)}
	for _, idx := range []int{8, 3, 11, 1, 6, 4} {
		model.Responses = append(model.Responses, survey.Row{
			Index:   idx,
			Answers: answersAt(2, &survey.Answer{Value: "Can't Tell"}),
		})
	}
	l := votes.NewLedger(nil)
	l.Replace(votes.Counts{{Question: 2, Row: 11}: 1, {Question: 2, Row: 6}: 1})

	want := []int{11, 6, 8, 3, 1, 4}
	for i := 0; i < 20; i++ {
		res := View(model, l, 2, All)
		if got := ids(res.Cards); !reflect.DeepEqual(got, want) {
			t.Fatalf("Run %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestViewAllZeroVotesHighlightsNothing(t *testing.T) {
	res := View(scenarioModel(), votes.NewLedger(nil), 0, All)

	if res.MaxVotes != 0 {
		t.Errorf("Expected maxVotes 0, got %d", res.MaxVotes)
	}
	for _, c := range res.Cards {
		if c.TopVoted {
			t.Errorf("Card %d must not be top voted when all counts are zero", c.Row.Index)
		}
	}
}

func TestViewVotedFlag(t *testing.T) {
	l := votes.NewLedger([]votes.Key{{Question: 0, Row: 9}})
	res := View(scenarioModel(), l, 0, All)

	for _, c := range res.Cards {
		if c.Voted != (c.Row.Index == 9) {
			t.Errorf("Card %d: unexpected Voted=%v", c.Row.Index, c.Voted)
		}
	}
}

func TestViewEmptyStates(t *testing.T) {
	model := scenarioModel()

	if res := View(model, votes.NewLedger(nil), 4, All); res.Status != StatusNoResponses {
		t.Errorf("Expected StatusNoResponses for unanswered question, got %v", res.Status)
	}
	if res := View(model, votes.NewLedger(nil), 0, CantTell); res.Status != StatusNoMatch {
		t.Errorf("Expected StatusNoMatch for empty filter result, got %v", res.Status)
	}
	if res := View(nil, votes.NewLedger(nil), 0, All); res.Status != StatusNoResponses {
		t.Errorf("Expected StatusNoResponses for nil model, got %v", res.Status)
	}
	if res := View(model, votes.NewLedger(nil), 99, All); res.Status != StatusNoResponses || len(res.Cards) != 0 {
		t.Errorf("Expected out of range question to be empty, got %+v", res)
	}
}

func TestViewDoesNotMutateModel(t *testing.T) {
	model := scenarioModel()
	View(model, scenarioLedger(), 0, All)

	if got := []int{model.Responses[0].Index, model.Responses[1].Index, model.Responses[2].Index}; !reflect.DeepEqual(got, []int{5, 2, 9}) {
		t.Errorf("View reordered the model: %v", got)
	}
}

func TestParseFilter(t *testing.T) {
	for _, s := range []string{"all", "Yes", "No", "Can't Tell"} {
		if f, err := ParseFilter(s); err != nil || string(f) != s {
			t.Errorf("ParseFilter(%q) = %q, %v", s, f, err)
		}
	}

	for _, s := range []string{"", "ALL", "yes", "Cant Tell", "maybe"} {
		if _, err := ParseFilter(s); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("ParseFilter(%q): expected ErrInvalidFilter, got %v", s, err)
		}
	}
}

func TestFilterNext(t *testing.T) {
	f := All
	var seen []Filter
	for i := 0; i < 4; i++ {
		f = f.Next()
		seen = append(seen, f)
	}
	if !reflect.DeepEqual(seen, []Filter{Yes, No, CantTell, All}) {
		t.Errorf("Unexpected cycle %v", seen)
	}
}

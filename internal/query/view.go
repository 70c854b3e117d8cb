package query

import (
	"errors"
	"fmt"
	"slices"

	"caspview/internal/survey"
	"caspview/internal/votes"
)

// Filter restricts the cards of a question to one answer.
type Filter string

const (
	All      Filter = "all"
	Yes      Filter = Filter(survey.Yes)
	No       Filter = Filter(survey.No)
	CantTell Filter = Filter(survey.CantTell)
)

// Filters lists the valid filters in UI cycling order.
var Filters = []Filter{All, Yes, No, CantTell}

var ErrInvalidFilter = errors.New("invalid filter")

// ParseFilter accepts only the four valid filter values
func ParseFilter(s string) (Filter, error) {
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// Next returns the filter after f in cycling order
func (f Filter) Next() Filter {
	i := slices.Index(Filters, f)
	return Filters[(i+1)%len(Filters)]
}

func (f Filter) String() string {
	if f == All {
		return "All answers"
	}
	return string(f)
}

func (f Filter) matches(a *survey.Answer) bool {
	return f == All || a.Value == string(f)
}

// VoteSource is the read side of the vote ledger.
type VoteSource interface {
	Count(k votes.Key) int
	HasVoted(k votes.Key) bool
}

type Status int

const (
	StatusOK Status = iota
	StatusNoResponses
	StatusNoMatch
)

// Card is one response as shown for the current question.
type Card struct {
	Row      survey.Row
	Answer   survey.Answer
	Key      votes.Key
	Votes    int
	TopVoted bool
	Voted    bool
}

type Result struct {
	Question int
	Filter   Filter
	Cards    []Card
	MaxVotes int
	Total    int // respondents who answered the question, before filtering
	Status   Status
}

// Shown is the number of cards after filtering
func (r Result) Shown() int {
	return len(r.Cards)
}

// View computes the ordered cards for one question. It is pure: select the
// rows that answered, apply the filter, stable-sort by votes descending, then
// flag the cards holding the highest non-zero count.
func View(model *survey.Model, source VoteSource, question int, filter Filter) Result {
	res := Result{Question: question, Filter: filter}
	if model == nil {
		res.Status = StatusNoResponses
		return res
	}

	var cards []Card
	for _, row := range model.Responses {
		a := row.AnswerAt(question)
		if a == nil {
			continue
		}
		res.Total++
		if !filter.matches(a) {
			continue
		}
		k := votes.Key{Question: question, Row: row.Index}
		cards = append(cards, Card{
			Row:    row,
			Answer: *a,
			Key:    k,
			Votes:  source.Count(k),
			Voted:  source.HasVoted(k),
		})
	}

	switch {
	case res.Total == 0:
		res.Status = StatusNoResponses
		return res
	case len(cards) == 0:
		res.Status = StatusNoMatch
		return res
	}

	slices.SortStableFunc(cards, func(a, b Card) int {
		return b.Votes - a.Votes
	})

	res.MaxVotes = cards[0].Votes
	for i := range cards {
		cards[i].TopVoted = res.MaxVotes > 0 && cards[i].Votes == res.MaxVotes
	}

	res.Cards = cards
	return res
}

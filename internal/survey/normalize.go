package survey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned when a payload has no recognisable question list.
var ErrMalformedPayload = errors.New("malformed payload")

// bulletSeparator joins embedded CONSIDER prompt lists into one blob.
const bulletSeparator = "\n• "

type rawPayload struct {
	Questions     json.RawMessage `json:"questions"`
	Responses     []rawRow        `json:"responses"`
	TotalStudents int             `json:"totalStudents"`
	LastUpdated   flexString      `json:"lastUpdated"`
}

type rawQuestion struct {
	QuestionText    string          `json:"questionText"`
	Text            string          `json:"text"`
	ConsiderPrompt  string          `json:"considerPrompt"`
	ConsiderPrompts json.RawMessage `json:"considerPrompts"`
	Responses       []rawResponse   `json:"responses"`
}

// rawResponse is one entry of a question's embedded response list.
type rawResponse struct {
	RowIndex        *int       `json:"rowIndex"`
	StudentRowIndex *int       `json:"studentRowIndex"`
	StudentID       flexString `json:"studentId"`
	Answer          flexString `json:"answer"`
	Explanation     flexString `json:"explanation"`
}

type rawRow struct {
	Index           *int         `json:"index"`
	RowIndex        *int         `json:"rowIndex"`
	StudentRowIndex *int         `json:"studentRowIndex"`
	StudentID       flexString   `json:"studentId"`
	Answers         []*rawAnswer `json:"answers"`
}

type rawAnswer struct {
	Answer      flexString `json:"answer"`
	Explanation flexString `json:"explanation"`
}

func (a *rawAnswer) answer() *Answer {
	if a == nil {
		return nil
	}
	return &Answer{Value: string(a.Answer), Explanation: string(a.Explanation)}
}

// flexString accepts JSON strings and numbers; spreadsheet cells come back as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func firstIndex(candidates ...*int) (int, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return 0, false
}

func (q rawQuestion) text() string {
	if q.QuestionText != "" {
		return q.QuestionText
	}
	return q.Text
}

// prompt returns the CONSIDER blob. A list is joined with the bullet separator,
// a string is used as-is.
func (q rawQuestion) prompt() string {
	raw := bytes.TrimSpace(q.ConsiderPrompts)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return q.ConsiderPrompt
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, bulletSeparator)
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return q.ConsiderPrompt
}

// Normalize converts either API payload shape into the canonical model.
//
// A payload is nested when its first question carries a non-empty embedded
// responses list; otherwise it is flat and passes through with rows padded to
// the question count.
func Normalize(raw []byte) (*Model, error) {
	var payload rawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	qraw := bytes.TrimSpace(payload.Questions)
	if len(qraw) == 0 || qraw[0] != '[' {
		return nil, fmt.Errorf("%w: no question list", ErrMalformedPayload)
	}

	var questions []rawQuestion
	if err := json.Unmarshal(qraw, &questions); err != nil {
		return nil, fmt.Errorf("%w: questions: %v", ErrMalformedPayload, err)
	}

	model := &Model{
		Questions:     make([]Question, 0, len(questions)),
		TotalStudents: payload.TotalStudents,
		LastUpdated:   string(payload.LastUpdated),
	}
	for _, q := range questions {
		model.Questions = append(model.Questions, Question{
			Text:           q.text(),
			ConsiderPrompt: q.prompt(),
		})
	}

	if len(questions) > 0 && len(questions[0].Responses) > 0 {
		model.Responses = collectNested(questions)
	} else {
		model.Responses = collectFlat(payload.Responses)
	}

	for i := range model.Responses {
		model.Responses[i].Answers = pad(model.Responses[i].Answers, len(model.Questions))
	}

	return model, nil
}

// collectNested folds per-question response lists into per-student rows,
// keeping rows in the order their row index was first seen.
func collectNested(questions []rawQuestion) []Row {
	byIndex := make(map[int]*Row)
	var order []int

	for qIndex, q := range questions {
		for _, r := range q.Responses {
			idx, ok := firstIndex(r.RowIndex, r.StudentRowIndex)
			if !ok {
				continue
			}

			row, seen := byIndex[idx]
			if !seen {
				row = &Row{Index: idx, StudentID: string(r.StudentID)}
				byIndex[idx] = row
				order = append(order, idx)
			}

			row.Answers = pad(row.Answers, qIndex+1)
			row.Answers[qIndex] = &Answer{Value: string(r.Answer), Explanation: string(r.Explanation)}
		}
	}

	rows := make([]Row, 0, len(order))
	for _, idx := range order {
		rows = append(rows, *byIndex[idx])
	}
	return rows
}

func collectFlat(raw []rawRow) []Row {
	rows := make([]Row, 0, len(raw))
	for i, r := range raw {
		idx, ok := firstIndex(r.Index, r.RowIndex, r.StudentRowIndex)
		if !ok {
			idx = i
		}
		var answers []*Answer
		for _, a := range r.Answers {
			answers = append(answers, a.answer())
		}
		rows = append(rows, Row{
			Index:     idx,
			StudentID: string(r.StudentID),
			Answers:   answers,
		})
	}
	return rows
}

// pad extends answers with nil slots up to n. It never truncates.
func pad(answers []*Answer, n int) []*Answer {
	for len(answers) < n {
		answers = append(answers, nil)
	}
	return answers
}

// Label returns "Q<n>" for a zero-based question index
func Label(q int) string {
	return "Q" + strconv.Itoa(q+1)
}

package votes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Key identifies one response card: a question and a respondent row.
type Key struct {
	Question int
	Row      int
}

var keyPattern = regexp.MustCompile(`^q(\d+)_s(\d+)$`)

// String renders the key-encoded form "q<question>_s<row>"
func (k Key) String() string {
	return fmt.Sprintf("q%d_s%d", k.Question, k.Row)
}

// ParseKey parses the key-encoded form
func ParseKey(s string) (Key, bool) {
	m := keyPattern.FindStringSubmatch(s)
	if m == nil {
		return Key{}, false
	}
	q, err := strconv.Atoi(m[1])
	if err != nil {
		return Key{}, false
	}
	r, err := strconv.Atoi(m[2])
	if err != nil {
		return Key{}, false
	}
	return Key{Question: q, Row: r}, true
}

// MarkKey is the local storage key for a vote mark
func MarkKey(prefix string, k Key) string {
	return prefix + k.String()
}

// ParseMarkKey reverses MarkKey
func ParseMarkKey(prefix, s string) (Key, bool) {
	if !strings.HasPrefix(s, prefix) {
		return Key{}, false
	}
	return ParseKey(strings.TrimPrefix(s, prefix))
}

// Counts holds server-reported vote counts.
type Counts map[Key]int

// Encode renders counts in the key-encoded wire format
func (c Counts) Encode() map[string]int {
	out := make(map[string]int, len(c))
	for k, n := range c {
		out[k.String()] = n
	}
	return out
}

type voteEntry struct {
	QuestionIndex   *int `json:"questionIndex"`
	StudentRowIndex *int `json:"studentRowIndex"`
}

// LoadServerVotes decodes a vote payload. It accepts a key-encoded object
// ({"q0_s3": 2}), an object with a "votes" list, or a bare list of
// {questionIndex, studentRowIndex} entries; list entries accumulate one vote
// each. Anything else yields empty counts.
func LoadServerVotes(raw []byte) Counts {
	counts := Counts{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return counts
	}

	switch raw[0] {
	case '[':
		var entries []voteEntry
		if err := json.Unmarshal(raw, &entries); err == nil {
			accumulate(counts, entries)
		}
		return counts
	case '{':
	default:
		return counts
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return counts
	}

	if list, ok := obj["votes"]; ok {
		var entries []voteEntry
		if err := json.Unmarshal(list, &entries); err == nil {
			accumulate(counts, entries)
			return counts
		}
	}

	for name, value := range obj {
		k, ok := ParseKey(name)
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(value, &n); err != nil {
			continue
		}
		count, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				continue
			}
			count = int64(f)
		}
		if count < 0 {
			continue
		}
		counts[k] = int(count)
	}
	return counts
}

func accumulate(counts Counts, entries []voteEntry) {
	for _, e := range entries {
		if e.QuestionIndex == nil || e.StudentRowIndex == nil {
			continue
		}
		counts[Key{Question: *e.QuestionIndex, Row: *e.StudentRowIndex}]++
	}
}

// Ledger combines server counts with the set of cards this client has voted for.
// It does no I/O; callers persist marks and fetch counts.
type Ledger struct {
	counts Counts
	marks  map[Key]bool
}

// NewLedger creates a ledger seeded with previously stored marks
func NewLedger(marks []Key) *Ledger {
	l := &Ledger{
		counts: Counts{},
		marks:  make(map[Key]bool, len(marks)),
	}
	for _, k := range marks {
		l.marks[k] = true
	}
	return l
}

// Count returns the vote count for a card, zero when unknown
func (l *Ledger) Count(k Key) int {
	if l == nil {
		return 0
	}
	return l.counts[k]
}

// HasVoted reports whether this client has a mark for the card
func (l *Ledger) HasVoted(k Key) bool {
	if l == nil {
		return false
	}
	return l.marks[k]
}

// RecordLocalVote marks k and bumps its count by one. It is a no-op when k is
// already marked. Call it only after the server confirmed the vote.
func (l *Ledger) RecordLocalVote(k Key) bool {
	if l.marks[k] {
		return false
	}
	l.marks[k] = true
	l.counts[k]++
	return true
}

// Replace swaps in a server snapshot wholesale. Pairs missing from it drop to
// zero; marks are left alone.
func (l *Ledger) Replace(server Counts) {
	l.counts = make(Counts, len(server))
	for k, n := range server {
		l.counts[k] = n
	}
}

// AddMarks records marks found in storage without touching counts
func (l *Ledger) AddMarks(marks []Key) {
	for _, k := range marks {
		l.marks[k] = true
	}
}

// Counts returns a copy of the current counts
func (l *Ledger) Counts() Counts {
	out := make(Counts, len(l.counts))
	for k, n := range l.counts {
		out[k] = n
	}
	return out
}

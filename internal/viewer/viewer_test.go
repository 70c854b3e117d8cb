package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"caspview/internal/api"
	"caspview/internal/config"
	"caspview/internal/storage"
	"caspview/internal/survey"
	"caspview/internal/votes"
)

type fakeSource struct {
	model     *survey.Model
	counts    votes.Counts
	loadErr   error
	votesErr  error
	submitErr error
	submitted []votes.Key
}

func (f *fakeSource) FetchResponses(ctx context.Context) (*survey.Model, error) {
	return f.model, f.loadErr
}

func (f *fakeSource) FetchVotes(ctx context.Context) (votes.Counts, error) {
	return f.counts, f.votesErr
}

func (f *fakeSource) SubmitVote(ctx context.Context, k votes.Key) error {
	f.submitted = append(f.submitted, k)
	return f.submitErr
}

func setup(t *testing.T, src *fakeSource) (*Viewer, *storage.Storage) {
	t.Helper()

	store, err := storage.OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	var source Source
	if src != nil {
		source = src
	}
	v := New(&cfg, source, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	v.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return v, store
}

func TestLoad(t *testing.T) {
	src := &fakeSource{
		model:  &survey.Model{Questions: []survey.Question{{Text: "a"}}},
		counts: votes.Counts{{Question: 0, Row: 2}: 3},
	}
	v, store := setup(t, src)
	store.SaveMark(v.cfg.StoragePrefix, votes.Key{Question: 0, Row: 2}, time.Now())

	snap, err := v.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.Model != src.model {
		t.Error("Expected snapshot to carry the fetched model")
	}
	if snap.Counts[votes.Key{Question: 0, Row: 2}] != 3 {
		t.Errorf("Expected server counts, got %v", snap.Counts)
	}
	if len(snap.Marks) != 1 {
		t.Errorf("Expected one local mark, got %v", snap.Marks)
	}
	if !snap.LoadedAt.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected LoadedAt %v", snap.LoadedAt)
	}
}

func TestLoadVotesFailureDegrades(t *testing.T) {
	src := &fakeSource{
		model:    &survey.Model{},
		votesErr: &api.TransportError{Op: "fetch votes", StatusCode: 500},
	}
	v, _ := setup(t, src)

	snap, err := v.Load(context.Background())
	if err != nil {
		t.Fatalf("Expected load to succeed without votes, got %v", err)
	}
	if snap.VotesErr == nil {
		t.Error("Expected VotesErr to be reported")
	}
	if snap.Counts == nil || len(snap.Counts) != 0 {
		t.Errorf("Expected empty counts, got %v", snap.Counts)
	}
}

func TestLoadSkipsVotesWhenDisabled(t *testing.T) {
	src := &fakeSource{model: &survey.Model{}, votesErr: errors.New("must not be called")}
	v, _ := setup(t, src)
	v.cfg.EnableVoting = false

	snap, err := v.Load(context.Background())
	if err != nil || snap.VotesErr != nil {
		t.Errorf("Expected vote fetch to be skipped, got err=%v votesErr=%v", err, snap.VotesErr)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		v, _ := setup(t, nil)
		_, err := v.Load(context.Background())
		if !errors.Is(err, config.ErrNotConfigured) {
			t.Errorf("Expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("transport", func(t *testing.T) {
		v, _ := setup(t, &fakeSource{loadErr: &api.TransportError{Op: "fetch responses", StatusCode: 503}})
		_, err := v.Load(context.Background())
		var te *api.TransportError
		if !errors.As(err, &te) {
			t.Errorf("Expected TransportError, got %v", err)
		}
	})
}

func TestCast(t *testing.T) {
	src := &fakeSource{}
	v, store := setup(t, src)
	k := votes.Key{Question: 3, Row: 7}

	if err := v.Cast(context.Background(), k); err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if has, _ := store.HasMark(v.cfg.StoragePrefix, k); !has {
		t.Error("Expected mark to be persisted after a successful vote")
	}

	err := v.Cast(context.Background(), k)
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("Expected ErrAlreadyVoted, got %v", err)
	}
	if len(src.submitted) != 1 {
		t.Errorf("Expected a single network submission, got %d", len(src.submitted))
	}
}

func TestCastRejectedLeavesNoMark(t *testing.T) {
	src := &fakeSource{submitErr: &api.VoteRejectedError{Key: votes.Key{Question: 1, Row: 1}, Reason: "closed"}}
	v, store := setup(t, src)
	k := votes.Key{Question: 1, Row: 1}

	err := v.Cast(context.Background(), k)
	var rejected *api.VoteRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Expected VoteRejectedError, got %v", err)
	}
	if has, _ := store.HasMark(v.cfg.StoragePrefix, k); has {
		t.Error("Expected no mark after a rejected vote")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		level      Level
		persistent bool
		retryable  bool
	}{
		{"not configured", config.ErrNotConfigured, LevelError, true, false},
		{"transport", &api.TransportError{Op: "fetch responses", StatusCode: 500}, LevelError, true, true},
		{"malformed", survey.ErrMalformedPayload, LevelError, true, true},
		{"rejected", &api.VoteRejectedError{}, LevelError, false, false},
		{"duplicate", ErrAlreadyVoted, LevelInfo, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Classify(tt.err)
			if n.Level != tt.level || n.Persistent != tt.persistent || n.Retryable != tt.retryable {
				t.Errorf("Unexpected notice %+v", n)
			}
			if n.Text == "" {
				t.Error("Expected notice text")
			}
		})
	}

	if n := Classify(nil); n != (Notice{}) {
		t.Errorf("Expected zero notice for nil, got %+v", n)
	}
}

func TestClassifyAlreadyVoted(t *testing.T) {
	wrapped := fmt.Errorf("vote q0 row 5: %w", ErrAlreadyVoted)
	n := Classify(wrapped)
	if n.Text != "You have already voted for this response" {
		t.Errorf("Unexpected text %q", n.Text)
	}
	if ErrAlreadyVoted.Error() == n.Text {
		t.Error("Expected the error string to stay separate from the notice text")
	}
}

func TestClassifyVoteTransport(t *testing.T) {
	n := ClassifyVote(&api.TransportError{Op: "submit vote", Err: errors.New("dial")})
	if n.Persistent {
		t.Error("Expected a vote transport failure to be a toast")
	}
	if n.Text != "Failed to record vote. Please try again." {
		t.Errorf("Unexpected text %q", n.Text)
	}
}

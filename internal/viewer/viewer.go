// Package viewer runs the I/O behind user actions (reload, vote) and turns
// every failure into a notice the UI can show. It never mutates the session
// or ledger; callers apply the returned results on their own loop.
package viewer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"caspview/internal/config"
	"caspview/internal/survey"
	"caspview/internal/votes"
)

// ErrAlreadyVoted short-circuits a vote this client already cast.
var ErrAlreadyVoted = errors.New("already voted")

// Source is the remote API.
type Source interface {
	FetchResponses(ctx context.Context) (*survey.Model, error)
	FetchVotes(ctx context.Context) (votes.Counts, error)
	SubmitVote(ctx context.Context, k votes.Key) error
}

// MarkStore persists local vote marks.
type MarkStore interface {
	LoadMarks(prefix string) ([]votes.Key, error)
	HasMark(prefix string, k votes.Key) (bool, error)
	SaveMark(prefix string, k votes.Key, at time.Time) error
}

// Snapshot is the result of one reload.
type Snapshot struct {
	Model    *survey.Model
	Counts   votes.Counts
	Marks    []votes.Key
	VotesErr error // vote loading failed; Counts is empty
	LoadedAt time.Time
}

type Viewer struct {
	cfg    *config.Config
	source Source
	store  MarkStore
	log    *slog.Logger
	now    func() time.Time
}

// New builds a viewer. source may be nil when the API URL is not configured;
// Load then reports config.ErrNotConfigured.
func New(cfg *config.Config, source Source, store MarkStore, log *slog.Logger) *Viewer {
	return &Viewer{
		cfg:    cfg,
		source: source,
		store:  store,
		log:    log,
		now:    time.Now,
	}
}

// Load fetches responses, then votes when voting is enabled, then reads the
// local marks. A failed vote fetch degrades to empty counts.
func (v *Viewer) Load(ctx context.Context) (Snapshot, error) {
	if v.source == nil {
		return Snapshot{}, config.ErrNotConfigured
	}

	model, err := v.source.FetchResponses(ctx)
	if err != nil {
		v.log.Error("loading responses failed", "error", err)
		return Snapshot{}, err
	}

	snap := Snapshot{Model: model, Counts: votes.Counts{}, LoadedAt: v.now()}

	if v.cfg.EnableVoting {
		counts, err := v.source.FetchVotes(ctx)
		if err != nil {
			v.log.Warn("loading votes failed, continuing without votes", "error", err)
			snap.VotesErr = err
		} else {
			snap.Counts = counts
		}
	}

	marks, err := v.store.LoadMarks(v.cfg.StoragePrefix)
	if err != nil {
		v.log.Warn("reading local vote marks failed", "error", err)
	} else {
		snap.Marks = marks
	}

	return snap, nil
}

// Cast submits one vote. It checks the local mark before any network call and
// stores the mark only after the server accepted the vote.
func (v *Viewer) Cast(ctx context.Context, k votes.Key) error {
	if v.source == nil {
		return config.ErrNotConfigured
	}

	voted, err := v.store.HasMark(v.cfg.StoragePrefix, k)
	if err != nil {
		v.log.Warn("reading vote mark failed", "key", k.String(), "error", err)
	}
	if voted {
		return ErrAlreadyVoted
	}

	if err := v.source.SubmitVote(ctx, k); err != nil {
		v.log.Error("vote failed", "key", k.String(), "error", err)
		return err
	}

	if err := v.store.SaveMark(v.cfg.StoragePrefix, k, v.now()); err != nil {
		// The server has the vote; only the local guard is lost.
		v.log.Error("saving vote mark failed", "key", k.String(), "error", err)
	}
	return nil
}

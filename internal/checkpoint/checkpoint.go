// Package checkpoint persists pipeline snapshots keyed by run identifier.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/pipeline"
)

// ErrNotFound is returned by Latest when a run has no checkpoints.
var ErrNotFound = errors.New("checkpoint: not found")

// Message is the stored form of a pipeline message.
type Message struct {
	Sender   string   `json:"sender" firestore:"sender"`
	Content  string   `json:"content" firestore:"content"`
	Approved bool     `json:"approved,omitempty" firestore:"approved"`
	Issues   []string `json:"issues,omitempty" firestore:"issues"`
}

// Checkpoint is one snapshot of a run, taken after a stage executed.
type Checkpoint struct {
	RunID     string    `json:"runId" firestore:"runId"`
	Step      int       `json:"step" firestore:"step"`
	Sender    string    `json:"sender" firestore:"sender"`
	Count     int       `json:"count" firestore:"count"`
	Messages  []Message `json:"messages" firestore:"messages"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// FromState converts a snapshot into its stored form.
func FromState(runID string, step int, s pipeline.State) Checkpoint {
	msgs := s.Messages()
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{
			Sender:   string(m.Sender),
			Content:  m.Content,
			Approved: m.Verdict.IsApproved(),
			Issues:   m.Verdict.Issues(),
		}
	}
	return Checkpoint{
		RunID:     runID,
		Step:      step,
		Sender:    string(s.Sender()),
		Count:     s.Count(),
		Messages:  out,
		CreatedAt: time.Now().UTC(),
	}
}

// Store keeps the checkpoints of many runs. Implementations are safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, cp Checkpoint) error
	// Latest returns the checkpoint with the highest step, or ErrNotFound.
	Latest(ctx context.Context, runID string) (Checkpoint, error)
	// List returns a run's checkpoints ordered by step.
	List(ctx context.Context, runID string) ([]Checkpoint, error)
	// Clear removes every checkpoint of a run.
	Clear(ctx context.Context, runID string) error
}

// Recorder plugs a Store into the pipeline controller.
type Recorder struct {
	Store Store
}

// NewRecorder returns a Recorder saving into store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{Store: store}
}

// Checkpoint implements pipeline.Checkpointer. The first step of a run
// drops checkpoints left by an earlier attempt with the same run ID.
func (r *Recorder) Checkpoint(ctx context.Context, runID string, step int, s pipeline.State) error {
	if step == 0 {
		if err := r.Store.Clear(ctx, runID); err != nil {
			return fmt.Errorf("failed to clear previous checkpoints: %w", err)
		}
	}
	if err := r.Store.Save(ctx, FromState(runID, step, s)); err != nil {
		return fmt.Errorf("failed to save checkpoint %d: %w", step, err)
	}
	return nil
}

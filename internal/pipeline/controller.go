package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/Lllllllleong/resumeflow/internal/llm"
)

// ErrRunConsumed is yielded when Steps is called on a run that already started.
var ErrRunConsumed = errors.New("pipeline: run already consumed")

// Checkpointer receives every snapshot right after a stage ran. A failing
// checkpoint aborts the run.
type Checkpointer interface {
	Checkpoint(ctx context.Context, runID string, step int, s State) error
}

// Controller owns the routing between stages.
type Controller struct {
	stages         map[Next]Stage
	router         Router
	maxExtractions int
	checkpointer   Checkpointer
	logger         *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithRouter replaces the default Route.
func WithRouter(r Router) Option {
	return func(c *Controller) {
		if r != nil {
			c.router = r
		}
	}
}

// WithMaxExtractions sets the extraction ceiling. Values below 1 are ignored.
func WithMaxExtractions(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxExtractions = n
		}
	}
}

func WithCheckpointer(cp Checkpointer) Option {
	return func(c *Controller) { c.checkpointer = cp }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController wires the three stages.
func NewController(reader, extractor, validator Stage, opts ...Option) *Controller {
	c := &Controller{
		stages: map[Next]Stage{
			NextReader:    reader,
			NextExtractor: extractor,
			NextValidator: validator,
		},
		router:         Route,
		maxExtractions: DefaultMaxExtractions,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewModelController builds the stages on a single model with the default prompts.
func NewModelController(model llm.Model, opts ...Option) *Controller {
	return NewController(&Reader{Model: model}, &Extractor{Model: model}, &Validator{Model: model}, opts...)
}

// MaxExtractions reports the configured ceiling.
func (c *Controller) MaxExtractions() int { return c.maxExtractions }

// Step is one stage execution as seen by the caller.
type Step struct {
	RunID   string
	Index   int
	Sender  Sender
	Message Message
	State   State
}

// Run is a single pass over one document. It cannot be restarted.
type Run struct {
	id       string
	c        *Controller
	seed     State
	final    State
	consumed atomic.Bool
}

// Start prepares a run seeded with raw. Nothing executes until Steps is ranged over.
func (c *Controller) Start(runID, raw string) *Run {
	seed := NewState(raw)
	return &Run{id: runID, c: c, seed: seed, final: seed}
}

func (r *Run) ID() string { return r.id }

// Final is the latest state reached; after exhaustion it is the terminal state.
func (r *Run) Final() State { return r.final }

// Steps yields one Step per stage execution and ends when the router
// terminates. A stage, checkpoint or context error is yielded once and
// ends the sequence.
func (r *Run) Steps(ctx context.Context) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			yield(Step{}, ErrRunConsumed)
			return
		}

		c := r.c
		logCtx := c.logger.With("runId", r.id)
		state := r.seed

		for index := 0; ; index++ {
			// Every run starts at the reader; the router decides from then on.
			next := NextReader
			if index > 0 {
				next = c.router(state, c.maxExtractions)
			}
			logCtx.Debug("Routed.", "sender", string(state.Sender()), "count", state.Count(), "next", next.String())
			if next == NextEnd {
				logCtx.Info("Run terminated.", "steps", index, "extractions", state.Count(), "approved", state.Last().Verdict.IsApproved())
				return
			}
			if err := ctx.Err(); err != nil {
				yield(Step{}, err)
				return
			}

			stage, ok := c.stages[next]
			if !ok || stage == nil {
				yield(Step{}, fmt.Errorf("run %s: no stage registered for %s", r.id, next))
				return
			}

			update, err := stage.Execute(ctx, state)
			if err != nil {
				logCtx.Error("Stage failed.", "stage", next.String(), "error", err)
				yield(Step{}, fmt.Errorf("run %s: %w", r.id, err))
				return
			}
			state = state.Apply(update)
			r.final = state

			if c.checkpointer != nil {
				if err := c.checkpointer.Checkpoint(ctx, r.id, index, state); err != nil {
					logCtx.Error("Checkpoint failed.", "step", index, "error", err)
					yield(Step{}, fmt.Errorf("run %s: checkpoint step %d: %w", r.id, index, err))
					return
				}
			}

			step := Step{RunID: r.id, Index: index, Sender: state.Sender(), Message: state.Last(), State: state}
			if !yield(step, nil) {
				return
			}
		}
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/resumeflow/internal/pipeline"
	"github.com/Lllllllleong/resumeflow/internal/present"
)

// Outcome summarizes a finished run.
type Outcome struct {
	RunID    string
	Final    pipeline.State
	Steps    int
	Approved bool
	// Attempts is the number of extractor executions.
	Attempts int
	// Extraction is the last extractor output, empty if the extractor never ran.
	Extraction string
}

// RunDocument drives one run to exhaustion, presenting every step as it is
// produced. A stage or presenter failure stops the run.
func RunDocument(ctx context.Context, ctrl *pipeline.Controller, runID, text string, p present.Presenter) (*Outcome, error) {
	logCtx := slog.With("runId", runID)
	if p == nil {
		p = present.Discard
	}

	run := ctrl.Start(runID, text)
	steps := 0
	for step, err := range run.Steps(ctx) {
		if err != nil {
			return nil, err
		}
		if err := p.Present(ctx, step); err != nil {
			return nil, fmt.Errorf("failed to present %s output: %w", step.Sender, err)
		}
		steps++
	}

	final := run.Final()
	outcome := &Outcome{
		RunID:    runID,
		Final:    final,
		Steps:    steps,
		Approved: final.Last().Verdict.IsApproved(),
		Attempts: final.Count(),
	}
	if m, ok := final.LastFrom(pipeline.SenderExtractor); ok {
		outcome.Extraction = m.Content
	}
	logCtx.Info("Processing complete.", "steps", steps, "attempts", outcome.Attempts, "approved", outcome.Approved)
	return outcome, nil
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/resumeflow/internal/loader"
	"github.com/Lllllllleong/resumeflow/internal/pipeline"
	"github.com/Lllllllleong/resumeflow/internal/present"
)

// FileResult is the result of processing one local file.
type FileResult struct {
	Path    string
	RunID   string
	Outcome *Outcome
	Err     error
}

// Batch processes local resume files, each with its own run.
type Batch struct {
	Controller  *pipeline.Controller
	Loader      *loader.Loader
	MaxFileSize int64
	Parallelism int

	// Out receives every file's output. Files are written whole and in input
	// order, so concurrent runs never interleave.
	Out io.Writer
	// NewPresenter builds the presenter for one file's output.
	NewPresenter func(w io.Writer) present.Presenter
	// Summarize writes the closing line for a file; nil uses a plain text line.
	Summarize func(w io.Writer, r FileResult) error
	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

// ProcessFiles runs every path. Per-file failures are reported in the
// results; the returned error is only set when ctx ends the batch.
func (b *Batch) ProcessFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	buffers := make([]bytes.Buffer, len(paths))

	limit := b.Parallelism
	if limit < 1 {
		limit = 1
	}
	// A single lane streams straight to Out.
	direct := limit == 1 || len(paths) == 1

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, path := range paths {
		var w io.Writer = &buffers[i]
		if direct {
			w = b.out()
		}
		eg.Go(func() error {
			results[i] = b.processFile(gctx, path, w)
			return nil
		})
	}
	_ = eg.Wait()

	if !direct {
		for i := range buffers {
			if _, err := buffers[i].WriteTo(b.out()); err != nil {
				return results, fmt.Errorf("failed to write output for %s: %w", paths[i], err)
			}
		}
	}
	return results, ctx.Err()
}

func (b *Batch) processFile(ctx context.Context, path string, w io.Writer) FileResult {
	runID := b.newRunID()
	res := FileResult{Path: path, RunID: runID}
	logCtx := slog.With("runId", runID, "path", path)

	res.Outcome, res.Err = b.run(ctx, path, runID, w)
	if res.Err != nil {
		logCtx.Error("Failed to process resume.", "error", res.Err)
	}
	if err := b.summarize(w, res); err != nil {
		logCtx.Warn("Failed to write summary.", "error", err)
	}
	return res
}

func (b *Batch) run(ctx context.Context, path, runID string, w io.Writer) (*Outcome, error) {
	if _, err := loader.Detect(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &loader.LoadError{Path: path, Err: err}
	}
	if err := loader.CheckSize(info.Size(), b.MaxFileSize); err != nil {
		return nil, err
	}

	l := b.Loader
	if l == nil {
		l = loader.New()
	}
	segments, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	var p present.Presenter = present.Discard
	if b.NewPresenter != nil {
		p = b.NewPresenter(w)
	}
	return RunDocument(ctx, b.Controller, runID, loader.Join(segments), p)
}

func (b *Batch) summarize(w io.Writer, r FileResult) error {
	if b.Summarize != nil {
		return b.Summarize(w, r)
	}
	return TextSummary(w, r)
}

// TextSummary reports how a file finished.
func TextSummary(w io.Writer, r FileResult) error {
	if r.Err != nil {
		_, err := fmt.Fprintf(w, "%s: error: %v\n", r.Path, r.Err)
		return err
	}
	status := "not approved"
	if r.Outcome.Approved {
		status = "approved"
	}
	_, err := fmt.Fprintf(w, "%s: processing complete (%s after %d extraction(s), run %s)\n",
		r.Path, status, r.Outcome.Attempts, r.RunID)
	return err
}

func (b *Batch) out() io.Writer {
	if b.Out != nil {
		return b.Out
	}
	return os.Stdout
}

func (b *Batch) newRunID() string {
	if b.NewRunID != nil {
		return b.NewRunID()
	}
	return uuid.NewString()
}

// Package present shows agent outputs as a run produces them.
package present

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/Lllllllleong/resumeflow/internal/pipeline"
)

// Presenter consumes the steps of a run in order.
type Presenter interface {
	Present(ctx context.Context, step pipeline.Step) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, step pipeline.Step) error

func (f PresenterFunc) Present(ctx context.Context, step pipeline.Step) error { return f(ctx, step) }

// Discard drops every step.
var Discard Presenter = PresenterFunc(func(context.Context, pipeline.Step) error { return nil })

// Payload converts a step into its JSON form.
func Payload(step pipeline.Step) models.StepPayload {
	return models.StepPayload{
		RunID:    step.RunID,
		Step:     step.Index,
		Sender:   string(step.Sender),
		Message:  step.Message.Content,
		Count:    step.State.Count(),
		Approved: step.Message.Verdict.IsApproved(),
		Issues:   step.Message.Verdict.Issues(),
	}
}

// Title is the heading shown above a step's output.
func Title(sender pipeline.Sender) string {
	return sender.Title() + " Agent Output"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#A0AEC0")).
			Padding(0, 1)
	approvedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	correctionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
)

// Terminal draws each step as a bordered box.
type Terminal struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// NewTerminal renders to w, wrapping content at width columns when width > 0.
func NewTerminal(w io.Writer, width int) *Terminal {
	return &Terminal{w: w, width: width}
}

func (t *Terminal) Present(ctx context.Context, step pipeline.Step) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(Title(step.Sender)))
	b.WriteByte('\n')

	box := boxStyle
	if t.width > 0 {
		box = box.Width(t.width)
	}
	b.WriteString(box.Render(strings.TrimSpace(step.Message.Content)))
	b.WriteByte('\n')

	if v := step.Message.Verdict; !v.IsZero() {
		if v.IsApproved() {
			b.WriteString(approvedStyle.Render("Approved"))
		} else {
			b.WriteString(correctionStyle.Render("Corrections requested"))
		}
		b.WriteByte('\n')
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, b.String())
	return err
}

// NDJSON writes one JSON object per line, flushing after each when the writer
// supports it.
type NDJSON struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

func NewNDJSON(w io.Writer) *NDJSON {
	return &NDJSON{w: w, enc: json.NewEncoder(w)}
}

func (n *NDJSON) Present(ctx context.Context, step pipeline.Step) error {
	return n.WriteLine(Payload(step))
}

// WriteLine encodes v as one line.
func (n *NDJSON) WriteLine(v any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enc.Encode(v); err != nil {
		return err
	}
	if f, ok := n.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// Collector keeps steps in memory.
type Collector struct {
	mu    sync.Mutex
	steps []pipeline.Step
}

func (c *Collector) Present(ctx context.Context, step pipeline.Step) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step)
	return nil
}

// Steps returns the collected steps in arrival order.
func (c *Collector) Steps() []pipeline.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.steps)
}

// Payloads returns the collected steps in JSON form.
func (c *Collector) Payloads() []models.StepPayload {
	steps := c.Steps()
	out := make([]models.StepPayload, len(steps))
	for i, s := range steps {
		out[i] = Payload(s)
	}
	return out
}

// Multi presents each step to every presenter in order, stopping at the
// first error.
func Multi(presenters ...Presenter) Presenter {
	return PresenterFunc(func(ctx context.Context, step pipeline.Step) error {
		for _, p := range presenters {
			if err := p.Present(ctx, step); err != nil {
				return err
			}
		}
		return nil
	})
}

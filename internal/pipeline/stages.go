package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/resumeflow/internal/llm"
)

// Stage is one agent of the pipeline. Execute makes exactly one model call
// and returns the message to append plus the updated extraction count.
type Stage interface {
	Name() Sender
	Execute(ctx context.Context, s State) (Update, error)
}

// Reader normalizes the raw document text without changing its content.
type Reader struct {
	Model  llm.Model
	Prompt string
}

// Extractor produces the structured representation of the resume.
type Extractor struct {
	Model  llm.Model
	Prompt string
}

// Validator checks the latest extraction and answers with a Verdict.
type Validator struct {
	Model  llm.Model
	Prompt string
}

func (r *Reader) Name() Sender    { return SenderReader }
func (e *Extractor) Name() Sender { return SenderExtractor }
func (v *Validator) Name() Sender { return SenderValidator }

func (r *Reader) Execute(ctx context.Context, s State) (Update, error) {
	content, err := complete(ctx, r.Model, SenderReader, orDefault(r.Prompt, ReaderSystemPrompt), s)
	if err != nil {
		return Update{}, err
	}
	return Update{Message: Message{Sender: SenderReader, Content: content}, Count: s.Count()}, nil
}

func (e *Extractor) Execute(ctx context.Context, s State) (Update, error) {
	content, err := complete(ctx, e.Model, SenderExtractor, orDefault(e.Prompt, ExtractorSystemPrompt), s)
	if err != nil {
		return Update{}, err
	}
	return Update{Message: Message{Sender: SenderExtractor, Content: content}, Count: s.Count() + 1}, nil
}

func (v *Validator) Execute(ctx context.Context, s State) (Update, error) {
	content, err := complete(ctx, v.Model, SenderValidator, orDefault(v.Prompt, ValidatorSystemPrompt), s)
	if err != nil {
		return Update{}, err
	}
	return Update{
		Message: Message{Sender: SenderValidator, Content: content, Verdict: ParseVerdict(content)},
		Count:   s.Count(),
	}, nil
}

func complete(ctx context.Context, model llm.Model, stage Sender, system string, s State) (string, error) {
	if model == nil {
		return "", llm.AsModelCallError(string(stage), fmt.Errorf("no model configured"))
	}
	content, err := model.Complete(ctx, system, RenderHistory(s))
	if err != nil {
		return "", llm.AsModelCallError(string(stage), err)
	}
	return content, nil
}

func orDefault(prompt, fallback string) string {
	if strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

// RenderHistory formats the whole conversation as the model input, one
// block per message labelled with its producer.
func RenderHistory(s State) string {
	var b strings.Builder
	for i, m := range s.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n%s", m.Sender.Title(), m.Content)
	}
	return b.String()
}

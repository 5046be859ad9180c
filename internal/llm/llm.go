// Package llm defines the language-model contract the pipeline stages call
// and the helpers shared by the provider adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Model returns a single text completion for a system instruction and an
// input text. Implementations are stateless per call.
type Model interface {
	Complete(ctx context.Context, system, input string) (string, error)
}

// ModelFunc adapts a plain function to Model.
type ModelFunc func(ctx context.Context, system, input string) (string, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, system, input string) (string, error) {
	return f(ctx, system, input)
}

var (
	// ErrEmptyResponse is returned when the provider answers without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrRefusal is returned when the response reads as a refusal to answer.
	ErrRefusal = errors.New("model response indicates refusal")
)

// ModelCallError reports a failed call to a language model. Network, auth,
// rate-limit and provider-side failures are not told apart.
type ModelCallError struct {
	Provider string
	Stage    string
	Err      error
}

func (e *ModelCallError) Error() string {
	var b strings.Builder
	b.WriteString("model call failed")
	if e.Stage != "" {
		fmt.Fprintf(&b, " in %s stage", e.Stage)
	}
	if e.Provider != "" {
		fmt.Fprintf(&b, " (%s)", e.Provider)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// AsModelCallError wraps err as a *ModelCallError for the given stage. An
// error that already is one keeps its provider and gains the stage name.
func AsModelCallError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var mce *ModelCallError
	if errors.As(err, &mce) {
		return &ModelCallError{Provider: mce.Provider, Stage: stage, Err: mce.Err}
	}
	return &ModelCallError{Stage: stage, Err: err}
}

var refusalPhrases = []string{
	"i am unable to",
	"i'm unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"i can't help with",
	"as a large language model",
	"as an ai language model",
}

// CheckRefusal fails when the response opens with a refusal. Phrases later in
// the text are content, since stages echo resume text verbatim.
func CheckRefusal(content string) error {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, phrase := range refusalPhrases {
		if strings.HasPrefix(lower, phrase) {
			return fmt.Errorf("%w: matched %q", ErrRefusal, phrase)
		}
	}
	return nil
}

// CleanText trims whitespace and a single surrounding code fence.
func CleanText(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t") {
		// drop the info string, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Finish applies the shared post-processing to a raw provider answer.
func Finish(provider, raw string) (string, error) {
	content := CleanText(raw)
	if content == "" {
		return "", &ModelCallError{Provider: provider, Err: ErrEmptyResponse}
	}
	if err := CheckRefusal(content); err != nil {
		return "", &ModelCallError{Provider: provider, Err: err}
	}
	return content, nil
}

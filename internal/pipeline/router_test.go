package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/Lllllllleong/resumeflow/internal/llm"
)

func stateAt(sender Sender, count int, last string) State {
	s := NewState("raw text")
	if sender == SenderNone {
		return s
	}
	msg := Message{Sender: sender, Content: last}
	if sender == SenderValidator {
		msg.Verdict = ParseVerdict(last)
	}
	return s.Apply(Update{Message: msg, Count: count})
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		want   Next
		legacy Next
	}{
		{"fresh state goes to reader", NewState("raw text"), NextReader, NextReader},
		{"reader goes to extractor", stateAt(SenderReader, 0, "normalized text"), NextExtractor, NextExtractor},
		{"stop token ends the run", stateAt(SenderValidator, 2, "Yes"), NextEnd, NextEnd},
		{"ceiling ends the run", stateAt(SenderExtractor, 3, `{"Skills":[]}`), NextEnd, NextEnd},
		{"corrections go back to extractor", stateAt(SenderValidator, 1, "- Missing phone number"), NextExtractor, NextExtractor},
		{"extractor goes to validator", stateAt(SenderExtractor, 1, "{}"), NextValidator, NextValidator},
		{"ceiling wins over sender", stateAt(SenderValidator, 3, "- still wrong"), NextEnd, NextEnd},
		{"lowercase yes is not a stop token", stateAt(SenderValidator, 1, "yes"), NextExtractor, NextExtractor},
		{"reader yes only stops legacy", stateAt(SenderReader, 0, "Yes"), NextExtractor, NextEnd},
		{"extractor yes only stops legacy", stateAt(SenderExtractor, 1, "Yes"), NextValidator, NextEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.state, DefaultMaxExtractions); got != tt.want {
				t.Errorf("Route = %s, want %s", got, tt.want)
			}
			if got := RouteLegacy(tt.state, DefaultMaxExtractions); got != tt.legacy {
				t.Errorf("RouteLegacy = %s, want %s", got, tt.legacy)
			}
		})
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	states := []State{
		NewState("raw"),
		stateAt(SenderReader, 0, "n"),
		stateAt(SenderExtractor, 2, "{}"),
		stateAt(SenderValidator, 2, "Yes"),
		stateAt(SenderValidator, 1, "- x"),
	}
	for _, s := range states {
		first := Route(s, DefaultMaxExtractions)
		for i := 0; i < 5; i++ {
			if got := Route(s, DefaultMaxExtractions); got != first {
				t.Fatalf("Route changed from %s to %s", first, got)
			}
		}
	}
}

func TestRouterByName(t *testing.T) {
	for _, name := range []string{"", "validator", "legacy"} {
		if _, err := RouterByName(name); err != nil {
			t.Errorf("RouterByName(%q): %v", name, err)
		}
	}
	if _, err := RouterByName("strict"); err == nil {
		t.Error("expected error for unknown router")
	}
}

func TestNextString(t *testing.T) {
	if NextEnd.String() != "end" || NextValidator.String() != "validator" {
		t.Errorf("unexpected names %s %s", NextEnd, NextValidator)
	}
	if Next(42).String() != "Next(42)" {
		t.Errorf("unexpected fallback %s", Next(42))
	}
}

func TestStateIsImmutable(t *testing.T) {
	seed := NewState("raw")
	a := seed.Apply(Update{Message: Message{Sender: SenderReader, Content: "a"}})
	b := seed.Apply(Update{Message: Message{Sender: SenderReader, Content: "b"}})

	if seed.Len() != 1 || seed.Sender() != SenderNone {
		t.Fatalf("seed changed: len=%d sender=%q", seed.Len(), seed.Sender())
	}
	if a.Last().Content != "a" || b.Last().Content != "b" {
		t.Fatalf("snapshots share storage: a=%q b=%q", a.Last().Content, b.Last().Content)
	}

	msgs := a.Messages()
	msgs[0].Content = "mutated"
	if a.Messages()[0].Content != "raw" {
		t.Error("Messages must return a copy")
	}
}

func TestStateCountNeverDecreases(t *testing.T) {
	s := NewState("raw").Apply(Update{Message: Message{Sender: SenderExtractor}, Count: 2})
	s = s.Apply(Update{Message: Message{Sender: SenderValidator}, Count: 0})
	if s.Count() != 2 {
		t.Errorf("count = %d, want 2", s.Count())
	}
}

func TestStateLastFrom(t *testing.T) {
	s := NewState("raw").
		Apply(Update{Message: Message{Sender: SenderExtractor, Content: "first"}, Count: 1}).
		Apply(Update{Message: Message{Sender: SenderValidator, Content: "- x"}, Count: 1}).
		Apply(Update{Message: Message{Sender: SenderExtractor, Content: "second"}, Count: 2})

	m, ok := s.LastFrom(SenderExtractor)
	if !ok || m.Content != "second" {
		t.Errorf("LastFrom(extractor) = %q, %v", m.Content, ok)
	}
	if _, ok := s.LastFrom(SenderReader); ok {
		t.Error("no reader message expected")
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in       string
		approved bool
		issues   []string
	}{
		{in: "Yes", approved: true},
		{in: " Yes\n", approved: true},
		{in: "yes", issues: []string{"yes"}},
		{in: "Yes, looks good", issues: []string{"Yes, looks good"}},
		{in: "- Missing phone number\n- Wrong graduation year", issues: []string{"Missing phone number", "Wrong graduation year"}},
		{in: "Corrections:\n* Skills incomplete\n1. Email typo", issues: []string{"Skills incomplete", "Email typo"}},
		{in: "• Name misspelled", issues: []string{"Name misspelled"}},
	}
	for _, tt := range tests {
		v := ParseVerdict(tt.in)
		if v.IsApproved() != tt.approved {
			t.Errorf("ParseVerdict(%q).IsApproved() = %v", tt.in, v.IsApproved())
			continue
		}
		if v.IsZero() {
			t.Errorf("ParseVerdict(%q) returned the zero verdict", tt.in)
		}
		got := v.Issues()
		if len(got) != len(tt.issues) {
			t.Errorf("ParseVerdict(%q).Issues() = %v, want %v", tt.in, got, tt.issues)
			continue
		}
		for i := range got {
			if got[i] != tt.issues[i] {
				t.Errorf("ParseVerdict(%q).Issues()[%d] = %q, want %q", tt.in, i, got[i], tt.issues[i])
			}
		}
	}
}

func TestStageUpdates(t *testing.T) {
	model := &fakeModel{
		reader:    []string{"normalized"},
		extractor: []string{"{}"},
		validator: []string{"- fix"},
	}
	ctx := context.Background()
	s := NewState("raw").Apply(Update{Message: Message{Sender: SenderExtractor}, Count: 1})

	u, err := (&Reader{Model: model}).Execute(ctx, s)
	if err != nil || u.Count != 1 || u.Message.Sender != SenderReader {
		t.Errorf("reader update = %+v, %v", u, err)
	}
	u, err = (&Extractor{Model: model}).Execute(ctx, s)
	if err != nil || u.Count != 2 || u.Message.Sender != SenderExtractor {
		t.Errorf("extractor update = %+v, %v", u, err)
	}
	u, err = (&Validator{Model: model}).Execute(ctx, s)
	if err != nil || u.Count != 1 || u.Message.Verdict.IsApproved() || u.Message.Verdict.IsZero() {
		t.Errorf("validator update = %+v, %v", u, err)
	}

	if _, err := (&Reader{}).Execute(ctx, s); err == nil {
		t.Error("expected error without a model")
	}
}

func TestCustomPromptIsUsed(t *testing.T) {
	var gotSystem string
	model := llm.ModelFunc(func(ctx context.Context, system, input string) (string, error) {
		gotSystem = system
		return "ok", nil
	})
	if _, err := (&Reader{Model: model, Prompt: "custom"}).Execute(context.Background(), NewState("raw")); err != nil {
		t.Fatal(err)
	}
	if gotSystem != "custom" {
		t.Errorf("system = %q", gotSystem)
	}

	failing := llm.ModelFunc(func(ctx context.Context, system, input string) (string, error) {
		return "", errors.New("down")
	})
	if _, err := (&Validator{Model: failing}).Execute(context.Background(), NewState("raw")); err == nil {
		t.Error("expected error")
	}
}

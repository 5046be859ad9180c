package present

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/Lllllllleong/resumeflow/internal/pipeline"
)

func validatorStep() pipeline.Step {
	msg := pipeline.Message{
		Sender:  pipeline.SenderValidator,
		Content: "- Missing phone number",
		Verdict: pipeline.NeedsCorrection([]string{"Missing phone number"}),
	}
	state := pipeline.NewState("raw").
		Apply(pipeline.Update{Message: pipeline.Message{Sender: pipeline.SenderExtractor, Content: "{}"}, Count: 1}).
		Apply(pipeline.Update{Message: msg, Count: 1})
	return pipeline.Step{RunID: "run-1", Index: 2, Sender: pipeline.SenderValidator, Message: msg, State: state}
}

func TestTitle(t *testing.T) {
	tests := map[pipeline.Sender]string{
		pipeline.SenderReader:    "Reader Agent Output",
		pipeline.SenderExtractor: "Extractor Agent Output",
		pipeline.SenderValidator: "Validator Agent Output",
	}
	for sender, want := range tests {
		if got := Title(sender); got != want {
			t.Errorf("Title(%s) = %q, want %q", sender, got, want)
		}
	}
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTerminal(&buf, 60).Present(context.Background(), validatorStep()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Validator Agent Output", "Missing phone number", "Corrections requested", "╭"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNDJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	n := NewNDJSON(rec)
	if err := n.Present(context.Background(), validatorStep()); err != nil {
		t.Fatal(err)
	}
	if err := n.WriteLine(models.ParseResponse{Status: "success", RunID: "run-1"}); err != nil {
		t.Fatal(err)
	}
	if !rec.Flushed {
		t.Error("expected the response to be flushed")
	}

	sc := bufio.NewScanner(rec.Body)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var got models.StepPayload
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || got.Step != 2 || got.Sender != "validator" || got.Count != 1 || got.Approved {
		t.Errorf("unexpected payload %+v", got)
	}
	if len(got.Issues) != 1 || got.Issues[0] != "Missing phone number" {
		t.Errorf("issues = %v", got.Issues)
	}
}

func TestCollectorAndMulti(t *testing.T) {
	var a, b Collector
	p := Multi(&a, &b)
	for i := 0; i < 3; i++ {
		step := validatorStep()
		step.Index = i
		if err := p.Present(context.Background(), step); err != nil {
			t.Fatal(err)
		}
	}
	if len(a.Steps()) != 3 || len(b.Steps()) != 3 {
		t.Fatalf("collected %d and %d steps", len(a.Steps()), len(b.Steps()))
	}
	for i, pl := range a.Payloads() {
		if pl.Step != i {
			t.Errorf("payload %d has step %d", i, pl.Step)
		}
	}

	var c Collector
	failing := PresenterFunc(func(context.Context, pipeline.Step) error { return errors.New("closed pipe") })
	if err := Multi(failing, &c).Present(context.Background(), validatorStep()); err == nil {
		t.Error("expected error")
	}
	if len(c.Steps()) != 0 {
		t.Error("presenters after a failure must not run")
	}
}

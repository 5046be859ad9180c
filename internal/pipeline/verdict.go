package pipeline

import (
	"regexp"
	"slices"
	"strings"
)

// StopToken is the exact validator answer meaning no corrections are needed.
const StopToken = "Yes"

type verdictKind int

const (
	verdictNone verdictKind = iota
	verdictApproved
	verdictNeedsCorrection
)

// Verdict is the validator's decision: Approved, or NeedsCorrection with the
// list of issues. The zero value means "no verdict" and belongs to messages
// from other stages.
type Verdict struct {
	kind   verdictKind
	issues []string
}

// Approved is the verdict for an extraction that needs no changes.
func Approved() Verdict { return Verdict{kind: verdictApproved} }

// NeedsCorrection is the verdict for an extraction with issues.
func NeedsCorrection(issues []string) Verdict {
	return Verdict{kind: verdictNeedsCorrection, issues: slices.Clone(issues)}
}

func (v Verdict) IsApproved() bool { return v.kind == verdictApproved }

func (v Verdict) IsZero() bool { return v.kind == verdictNone }

// Issues returns the corrections requested by the validator.
func (v Verdict) Issues() []string { return slices.Clone(v.issues) }

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// ParseVerdict reads a validator response. Only the stop token, ignoring
// surrounding whitespace, approves; case and extra words matter.
func ParseVerdict(response string) Verdict {
	trimmed := strings.TrimSpace(response)
	if trimmed == StopToken {
		return Approved()
	}

	var issues []string
	for _, line := range strings.Split(trimmed, "\n") {
		if loc := bulletPrefix.FindStringIndex(line); loc != nil {
			if issue := strings.TrimSpace(line[loc[1]:]); issue != "" {
				issues = append(issues, issue)
			}
		}
	}
	if len(issues) == 0 && trimmed != "" {
		issues = []string{trimmed}
	}
	return NeedsCorrection(issues)
}

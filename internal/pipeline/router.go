package pipeline

import "fmt"

// DefaultMaxExtractions bounds extractor executions per run.
const DefaultMaxExtractions = 3

// Next is the router's decision after a stage ran.
type Next int

const (
	NextReader Next = iota
	NextExtractor
	NextValidator
	NextEnd
)

func (n Next) String() string {
	switch n {
	case NextReader:
		return "reader"
	case NextExtractor:
		return "extractor"
	case NextValidator:
		return "validator"
	case NextEnd:
		return "end"
	default:
		return fmt.Sprintf("Next(%d)", int(n))
	}
}

// Router picks the next stage from a state. Routers are pure functions of
// count, sender and the last message.
type Router func(s State, maxExtractions int) Next

// Route stops once the ceiling is reached or the validator approved the
// extraction; otherwise it follows reader → extractor → validator → extractor.
func Route(s State, maxExtractions int) Next {
	last := s.Last()
	if s.Count() >= maxExtractions || (s.Sender() == SenderValidator && last.Verdict.IsApproved()) {
		return NextEnd
	}
	return bySender(s.Sender())
}

// RouteLegacy stops when the last message is exactly the stop token, no
// matter which stage wrote it. A reader or extractor answering "Yes" ends
// the run early; Route does not have that defect.
func RouteLegacy(s State, maxExtractions int) Next {
	if s.Count() >= maxExtractions || s.Last().Content == StopToken {
		return NextEnd
	}
	return bySender(s.Sender())
}

func bySender(sender Sender) Next {
	switch sender {
	case SenderReader:
		return NextExtractor
	case SenderExtractor:
		return NextValidator
	case SenderValidator:
		return NextExtractor
	default:
		return NextReader
	}
}

// RouterByName resolves a configured router name.
func RouterByName(name string) (Router, error) {
	switch name {
	case "", "validator":
		return Route, nil
	case "legacy":
		return RouteLegacy, nil
	default:
		return nil, fmt.Errorf("unknown router %q (want validator or legacy)", name)
	}
}

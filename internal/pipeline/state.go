// Package pipeline sequences the reader, extractor and validator agents over
// a shared conversation and decides when a run stops.
package pipeline

import "slices"

// Sender names the stage that produced a message.
type Sender string

const (
	SenderNone      Sender = ""
	SenderReader    Sender = "reader"
	SenderExtractor Sender = "extractor"
	SenderValidator Sender = "validator"
)

// Title is the display name used when presenting a stage's output.
func (s Sender) Title() string {
	switch s {
	case SenderReader:
		return "Reader"
	case SenderExtractor:
		return "Extractor"
	case SenderValidator:
		return "Validator"
	default:
		return "Document"
	}
}

// Message is one entry of the conversation. Verdict is only set on
// validator messages.
type Message struct {
	Sender  Sender
	Content string
	Verdict Verdict
}

// State is an immutable snapshot of a run's conversation. Apply returns a
// new snapshot and never touches the receiver.
type State struct {
	messages []Message
	sender   Sender
	count    int
}

// NewState seeds a run with the raw document text.
func NewState(raw string) State {
	return State{messages: []Message{{Sender: SenderNone, Content: raw}}}
}

// Update is the partial state a stage returns.
type Update struct {
	Message Message
	Count   int
}

// Apply appends u's message and records its sender and count.
func (s State) Apply(u Update) State {
	// Clip forces append to copy, so earlier snapshots keep their backing array.
	next := State{
		messages: append(slices.Clip(s.messages), u.Message),
		sender:   u.Message.Sender,
		count:    u.Count,
	}
	if next.count < s.count {
		next.count = s.count
	}
	return next
}

// Messages returns a copy of the conversation in order.
func (s State) Messages() []Message { return slices.Clone(s.messages) }

// Len is the number of messages.
func (s State) Len() int { return len(s.messages) }

// Last returns the most recently appended message.
func (s State) Last() Message {
	if len(s.messages) == 0 {
		return Message{}
	}
	return s.messages[len(s.messages)-1]
}

// Sender is the producer of the last message, or SenderNone before any stage ran.
func (s State) Sender() Sender { return s.sender }

// Count is the number of extractor executions so far.
func (s State) Count() int { return s.count }

// LastFrom returns the most recent message produced by sender.
func (s State) LastFrom(sender Sender) (Message, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Sender == sender {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

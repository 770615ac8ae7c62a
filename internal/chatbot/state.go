package chatbot

import (
	"strings"
	"time"

	"SupplyGuard/internal/conversation"
)

// ApologyText is the bot message shown when a send cannot complete at all
const ApologyText = "I'm sorry, I'm having trouble connecting right now. Please try again in a moment."

// State is the orchestration state: the conversation and whether a reply is outstanding
type State struct {
	Messages []conversation.Message
	Pending  bool
}

// Event is an input to Reduce
type Event interface{ isEvent() }

// Submitted is a user submission
type Submitted struct {
	Text string
	At   time.Time
}

// Replied carries the resolver's answer
type Replied struct {
	Text string
	At   time.Time
}

// ReplyFailed reports that no reply could be produced
type ReplyFailed struct {
	At time.Time
}

// Cleared resets the conversation
type Cleared struct {
	At time.Time
}

func (Submitted) isEvent()   {}
func (Replied) isEvent()     {}
func (ReplyFailed) isEvent() {}
func (Cleared) isEvent()     {}

// Effect is a side effect requested by Reduce
type Effect interface{ isEffect() }

// AppendMessage asks for a message to be stored and persisted
type AppendMessage struct {
	Message conversation.Message
}

// ShowTyping asks the renderer to show the typing placeholder
type ShowTyping struct{}

// HideTyping removes the typing placeholder
type HideTyping struct{}

// RequestReply asks for a reply to Text given the conversation before it
type RequestReply struct {
	History []conversation.Message
	Text    string
}

// ResetConversation asks for the stored conversation to be replaced by Welcome
type ResetConversation struct {
	Welcome conversation.Message
}

func (AppendMessage) isEffect()     {}
func (ShowTyping) isEffect()        {}
func (HideTyping) isEffect()        {}
func (RequestReply) isEffect()      {}
func (ResetConversation) isEffect() {}

// Reduce is the pure send state machine. Blank submissions and submissions
// while a reply is pending leave the state untouched and request nothing.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Submitted:
		text := strings.TrimSpace(ev.Text)
		if text == "" || s.Pending {
			return s, nil
		}
		history := s.Messages
		msg := conversation.NewMessage(history, text, true, ev.At)
		next := State{Messages: appendCopy(history, msg), Pending: true}
		return next, []Effect{
			AppendMessage{Message: msg},
			ShowTyping{},
			RequestReply{History: history, Text: text},
		}

	case Replied:
		if !s.Pending {
			return s, nil
		}
		return botTurn(s, ev.Text, ev.At)

	case ReplyFailed:
		if !s.Pending {
			return s, nil
		}
		return botTurn(s, ApologyText, ev.At)

	case Cleared:
		welcome := conversation.NewWelcome(ev.At)
		next := State{
			Messages: []conversation.Message{welcome},
			Pending:  s.Pending,
		}
		return next, []Effect{ResetConversation{Welcome: welcome}}
	}
	return s, nil
}

func botTurn(s State, text string, at time.Time) (State, []Effect) {
	msg := conversation.NewMessage(s.Messages, text, false, at)
	next := State{Messages: appendCopy(s.Messages, msg), Pending: false}
	return next, []Effect{AppendMessage{Message: msg}, HideTyping{}}
}

func appendCopy(messages []conversation.Message, msg conversation.Message) []conversation.Message {
	out := make([]conversation.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, msg)
}

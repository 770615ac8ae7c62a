package conversation

import (
	"strconv"
	"strings"
	"time"
)

// SlotKey is the name of the single persistence slot holding the conversation
const SlotKey = "supplyGuardChatMessages"

// WelcomeText is the bot message every fresh conversation starts with
const WelcomeText = `Welcome to SupplyGuard AI. I'm your dedicated platform assistant, here to help you navigate SupplyGuard's features and analyze your supply chain data.

**I can only help with SupplyGuard platform questions:**
• **Dashboard** - metrics, charts, time filters
• **Suppliers** - risk scores, filtering, management
• **Alerts** - monitoring, categories, prioritization
• **Reports** - generation, templates, exports
• **Tariff Calculator** - import/export calculations

**Try asking me:**
- "How do I filter suppliers by risk level?"
- "What do the dashboard time filters do?"
- "How do I generate a risk assessment report?"
- "How many critical suppliers do I have?"

I cannot answer questions about other platforms or general business topics. What would you like to know about SupplyGuard?`

const welcomePrefix = "welcome-"

// Message represents a single turn in the conversation
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// Role maps the author to the chat endpoint role name
func (m Message) Role() string {
	if m.IsUser {
		return "user"
	}
	return "assistant"
}

// IsWelcome reports whether the message is a synthesized welcome message
func (m Message) IsWelcome() bool {
	return strings.HasPrefix(m.ID, welcomePrefix)
}

// NewWelcome builds the welcome message for a fresh conversation
func NewWelcome(at time.Time) Message {
	at = normalize(at)
	return Message{
		ID:        welcomePrefix + strconv.FormatInt(at.UnixMilli(), 10),
		Text:      WelcomeText,
		IsUser:    false,
		Timestamp: at,
	}
}

// NewMessage builds a message whose id is derived from its creation time.
// The id is strictly greater than any numeric id already in history.
func NewMessage(history []Message, text string, isUser bool, at time.Time) Message {
	at = normalize(at)
	return Message{
		ID:        NextID(history, at),
		Text:      text,
		IsUser:    isUser,
		Timestamp: at,
	}
}

// NextID returns the unix-millisecond id for at, bumped past the last numeric id
func NextID(history []Message, at time.Time) string {
	candidate := at.UnixMilli()
	for i := len(history) - 1; i >= 0; i-- {
		last, err := strconv.ParseInt(history[i].ID, 10, 64)
		if err != nil {
			continue
		}
		if candidate <= last {
			candidate = last + 1
		}
		break
	}
	return strconv.FormatInt(candidate, 10)
}

// normalize drops the monotonic reading and sub-millisecond precision so that
// a persisted message reads back identical to the one that was written.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

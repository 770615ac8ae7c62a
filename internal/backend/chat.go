package backend

import "time"

// ChatPath is the route of the chat endpoint
const ChatPath = "/api/v1/chat"

// ChatStreamPath is the WebSocket flavour of the chat endpoint
const ChatStreamPath = "/api/v1/chat/ws"

// ChatMessage is one turn as sent to the chat endpoint
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext describes the UI and platform state sent with each request
type ChatContext struct {
	CurrentPage       string   `json:"currentPage"`
	UserID            string   `json:"userId"`
	TotalSuppliers    int      `json:"totalSuppliers"`
	CriticalSuppliers int      `json:"criticalSuppliers"`
	ActiveAlerts      int      `json:"activeAlerts"`
	RecentActivity    []string `json:"recentActivity"`
}

// ChatRequest represents the request body for the chat endpoint
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Context  ChatContext   `json:"context"`
}

// ChatResponse represents the response from the chat endpoint
type ChatResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Error     string `json:"error,omitempty"`
}

// LastUserContent returns the content of the final message, or "" when there is none
func (r ChatRequest) LastUserContent() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// NewReply builds a successful response stamped with at
func NewReply(message string, fallback bool, at time.Time) ChatResponse {
	return ChatResponse{
		Success:   true,
		Message:   message,
		Timestamp: at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Fallback:  fallback,
	}
}

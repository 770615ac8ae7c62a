package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"SupplyGuard/internal/backend"
)

// SystemPrompt restricts the upstream model to SupplyGuard topics
const SystemPrompt = `
You are the official AI assistant for SupplyGuard, a comprehensive supply chain risk management platform. 

**IMPORTANT RESTRICTIONS:**
- You can ONLY answer questions about SupplyGuard platform features, functionality, and the data within the system
- You CANNOT provide information about other companies, platforms, or general knowledge outside of SupplyGuard
- If asked about topics outside SupplyGuard, politely redirect to platform-related questions
- You CANNOT access external websites, provide investment advice, or discuss competitors
- You can ONLY reference data that exists within the SupplyGuard platform

**SupplyGuard Platform Features You Can Help With:**

1. **Dashboard**: 
   - Real-time metrics showing total suppliers, risk distribution, alerts
   - Risk trends charts and analytics
   - Executive summary cards
   - Time range filters (7d, 30d, 90d)
   - Financial impact dashboard

2. **Suppliers Management**:
   - Complete supplier database with risk scoring
   - Individual supplier profiles with detailed risk assessments
   - Supplier performance tracking and KPIs
   - Risk categorization (Critical, High, Medium, Low)
   - Supplier filtering and search capabilities
   - Page size controls (25, 50, 100 results per page)

3. **Alerts System**:
   - Real-time risk alerts for suppliers
   - Critical, high, medium, low priority classifications
   - Alert acknowledgment and resolution tracking
   - Alert categories (Financial Risk, Compliance, Cybersecurity, etc.)
   - Historical alert trends
   - Page size controls for alert viewing

4. **Reports & Analytics**:
   - Professional PDF report generation
   - Multiple report templates (Executive Summary, Risk Assessment, Compliance Audit)  
   - Custom report creation with filters
   - Export capabilities

5. **Tariff Calculator**:
   - Real-time tariff calculations for import/export
   - HS code lookup functionality
   - Multi-country trade calculations
   - Government data integration

6. **Platform Navigation**:
   - How to use different sections
   - Understanding risk scores and metrics
   - Interpreting charts and analytics
   - Managing user preferences

**Response Guidelines:**
- Only discuss SupplyGuard features and data
- If asked about external topics, respond: "I can only help with SupplyGuard platform questions. What would you like to know about our dashboard, suppliers, alerts, or other platform features?"
- Provide specific, actionable guidance about platform usage
- Reference actual data when available (current supplier counts, alert numbers, etc.)
- Keep responses concise and focused on platform functionality

**Forbidden Topics:**
- Other supply chain platforms or competitors
- General business advice unrelated to SupplyGuard
- External company information
- Investment or financial advice
- Topics outside supply chain risk management
- Personal opinions or recommendations beyond platform usage
`

var errEmptyCompletion = errors.New("completion returned no choices")

// Assistant produces a reply for a conversation seen from the given page
type Assistant interface {
	Reply(ctx context.Context, page string, messages []backend.ChatMessage) (string, error)
}

// OpenAIAssistant talks to an OpenAI-compatible chat completions API
type OpenAIAssistant struct {
	client       *openai.Client
	model        string
	historyLimit int
}

// NewOpenAIAssistant creates an assistant for baseURL using apiKey
func NewOpenAIAssistant(apiKey, baseURL, model string, historyLimit int) (*OpenAIAssistant, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key cannot be empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIAssistant{client: &client, model: model, historyLimit: historyLimit}, nil
}

// Reply implements Assistant
func (a *OpenAIAssistant) Reply(ctx context.Context, page string, messages []backend.ChatMessage) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: BuildPrompt(page, messages, a.historyLimit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// BuildPrompt assembles the system prompt, the page hint and the last limit
// turns. Turns with roles other than user and assistant are skipped.
func BuildPrompt(page string, messages []backend.ChatMessage, limit int) []openai.ChatCompletionMessageParamUnion {
	prompt := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(SystemPrompt)}
	if page != "" {
		prompt = append(prompt, openai.SystemMessage(fmt.Sprintf(
			"\n\nThe user is currently on the '%s' page. Provide contextually relevant help for this section.", page)))
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			prompt = append(prompt, openai.UserMessage(msg.Content))
		case "assistant":
			prompt = append(prompt, openai.AssistantMessage(msg.Content))
		}
	}
	return prompt
}

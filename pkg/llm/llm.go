// Package llm provides a chat-completion client for OpenAI-compatible APIs.
//
// The pipeline uses it twice per voice interaction: once in JSON mode to
// classify the transcript, and once in text mode to answer general queries.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	// Messages is the conversation so far.
	Messages []Message

	// Model overrides the configured default.
	Model string

	// MaxTokens limits the response length. 0 uses the configured default.
	MaxTokens int

	// Temperature controls randomness. 0 uses the configured default.
	Temperature float64

	// JSONMode forces the model to emit a single JSON object.
	JSONMode bool
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is a chat completion result.
type ChatResponse struct {
	// Content is the assistant's reply text.
	Content string

	// FinishReason reports why generation stopped.
	FinishReason string

	// Usage reports token consumption.
	Usage Usage

	// Model is the model that served the request.
	Model string

	// LatencyMs is the end-to-end request duration.
	LatencyMs int64
}

// Provider generates chat completions.
type Provider interface {
	// Chat generates a completion for the given request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks API connectivity.
	Health(ctx context.Context) error

	// Close releases resources.
	Close() error
}

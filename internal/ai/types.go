package ai

import (
	"context"
)

// Message represents a single message in the conversation
type Message struct {
	Role    string `json:"role"`    // "user", "assistant", or "system"
	Content string `json:"content"` // The message content
}

// Response represents a complete (non-streamed) AI response
type Response struct {
	Content      string
	TokensUsed   int
	FinishReason string // "stop", "length", "content_filter", etc.
}

// Provider is the interface that all AI clients must implement
type Provider interface {
	// SendMessage sends a message and waits for complete response
	SendMessage(ctx context.Context, messages []Message) (*Response, error)

	// StreamMessage sends a message and streams the response
	StreamMessage(ctx context.Context, messages []Message) (<-chan MessageChunk, error)

	// GetModelInfo returns information about the current model
	GetModelInfo() ModelInfo

	// ListModels returns the model names the endpoint advertises
	ListModels(ctx context.Context) ([]string, error)
}

// ModelInfo contains metadata about the AI model
type ModelInfo struct {
	Name              string
	Provider          string
	MaxTokens         int
	SupportsStreaming bool
}

// MessageChunk is one streamed delta. Think chunks only appear when the
// server pre-splits reasoning into its own response field; marker-tagged
// reasoning arrives as ordinary message chunks and is split downstream.
type MessageChunk struct {
	typ     string
	Content string
}

// NewChunk wraps answer-channel content in a delta.
func NewChunk(content string) MessageChunk {
	return MessageChunk{typ: ChunkMessage, Content: content}
}

// NewThinkChunk wraps server-classified reasoning content in a delta.
func NewThinkChunk(content string) MessageChunk {
	return MessageChunk{typ: ChunkThink, Content: content}
}

func (m MessageChunk) Type() string {
	return m.typ
}

func (m MessageChunk) String() string {
	return m.Content
}

const (
	ChunkMessage = "message"
	ChunkThink   = "think"
)

// Package llm defines the contract with the external LLM collaborator and
// provides an OpenAI-compatible HTTP implementation.
package llm

import "context"

// FallbackResponse is substituted when the provider returns success with no
// generated text. Transport and API errors are never masked by it.
const FallbackResponse = "No response generated"

// ChatMessage is a single prompt turn on the wire.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompleteOptions controls a completion call. Temperature is pinned to 0 by
// every assistant variant; the field exists so tests can assert it.
type CompleteOptions struct {
	Model       string
	Temperature float64
	Stream      bool
}

// Run statuses reported by the hosted-thread API.
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
	RunStatusExpired    = "expired"
)

// IsTerminalRunStatus reports whether a hosted run has finished.
func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	}
	return false
}

// Client is the external LLM collaborator. The thread methods back the
// hosted-assistant variant, which keeps conversation state provider-side.
type Client interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompleteOptions) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)

	CreateThread(ctx context.Context) (string, error)
	PostThreadMessage(ctx context.Context, threadID, text string) error
	RunThread(ctx context.Context, threadID string) (string, error)
	PollRunStatus(ctx context.Context, threadID, runID string) (string, error)
	ListThreadMessages(ctx context.Context, threadID string) ([]ChatMessage, error)
}

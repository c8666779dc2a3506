// Package assistant implements the persona strategies and the registry that
// maps assistant names to them. Personas are data: one Strategy type
// parameterized by a Spec, not one type per persona.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jhu-collab/coursechat-api/internal/llm"
	"github.com/jhu-collab/coursechat-api/internal/memory"
	"github.com/jhu-collab/coursechat-api/internal/models"
)

// Mode selects how a strategy builds conversational context before the LLM
// call.
type Mode string

const (
	// ModeStateless sends only the current input.
	ModeStateless Mode = "stateless"
	// ModeHistory replays every prior message with no truncation, so long
	// chats may exceed the model's context window.
	ModeHistory Mode = "history"
	// ModeWindow replays the last N messages.
	ModeWindow Mode = "window"
	// ModeSummary replaces raw history with a rolling summary.
	ModeSummary Mode = "summary"
	// ModeRetrieval supplies the top-K past messages most similar to the
	// input.
	ModeRetrieval Mode = "retrieval"
	// ModeCombined supplies retrieved messages plus a recent window.
	ModeCombined Mode = "combined"
	// ModeHosted delegates conversation state to an external hosted thread.
	ModeHosted Mode = "hosted"
)

// Default context bounds.
const (
	DefaultWindowSize = 6
	DefaultRetrievalK = 3
)

const defaultSystemPrompt = "You are a helpful course assistant. Answer the student's question clearly and concisely."

// Spec declares one persona: a name bound to a mode plus its constants.
type Spec struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Mode         Mode   `yaml:"mode"`
	WindowSize   int    `yaml:"windowSize,omitempty"`
	RetrievalK   int    `yaml:"retrievalK,omitempty"`
	SystemPrompt string `yaml:"systemPrompt,omitempty"`
}

// ThreadStore persists the hosted thread id of a chat across turns.
type ThreadStore interface {
	ThreadID(ctx context.Context, chatID string) (string, error)
	SetThreadID(ctx context.Context, chatID, threadID string) error
}

// Deps are the collaborators shared by all strategies.
type Deps struct {
	Client   llm.Client
	Composer *memory.Composer
	Threads  ThreadStore
	Model    string

	// Hosted-run polling bounds. A run is checked at most once per
	// PollInterval and abandoned after PollMaxAttempts checks.
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Strategy generates responses for one persona.
type Strategy struct {
	spec Spec
	deps Deps
}

// New validates a spec, applies defaults, and builds a Strategy.
func New(spec Spec, deps Deps) (*Strategy, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: assistant name is required", models.ErrValidation)
	}

	switch spec.Mode {
	case ModeStateless, ModeHistory, ModeWindow, ModeSummary, ModeRetrieval, ModeCombined, ModeHosted:
	default:
		return nil, fmt.Errorf("%w: unknown assistant mode %q", models.ErrValidation, spec.Mode)
	}

	if spec.WindowSize <= 0 {
		spec.WindowSize = DefaultWindowSize
	}
	if spec.RetrievalK <= 0 {
		spec.RetrievalK = DefaultRetrievalK
	}
	if spec.SystemPrompt == "" {
		spec.SystemPrompt = defaultSystemPrompt
	}

	if deps.PollInterval <= 0 {
		deps.PollInterval = time.Second
	}
	if deps.PollMaxAttempts <= 0 {
		deps.PollMaxAttempts = 120
	}

	return &Strategy{spec: spec, deps: deps}, nil
}

// Name returns the persona name.
func (s *Strategy) Name() string { return s.spec.Name }

// Description returns the persona's free-text description.
func (s *Strategy) Description() string { return s.spec.Description }

// Mode returns the persona's context mode.
func (s *Strategy) Mode() Mode { return s.spec.Mode }

// GenerateResponse produces a reply to input. chatID may be empty for
// one-off generation; context-building modes then behave statelessly.
func (s *Strategy) GenerateResponse(ctx context.Context, input, chatID string) (string, error) {
	if s.spec.Mode == ModeHosted {
		return s.generateHosted(ctx, input, chatID)
	}

	var memCtx *memory.Context
	if chatID != "" {
		pol := s.policy()
		loaded, err := s.deps.Composer.LoadContext(ctx, chatID, input, pol)
		if err != nil {
			return "", fmt.Errorf("%w: context assembly: %v", models.ErrGenerationFailed, err)
		}
		memCtx = loaded
	}

	prompt := s.buildPrompt(memCtx, input)

	response, err := s.deps.Client.Complete(ctx, prompt, llm.CompleteOptions{
		Model:       s.deps.Model,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	return response, nil
}

// policy maps the mode to its context requirements.
func (s *Strategy) policy() memory.Policy {
	switch s.spec.Mode {
	case ModeHistory:
		return memory.Policy{FullHistory: true}
	case ModeWindow:
		return memory.Policy{NeedWindow: true, Window: s.spec.WindowSize}
	case ModeSummary:
		return memory.Policy{NeedSummary: true}
	case ModeRetrieval:
		return memory.Policy{NeedVectors: true, RetrievalK: s.spec.RetrievalK}
	case ModeCombined:
		return memory.Policy{
			NeedVectors: true,
			RetrievalK:  s.spec.RetrievalK,
			NeedWindow:  true,
			Window:      s.spec.WindowSize,
		}
	default:
		return memory.Policy{}
	}
}

// buildPrompt fills the fixed slots: system prompt, summary, retrieved
// context, replayed history, then the current input.
func (s *Strategy) buildPrompt(memCtx *memory.Context, input string) []llm.ChatMessage {
	prompt := []llm.ChatMessage{{Role: models.RoleSystem, Content: s.spec.SystemPrompt}}

	if memCtx != nil {
		if memCtx.Summary != "" {
			prompt = append(prompt, llm.ChatMessage{
				Role:    models.RoleSystem,
				Content: "Summary of the conversation so far:\n" + memCtx.Summary,
			})
		}
		if len(memCtx.Retrieved) > 0 {
			prompt = append(prompt, llm.ChatMessage{
				Role:    models.RoleSystem,
				Content: "Relevant earlier messages from this conversation:\n- " + strings.Join(memCtx.Retrieved, "\n- "),
			})
		}
		prompt = append(prompt, memCtx.History...)
	}

	return append(prompt, llm.ChatMessage{Role: models.RoleUser, Content: input})
}

// generateHosted forwards the input to an external hosted thread and polls
// the run until it reaches a terminal status, bounded by the poll limits.
func (s *Strategy) generateHosted(ctx context.Context, input, chatID string) (string, error) {
	threadID, err := s.resolveThread(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	if err := s.deps.Client.PostThreadMessage(ctx, threadID, input); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	runID, err := s.deps.Client.RunThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	limiter := rate.NewLimiter(rate.Every(s.deps.PollInterval), 1)
	for attempt := 0; attempt < s.deps.PollMaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
		}

		status, err := s.deps.Client.PollRunStatus(ctx, threadID, runID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
		}
		if !llm.IsTerminalRunStatus(status) {
			continue
		}
		if status != llm.RunStatusCompleted {
			return "", fmt.Errorf("%w: hosted run ended with status %s", models.ErrGenerationFailed, status)
		}
		return s.latestAssistantMessage(ctx, threadID)
	}

	return "", fmt.Errorf("%w: hosted run did not complete after %d status checks",
		models.ErrGenerationFailed, s.deps.PollMaxAttempts)
}

// resolveThread finds the chat's hosted thread, creating and persisting one
// on first use. With no chatID the thread is ephemeral.
func (s *Strategy) resolveThread(ctx context.Context, chatID string) (string, error) {
	if chatID == "" || s.deps.Threads == nil {
		return s.deps.Client.CreateThread(ctx)
	}

	threadID, err := s.deps.Threads.ThreadID(ctx, chatID)
	if err != nil {
		return "", err
	}
	if threadID != "" {
		return threadID, nil
	}

	threadID, err = s.deps.Client.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	if err := s.deps.Threads.SetThreadID(ctx, chatID, threadID); err != nil {
		return "", err
	}
	return threadID, nil
}

func (s *Strategy) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	messages, err := s.deps.Client.ListThreadMessages(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	// Newest first, per the hosted API's ordering.
	for _, m := range messages {
		if m.Role == models.RoleAssistant && strings.TrimSpace(m.Content) != "" {
			return m.Content, nil
		}
	}
	return llm.FallbackResponse, nil
}

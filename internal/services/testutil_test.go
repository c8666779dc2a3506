package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jhu-collab/coursechat-api/internal/database"
	"github.com/jhu-collab/coursechat-api/internal/llm"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	return db
}

// fakeLLM is a canned llm.Client for service tests.
type fakeLLM struct {
	response string
	err      error
	prompts  [][]llm.ChatMessage
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.ChatMessage, opts llm.CompleteOptions) (string, error) {
	f.prompts = append(f.prompts, messages)
	if f.err != nil {
		return "", f.err
	}
	if f.response != "" {
		return f.response, nil
	}
	return "echo: " + messages[len(messages)-1].Content, nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	// Deterministic embedding keyed on content length and first byte.
	vec := make([]float32, 8)
	for i, ch := range []byte(strings.ToLower(text)) {
		vec[i%8] += float32(ch)
	}
	return vec, nil
}

func (f *fakeLLM) CreateThread(ctx context.Context) (string, error) { return "thread-1", nil }

func (f *fakeLLM) PostThreadMessage(ctx context.Context, threadID, content string) error {
	return nil
}

func (f *fakeLLM) RunThread(ctx context.Context, threadID string) (string, error) {
	return "run-1", nil
}

func (f *fakeLLM) PollRunStatus(ctx context.Context, threadID, runID string) (string, error) {
	return llm.RunStatusCompleted, nil
}

func (f *fakeLLM) ListThreadMessages(ctx context.Context, threadID string) ([]llm.ChatMessage, error) {
	return []llm.ChatMessage{{Role: "assistant", Content: "hosted reply"}}, nil
}

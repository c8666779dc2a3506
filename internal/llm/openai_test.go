package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOpenAIClient(OpenAIConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		Model:       "test-model",
		EmbedModel:  "test-embed",
		AssistantID: "asst_123",
	})
	return client, server
}

func TestComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"  hello there  "}}]}`)
	})

	response, err := client.Complete(context.Background(), []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, CompleteOptions{Temperature: 0})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if response != "hello there" {
		t.Errorf("Expected trimmed response, got %q", response)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("Wrong path: %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Wrong auth header: %s", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("Expected configured model, got %q", gotReq.Model)
	}
	if gotReq.Temperature != 0 {
		t.Errorf("Expected temperature 0, got %v", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 2 {
		t.Errorf("Expected 2 messages on the wire, got %d", len(gotReq.Messages))
	}
}

func TestComplete_EmptyChoicesFallback(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"content":""}}]}`},
		{"whitespace content", `{"choices":[{"message":{"content":"   \n"}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			})
			response, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, CompleteOptions{})
			if err != nil {
				t.Fatalf("Complete failed: %v", err)
			}
			if response != FallbackResponse {
				t.Errorf("Expected fallback, got %q", response)
			}
		})
	}
}

func TestComplete_APIErrorNotMasked(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	})

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, CompleteOptions{})
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

func TestComplete_Streaming(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	response, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, CompleteOptions{Stream: true})
	if err != nil {
		t.Fatalf("Streaming complete failed: %v", err)
	}
	if response != "Hello" {
		t.Errorf("Expected aggregated 'Hello', got %q", response)
	}
}

func TestEmbed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Wrong path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	})

	vec, err := client.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("Expected 3 dims, got %d", len(vec))
	}
}

func TestHostedThreadLifecycle(t *testing.T) {
	var paths []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			t.Errorf("Missing assistants beta header on %s", r.URL.Path)
		}
		switch {
		case r.URL.Path == "/threads":
			fmt.Fprint(w, `{"id":"thread_1"}`)
		case strings.HasSuffix(r.URL.Path, "/messages") && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"id":"msg_1"}`)
		case strings.HasSuffix(r.URL.Path, "/runs"):
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["assistant_id"] != "asst_123" {
				t.Errorf("Expected assistant id in run request, got %v", body)
			}
			fmt.Fprint(w, `{"id":"run_1","status":"queued"}`)
		case strings.Contains(r.URL.Path, "/runs/"):
			fmt.Fprint(w, `{"id":"run_1","status":"completed"}`)
		case strings.HasSuffix(r.URL.Path, "/messages"):
			fmt.Fprint(w, `{"data":[{"role":"assistant","content":[{"text":{"value":"the answer"}}]},{"role":"user","content":[{"text":{"value":"the question"}}]}]}`)
		}
	})
	ctx := context.Background()

	threadID, err := client.CreateThread(ctx)
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	if threadID != "thread_1" {
		t.Errorf("Expected thread_1, got %q", threadID)
	}

	if err := client.PostThreadMessage(ctx, threadID, "the question"); err != nil {
		t.Fatalf("PostThreadMessage failed: %v", err)
	}

	runID, err := client.RunThread(ctx, threadID)
	if err != nil {
		t.Fatalf("RunThread failed: %v", err)
	}

	status, err := client.PollRunStatus(ctx, threadID, runID)
	if err != nil {
		t.Fatalf("PollRunStatus failed: %v", err)
	}
	if status != RunStatusCompleted {
		t.Errorf("Expected completed, got %q", status)
	}

	messages, err := client.ListThreadMessages(ctx, threadID)
	if err != nil {
		t.Fatalf("ListThreadMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "assistant" || messages[0].Content != "the answer" {
		t.Errorf("Expected newest assistant message first, got %+v", messages[0])
	}
}

func TestRunThread_RequiresAssistantID(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{BaseURL: "http://localhost:0"})

	if _, err := client.RunThread(context.Background(), "thread_1"); err == nil {
		t.Error("Expected error without a configured assistant id")
	}
}

func TestIsTerminalRunStatus(t *testing.T) {
	terminal := []string{RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired}
	for _, status := range terminal {
		if !IsTerminalRunStatus(status) {
			t.Errorf("Expected %q to be terminal", status)
		}
	}
	for _, status := range []string{RunStatusQueued, RunStatusInProgress, ""} {
		if IsTerminalRunStatus(status) {
			t.Errorf("Expected %q to be non-terminal", status)
		}
	}
}

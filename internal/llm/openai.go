package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient talks to any OpenAI-compatible API (OpenAI, Azure, LiteLLM,
// vLLM, ...). Hosted-thread methods use the Assistants v2 endpoints.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	embedModel  string
	assistantID string // hosted-assistant object id, required for RunThread
	client      *http.Client
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	EmbedModel  string
	AssistantID string
	Timeout     time.Duration
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		assistantID: cfg.AssistantID,
		client:      &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete sends a chat completion request and returns the generated text.
// A successful response with no generated text yields FallbackResponse.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage, opts CompleteOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		Stream:      opts.Stream,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	resp, err := c.post(ctx, "/chat/completions", body, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	if opts.Stream {
		return c.readStream(resp.Body)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return FallbackResponse, nil
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// readStream aggregates SSE chunks into the full response text.
func (c *OpenAIClient) readStream(body io.Reader) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed keep-alive chunks
		}
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read failed: %w", err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return FallbackResponse, nil
	}
	return text, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for a text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.embedModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	resp, err := c.post(ctx, "/embeddings", body, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return result.Data[0].Embedding, nil
}

// --- Hosted threads (Assistants v2) ---

var assistantsHeaders = map[string]string{"OpenAI-Beta": "assistants=v2"}

// CreateThread creates a new hosted conversation thread.
func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	resp, err := c.post(ctx, "/threads", []byte("{}"), assistantsHeaders)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode thread response: %w", err)
	}
	return result.ID, nil
}

// PostThreadMessage appends a user message to a hosted thread.
func (c *OpenAIClient) PostThreadMessage(ctx context.Context, threadID, text string) error {
	body, err := json.Marshal(map[string]string{"role": "user", "content": text})
	if err != nil {
		return fmt.Errorf("failed to marshal thread message: %w", err)
	}

	resp, err := c.post(ctx, "/threads/"+threadID+"/messages", body, assistantsHeaders)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// RunThread starts a run of the configured hosted assistant on a thread.
func (c *OpenAIClient) RunThread(ctx context.Context, threadID string) (string, error) {
	if c.assistantID == "" {
		return "", fmt.Errorf("hosted assistant id not configured")
	}
	body, err := json.Marshal(map[string]string{"assistant_id": c.assistantID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal run request: %w", err)
	}

	resp, err := c.post(ctx, "/threads/"+threadID+"/runs", body, assistantsHeaders)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode run response: %w", err)
	}
	return result.ID, nil
}

// PollRunStatus checks the current status of a hosted run. Callers pace and
// bound the polling; a single call never retries.
func (c *OpenAIClient) PollRunStatus(ctx context.Context, threadID, runID string) (string, error) {
	resp, err := c.get(ctx, "/threads/"+threadID+"/runs/"+runID, assistantsHeaders)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode run status: %w", err)
	}
	return result.Status, nil
}

// ListThreadMessages returns a hosted thread's messages, newest first, as the
// Assistants API orders them.
func (c *OpenAIClient) ListThreadMessages(ctx context.Context, threadID string) ([]ChatMessage, error) {
	resp, err := c.get(ctx, "/threads/"+threadID+"/messages", assistantsHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var result struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode thread messages: %w", err)
	}

	messages := make([]ChatMessage, 0, len(result.Data))
	for _, m := range result.Data {
		var text string
		if len(m.Content) > 0 {
			text = m.Content[0].Text.Value
		}
		messages = append(messages, ChatMessage{Role: m.Role, Content: text})
	}
	return messages, nil
}

// --- HTTP plumbing ---

func (c *OpenAIClient) post(ctx context.Context, path string, body []byte, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, headers)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	return resp, nil
}

func (c *OpenAIClient) get(ctx context.Context, path string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, headers)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	return resp, nil
}

func (c *OpenAIClient) setHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}

// apiError captures the response body for non-2xx statuses, truncated so a
// provider HTML error page cannot flood the logs.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("llm api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

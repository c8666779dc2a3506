package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jhu-collab/coursechat-api/internal/llm"
	"github.com/jhu-collab/coursechat-api/internal/models"
)

// Cache key prefixes, one artifact kind per chat.
const (
	keyPrefixWindow  = "memory:window:"
	keyPrefixSummary = "memory:summary:"
	keyPrefixVectors = "memory:vectors:"

	// KeyPrefix is the common prefix of every artifact key, used by the
	// background sweep job.
	KeyPrefix = "memory:"
)

// Policy is the per-variant context requirement.
type Policy struct {
	FullHistory bool
	NeedWindow  bool
	NeedSummary bool
	NeedVectors bool
	Window      int // window size, used when NeedWindow
	RetrievalK  int // top-K similar messages, used when NeedVectors
}

// Context is the assembled conversational context for one turn.
type Context struct {
	History   []llm.ChatMessage // replayed turns (full history or window)
	Summary   string            // rolling summary text, may be empty
	Retrieved []string          // top-K similar past messages
}

// MessageSource is the slice of the message store the composer reads from.
type MessageSource interface {
	List(ctx context.Context, chatID string, limit, offset int) ([]*models.Message, error)
	ListLatest(ctx context.Context, chatID string, n int) ([]*models.Message, error)
}

// Composer builds Context per policy, caching derived artifacts with a TTL.
// The cache is an optimization only: a cold cache rebuilds equivalent context
// from full history (summary drift excepted, re-summarization is lossy).
type Composer struct {
	store    Store
	messages MessageSource
	client   llm.Client
	model    string
	ttl      time.Duration

	// OnCache, when set, observes artifact cache hits and misses
	// (artifact ∈ {window, summary, vectors}).
	OnCache func(artifact string, hit bool)
}

// NewComposer creates a Composer. ttl bounds artifact lifetime (default 1h).
func NewComposer(store Store, messages MessageSource, client llm.Client, model string, ttl time.Duration) *Composer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Composer{
		store:    store,
		messages: messages,
		client:   client,
		model:    model,
		ttl:      ttl,
	}
}

// Cached artifact shapes. Stored as JSON so the Redis backend works too.

type windowArtifact struct {
	Cap   int               `json:"cap"`
	Turns []llm.ChatMessage `json:"turns"`
}

type summaryArtifact struct {
	Summary   string `json:"summary"`
	TurnCount int    `json:"turnCount"`
}

type vectorEntry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Vector  []float32 `json:"vector"`
}

type vectorArtifact struct {
	Entries []vectorEntry `json:"entries"`
}

// LoadContext assembles context for a chat per policy. query is the incoming
// user input, used to rank retrieved messages.
func (c *Composer) LoadContext(ctx context.Context, chatID, query string, pol Policy) (*Context, error) {
	out := &Context{}

	if pol.FullHistory {
		history, err := c.replayHistory(ctx, chatID, 0)
		if err != nil {
			return nil, err
		}
		out.History = history
	}

	if pol.NeedWindow {
		window, err := c.loadWindow(ctx, chatID, pol.Window)
		if err != nil {
			return nil, err
		}
		out.History = window
	}

	if pol.NeedSummary {
		summary, err := c.loadSummary(ctx, chatID)
		if err != nil {
			return nil, err
		}
		out.Summary = summary
	}

	if pol.NeedVectors {
		retrieved, err := c.retrieve(ctx, chatID, query, pol.RetrievalK)
		if err != nil {
			return nil, err
		}
		out.Retrieved = retrieved
	}

	return out, nil
}

// AppendTurn incrementally folds a completed exchange into whatever artifacts
// are currently cached, so the next turn avoids a full rebuild. Failures are
// logged and swallowed: artifacts are rebuilt from history on the next miss.
func (c *Composer) AppendTurn(ctx context.Context, chatID, userText, assistantText string) {
	c.appendToWindow(ctx, chatID, userText, assistantText)
	c.foldIntoSummary(ctx, chatID, userText, assistantText)
	c.appendVectors(ctx, chatID, userText, assistantText)
}

// Drop removes all cached artifacts for a chat. The error lets callers
// decide whether cleanup needs to be deferred to the sweep job.
func (c *Composer) Drop(ctx context.Context, chatID string) error {
	err := c.store.Delete(ctx,
		keyPrefixWindow+chatID,
		keyPrefixSummary+chatID,
		keyPrefixVectors+chatID,
	)
	if err != nil {
		log.Printf("⚠️  [MEMORY] Failed to drop artifacts for chat %s: %v", chatID, err)
	}
	return err
}

// --- window ---

func (c *Composer) loadWindow(ctx context.Context, chatID string, size int) ([]llm.ChatMessage, error) {
	key := keyPrefixWindow + chatID

	if data, found, _ := c.store.Get(ctx, key); found {
		var art windowArtifact
		if err := json.Unmarshal(data, &art); err == nil && art.Cap == size {
			c.observe("window", true)
			return art.Turns, nil
		}
	}
	c.observe("window", false)

	turns, err := c.replayHistory(ctx, chatID, size)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, windowArtifact{Cap: size, Turns: turns})
	return turns, nil
}

func (c *Composer) appendToWindow(ctx context.Context, chatID, userText, assistantText string) {
	key := keyPrefixWindow + chatID
	data, found, _ := c.store.Get(ctx, key)
	if !found {
		return
	}
	var art windowArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return
	}
	art.Turns = append(art.Turns,
		llm.ChatMessage{Role: models.RoleUser, Content: userText},
		llm.ChatMessage{Role: models.RoleAssistant, Content: assistantText},
	)
	if art.Cap > 0 && len(art.Turns) > art.Cap {
		art.Turns = art.Turns[len(art.Turns)-art.Cap:]
	}
	c.put(ctx, key, art)
}

// --- summary ---

func (c *Composer) loadSummary(ctx context.Context, chatID string) (string, error) {
	key := keyPrefixSummary + chatID

	if data, found, _ := c.store.Get(ctx, key); found {
		var art summaryArtifact
		if err := json.Unmarshal(data, &art); err == nil {
			c.observe("summary", true)
			return art.Summary, nil
		}
	}
	c.observe("summary", false)

	history, err := c.replayHistory(ctx, chatID, 0)
	if err != nil {
		return "", err
	}

	// An empty history yields an empty summary, which is valid input.
	if len(history) == 0 {
		c.put(ctx, key, summaryArtifact{})
		return "", nil
	}

	summary, err := c.summarize(ctx, "", history)
	if err != nil {
		return "", err
	}
	c.put(ctx, key, summaryArtifact{Summary: summary, TurnCount: len(history)})
	return summary, nil
}

func (c *Composer) foldIntoSummary(ctx context.Context, chatID, userText, assistantText string) {
	key := keyPrefixSummary + chatID
	data, found, _ := c.store.Get(ctx, key)
	if !found {
		return
	}
	var art summaryArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return
	}

	newTurns := []llm.ChatMessage{
		{Role: models.RoleUser, Content: userText},
		{Role: models.RoleAssistant, Content: assistantText},
	}
	summary, err := c.summarize(ctx, art.Summary, newTurns)
	if err != nil {
		log.Printf("⚠️  [MEMORY] Incremental summarization failed for chat %s: %v", chatID, err)
		return
	}
	c.put(ctx, key, summaryArtifact{Summary: summary, TurnCount: art.TurnCount + 2})
}

// summarize produces an updated rolling summary. When previous is non-empty
// the new summary builds on it so no context is lost across folds.
func (c *Composer) summarize(ctx context.Context, previous string, turns []llm.ChatMessage) (string, error) {
	var content strings.Builder
	if previous != "" {
		content.WriteString("=== PREVIOUS CONVERSATION SUMMARY ===\n")
		content.WriteString(previous)
		content.WriteString("\n\n=== NEW MESSAGES SINCE LAST SUMMARY ===\n\n")
	}
	for i, turn := range turns {
		fmt.Fprintf(&content, "[%s #%d]: %s\n\n", turn.Role, i+1, turn.Content)
	}

	prompt := []llm.ChatMessage{
		{
			Role: models.RoleSystem,
			Content: "You are a conversation summarizer. Produce a concise summary that preserves " +
				"every fact, decision, name, and open question needed to continue the conversation " +
				"seamlessly. If a previous summary is provided, merge it with the new messages into " +
				"one comprehensive summary without losing details. Max 500 words.",
		},
		{
			Role:    models.RoleUser,
			Content: "Summarize this conversation:\n\n" + content.String(),
		},
	}

	summary, err := c.client.Complete(ctx, prompt, llm.CompleteOptions{Model: c.model, Temperature: 0})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return summary, nil
}

// --- vectors ---

func (c *Composer) retrieve(ctx context.Context, chatID, query string, k int) ([]string, error) {
	key := keyPrefixVectors + chatID

	var art vectorArtifact
	if data, found, _ := c.store.Get(ctx, key); found {
		if err := json.Unmarshal(data, &art); err == nil {
			c.observe("vectors", true)
		} else {
			art = vectorArtifact{}
		}
	}

	if art.Entries == nil {
		c.observe("vectors", false)
		rebuilt, err := c.buildVectors(ctx, chatID)
		if err != nil {
			return nil, err
		}
		art = rebuilt
		c.put(ctx, key, art)
	}

	if len(art.Entries) == 0 {
		return nil, nil
	}

	queryVec, err := c.client.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	return topK(art.Entries, queryVec, k), nil
}

func (c *Composer) buildVectors(ctx context.Context, chatID string) (vectorArtifact, error) {
	history, err := c.replayHistory(ctx, chatID, 0)
	if err != nil {
		return vectorArtifact{}, err
	}

	art := vectorArtifact{Entries: make([]vectorEntry, 0, len(history))}
	for _, turn := range history {
		vec, err := c.client.Embed(ctx, turn.Content)
		if err != nil {
			return vectorArtifact{}, fmt.Errorf("embedding failed: %w", err)
		}
		art.Entries = append(art.Entries, vectorEntry{Role: turn.Role, Content: turn.Content, Vector: vec})
	}
	return art, nil
}

func (c *Composer) appendVectors(ctx context.Context, chatID, userText, assistantText string) {
	key := keyPrefixVectors + chatID
	data, found, _ := c.store.Get(ctx, key)
	if !found {
		return
	}
	var art vectorArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return
	}

	for _, turn := range []llm.ChatMessage{
		{Role: models.RoleUser, Content: userText},
		{Role: models.RoleAssistant, Content: assistantText},
	} {
		vec, err := c.client.Embed(ctx, turn.Content)
		if err != nil {
			log.Printf("⚠️  [MEMORY] Embedding failed for chat %s: %v", chatID, err)
			return
		}
		art.Entries = append(art.Entries, vectorEntry{Role: turn.Role, Content: turn.Content, Vector: vec})
	}
	c.put(ctx, key, art)
}

// --- shared ---

// replayHistory loads stored messages as alternating prompt turns. System and
// function messages are not replayed. limit 0 means full history; otherwise
// the latest limit messages in chronological order.
func (c *Composer) replayHistory(ctx context.Context, chatID string, limit int) ([]llm.ChatMessage, error) {
	var (
		stored []*models.Message
		err    error
	)
	if limit > 0 {
		stored, err = c.messages.ListLatest(ctx, chatID, limit)
	} else {
		stored, err = c.messages.List(ctx, chatID, 0, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	turns := make([]llm.ChatMessage, 0, len(stored))
	for _, m := range stored {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		turns = append(turns, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

func (c *Composer) put(ctx context.Context, key string, artifact interface{}) {
	data, err := json.Marshal(artifact)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		log.Printf("⚠️  [MEMORY] Failed to cache artifact %s: %v", key, err)
	}
}

func (c *Composer) observe(artifact string, hit bool) {
	if c.OnCache != nil {
		c.OnCache(artifact, hit)
	}
}

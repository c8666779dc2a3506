package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhu-collab/coursechat-api/internal/assistant"
	"github.com/jhu-collab/coursechat-api/internal/logging"
	"github.com/jhu-collab/coursechat-api/internal/memory"
	"github.com/jhu-collab/coursechat-api/internal/models"
)

// ConversationService orchestrates one turn: persist the user message, ask
// the assistant, persist the reply, refresh memory artifacts.
type ConversationService struct {
	registry *assistant.Registry
	chats    *ChatService
	messages *MessageService
	composer *memory.Composer
}

// NewConversationService creates a ConversationService.
func NewConversationService(registry *assistant.Registry, chats *ChatService, messages *MessageService, composer *memory.Composer) *ConversationService {
	return &ConversationService{
		registry: registry,
		chats:    chats,
		messages: messages,
		composer: composer,
	}
}

// Start creates a new chat and runs its first turn.
func (s *ConversationService) Start(ctx context.Context, req models.StartConversationRequest, apiKeyID string) (*models.ConversationResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", models.ErrValidation)
	}
	if req.AssistantName == "" {
		return nil, fmt.Errorf("%w: assistantName is required", models.ErrValidation)
	}
	// Resolve the assistant before creating the chat, so a typo'd name
	// does not leave an empty chat behind.
	if _, err := s.registry.Get(req.AssistantName); err != nil {
		return nil, err
	}

	chat, err := s.chats.Create(ctx, models.CreateChatRequest{
		Title:         req.Title,
		AssistantName: req.AssistantName,
		Username:      req.Username,
		Metadata:      req.Metadata,
	}, apiKeyID)
	if err != nil {
		return nil, err
	}

	return s.runTurn(ctx, chat, req.Message)
}

// Continue runs one more turn of an existing chat.
func (s *ConversationService) Continue(ctx context.Context, chatID, message, apiKeyID string, admin bool) (*models.ConversationResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", models.ErrValidation)
	}

	chat, err := s.chats.GetOwned(ctx, chatID, apiKeyID, admin)
	if err != nil {
		return nil, err
	}

	return s.runTurn(ctx, chat, message)
}

// runTurn is the shared turn pipeline. The user message stays persisted
// even when generation fails, so clients can retry without losing input.
func (s *ConversationService) runTurn(ctx context.Context, chat *models.Chat, input string) (*models.ConversationResponse, error) {
	logger := logging.WithChat(chat.ID, chat.AssistantName)
	start := time.Now()

	if _, err := s.messages.Append(ctx, chat.ID, models.RoleUser, input); err != nil {
		return nil, err
	}

	response, err := s.registry.GenerateResponse(ctx, chat.AssistantName, input, chat.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The assistant was removed from the catalog after the chat
			// was created.
			conversationRequests.WithLabelValues(chat.AssistantName, "error").Inc()
			return nil, err
		}
		generationErrors.WithLabelValues(chat.AssistantName).Inc()
		conversationRequests.WithLabelValues(chat.AssistantName, "error").Inc()
		logger.Error("generation failed", "error", err)
		if errors.Is(err, models.ErrGenerationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	if _, err := s.messages.Append(ctx, chat.ID, models.RoleAssistant, response); err != nil {
		return nil, err
	}

	// Best effort: artifact refresh failures are logged inside the
	// composer and never fail the turn.
	s.composer.AppendTurn(ctx, chat.ID, input, response)

	if err := s.chats.Touch(ctx, chat.ID); err != nil {
		logger.Warn("chat touch failed", "error", err)
	}

	conversationRequests.WithLabelValues(chat.AssistantName, "success").Inc()
	conversationDuration.WithLabelValues(chat.AssistantName).Observe(time.Since(start).Seconds())
	logger.Info("turn completed", "duration_ms", time.Since(start).Milliseconds())

	return &models.ConversationResponse{ChatID: chat.ID, Response: response}, nil
}

// DropMemory clears a chat's cached memory artifacts. Called on chat delete.
func (s *ConversationService) DropMemory(ctx context.Context, chatID string) error {
	return s.composer.Drop(ctx, chatID)
}

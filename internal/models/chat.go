package models

import "time"

// Chat associates an assistant persona with an ordered message sequence.
// APIKeyID is the owning key (optional for legacy rows); Username is an
// optional external identity supplied by the client application.
type Chat struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	AssistantName string            `json:"assistantName"`
	APIKeyID      string            `json:"apiKeyId,omitempty"`
	Username      string            `json:"username,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// CreateChatRequest is the request body for creating a chat.
type CreateChatRequest struct {
	Title         string            `json:"title"`
	AssistantName string            `json:"assistantName"`
	Username      string            `json:"username,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// UpdateChatRequest is the request body for partial chat updates.
type UpdateChatRequest struct {
	Title *string `json:"title,omitempty"`
}

// ChatListResponse is the paginated response for listing chats.
type ChatListResponse struct {
	Chats      []*Chat `json:"chats"`
	TotalCount int     `json:"totalCount"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}

// MessageListResponse is the paginated response for listing chat messages.
type MessageListResponse struct {
	Messages   []*Message `json:"messages"`
	TotalCount int        `json:"totalCount"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

// StartConversationRequest creates a chat and sends its first message in one
// call.
type StartConversationRequest struct {
	Title         string            `json:"title"`
	AssistantName string            `json:"assistantName"`
	Message       string            `json:"message"`
	Username      string            `json:"username,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ContinueConversationRequest sends a follow-up message to an existing chat.
type ContinueConversationRequest struct {
	Message string `json:"message"`
}

// ConversationResponse is returned by both conversation endpoints.
type ConversationResponse struct {
	ChatID   string `json:"chatId"`
	Response string `json:"response"`
}

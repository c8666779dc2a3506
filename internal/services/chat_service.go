package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhu-collab/coursechat-api/internal/database"
	"github.com/jhu-collab/coursechat-api/internal/models"
)

// threadIDMetadataKey is where a hosted assistant's external thread id
// lives inside chat metadata.
const threadIDMetadataKey = "thread_id"

// ChatService persists chats.
type ChatService struct {
	db *database.DB
}

// NewChatService creates a ChatService.
func NewChatService(db *database.DB) *ChatService {
	return &ChatService{db: db}
}

// Create inserts a new chat owned by the given API key.
func (s *ChatService) Create(ctx context.Context, req models.CreateChatRequest, apiKeyID string) (*models.Chat, error) {
	if req.AssistantName == "" {
		return nil, fmt.Errorf("%w: assistantName is required", models.ErrValidation)
	}

	now := time.Now().UTC()
	chat := &models.Chat{
		ID:            uuid.New().String(),
		Title:         req.Title,
		AssistantName: req.AssistantName,
		APIKeyID:      apiKeyID,
		Username:      req.Username,
		Metadata:      req.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if chat.Title == "" {
		chat.Title = "New Chat"
	}
	if chat.Metadata == nil {
		chat.Metadata = map[string]string{}
	}

	metadata, err := json.Marshal(chat.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, assistant_name, api_key_id, username, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.Title, chat.AssistantName, chat.APIKeyID, chat.Username, string(metadata),
		chat.CreatedAt.Format(database.TimeFormat), chat.UpdatedAt.Format(database.TimeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

// Get fetches a chat by id.
func (s *ChatService) Get(ctx context.Context, id string) (*models.Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, assistant_name, api_key_id, username, metadata, created_at, updated_at
		FROM chats WHERE id = ?`, id)

	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: chat %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// GetOwned fetches a chat and enforces ownership: clients only see chats
// created with their own key, admins see everything.
func (s *ChatService) GetOwned(ctx context.Context, id, apiKeyID string, admin bool) (*models.Chat, error) {
	chat, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && chat.APIKeyID != apiKeyID {
		// Hidden, not forbidden: a client cannot probe other keys' chat ids.
		return nil, fmt.Errorf("%w: chat %s", models.ErrNotFound, id)
	}
	return chat, nil
}

// List returns chats newest first, scoped to the key unless admin.
func (s *ChatService) List(ctx context.Context, apiKeyID string, admin bool, limit, offset int) (*models.ChatListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where := "WHERE api_key_id = ?"
	args := []any{apiKeyID}
	if admin {
		where = ""
		args = nil
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chats "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count chats: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, title, assistant_name, api_key_id, username, metadata, created_at, updated_at
		FROM chats %s ORDER BY updated_at DESC LIMIT ? OFFSET ?`, where)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]*models.Chat, 0, limit)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.ChatListResponse{
		Chats:      chats,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// UpdateTitle renames a chat.
func (s *ChatService) UpdateTitle(ctx context.Context, id, title string) (*models.Chat, error) {
	chat, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chat.Title = title
	chat.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`,
		title, chat.UpdatedAt.Format(database.TimeFormat), id)
	if err != nil {
		return nil, fmt.Errorf("update chat: %w", err)
	}
	return chat, nil
}

// Touch bumps a chat's updated_at so listings sort by recent activity.
func (s *ChatService) Touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(database.TimeFormat), id)
	return err
}

// Delete removes a chat. Messages go with it via the FK cascade.
func (s *ChatService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: chat %s", models.ErrNotFound, id)
	}
	return nil
}

// IDs returns every chat id. Used by the memory sweep to find orphans.
func (s *ChatService) IDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chats`)
	if err != nil {
		return nil, fmt.Errorf("list chat ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ThreadID returns the chat's hosted thread id, or "" when none is set.
func (s *ChatService) ThreadID(ctx context.Context, chatID string) (string, error) {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return "", err
	}
	return chat.Metadata[threadIDMetadataKey], nil
}

// SetThreadID records the chat's hosted thread id in its metadata.
func (s *ChatService) SetThreadID(ctx context.Context, chatID, threadID string) error {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return err
	}

	if chat.Metadata == nil {
		chat.Metadata = map[string]string{}
	}
	chat.Metadata[threadIDMetadataKey] = threadID

	metadata, err := json.Marshal(chat.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE chats SET metadata = ?, updated_at = ? WHERE id = ?`,
		string(metadata), time.Now().UTC().Format(database.TimeFormat), chatID)
	if err != nil {
		return fmt.Errorf("update chat metadata: %w", err)
	}
	return nil
}

func scanChat(row rowScanner) (*models.Chat, error) {
	var (
		chat      models.Chat
		metadata  string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&chat.ID, &chat.Title, &chat.AssistantName, &chat.APIKeyID,
		&chat.Username, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &chat.Metadata); err != nil {
			return nil, fmt.Errorf("decode chat metadata: %w", err)
		}
	}
	if chat.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if chat.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &chat, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhu-collab/coursechat-api/internal/database"
	"github.com/jhu-collab/coursechat-api/internal/models"
)

// MessageService persists the message transcript of each chat.
type MessageService struct {
	db *database.DB
}

// NewMessageService creates a MessageService.
func NewMessageService(db *database.DB) *MessageService {
	return &MessageService{db: db}
}

// Append stores a message at the end of a chat's transcript.
func (s *MessageService) Append(ctx context.Context, chatID, role, content string) (*models.Message, error) {
	if !models.IsValidMessageRole(role) {
		return nil, fmt.Errorf("%w: invalid message role %q", models.ErrValidation, role)
	}

	msg := &models.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.CreatedAt.Format(database.TimeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// List returns a chat's messages in creation order. limit 0 means all.
func (s *MessageService) List(ctx context.Context, chatID string, limit, offset int) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, role, content, created_at
		FROM messages WHERE chat_id = ? ORDER BY created_at ASC, id ASC`
	args := []any{chatID}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListLatest returns the newest n messages in chronological order.
func (s *MessageService) ListLatest(ctx context.Context, chatID string, n int) ([]*models.Message, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, created_at
		FROM messages WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		chatID, n)
	if err != nil {
		return nil, fmt.Errorf("list latest messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first; callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountByChat returns how many messages a chat holds.
func (s *MessageService) CountByChat(ctx context.Context, chatID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg       models.Message
		createdAt string
	)
	err := row.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &createdAt)
	if err != nil {
		return nil, err
	}
	if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &msg, nil
}

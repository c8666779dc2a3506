package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhu-collab/coursechat-api/internal/database"
	"github.com/jhu-collab/coursechat-api/internal/models"
)

// AssistantService keeps the relational catalog of assistants in step with
// the registered persona set, so chats can reference assistants by name.
type AssistantService struct {
	db *database.DB
}

// NewAssistantService creates an AssistantService.
func NewAssistantService(db *database.DB) *AssistantService {
	return &AssistantService{db: db}
}

// Ensure upserts an assistant record. Registering the same persona across
// restarts is a no-op apart from description updates.
func (s *AssistantService) Ensure(ctx context.Context, name, description string) error {
	existing, err := s.Get(ctx, name)
	if err == nil {
		if existing.Description == description {
			return nil
		}
		_, err = s.db.ExecContext(ctx, `UPDATE assistants SET description = ?, updated_at = ? WHERE name = ?`,
			description, time.Now().UTC().Format(database.TimeFormat), name)
		if err != nil {
			return fmt.Errorf("update assistant: %w", err)
		}
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	now := time.Now().UTC().Format(database.TimeFormat)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assistants (name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?)`, name, description, now, now)
	if err != nil {
		return fmt.Errorf("insert assistant: %w", err)
	}
	return nil
}

// Get fetches one assistant by name.
func (s *AssistantService) Get(ctx context.Context, name string) (*models.Assistant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, created_at, updated_at FROM assistants WHERE name = ?`, name)

	assistant, err := scanAssistant(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: assistant %s", models.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return assistant, nil
}

// List returns all assistants sorted by name.
func (s *AssistantService) List(ctx context.Context) ([]*models.Assistant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, created_at, updated_at FROM assistants ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	defer rows.Close()

	var assistants []*models.Assistant
	for rows.Next() {
		assistant, err := scanAssistant(rows)
		if err != nil {
			return nil, err
		}
		assistants = append(assistants, assistant)
	}
	return assistants, rows.Err()
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

func scanAssistant(row rowScanner) (*models.Assistant, error) {
	var (
		assistant models.Assistant
		createdAt string
		updatedAt string
	)
	err := row.Scan(&assistant.Name, &assistant.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if assistant.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if assistant.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &assistant, nil
}

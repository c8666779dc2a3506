package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhu-collab/coursechat-api/internal/database"
	"github.com/jhu-collab/coursechat-api/internal/models"
)

const (
	// APIKeyPrefix marks every issued key so leaked keys are recognizable
	// in logs and scanners.
	APIKeyPrefix = "csc_"
	// APIKeyPrefixLength is how many leading characters are stored in
	// plaintext for lookup. The rest only exists as a bcrypt hash.
	APIKeyPrefixLength = 12

	validationCacheTTL = 60 * time.Second
)

// APIKeyService issues and validates API keys. Raw keys are shown once at
// creation; only prefix and bcrypt hash are stored.
type APIKeyService struct {
	db *database.DB

	// validationCache maps raw key -> *models.APIKey so the bcrypt compare
	// is not paid on every request.
	validationCache *cache.Cache
}

// NewAPIKeyService creates an APIKeyService.
func NewAPIKeyService(db *database.DB) *APIKeyService {
	return &APIKeyService{
		db:              db,
		validationCache: cache.New(validationCacheTTL, 2*validationCacheTTL),
	}
}

// Create issues a new key. The returned response carries the raw key; it is
// never retrievable again.
func (s *APIKeyService) Create(ctx context.Context, req models.CreateAPIKeyRequest) (*models.CreateAPIKeyResponse, error) {
	if !models.IsValidRole(req.Role) {
		return nil, fmt.Errorf("%w: role must be %q or %q", models.ErrValidation, models.RoleAdmin, models.RoleClient)
	}

	rawKey, err := generateRawKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:          uuid.New().String(),
		Role:        req.Role,
		IsActive:    true,
		Description: req.Description,
		KeyPrefix:   rawKey[:APIKeyPrefixLength],
		KeyHash:     string(hash),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, role, is_active, description, key_prefix, key_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Role, key.IsActive, key.Description, key.KeyPrefix, key.KeyHash,
		key.CreatedAt.Format(database.TimeFormat), key.UpdatedAt.Format(database.TimeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}

	log.Printf("🔑 Created %s API key %s (%s...)", key.Role, key.ID, key.KeyPrefix)

	return &models.CreateAPIKeyResponse{
		ID:          key.ID,
		Key:         rawKey,
		KeyPrefix:   key.KeyPrefix,
		Role:        key.Role,
		Description: key.Description,
		CreatedAt:   key.CreatedAt,
	}, nil
}

// Validate resolves a raw key to its record, rejecting unknown, inactive,
// and soft-deleted keys.
func (s *APIKeyService) Validate(ctx context.Context, rawKey string) (*models.APIKey, error) {
	if len(rawKey) < APIKeyPrefixLength || !strings.HasPrefix(rawKey, APIKeyPrefix) {
		return nil, fmt.Errorf("%w: malformed API key", models.ErrUnauthorized)
	}
	// Header values arrive as views into Fiber's pooled request buffer,
	// which is reused once the request ends. Clone before the string
	// outlives the request as a cache key.
	rawKey = strings.Clone(rawKey)

	if cached, found := s.validationCache.Get(rawKey); found {
		key := cached.(*models.APIKey)
		if !key.IsValid() {
			return nil, fmt.Errorf("%w: API key is inactive", models.ErrUnauthorized)
		}
		return key, nil
	}

	// The prefix narrows candidates; bcrypt confirms the match.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, is_active, description, key_prefix, key_hash, deleted_at, created_at, updated_at
		FROM api_keys WHERE key_prefix = ?`, rawKey[:APIKeyPrefixLength])
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) != nil {
			continue
		}
		if !key.IsValid() {
			return nil, fmt.Errorf("%w: API key is inactive", models.ErrUnauthorized)
		}
		s.validationCache.Set(rawKey, key, cache.DefaultExpiration)
		return key, nil
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	return nil, fmt.Errorf("%w: unknown API key", models.ErrUnauthorized)
}

// Get fetches a key record by id, including soft-deleted ones.
func (s *APIKeyService) Get(ctx context.Context, id string) (*models.APIKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, role, is_active, description, key_prefix, key_hash, deleted_at, created_at, updated_at
		FROM api_keys WHERE id = ?`, id)

	key, err := scanAPIKey(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: api key %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// List returns all non-deleted keys, newest first.
func (s *APIKeyService) List(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, is_active, description, key_prefix, key_hash, deleted_at, created_at, updated_at
		FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Update applies partial changes to a key's active flag and description.
func (s *APIKeyService) Update(ctx context.Context, id string, req models.UpdateAPIKeyRequest) (*models.APIKey, error) {
	key, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if key.IsDeleted() {
		return nil, fmt.Errorf("%w: api key %s", models.ErrNotFound, id)
	}

	if req.IsActive != nil {
		key.IsActive = *req.IsActive
	}
	if req.Description != nil {
		key.Description = *req.Description
	}
	key.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE api_keys SET is_active = ?, description = ?, updated_at = ? WHERE id = ?`,
		key.IsActive, key.Description, key.UpdatedAt.Format(database.TimeFormat), id)
	if err != nil {
		return nil, fmt.Errorf("update api key: %w", err)
	}

	s.invalidateByPrefix(key.KeyPrefix)
	return key, nil
}

// SoftDelete marks a key deleted. Validation rejects it immediately; the
// row is purged later by the retention job.
func (s *APIKeyService) SoftDelete(ctx context.Context, id string) error {
	key, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if key.IsDeleted() {
		return fmt.Errorf("%w: api key %s", models.ErrNotFound, id)
	}

	now := time.Now().UTC().Format(database.TimeFormat)
	_, err = s.db.ExecContext(ctx, `
		UPDATE api_keys SET deleted_at = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		now, false, now, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}

	s.invalidateByPrefix(key.KeyPrefix)
	log.Printf("🗑️ Soft-deleted API key %s", id)
	return nil
}

// PurgeDeleted removes soft-deleted keys older than the cutoff and returns
// how many were purged.
func (s *APIKeyService) PurgeDeleted(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM api_keys WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		olderThan.UTC().Format(database.TimeFormat))
	if err != nil {
		return 0, fmt.Errorf("purge api keys: %w", err)
	}
	return result.RowsAffected()
}

// EnsureBootstrapKey creates the first admin key when the table is empty,
// so a fresh deployment has a way in. The raw key is logged once.
func (s *APIKeyService) EnsureBootstrapKey(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys`).Scan(&count); err != nil {
		return fmt.Errorf("count api keys: %w", err)
	}
	if count > 0 {
		return nil
	}

	resp, err := s.Create(ctx, models.CreateAPIKeyRequest{
		Role:        models.RoleAdmin,
		Description: "bootstrap admin key",
	})
	if err != nil {
		return err
	}

	log.Printf("🔑 Bootstrap admin API key (store it now, it will not be shown again): %s", resp.Key)
	return nil
}

// invalidateByPrefix drops cached validations for a key whose record
// changed. The cache is keyed by raw key, so match on the stored prefix.
func (s *APIKeyService) invalidateByPrefix(prefix string) {
	for rawKey := range s.validationCache.Items() {
		if strings.HasPrefix(rawKey, prefix) {
			s.validationCache.Delete(rawKey)
		}
	}
}

func generateRawKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var (
		key       models.APIKey
		deletedAt sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&key.ID, &key.Role, &key.IsActive, &key.Description,
		&key.KeyPrefix, &key.KeyHash, &deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse deleted_at: %w", err)
		}
		key.DeletedAt = &t
	}
	if key.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if key.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &key, nil
}

package models

import "time"

// API key roles. Admin keys manage other keys and see every chat; client
// keys only see chats they own.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// APIKey represents an API key for programmatic access.
// The plain key is never stored; only a bcrypt hash plus a display prefix.
type APIKey struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	Description string     `json:"description,omitempty"`
	KeyPrefix   string     `json:"keyPrefix"` // First 12 chars for display (e.g., "csc_a1b2c3d4")
	KeyHash     string     `json:"-"`         // bcrypt hash, never exposed in JSON
	DeletedAt   *time.Time `json:"deletedAt,omitempty"` // Soft delete
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsDeleted returns true if the key has been soft-deleted.
func (k *APIKey) IsDeleted() bool {
	return k.DeletedAt != nil
}

// IsValid returns true if the key is active and not soft-deleted.
// Inactive or deleted keys never validate.
func (k *APIKey) IsValid() bool {
	return k.IsActive && !k.IsDeleted()
}

// IsAdmin returns true for admin-role keys.
func (k *APIKey) IsAdmin() bool {
	return k.Role == RoleAdmin
}

// IsValidRole checks a role string against the known roles.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleClient
}

// CreateAPIKeyRequest is the request body for creating an API key.
type CreateAPIKeyRequest struct {
	Role        string `json:"role"`
	Description string `json:"description,omitempty"`
}

// CreateAPIKeyResponse is returned after creating an API key.
// This is the only time the full key is returned.
type CreateAPIKeyResponse struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"` // Full API key (only shown once)
	KeyPrefix   string    `json:"keyPrefix"`
	Role        string    `json:"role"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UpdateAPIKeyRequest is the request body for partial API key updates.
type UpdateAPIKeyRequest struct {
	IsActive    *bool   `json:"isActive,omitempty"`
	Description *string `json:"description,omitempty"`
}

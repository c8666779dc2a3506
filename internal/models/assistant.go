package models

import "time"

// Assistant is the persisted metadata row for a registered persona.
// Rows are created lazily when the in-process registry synchronizes.
type Assistant struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

package models

import "errors"

// Error taxonomy for the API surface. Services wrap these with context via
// fmt.Errorf("...: %w", Err...) and handlers map them to HTTP status codes.
var (
	// ErrNotFound covers unknown chats, assistants, messages and API keys.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized covers missing, invalid or inactive API keys and role
	// mismatches.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation covers malformed request payloads.
	ErrValidation = errors.New("validation failed")

	// ErrGenerationFailed covers external LLM failures. The orchestrator wraps
	// strategy errors in this so provider internals never reach the client.
	ErrGenerationFailed = errors.New("generation failed")
)

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jhu-collab/coursechat-api/internal/models"
)

func TestAssistantService_EnsureIsIdempotent(t *testing.T) {
	service := NewAssistantService(newTestDB(t))
	ctx := context.Background()

	if err := service.Ensure(ctx, "dory", "forgets everything"); err != nil {
		t.Fatalf("Failed to ensure assistant: %v", err)
	}
	if err := service.Ensure(ctx, "dory", "forgets everything"); err != nil {
		t.Fatalf("Second ensure failed: %v", err)
	}

	assistants, err := service.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list assistants: %v", err)
	}
	if len(assistants) != 1 {
		t.Fatalf("Expected 1 assistant after repeated ensure, got %d", len(assistants))
	}
}

func TestAssistantService_EnsureUpdatesDescription(t *testing.T) {
	service := NewAssistantService(newTestDB(t))
	ctx := context.Background()

	service.Ensure(ctx, "finch", "old description")
	if err := service.Ensure(ctx, "finch", "summarizes the conversation"); err != nil {
		t.Fatalf("Failed to update description: %v", err)
	}

	assistant, err := service.Get(ctx, "finch")
	if err != nil {
		t.Fatalf("Failed to get assistant: %v", err)
	}
	if assistant.Description != "summarizes the conversation" {
		t.Errorf("Expected updated description, got %q", assistant.Description)
	}
}

func TestAssistantService_ListSorted(t *testing.T) {
	service := NewAssistantService(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"parrot", "ant", "memento"} {
		service.Ensure(ctx, name, "")
	}

	assistants, err := service.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list assistants: %v", err)
	}
	want := []string{"ant", "memento", "parrot"}
	if len(assistants) != len(want) {
		t.Fatalf("Expected %d assistants, got %d", len(want), len(assistants))
	}
	for i, name := range want {
		if assistants[i].Name != name {
			t.Errorf("Position %d: expected %q, got %q", i, name, assistants[i].Name)
		}
	}
}

func TestAssistantService_GetUnknownIsNotFound(t *testing.T) {
	service := NewAssistantService(newTestDB(t))

	if _, err := service.Get(context.Background(), "hal"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jhu-collab/coursechat-api/internal/models"
)

func TestChatService_CreateAndGet(t *testing.T) {
	service := NewChatService(newTestDB(t))
	ctx := context.Background()

	chat, err := service.Create(ctx, models.CreateChatRequest{
		Title:         "Office hours",
		AssistantName: "dory",
		Username:      "student1",
		Metadata:      map[string]string{"course": "601.229"},
	}, "key-1")
	if err != nil {
		t.Fatalf("Failed to create chat: %v", err)
	}

	got, err := service.Get(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Failed to get chat: %v", err)
	}
	if got.Title != "Office hours" {
		t.Errorf("Expected title 'Office hours', got %q", got.Title)
	}
	if got.AssistantName != "dory" {
		t.Errorf("Expected assistant dory, got %q", got.AssistantName)
	}
	if got.Metadata["course"] != "601.229" {
		t.Errorf("Metadata did not survive round trip: %v", got.Metadata)
	}
	if got.APIKeyID != "key-1" {
		t.Errorf("Expected owner key-1, got %q", got.APIKeyID)
	}
}

func TestChatService_CreateDefaultsTitle(t *testing.T) {
	service := NewChatService(newTestDB(t))

	chat, err := service.Create(context.Background(), models.CreateChatRequest{AssistantName: "dory"}, "key-1")
	if err != nil {
		t.Fatalf("Failed to create chat: %v", err)
	}
	if chat.Title != "New Chat" {
		t.Errorf("Expected default title, got %q", chat.Title)
	}
}

func TestChatService_GetUnknownIsNotFound(t *testing.T) {
	service := NewChatService(newTestDB(t))

	if _, err := service.Get(context.Background(), "no-such-chat"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestChatService_OwnershipScoping(t *testing.T) {
	service := NewChatService(newTestDB(t))
	ctx := context.Background()

	mine, _ := service.Create(ctx, models.CreateChatRequest{AssistantName: "dory"}, "key-mine")
	theirs, _ := service.Create(ctx, models.CreateChatRequest{AssistantName: "dory"}, "key-theirs")

	// A client sees its own chat.
	if _, err := service.GetOwned(ctx, mine.ID, "key-mine", false); err != nil {
		t.Errorf("Expected owner access, got %v", err)
	}

	// Another client's chat reads as not found, not forbidden.
	if _, err := service.GetOwned(ctx, theirs.ID, "key-mine", false); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found for foreign chat, got %v", err)
	}

	// Admin sees everything.
	if _, err := service.GetOwned(ctx, theirs.ID, "key-admin", true); err != nil {
		t.Errorf("Expected admin access, got %v", err)
	}

	// Listing is scoped the same way.
	list, err := service.List(ctx, "key-mine", false, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list chats: %v", err)
	}
	if list.TotalCount != 1 || len(list.Chats) != 1 {
		t.Fatalf("Expected 1 scoped chat, got total=%d len=%d", list.TotalCount, len(list.Chats))
	}
	if list.Chats[0].ID != mine.ID {
		t.Errorf("Expected own chat in listing, got %q", list.Chats[0].ID)
	}

	adminList, err := service.List(ctx, "key-admin", true, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list chats as admin: %v", err)
	}
	if adminList.TotalCount != 2 {
		t.Errorf("Expected admin to see 2 chats, got %d", adminList.TotalCount)
	}
}

func TestChatService_UpdateTitle(t *testing.T) {
	service := NewChatService(newTestDB(t))
	ctx := context.Background()

	chat, _ := service.Create(ctx, models.CreateChatRequest{AssistantName: "dory"}, "key-1")

	updated, err := service.UpdateTitle(ctx, chat.ID, "Renamed")
	if err != nil {
		t.Fatalf("Failed to rename chat: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("Expected renamed title, got %q", updated.Title)
	}

	got, _ := service.Get(ctx, chat.ID)
	if got.Title != "Renamed" {
		t.Errorf("Rename did not persist, got %q", got.Title)
	}
}

func TestChatService_DeleteCascadesMessages(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	messages := NewMessageService(db)
	ctx := context.Background()

	chat, _ := chats.Create(ctx, models.CreateChatRequest{AssistantName: "dory"}, "key-1")
	if _, err := messages.Append(ctx, chat.ID, models.RoleUser, "hello"); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	if err := chats.Delete(ctx, chat.ID); err != nil {
		t.Fatalf("Failed to delete chat: %v", err)
	}
	if err := chats.Delete(ctx, chat.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}

	count, err := messages.CountByChat(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Failed to count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected messages to cascade on delete, found %d", count)
	}
}

func TestChatService_ThreadIDRoundTrip(t *testing.T) {
	service := NewChatService(newTestDB(t))
	ctx := context.Background()

	chat, _ := service.Create(ctx, models.CreateChatRequest{AssistantName: "turing"}, "key-1")

	threadID, err := service.ThreadID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Failed to read thread id: %v", err)
	}
	if threadID != "" {
		t.Errorf("Expected empty thread id for new chat, got %q", threadID)
	}

	if err := service.SetThreadID(ctx, chat.ID, "thread-abc"); err != nil {
		t.Fatalf("Failed to set thread id: %v", err)
	}

	threadID, err = service.ThreadID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Failed to re-read thread id: %v", err)
	}
	if threadID != "thread-abc" {
		t.Errorf("Expected thread-abc, got %q", threadID)
	}

	// Other metadata survives the update.
	got, _ := service.Get(ctx, chat.ID)
	if got.AssistantName != "turing" {
		t.Errorf("Assistant name changed unexpectedly: %q", got.AssistantName)
	}
}

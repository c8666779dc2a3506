package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jhu-collab/coursechat-api/internal/models"
)

func TestMessageService_AppendPreservesOrder(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	messages := NewMessageService(db)
	ctx := context.Background()

	chat, _ := chats.Create(ctx, models.CreateChatRequest{AssistantName: "parrot"}, "key-1")

	for i := 0; i < 10; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if _, err := messages.Append(ctx, chat.ID, role, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("Failed to append message %d: %v", i, err)
		}
	}

	all, err := messages.List(ctx, chat.ID, 0, 0)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(all) != 10 {
		t.Fatalf("Expected 10 messages, got %d", len(all))
	}
	for i, msg := range all {
		if msg.Content != fmt.Sprintf("msg %d", i) {
			t.Errorf("Message %d out of order: got %q", i, msg.Content)
		}
	}

	// Roles alternate user/assistant/user/...
	for i, msg := range all {
		want := models.RoleUser
		if i%2 == 1 {
			want = models.RoleAssistant
		}
		if msg.Role != want {
			t.Errorf("Message %d expected role %q, got %q", i, want, msg.Role)
		}
	}
}

func TestMessageService_AppendRejectsUnknownRole(t *testing.T) {
	messages := NewMessageService(newTestDB(t))

	_, err := messages.Append(context.Background(), "chat-1", "narrator", "hi")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for unknown role, got %v", err)
	}
}

func TestMessageService_ListPagination(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	messages := NewMessageService(db)
	ctx := context.Background()

	chat, _ := chats.Create(ctx, models.CreateChatRequest{AssistantName: "parrot"}, "key-1")
	for i := 0; i < 5; i++ {
		messages.Append(ctx, chat.ID, models.RoleUser, fmt.Sprintf("msg %d", i))
	}

	page, err := messages.List(ctx, chat.ID, 2, 2)
	if err != nil {
		t.Fatalf("Failed to list page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(page))
	}
	if page[0].Content != "msg 2" || page[1].Content != "msg 3" {
		t.Errorf("Wrong page contents: %q, %q", page[0].Content, page[1].Content)
	}
}

func TestMessageService_ListLatestChronological(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	messages := NewMessageService(db)
	ctx := context.Background()

	chat, _ := chats.Create(ctx, models.CreateChatRequest{AssistantName: "memento"}, "key-1")
	for i := 0; i < 8; i++ {
		messages.Append(ctx, chat.ID, models.RoleUser, fmt.Sprintf("msg %d", i))
	}

	latest, err := messages.ListLatest(ctx, chat.ID, 3)
	if err != nil {
		t.Fatalf("Failed to list latest: %v", err)
	}
	if len(latest) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(latest))
	}
	// Newest 3 returned oldest-first.
	for i, want := range []string{"msg 5", "msg 6", "msg 7"} {
		if latest[i].Content != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, latest[i].Content)
		}
	}
}

func TestMessageService_CountByChat(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	messages := NewMessageService(db)
	ctx := context.Background()

	chat, _ := chats.Create(ctx, models.CreateChatRequest{AssistantName: "dory"}, "key-1")

	count, err := messages.CountByChat(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 messages in new chat, got %d", count)
	}

	messages.Append(ctx, chat.ID, models.RoleUser, "one")
	messages.Append(ctx, chat.ID, models.RoleAssistant, "two")

	count, _ = messages.CountByChat(ctx, chat.ID)
	if count != 2 {
		t.Errorf("Expected 2 messages, got %d", count)
	}
}

package store

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	return s
}

func TestCreateAndGetConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if id == "" {
		t.Fatal("CreateConversation returned empty id")
	}

	conv, err := s.GetConversation(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", conv.UserID)
	}
	if conv.Title != "" {
		t.Errorf("Title = %q, want empty for new conversation", conv.Title)
	}
}

func TestGetConversationOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if _, err := s.GetConversation(ctx, id, "user-2"); err != ErrNotFound {
		t.Errorf("GetConversation with wrong owner: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetConversation(ctx, "nonexistent", "user-1"); err != ErrNotFound {
		t.Errorf("GetConversation with missing id: err = %v, want ErrNotFound", err)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConversation(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	before, err := s.GetConversation(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}

	msg, err := s.AppendMessage(ctx, id, RoleUser, "hello")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if msg.Role != RoleUser || msg.Content != "hello" {
		t.Errorf("message = %+v", msg)
	}

	if _, err := s.AppendMessage(ctx, id, RoleAssistant, "hi there"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, err := s.ListMessages(ctx, id)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("message order wrong: %q then %q", msgs[0].Role, msgs[1].Role)
	}

	// Append bumps updated_at.
	after, err := s.GetConversation(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if after.UpdatedAt.Before(before.UpdatedAt) {
		t.Error("UpdatedAt went backwards after append")
	}
}

func TestListConversationsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _ := s.CreateConversation(ctx, "user-1")
	second, _ := s.CreateConversation(ctx, "user-1")
	s.CreateConversation(ctx, "user-2") // other user, must not appear

	// Touch the first conversation so it becomes most recent.
	if _, err := s.AppendMessage(ctx, first, RoleUser, "bump"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	convs, err := s.ListConversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len(convs) = %d, want 2", len(convs))
	}
	if convs[0].ID != first || convs[1].ID != second {
		t.Errorf("order = [%s %s], want most recently updated first", convs[0].ID, convs[1].ID)
	}
}

func TestUpdateTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateConversation(ctx, "user-1")
	if err := s.UpdateTitle(ctx, id, "My macros"); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}

	conv, err := s.GetConversation(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.Title != "My macros" {
		t.Errorf("Title = %q, want My macros", conv.Title)
	}
}

func TestDeleteConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateConversation(ctx, "user-1")
	s.AppendMessage(ctx, id, RoleUser, "hello")

	// Wrong owner cannot delete.
	deleted, err := s.DeleteConversation(ctx, id, "user-2")
	if err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if deleted {
		t.Error("DeleteConversation succeeded for non-owner")
	}

	deleted, err = s.DeleteConversation(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if !deleted {
		t.Error("DeleteConversation = false for owner")
	}

	if _, err := s.GetConversation(ctx, id, "user-1"); err != ErrNotFound {
		t.Errorf("conversation still present after delete: %v", err)
	}

	msgs, err := s.ListMessages(ctx, id)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages survived conversation delete: %d", len(msgs))
	}
}

package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makroxyz/simplechat/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbUrl := os.Getenv("TEST_DB_URL")
	if dbUrl == "" {
		t.Skip("TEST_DB_URL not set, skipping integration test")
	}

	testDBOnce.Do(func() {
		testDBPool, testDBErr = pgxpool.New(context.Background(), dbUrl)
	})
	if testDBErr != nil {
		t.Fatalf("connect test database: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationChatService(pool *pgxpool.Pool, markReadOnView bool) *ChatService {
	userRepo := repository.NewUserRepository(pool)
	profileRepo := repository.NewUserProfileRepository(pool)
	return NewChatService(
		repository.NewConversationRepository(pool),
		repository.NewMessageRepository(pool),
		userRepo,
		NewProfileIdentityResolver(userRepo, profileRepo),
		markReadOnView,
	)
}

func createIntegrationUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tag string) int64 {
	t.Helper()

	email := fmt.Sprintf("it-%s-%d@example.com", tag, time.Now().UnixNano())
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, 'x')
		RETURNING id
	`, email).Scan(&id)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return id
}

func cleanupIntegrationUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, ids ...int64) {
	t.Helper()

	if _, err := pool.Exec(ctx, `
		DELETE FROM messages WHERE sender_id = ANY($1) OR receiver_id = ANY($1)
	`, ids); err != nil {
		t.Errorf("cleanup messages: %v", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, ids); err != nil {
		t.Errorf("cleanup users: %v", err)
	}
}

func TestChatServiceConversationFlowIntegration(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool, false)

	alice := createIntegrationUser(t, ctx, pool, "alice")
	bob := createIntegrationUser(t, ctx, pool, "bob")
	t.Cleanup(func() { cleanupIntegrationUsers(t, ctx, pool, alice, bob) })

	if _, err := service.SendMessage(ctx, alice, bob, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	reply, err := service.SendMessage(ctx, bob, alice, "hi back")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	conversations, err := service.ListConversations(ctx, alice)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected one conversation, got %d", len(conversations))
	}
	if conversations[0].ContactID != bob {
		t.Fatalf("expected contact %d, got %d", bob, conversations[0].ContactID)
	}
	if conversations[0].LastMessage.ID != reply.Message.ID {
		t.Fatalf("expected last message %d, got %d", reply.Message.ID, conversations[0].LastMessage.ID)
	}
	if conversations[0].UnreadCount != 1 {
		t.Fatalf("expected unread count 1, got %d", conversations[0].UnreadCount)
	}

	if err := service.DeleteConversation(ctx, alice, bob); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}

	mine, err := service.ListConversations(ctx, alice)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("expected empty list after deleting every message, got %d", len(mine))
	}

	theirs, err := service.ListConversations(ctx, bob)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(theirs) != 1 {
		t.Fatalf("other side must keep the conversation, got %d", len(theirs))
	}
}

func TestChatServiceReadToggleIntegration(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool, true)

	alice := createIntegrationUser(t, ctx, pool, "alice")
	bob := createIntegrationUser(t, ctx, pool, "bob")
	t.Cleanup(func() { cleanupIntegrationUsers(t, ctx, pool, alice, bob) })

	if _, err := service.SendMessage(ctx, alice, bob, "unread"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := service.MarkConversationUnread(ctx, alice, bob); err != ErrForbidden {
		t.Fatalf("sender toggling read state: want ErrForbidden, got %v", err)
	}

	// Viewing the thread as the receiver marks the page read.
	if _, _, err := service.ListMessages(ctx, bob, alice, 1, 10, false); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}

	conversations, err := service.ListConversations(ctx, bob)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if conversations[0].UnreadCount != 0 {
		t.Fatalf("expected 0 unread after viewing, got %d", conversations[0].UnreadCount)
	}

	if err := service.MarkConversationUnread(ctx, bob, alice); err != nil {
		t.Fatalf("MarkConversationUnread: %v", err)
	}
	conversations, err = service.ListConversations(ctx, bob)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if conversations[0].UnreadCount != 1 {
		t.Fatalf("expected 1 unread after toggle, got %d", conversations[0].UnreadCount)
	}
}

func TestConcurrentDeleteConversationIntegration(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool, false)

	alice := createIntegrationUser(t, ctx, pool, "alice")
	bob := createIntegrationUser(t, ctx, pool, "bob")
	t.Cleanup(func() { cleanupIntegrationUsers(t, ctx, pool, alice, bob) })

	for i := 0; i < 20; i++ {
		sender, receiver := alice, bob
		if i%2 == 1 {
			sender, receiver = bob, alice
		}
		if _, err := service.SendMessage(ctx, sender, receiver, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = service.DeleteConversation(ctx, alice, bob)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent delete %d: %v", i, err)
		}
	}

	conversations, err := service.ListConversations(ctx, alice)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(conversations) != 0 {
		t.Fatalf("expected no conversations for alice, got %d", len(conversations))
	}

	theirs, err := service.ListConversations(ctx, bob)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(theirs) != 1 {
		t.Fatalf("bob's view must be intact, got %d conversations", len(theirs))
	}
}

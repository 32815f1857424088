package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendesk/chat-core/internal/cache"
	"github.com/opendesk/chat-core/internal/domain"
)

func newConvFixture(t *testing.T, c *cache.Cache) (*ConversationService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.seedUser(domain.ChatUser{ID: "u1", TenantID: "t1", Email: "a@example.com", FirstName: "Ann"})
	store.seedUser(domain.ChatUser{ID: "u2", TenantID: "t1", Email: "b@example.com", FirstName: "Bob"})
	resolver := NewResolver(userRepo{store}, newFakeDirectory(), c)
	return NewConversationService(convRepo{store}, resolver, c), store
}

func redisCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New(cache.Options{Addr: mr.Addr(), Prefix: "chatcore", TTL: time.Minute})
	require.NoError(t, err)
	return c
}

func TestFindOrCreateIsOrderInsensitive(t *testing.T) {
	svc, store := newConvFixture(t, cache.NewDisabled("chatcore"))
	ctx := context.Background()

	ab, err := svc.FindOrCreate(ctx, "t1", "u1", "u2")
	require.NoError(t, err)
	ba, err := svc.FindOrCreate(ctx, "t1", "u2", "u1")
	require.NoError(t, err)

	assert.Equal(t, ab.ID, ba.ID, "the unordered pair must address one row")
	assert.Equal(t, 1, store.conversationCount())
	assert.Len(t, ab.Participants, 2)
}

func TestFindOrCreateConcurrentFirstContact(t *testing.T) {
	svc, store := newConvFixture(t, cache.NewDisabled("chatcore"))
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			args := []string{"u1", "u2"}
			if i == 1 {
				args[0], args[1] = args[1], args[0]
			}
			view, err := svc.FindOrCreate(ctx, "t1", args[0], args[1])
			if assert.NoError(t, err) {
				ids[i] = view.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, 1, store.conversationCount(), "the create race must resolve to the existing row")
}

func TestFindOrCreateRejectsSelf(t *testing.T) {
	svc, _ := newConvFixture(t, cache.NewDisabled("chatcore"))
	_, err := svc.FindOrCreate(context.Background(), "t1", "u1", "u1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUnreadIsRecomputedOnCacheHit(t *testing.T) {
	c := redisCache(t)
	svc, store := newConvFixture(t, c)
	ctx := context.Background()

	view, err := svc.FindOrCreate(ctx, "t1", "u1", "u2")
	require.NoError(t, err)

	// Warm the cache, then add an unread message behind its back.
	_, err = svc.FindOrCreate(ctx, "t1", "u2", "u1")
	require.NoError(t, err)
	require.NoError(t, msgRepo{store}.Append(ctx, &domain.Message{
		ID: "m1", ConversationID: view.ID, SenderID: "u1", Content: "hi",
		Status: domain.MessageStatusSent, CreatedAt: time.Now().UTC(),
	}))

	// The snapshot is served from cache, the unread figure is not.
	got, err := svc.FindOrCreate(ctx, "t1", "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UnreadCount)

	// The sender's own view never counts their message as unread.
	mine, err := svc.FindOrCreate(ctx, "t1", "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), mine.UnreadCount)
}

func TestListOrdersByActivity(t *testing.T) {
	svc, store := newConvFixture(t, cache.NewDisabled("chatcore"))
	store.seedUser(domain.ChatUser{ID: "u3", TenantID: "t1", Email: "c@example.com"})
	ctx := context.Background()

	older, err := svc.FindOrCreate(ctx, "t1", "u1", "u2")
	require.NoError(t, err)
	newer, err := svc.FindOrCreate(ctx, "t1", "u1", "u3")
	require.NoError(t, err)
	empty, err := svc.FindOrCreate(ctx, "t1", "u2", "u3")
	require.NoError(t, err)

	base := time.Now().UTC()
	require.NoError(t, msgRepo{store}.Append(ctx, &domain.Message{
		ID: "m1", ConversationID: older.ID, SenderID: "u1", Content: "first", CreatedAt: base,
	}))
	require.NoError(t, msgRepo{store}.Append(ctx, &domain.Message{
		ID: "m2", ConversationID: newer.ID, SenderID: "u1", Content: "second", CreatedAt: base.Add(time.Second),
	}))

	views, err := svc.List(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer.ID, views[0].ID)
	assert.Equal(t, older.ID, views[1].ID)

	// u2 also sees the message-less conversation, sorted last.
	views, err = svc.List(ctx, "t1", "u2")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, empty.ID, views[1].ID)
}

func TestGetDeniesNonParticipant(t *testing.T) {
	svc, store := newConvFixture(t, cache.NewDisabled("chatcore"))
	store.seedUser(domain.ChatUser{ID: "intruder", TenantID: "t1", Email: "x@example.com"})
	ctx := context.Background()

	view, err := svc.FindOrCreate(ctx, "t1", "u1", "u2")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "t1", view.ID, "intruder")
	assert.ErrorIs(t, err, domain.ErrNotFound, "non-participants get the same answer as a missing row")

	_, err = svc.Get(ctx, "t1", "no-such-conversation", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Wrong tenant cannot see the row either.
	_, err = svc.Get(ctx, "t2", view.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Disabling the cache entirely must not change any returned value.
func TestCacheTransparency(t *testing.T) {
	run := func(t *testing.T, c *cache.Cache) domain.ConversationView {
		svc, store := newConvFixture(t, c)
		ctx := context.Background()

		view, err := svc.FindOrCreate(ctx, "t1", "u1", "u2")
		require.NoError(t, err)
		require.NoError(t, msgRepo{store}.Append(ctx, &domain.Message{
			ID: "m1", ConversationID: view.ID, SenderID: "u1", Content: "hello",
			CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		}))
		// Every write path invalidates before returning success.
		conv, err := svc.Get(ctx, "t1", view.ID, "u1")
		require.NoError(t, err)
		svc.InvalidateFor(ctx, conv)

		got, err := svc.FindOrCreate(ctx, "t1", "u2", "u1")
		require.NoError(t, err)
		return *got
	}

	withCache := run(t, redisCache(t))
	withoutCache := run(t, cache.NewDisabled("chatcore"))

	assert.Equal(t, withoutCache.LastMessage, withCache.LastMessage)
	assert.Equal(t, withoutCache.UnreadCount, withCache.UnreadCount)
	assert.Equal(t, withoutCache.LastMessageAt.UTC(), withCache.LastMessageAt.UTC())
}

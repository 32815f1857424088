package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendesk/chat-core/internal/cache"
	"github.com/opendesk/chat-core/internal/directory"
	"github.com/opendesk/chat-core/internal/domain"
)

func newResolverFixture() (*Resolver, *fakeStore, *fakeDirectory) {
	store := newFakeStore()
	dir := newFakeDirectory()
	r := NewResolver(userRepo{store}, dir, cache.NewDisabled("chatcore"))
	return r, store, dir
}

func TestResolveExistingUserSkipsDirectory(t *testing.T) {
	r, store, dir := newResolverFixture()
	store.seedUser(domain.ChatUser{ID: "u1", TenantID: "t1", Email: "ann@example.com"})

	res, err := r.Resolve(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, OutcomeFound, res.Outcome)
	assert.Zero(t, dir.calls)
}

func TestResolveCreatesUserFromDirectory(t *testing.T) {
	r, store, dir := newResolverFixture()
	dir.profiles["u2"] = &directory.Profile{
		ID: "u2", Email: "bob@example.com", FirstName: "Bob", LastName: "Stone",
	}

	res, err := r.Resolve(context.Background(), "t1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", res.UserID)
	assert.Equal(t, OutcomeFound, res.Outcome)

	u, err := userRepo{store}.GetByID(context.Background(), "t1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, domain.StatusOffline, u.Status)

	// Second call resolves through the existing row.
	res2, err := r.Resolve(context.Background(), "t1", "u2")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, res2.UserID)
	assert.Equal(t, 1, dir.calls)
}

func TestResolveDeduplicatesByEmail(t *testing.T) {
	r, store, dir := newResolverFixture()
	store.seedUser(domain.ChatUser{ID: "chat-9", TenantID: "t1", Email: "carol@example.com"})
	dir.profiles["ext-carol"] = &directory.Profile{ID: "ext-carol", Email: "carol@example.com"}

	res, err := r.Resolve(context.Background(), "t1", "ext-carol")
	require.NoError(t, err)
	assert.Equal(t, "chat-9", res.UserID, "same email must resolve to the existing identity")
}

func TestResolveDegradesToPlaceholder(t *testing.T) {
	r, store, dir := newResolverFixture()
	dir.err = fmt.Errorf("directory unreachable")

	res, err := r.Resolve(context.Background(), "t1", "u3")
	require.NoError(t, err, "directory failure must not fail the caller")
	assert.Equal(t, "u3", res.UserID)
	assert.Equal(t, OutcomeCreatedPlaceholder, res.Outcome)

	u, err := userRepo{store}.GetByID(context.Background(), "t1", "u3")
	require.NoError(t, err)
	assert.Equal(t, "ext-u3@placeholder.local", u.Email)

	// Repeated resolution is a plain id match, no second placeholder.
	res2, err := r.Resolve(context.Background(), "t1", "u3")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, res2.Outcome)
}

func TestResolveReadsThroughProfileCache(t *testing.T) {
	c := redisCache(t)
	store := newFakeStore()
	r := NewResolver(userRepo{store}, newFakeDirectory(), c)
	store.seedUser(domain.ChatUser{ID: "u1", TenantID: "t1", Email: "ann@example.com"})
	ctx := context.Background()

	res, err := r.Resolve(ctx, "t1", "u1")
	require.NoError(t, err)

	var p domain.Profile
	require.True(t, c.GetJSON(ctx, c.ProfileKey("t1", "u1"), &p), "resolution populates the profile key")
	assert.Equal(t, "ann@example.com", p.Email)

	// A warm cache serves the resolution without touching the store.
	store.mu.Lock()
	delete(store.users, "t1|u1")
	store.mu.Unlock()

	res2, err := r.Resolve(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, res2.UserID)
}

func TestResolveRequiresUserID(t *testing.T) {
	r, _, _ := newResolverFixture()
	_, err := r.Resolve(context.Background(), "t1", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveByEmail(t *testing.T) {
	r, store, _ := newResolverFixture()
	store.seedUser(domain.ChatUser{ID: "u5", TenantID: "t1", Email: "dan@example.com"})

	res, err := r.ResolveByEmail(context.Background(), "t1", "dan@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u5", res.UserID)

	_, err = r.ResolveByEmail(context.Background(), "t1", "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Tenant scoping: the same address in another tenant is invisible.
	_, err = r.ResolveByEmail(context.Background(), "t2", "dan@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opendesk/chat-core/internal/directory"
	"github.com/opendesk/chat-core/internal/domain"
)

// fakeStore holds users, conversations and messages in memory and is
// exposed through small adapters implementing the repository
// interfaces, so service behavior runs without mysql.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*domain.ChatUser // tenant|id
	convs    map[string]*domain.Conversation
	messages map[string][]*domain.Message // conversationID -> ordered

	failStatusWrite bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*domain.ChatUser),
		convs:    make(map[string]*domain.Conversation),
		messages: make(map[string][]*domain.Message),
	}
}

func (s *fakeStore) key(tenantID, id string) string { return tenantID + "|" + id }

func (s *fakeStore) seedUser(u domain.ChatUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[s.key(u.TenantID, u.ID)] = &u
}

func (s *fakeStore) conversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

func (s *fakeStore) withProfiles(c *domain.Conversation) *domain.Conversation {
	cp := *c
	if u, ok := s.users[s.key(c.TenantID, c.UserIDLow)]; ok {
		cp.UserLow = *u
	}
	if u, ok := s.users[s.key(c.TenantID, c.UserIDHigh)]; ok {
		cp.UserHigh = *u
	}
	return &cp
}

// userRepo adapts fakeStore to repository.UserRepository.
type userRepo struct{ s *fakeStore }

func (r userRepo) GetByID(_ context.Context, tenantID, id string) (*domain.ChatUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[r.s.key(tenantID, id)]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r userRepo) GetByEmail(_ context.Context, tenantID, email string) (*domain.ChatUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.TenantID == tenantID && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r userRepo) Create(_ context.Context, u *domain.ChatUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := r.s.key(u.TenantID, u.ID)
	if _, ok := r.s.users[k]; ok {
		return fmt.Errorf("duplicate user id")
	}
	for _, existing := range r.s.users {
		if existing.TenantID == u.TenantID && existing.Email == u.Email {
			return fmt.Errorf("duplicate email")
		}
	}
	cp := *u
	r.s.users[k] = &cp
	return nil
}

func (r userRepo) UpdateStatus(_ context.Context, tenantID, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failStatusWrite {
		return fmt.Errorf("store down")
	}
	if u, ok := r.s.users[r.s.key(tenantID, id)]; ok {
		u.Status = status
		return nil
	}
	return domain.ErrNotFound
}

func (r userRepo) ListByTenant(_ context.Context, tenantID string) ([]domain.ChatUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ChatUser
	for _, u := range r.s.users {
		if u.TenantID == tenantID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// convRepo adapts fakeStore to repository.ConversationRepository.
type convRepo struct{ s *fakeStore }

func (r convRepo) GetByPair(_ context.Context, tenantID, low, high string) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.convs {
		if c.TenantID == tenantID && c.UserIDLow == low && c.UserIDHigh == high {
			return r.s.withProfiles(c), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r convRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.convs[id]; ok && c.TenantID == tenantID {
		return r.s.withProfiles(c), nil
	}
	return nil, domain.ErrNotFound
}

func (r convRepo) Create(_ context.Context, c *domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.convs {
		if existing.TenantID == c.TenantID && existing.UserIDLow == c.UserIDLow && existing.UserIDHigh == c.UserIDHigh {
			return fmt.Errorf("duplicate pair")
		}
	}
	cp := *c
	cp.CreatedAt = time.Now().UTC()
	r.s.convs[c.ID] = &cp
	return nil
}

func (r convRepo) ListForUser(_ context.Context, tenantID, userID string) ([]domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Conversation
	for _, c := range r.s.convs {
		if c.TenantID == tenantID && (c.UserIDLow == userID || c.UserIDHigh == userID) {
			out = append(out, *r.s.withProfiles(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
	return out, nil
}

func (r convRepo) UnreadCount(_ context.Context, conversationID, callerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages[conversationID] {
		if m.SenderID != callerID && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

// msgRepo adapts fakeStore to repository.MessageRepository. Append
// mirrors the transactional insert-plus-conversation-update.
type msgRepo struct{ s *fakeStore }

func (r msgRepo) Append(_ context.Context, m *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.convs[m.ConversationID]
	if !ok {
		return fmt.Errorf("conversation missing")
	}
	cp := *m
	r.s.messages[m.ConversationID] = append(r.s.messages[m.ConversationID], &cp)
	c.LastMessage = m.Preview()
	at := m.CreatedAt
	c.LastMessageAt = &at
	return nil
}

func (r msgRepo) List(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := r.s.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out, nil
}

func (r msgRepo) MarkRead(_ context.Context, conversationID, callerID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages[conversationID] {
		if m.SenderID != callerID && m.ReadAt == nil {
			m.Status = domain.MessageStatusRead
			readAt := at
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

type fakeDirectory struct {
	mu       sync.Mutex
	profiles map[string]*directory.Profile
	err      error
	calls    int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{profiles: make(map[string]*directory.Profile)}
}

func (d *fakeDirectory) Lookup(_ context.Context, _, externalUserID string) (*directory.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if p, ok := d.profiles[externalUserID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

type published struct {
	topic   string
	payload any
}

type fakePubSub struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePubSub) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, payload: payload})
	return nil
}

func (p *fakePubSub) Subscribe(_ context.Context, _ string, _ func(string, []byte)) error {
	return nil
}

func (p *fakePubSub) Close() error { return nil }

func (p *fakePubSub) published() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload)
	return nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	payloads []any
}

func (b *fakeBroadcaster) BroadcastToConversation(_ string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
}

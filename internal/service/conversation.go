package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/cache"
	"github.com/opendesk/chat-core/internal/domain"
	"github.com/opendesk/chat-core/internal/repository"
)

// convSnapshot is the cached shape of a conversation: identity,
// profiles and last-message fields. The caller-relative unread count is
// deliberately absent; it is recomputed live on every read.
type convSnapshot struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	UserIDLow     string         `json:"user_id_low"`
	UserIDHigh    string         `json:"user_id_high"`
	ProfileLow    domain.Profile `json:"profile_low"`
	ProfileHigh   domain.Profile `json:"profile_high"`
	LastMessage   string         `json:"last_message"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type ConversationService struct {
	convs    repository.ConversationRepository
	resolver *Resolver
	cache    *cache.Cache
}

func NewConversationService(convs repository.ConversationRepository, resolver *Resolver, c *cache.Cache) *ConversationService {
	return &ConversationService{convs: convs, resolver: resolver, cache: c}
}

// FindOrCreate resolves both parties and returns the unique
// conversation for the unordered pair, creating it on first contact.
// FindOrCreate(A,B) and FindOrCreate(B,A) address the same row.
func (s *ConversationService) FindOrCreate(ctx context.Context, tenantID, callerID, targetID string) (*domain.ConversationView, error) {
	caller, err := s.resolver.Resolve(ctx, tenantID, callerID)
	if err != nil {
		return nil, err
	}
	target, err := s.resolver.Resolve(ctx, tenantID, targetID)
	if err != nil {
		return nil, err
	}
	if caller.UserID == target.UserID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", domain.ErrValidation)
	}

	low, high := domain.CanonicalPair(caller.UserID, target.UserID)
	key := s.cache.ConversationKey(tenantID, low, high)

	var snap convSnapshot
	if s.cache.GetJSON(ctx, key, &snap) {
		return s.viewFromSnapshot(ctx, &snap, caller.UserID)
	}

	conv, err := s.convs.GetByPair(ctx, tenantID, low, high)
	if errors.Is(err, domain.ErrNotFound) {
		conv, err = s.create(ctx, tenantID, low, high)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: conversation lookup: %v", domain.ErrDependencyUnavailable, err)
	}

	snap = snapshotOf(conv)
	s.cache.SetJSON(ctx, key, snap, s.cache.TTL())
	return s.viewFromSnapshot(ctx, &snap, caller.UserID)
}

func (s *ConversationService) create(ctx context.Context, tenantID, low, high string) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		UserIDLow:  low,
		UserIDHigh: high,
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		// Two concurrent first contacts race on the unique pair index;
		// the loser resolves to the winner's row.
		if existing, gerr := s.convs.GetByPair(ctx, tenantID, low, high); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	// Re-select so the participant profiles are joined in.
	return s.convs.GetByPair(ctx, tenantID, low, high)
}

// List returns every conversation the caller participates in, most
// recent first, each annotated with the caller's unread count.
func (s *ConversationService) List(ctx context.Context, tenantID, callerID string) ([]domain.ConversationView, error) {
	res, err := s.resolver.Resolve(ctx, tenantID, callerID)
	if err != nil {
		return nil, err
	}

	key := s.cache.ConversationListKey(tenantID, res.UserID)
	var snaps []convSnapshot
	if !s.cache.GetJSON(ctx, key, &snaps) {
		convs, err := s.convs.ListForUser(ctx, tenantID, res.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: conversation list: %v", domain.ErrDependencyUnavailable, err)
		}
		snaps = make([]convSnapshot, 0, len(convs))
		for i := range convs {
			snaps = append(snaps, snapshotOf(&convs[i]))
		}
		s.cache.SetJSON(ctx, key, snaps, s.cache.TTL())
	}

	views := make([]domain.ConversationView, 0, len(snaps))
	for i := range snaps {
		v, err := s.viewFromSnapshot(ctx, &snaps[i], res.UserID)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Get loads one conversation for a participant. A non-participant gets
// ErrNotFound, indistinguishable from a missing row.
func (s *ConversationService) Get(ctx context.Context, tenantID, conversationID, callerID string) (*domain.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, tenantID, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: conversation lookup: %v", domain.ErrDependencyUnavailable, err)
	}
	if !conv.HasParticipant(callerID) {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

// InvalidateFor drops every cache entry that could reflect stale state
// for the given conversation: the pair snapshot and both participants'
// list entries. Called on every write path before success is returned.
func (s *ConversationService) InvalidateFor(ctx context.Context, conv *domain.Conversation) {
	s.cache.Delete(ctx,
		s.cache.ConversationKey(conv.TenantID, conv.UserIDLow, conv.UserIDHigh),
		s.cache.ConversationListKey(conv.TenantID, conv.UserIDLow),
		s.cache.ConversationListKey(conv.TenantID, conv.UserIDHigh),
	)
}

func (s *ConversationService) viewFromSnapshot(ctx context.Context, snap *convSnapshot, callerID string) (*domain.ConversationView, error) {
	// Unread is caller-relative and changes independently of the
	// conversation identity, so a cache hit still queries the store.
	unread, err := s.convs.UnreadCount(ctx, snap.ID, callerID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", snap.ID).Msg("unread count failed")
		return nil, fmt.Errorf("%w: unread count: %v", domain.ErrDependencyUnavailable, err)
	}
	return &domain.ConversationView{
		ID:            snap.ID,
		TenantID:      snap.TenantID,
		Participants:  []domain.Profile{snap.ProfileLow, snap.ProfileHigh},
		LastMessage:   snap.LastMessage,
		LastMessageAt: snap.LastMessageAt,
		UnreadCount:   unread,
		CreatedAt:     snap.CreatedAt,
	}, nil
}

func snapshotOf(conv *domain.Conversation) convSnapshot {
	return convSnapshot{
		ID:            conv.ID,
		TenantID:      conv.TenantID,
		UserIDLow:     conv.UserIDLow,
		UserIDHigh:    conv.UserIDHigh,
		ProfileLow:    conv.UserLow.Profile(),
		ProfileHigh:   conv.UserHigh.Profile(),
		LastMessage:   conv.LastMessage,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
	}
}

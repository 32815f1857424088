package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/broker"
	"github.com/opendesk/chat-core/internal/domain"
	"github.com/opendesk/chat-core/internal/metrics"
	"github.com/opendesk/chat-core/internal/repository"
)

// PresenceService persists status transitions and publishes them on
// the tenant pub/sub channel so every process can forward them to its
// locally connected sockets. The hub drives HandleConnect and
// HandleDisconnect from its per-user socket refcount.
type PresenceService struct {
	users  repository.UserRepository
	pubsub broker.PubSub
	prefix string
}

func NewPresenceService(users repository.UserRepository, pubsub broker.PubSub, prefix string) *PresenceService {
	return &PresenceService{users: users, pubsub: pubsub, prefix: prefix}
}

// HandleConnect runs when a user's first socket connects.
func (s *PresenceService) HandleConnect(ctx context.Context, tenantID, userID string) {
	s.transition(ctx, tenantID, userID, domain.StatusOnline)
}

// HandleDisconnect runs when a user's last socket goes away.
func (s *PresenceService) HandleDisconnect(ctx context.Context, tenantID, userID string) {
	s.transition(ctx, tenantID, userID, domain.StatusOffline)
}

// SetStatus is the settable variant ("away", manual online/offline)
// exposed over HTTP. The socket lifecycle never produces "away".
func (s *PresenceService) SetStatus(ctx context.Context, tenantID, userID, status string) error {
	switch status {
	case domain.StatusOnline, domain.StatusAway, domain.StatusOffline:
	default:
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	s.transition(ctx, tenantID, userID, status)
	return nil
}

// transition persists best-effort and always publishes: a failed store
// write degrades freshness but must not break the socket session. A
// reconnect or snapshot request resynchronizes.
func (s *PresenceService) transition(ctx context.Context, tenantID, userID, status string) {
	if err := s.users.UpdateStatus(ctx, tenantID, userID, status); err != nil {
		log.Error().Err(err).
			Str("user_id", userID).
			Str("status", status).
			Msg("presence store write failed, publishing anyway")
	}

	event := domain.StatusEvent{
		TenantID:  tenantID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	if err := s.pubsub.Publish(ctx, broker.StatusTopic(s.prefix, tenantID), event); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("presence event publish failed")
	}
	metrics.PresenceTransitions.WithLabelValues(status).Inc()
}

// Snapshot returns every tenant member's current status, sent to each
// new connection and on users:online:request.
func (s *PresenceService) Snapshot(ctx context.Context, tenantID string) ([]domain.UserStatus, error) {
	users, err := s.users.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: presence snapshot: %v", domain.ErrDependencyUnavailable, err)
	}
	statuses := make([]domain.UserStatus, 0, len(users))
	for i := range users {
		statuses = append(statuses, domain.UserStatus{
			UserID: users[i].ID,
			Status: users[i].Status,
		})
	}
	return statuses, nil
}

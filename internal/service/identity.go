package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opendesk/chat-core/internal/cache"
	"github.com/opendesk/chat-core/internal/directory"
	"github.com/opendesk/chat-core/internal/domain"
	"github.com/opendesk/chat-core/internal/repository"
)

// Resolution outcomes. CreatedPlaceholder marks a degraded resolution
// where the directory could not supply a profile.
const (
	OutcomeFound              = "found"
	OutcomeCreatedPlaceholder = "created_placeholder"
)

type Resolution struct {
	UserID  string
	Outcome string
}

// Resolver maps externally-issued user ids onto chat-domain user rows,
// creating at most one row per identity. Repeated calls with the same
// external id resolve to the same chat user via the id-or-email match.
type Resolver struct {
	users     repository.UserRepository
	directory directory.Lookup
	cache     *cache.Cache
}

func NewResolver(users repository.UserRepository, dir directory.Lookup, c *cache.Cache) *Resolver {
	return &Resolver{users: users, directory: dir, cache: c}
}

// Resolve returns the chat-domain user id for an external id. Directory
// failures degrade to placeholder creation; they never fail the caller.
// Resolved profiles are cached read-through under the external id, so
// the per-request resolution on hot paths skips the store.
func (r *Resolver) Resolve(ctx context.Context, tenantID, externalUserID string) (Resolution, error) {
	if externalUserID == "" {
		return Resolution{}, fmt.Errorf("%w: user id required", domain.ErrValidation)
	}

	profileKey := r.cache.ProfileKey(tenantID, externalUserID)
	var cached domain.Profile
	if r.cache.GetJSON(ctx, profileKey, &cached) && cached.ID != "" {
		return Resolution{UserID: cached.ID, Outcome: OutcomeFound}, nil
	}

	if u, err := r.users.GetByID(ctx, tenantID, externalUserID); err == nil {
		r.cache.SetJSON(ctx, profileKey, u.Profile(), r.cache.TTL())
		return Resolution{UserID: u.ID, Outcome: OutcomeFound}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return Resolution{}, fmt.Errorf("%w: user lookup: %v", domain.ErrDependencyUnavailable, err)
	}

	profile, err := r.directory.Lookup(ctx, tenantID, externalUserID)
	if err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("external_user_id", externalUserID).
			Msg("directory lookup failed, creating placeholder user")
		return r.createPlaceholder(ctx, tenantID, externalUserID)
	}

	// Upsert keyed by email first: the same person can arrive through
	// different entry points under the same address. The mapping is
	// cached under the external id that led here.
	if u, err := r.users.GetByEmail(ctx, tenantID, profile.Email); err == nil {
		r.cache.SetJSON(ctx, profileKey, u.Profile(), r.cache.TTL())
		return Resolution{UserID: u.ID, Outcome: OutcomeFound}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return Resolution{}, fmt.Errorf("%w: user lookup: %v", domain.ErrDependencyUnavailable, err)
	}

	u := &domain.ChatUser{
		ID:        externalUserID,
		TenantID:  tenantID,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		AvatarURL: profile.AvatarURL,
		Status:    domain.StatusOffline,
	}
	if err := r.users.Create(ctx, u); err != nil {
		// Lost a create race: the row now exists, resolve through it.
		if existing, gerr := r.users.GetByID(ctx, tenantID, externalUserID); gerr == nil {
			return Resolution{UserID: existing.ID, Outcome: OutcomeFound}, nil
		}
		return Resolution{}, fmt.Errorf("%w: user create: %v", domain.ErrDependencyUnavailable, err)
	}

	r.cache.SetJSON(ctx, profileKey, u.Profile(), r.cache.TTL())
	return Resolution{UserID: u.ID, Outcome: OutcomeFound}, nil
}

// ResolveByEmail serves the {targetEmail} find-or-create variant. The
// address must already be known to the chat domain.
func (r *Resolver) ResolveByEmail(ctx context.Context, tenantID, email string) (Resolution, error) {
	if email == "" {
		return Resolution{}, fmt.Errorf("%w: email required", domain.ErrValidation)
	}
	u, err := r.users.GetByEmail(ctx, tenantID, email)
	if errors.Is(err, domain.ErrNotFound) {
		return Resolution{}, domain.ErrNotFound
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: user lookup: %v", domain.ErrDependencyUnavailable, err)
	}
	return Resolution{UserID: u.ID, Outcome: OutcomeFound}, nil
}

func (r *Resolver) createPlaceholder(ctx context.Context, tenantID, externalUserID string) (Resolution, error) {
	u := &domain.ChatUser{
		ID:       externalUserID,
		TenantID: tenantID,
		Email:    PlaceholderEmail(externalUserID),
		Status:   domain.StatusOffline,
	}
	if err := r.users.Create(ctx, u); err != nil {
		if existing, gerr := r.users.GetByID(ctx, tenantID, externalUserID); gerr == nil {
			return Resolution{UserID: existing.ID, Outcome: OutcomeFound}, nil
		}
		return Resolution{}, fmt.Errorf("%w: placeholder create: %v", domain.ErrDependencyUnavailable, err)
	}
	return Resolution{UserID: u.ID, Outcome: OutcomeCreatedPlaceholder}, nil
}

// PlaceholderEmail derives a deterministic synthetic address so that
// conversation creation never fails outright when the directory is
// unavailable.
func PlaceholderEmail(externalUserID string) string {
	return fmt.Sprintf("ext-%s@placeholder.local", externalUserID)
}

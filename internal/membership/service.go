package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/devcollab/server/internal/domain"
)

// Service is the authorization source the realtime layer consults at
// join time. Reads are cache-aside; mutations invalidate the cache
// synchronously before returning, so a RoleOf issued after a mutation
// acknowledges always observes the new state.
type Service struct {
	store Store
	cache RoleCache
	ttl   time.Duration
}

func NewService(store Store, cache RoleCache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{store: store, cache: cache, ttl: ttl}
}

// RoleOf resolves the user's role in the room.
// Returns domain.ErrNoMembership when no accepted membership exists; that
// outcome is never cached. A store failure wraps
// domain.ErrStoreUnavailable and the caller must fail closed.
func (s *Service) RoleOf(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Role, error) {
	if role, ok := s.cache.Get(ctx, room, user); ok {
		return role, nil
	}

	role, err := s.store.MemberRole(ctx, room, user)
	if errors.Is(err, domain.ErrNoMembership) {
		return "", domain.ErrNoMembership
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	s.cache.Set(ctx, room, user, role, s.ttl)
	return role, nil
}

// SetMemberRole writes the membership and invalidates the cached role
// before acknowledging, guaranteeing read-your-writes for the next RoleOf.
func (s *Service) SetMemberRole(ctx context.Context, room domain.RoomID, user domain.UserID, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	if err := s.store.UpsertMember(ctx, room, user, role); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, room, user)
	log.Info().Str("module", "membership").Str("room", string(room)).Str("user", string(user)).Str("role", string(role)).Msg("member role set")
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	if err := s.store.DeleteMember(ctx, room, user); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, room, user)
	log.Info().Str("module", "membership").Str("room", string(room)).Str("user", string(user)).Msg("member removed")
	return nil
}

// DeleteWorkspace removes every membership of the room and drops all of
// its cached roles.
func (s *Service) DeleteWorkspace(ctx context.Context, room domain.RoomID) error {
	if err := s.store.DeleteWorkspace(ctx, room); err != nil {
		return err
	}
	s.cache.InvalidateRoom(ctx, room)
	log.Info().Str("module", "membership").Str("room", string(room)).Msg("workspace memberships deleted")
	return nil
}

package membership_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcollab/server/internal/domain"
	"github.com/devcollab/server/internal/membership"
)

type fakeStore struct {
	mu    sync.Mutex
	roles map[string]domain.Role
	reads int
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{roles: make(map[string]domain.Role)}
}

func key(room domain.RoomID, user domain.UserID) string {
	return string(room) + "/" + string(user)
}

func (s *fakeStore) MemberRole(_ context.Context, room domain.RoomID, user domain.UserID) (domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[key(room, user)]
	if !ok {
		return "", domain.ErrNoMembership
	}
	return role, nil
}

func (s *fakeStore) UpsertMember(_ context.Context, room domain.RoomID, user domain.UserID, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[key(room, user)] = role
	return nil
}

func (s *fakeStore) DeleteMember(_ context.Context, room domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, key(room, user))
	return nil
}

func (s *fakeStore) DeleteWorkspace(_ context.Context, room domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.roles {
		if len(k) > len(room) && k[:len(room)] == string(room) {
			delete(s.roles, k)
		}
	}
	return nil
}

func (s *fakeStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// memCache is an in-process RoleCache standing in for redis.
type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.Role
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]domain.Role)}
}

func (c *memCache) Get(_ context.Context, room domain.RoomID, user domain.UserID) (domain.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	role, ok := c.entries[key(room, user)]
	return role, ok
}

func (c *memCache) Set(_ context.Context, room domain.RoomID, user domain.UserID, role domain.Role, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(room, user)] = role
}

func (c *memCache) Invalidate(_ context.Context, room domain.RoomID, user domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(room, user))
}

func (c *memCache) InvalidateRoom(_ context.Context, room domain.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) > len(room) && k[:len(room)] == string(room) {
			delete(c.entries, k)
		}
	}
}

func TestRoleOfReadsThroughAndCaches(t *testing.T) {
	store := newFakeStore()
	store.roles["r1/alice"] = domain.RoleOwner
	svc := membership.NewService(store, newMemCache(), time.Hour)

	role, err := svc.RoleOf(context.Background(), "r1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, role)
	assert.Equal(t, 1, store.readCount())

	// Second read is served from the cache.
	role, err = svc.RoleOf(context.Background(), "r1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, role)
	assert.Equal(t, 1, store.readCount())
}

func TestRoleOfMissIsNotCached(t *testing.T) {
	store := newFakeStore()
	svc := membership.NewService(store, newMemCache(), time.Hour)

	_, err := svc.RoleOf(context.Background(), "r1", "bob")
	require.ErrorIs(t, err, domain.ErrNoMembership)

	// An invite accepted moments later must be visible immediately.
	store.roles["r1/bob"] = domain.RoleCollaborator
	role, err := svc.RoleOf(context.Background(), "r1", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCollaborator, role)
}

func TestRoleOfFailsClosedWhenStoreUnreachable(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	svc := membership.NewService(store, newMemCache(), time.Hour)

	_, err := svc.RoleOf(context.Background(), "r1", "alice")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestSetMemberRoleInvalidatesBeforeReturning(t *testing.T) {
	store := newFakeStore()
	store.roles["r1/bob"] = domain.RoleViewer
	svc := membership.NewService(store, newMemCache(), time.Hour)

	// Warm the cache with the old role.
	role, err := svc.RoleOf(context.Background(), "r1", "bob")
	require.NoError(t, err)
	require.Equal(t, domain.RoleViewer, role)

	require.NoError(t, svc.SetMemberRole(context.Background(), "r1", "bob", domain.RoleCollaborator))

	// Read-your-writes: the very next lookup sees the new role.
	role, err = svc.RoleOf(context.Background(), "r1", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCollaborator, role)
}

func TestSetMemberRoleRejectsUnknownRole(t *testing.T) {
	svc := membership.NewService(newFakeStore(), newMemCache(), time.Hour)
	err := svc.SetMemberRole(context.Background(), "r1", "bob", domain.Role("SUPERUSER"))
	require.Error(t, err)
}

func TestRemoveMemberInvalidates(t *testing.T) {
	store := newFakeStore()
	store.roles["r1/bob"] = domain.RoleCollaborator
	svc := membership.NewService(store, newMemCache(), time.Hour)

	_, err := svc.RoleOf(context.Background(), "r1", "bob")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMember(context.Background(), "r1", "bob"))

	_, err = svc.RoleOf(context.Background(), "r1", "bob")
	require.ErrorIs(t, err, domain.ErrNoMembership)
}

func TestDeleteWorkspaceInvalidatesEveryMember(t *testing.T) {
	store := newFakeStore()
	store.roles["r1/alice"] = domain.RoleOwner
	store.roles["r1/bob"] = domain.RoleCollaborator
	svc := membership.NewService(store, newMemCache(), time.Hour)

	for _, u := range []domain.UserID{"alice", "bob"} {
		_, err := svc.RoleOf(context.Background(), "r1", u)
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteWorkspace(context.Background(), "r1"))

	for _, u := range []domain.UserID{"alice", "bob"} {
		_, err := svc.RoleOf(context.Background(), "r1", u)
		require.ErrorIs(t, err, domain.ErrNoMembership)
	}
}

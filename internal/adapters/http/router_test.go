package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	router "github.com/devcollab/server/internal/adapters/http"
	"github.com/devcollab/server/internal/adapters/ws"
	"github.com/devcollab/server/internal/auth"
	"github.com/devcollab/server/internal/bus"
	"github.com/devcollab/server/internal/collab"
	"github.com/devcollab/server/internal/config"
	"github.com/devcollab/server/internal/domain"
	"github.com/devcollab/server/internal/membership"
	"github.com/devcollab/server/internal/metrics"
	"github.com/devcollab/server/internal/presence"
)

type fakeStore struct {
	mu    sync.Mutex
	roles map[string]domain.Role
}

func newFakeStore() *fakeStore {
	return &fakeStore{roles: make(map[string]domain.Role)}
}

func (s *fakeStore) MemberRole(_ context.Context, room domain.RoomID, user domain.UserID) (domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[string(room)+"/"+string(user)]
	if !ok {
		return "", domain.ErrNoMembership
	}
	return role, nil
}

func (s *fakeStore) UpsertMember(_ context.Context, room domain.RoomID, user domain.UserID, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[string(room)+"/"+string(user)] = role
	return nil
}

func (s *fakeStore) DeleteMember(_ context.Context, room domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, string(room)+"/"+string(user))
	return nil
}

func (s *fakeStore) DeleteWorkspace(_ context.Context, room domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.roles {
		if strings.HasPrefix(k, string(room)+"/") {
			delete(s.roles, k)
		}
	}
	return nil
}

func setupRouter(t *testing.T, store membership.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	members := membership.NewService(store, membership.NewNoopCache(), time.Hour)
	registry := prometheus.NewRegistry()
	met := metrics.New(registry)
	hub := collab.NewHub(presence.NewDirectory(), members, bus.Noop{}, met)

	wsHandler := &ws.Handler{
		Verifier: auth.NewVerifier("test-secret"),
		Hub:      hub,
		Met:      met,
	}
	cfg := &config.Config{Mode: "test"}
	return router.SetupRouter(context.Background(), cfg, wsHandler, members, registry)
}

func TestHealthz(t *testing.T) {
	r := setupRouter(t, newFakeStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t, newFakeStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "devcollab_connections_accepted_total")
}

func TestSetMemberRole(t *testing.T) {
	store := newFakeStore()
	r := setupRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/workspaces/r1/members/bob",
		strings.NewReader(`{"role":"COLLABORATOR"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	role, err := store.MemberRole(context.Background(), "r1", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCollaborator, role)
}

func TestSetMemberRoleValidation(t *testing.T) {
	r := setupRouter(t, newFakeStore())

	tests := []struct {
		name string
		body string
	}{
		{"missing role", `{}`},
		{"unknown role", `{"role":"SUPERUSER"}`},
		{"not json", `role=OWNER`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/workspaces/r1/members/bob",
				strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRemoveMember(t *testing.T) {
	store := newFakeStore()
	store.roles["r1/bob"] = domain.RoleViewer
	r := setupRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/workspaces/r1/members/bob", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	_, err := store.MemberRole(context.Background(), "r1", "bob")
	assert.ErrorIs(t, err, domain.ErrNoMembership)
}

func TestDeleteWorkspace(t *testing.T) {
	store := newFakeStore()
	store.roles["r1/alice"] = domain.RoleOwner
	store.roles["r1/bob"] = domain.RoleViewer
	r := setupRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/workspaces/r1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	_, err := store.MemberRole(context.Background(), "r1", "alice")
	assert.ErrorIs(t, err, domain.ErrNoMembership)
}

// Package membership resolves and mutates (room, user) -> role against the
// durable workspace store, with a TTL cache in front of the read path.
package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devcollab/server/internal/domain"
)

// Store is the durable membership backend. MemberRole returns
// domain.ErrNoMembership when the user holds no accepted membership in
// the room; any other failure means the store could not answer.
type Store interface {
	MemberRole(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Role, error)
	UpsertMember(ctx context.Context, room domain.RoomID, user domain.UserID, role domain.Role) error
	DeleteMember(ctx context.Context, room domain.RoomID, user domain.UserID) error
	DeleteWorkspace(ctx context.Context, room domain.RoomID) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// MemberRole reads the accepted membership row. A pending invite
// (accepted_at IS NULL) grants no role and must not admit a join.
func (s *PostgresStore) MemberRole(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Role, error) {
	const q = `SELECT role FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2 AND accepted_at IS NOT NULL`

	var role domain.Role
	err := s.pool.QueryRow(ctx, q, string(room), string(user)).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNoMembership
	}
	if err != nil {
		return "", fmt.Errorf("member role query: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) UpsertMember(ctx context.Context, room domain.RoomID, user domain.UserID, role domain.Role) error {
	const q = `INSERT INTO workspace_members (workspace_id, user_id, role, accepted_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	if _, err := s.pool.Exec(ctx, q, string(room), string(user), string(role)); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMember(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	const q = `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`

	if _, err := s.pool.Exec(ctx, q, string(room), string(user)); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, room domain.RoomID) error {
	const q = `DELETE FROM workspace_members WHERE workspace_id = $1`

	if _, err := s.pool.Exec(ctx, q, string(room)); err != nil {
		return fmt.Errorf("delete workspace members: %w", err)
	}
	return nil
}

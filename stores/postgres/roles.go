package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zvincent07/authcore"
)

const roleQuery = `
	SELECT r.id, r.name, COALESCE(r.description, ''),
	       COALESCE(array_agg(rp.permission ORDER BY rp.permission)
	                FILTER (WHERE rp.permission IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id`

func scanRole(row pgx.Row) (*authcore.Role, error) {
	var role authcore.Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrRoleNotFound
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return &role, nil
}

func (s *Store) findRoleByID(ctx context.Context, id string) (*authcore.Role, error) {
	return scanRole(s.pool.QueryRow(ctx, roleQuery+` WHERE r.id = $1 GROUP BY r.id`, id))
}

// FindByName describes the find by name operation and its observable behavior.
//
// FindByName may return an error when input validation, dependency calls, or security
// checks fail. FindByName does not mutate shared global state and can be used
// concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByName(ctx context.Context, name string) (*authcore.Role, error) {
	return scanRole(s.pool.QueryRow(ctx,
		roleQuery+` WHERE lower(r.name) = lower($1) GROUP BY r.id`, name))
}

// FindByIDs describes the find by ids operation and its observable behavior.
//
// FindByIDs may return an error when input validation, dependency calls, or security
// checks fail. FindByIDs does not mutate shared global state and can be used
// concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]authcore.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, roleQuery+` WHERE r.id = ANY($1) GROUP BY r.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

// FindAll describes the find all operation and its observable behavior.
//
// FindAll may return an error when input validation, dependency calls, or security
// checks fail. FindAll does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func (s *Store) FindAll(ctx context.Context) ([]authcore.Role, error) {
	rows, err := s.pool.Query(ctx, roleQuery+` GROUP BY r.id ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows pgx.Rows) ([]authcore.Role, error) {
	var out []authcore.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return out, nil
}

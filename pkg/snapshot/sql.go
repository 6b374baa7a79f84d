package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

// SQLSource loads snapshots from the roles, users and binding tables
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource creates a new SQL snapshot source
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// snapshotTxOptions makes every statement of one Load see the same
// database state. READ COMMITTED would give each statement its own view.
var snapshotTxOptions = &sql.TxOptions{
	Isolation: sql.LevelRepeatableRead,
	ReadOnly:  true,
}

// Load reads the user, their roles and their line/station bindings inside a
// single read-only transaction
func (s *SQLSource) Load(ctx context.Context, userID string) (Record, error) {
	tx, err := s.db.BeginTx(ctx, snapshotTxOptions)
	if err != nil {
		return Record{}, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	rec := Record{User: rbac.User{ID: userID}}

	err = tx.QueryRowContext(ctx, `SELECT home_page FROM users WHERE id = $1`, userID).Scan(&rec.HomePage)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get user: %w", err)
	}

	if rec.User.Roles, err = queryRoles(ctx, tx, userID); err != nil {
		return Record{}, err
	}
	if rec.User.LineIDs, err = queryIDs(ctx, tx,
		`SELECT line_id FROM user_lines WHERE user_id = $1 ORDER BY line_id`, userID); err != nil {
		return Record{}, fmt.Errorf("failed to get line bindings: %w", err)
	}
	if rec.User.StationIDs, err = queryIDs(ctx, tx,
		`SELECT station_id FROM user_stations WHERE user_id = $1 ORDER BY station_id`, userID); err != nil {
		return Record{}, fmt.Errorf("failed to get station bindings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("failed to finish snapshot transaction: %w", err)
	}
	return rec, nil
}

func queryRoles(ctx context.Context, tx *sql.Tx, userID string) ([]rbac.Role, error) {
	query := `
		SELECT r.code, r.name, r.permissions, r.data_scope
		FROM roles r
		INNER JOIN user_roles ur ON ur.role_code = r.code
		WHERE ur.user_id = $1
		ORDER BY r.code
	`

	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	var roles []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	return roles, nil
}

func scanRole(rows *sql.Rows) (rbac.Role, error) {
	var role rbac.Role
	var permissionsJSON, scope string

	if err := rows.Scan(&role.Code, &role.Name, &permissionsJSON, &scope); err != nil {
		return rbac.Role{}, fmt.Errorf("failed to scan role: %w", err)
	}
	if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
		return rbac.Role{}, fmt.Errorf("%w: %s: %v", ErrCorruptRole, role.Code, err)
	}
	role.DataScope = rbac.DataScope(scope)
	return role, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query, userID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SeedPresets upserts every preset role. Existing rows keep their edited
// name and description; permissions and data scope follow the compiled-in
// definition.
func (s *SQLSource) SeedPresets(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO roles (code, name, description, permissions, data_scope, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		ON CONFLICT (code) DO UPDATE SET
			permissions = excluded.permissions,
			data_scope = excluded.data_scope,
			is_system = TRUE,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	for _, p := range rbac.PresetRoles() {
		permissionsJSON, err := json.Marshal(p.Permissions)
		if err != nil {
			return fmt.Errorf("failed to marshal permissions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			p.Code,
			p.Name,
			p.Description,
			string(permissionsJSON),
			string(p.DataScope),
			now,
		); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", p.Code, err)
		}
	}

	return tx.Commit()
}

// Ping verifies the database is reachable
func (s *SQLSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

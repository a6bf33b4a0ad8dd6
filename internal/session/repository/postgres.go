package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"session-registry/backend/internal/session/domain"
)

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// PostgresStore is a Store backed by the sessions table. The database's
// primary key constraint makes duplicate-id detection atomic under
// concurrent writers; no in-process lock is held across queries.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a session store that uses the given db for persistence.
// Run migrations (cmd/migrate) before first use.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `session_id, email, nickname, client_ip, client_mac, server_ip, server_mac, created_at, last_accessed, status`

// Create inserts the record. Returns ErrDuplicateID on a primary key conflict.
func (r *PostgresStore) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.SessionID, s.Email, s.Nickname,
		s.ClientNetwork.IP, s.ClientNetwork.MAC,
		s.ServerNetwork.IP, s.ServerNetwork.MAC,
		s.CreatedAt, s.LastAccessed, string(s.Status),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateID
	}
	return err
}

// Get returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update merges the given fields into the row and returns the result.
// Nil fields keep their stored value; last_accessed never moves backwards.
// The IfStatus predicate is part of the UPDATE's WHERE clause, so the
// check-and-write is atomic at the database. Returns ErrNotFound if the id is
// unknown and ErrStatusConflict if IfStatus no longer matches.
func (r *PostgresStore) Update(ctx context.Context, id string, upd Update) (*domain.Session, error) {
	var status sql.NullString
	if upd.Status != nil {
		status = sql.NullString{String: string(*upd.Status), Valid: true}
	}
	var lastAccessed sql.NullTime
	if upd.LastAccessed != nil {
		lastAccessed = sql.NullTime{Time: *upd.LastAccessed, Valid: true}
	}
	query := `UPDATE sessions
	 SET status = COALESCE($2, status),
	     last_accessed = GREATEST(COALESCE($3, last_accessed), last_accessed)
	 WHERE session_id = $1`
	args := []any{id, status, lastAccessed}
	if upd.IfStatus != nil {
		query += ` AND status = $4`
		args = append(args, string(*upd.IfStatus))
	}
	query += ` RETURNING ` + sessionColumns

	row := r.db.QueryRowContext(ctx, query, args...)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		if upd.IfStatus != nil {
			cur, gerr := r.Get(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			if cur != nil {
				return nil, ErrStatusConflict
			}
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Remove deletes the row. Returns ErrNotFound if the id is unknown.
func (r *PostgresStore) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every record ordered by creation time, then id for stability.
func (r *PostgresStore) ListAll(ctx context.Context) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at, session_id`)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListByStatus returns the records with the given status in creation order.
func (r *PostgresStore) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = $1 ORDER BY created_at, session_id`,
		string(status))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// Clear removes every row unconditionally.
func (r *PostgresStore) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var status string
	err := row.Scan(
		&s.SessionID, &s.Email, &s.Nickname,
		&s.ClientNetwork.IP, &s.ClientNetwork.MAC,
		&s.ServerNetwork.IP, &s.ServerNetwork.MAC,
		&s.CreatedAt, &s.LastAccessed, &status,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	return &s, nil
}

func collectSessions(rows *sql.Rows) ([]*domain.Session, error) {
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package journal

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"tahfidz/internal/model"
)

// Postgres persists the journal in a sync_journal table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repo over an open pgx-backed handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the journal table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sync_journal (
			id          TEXT PRIMARY KEY,
			action      TEXT NOT NULL,
			payload     JSONB NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			attempts    INT NOT NULL DEFAULT 0,
			last_error  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_sync_journal_status ON sync_journal (status, created_at);
	`)
	return err
}

const entryColumns = `id, action, payload, status, attempts, last_error, created_at, updated_at`

func (p *Postgres) Append(ctx context.Context, e Entry) (Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO sync_journal (id, action, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at
	`, e.ID, string(e.Action), []byte(e.Payload), string(e.Status), e.CreatedAt)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = e.CreatedAt
	return e, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Entry, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM sync_journal WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (p *Postgres) Mark(ctx context.Context, id string, status Status, lastError string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sync_journal
		SET status = $2, last_error = $3, attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), lastError)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Unsent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM sync_journal
		WHERE status <> 'sent'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (p *Postgres) List(ctx context.Context, status Status, limit, offset int) ([]Entry, error) {
	query, args := listQuery(status, limit, offset)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func listQuery(status Status, limit, offset int) (string, []any) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + entryColumns + ` FROM sync_journal`
	var args []any
	var clauses []string
	if status != "" {
		args = append(args, string(status))
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)
	return query, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var action, status string
	var payload []byte
	if err := s.Scan(&e.ID, &action, &payload, &status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.Action = model.Action(action)
	e.Status = Status(status)
	e.Payload = payload
	return e, nil
}

func collect(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

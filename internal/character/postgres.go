package character

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the characters table.
const Schema = `
CREATE TABLE IF NOT EXISTS characters (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    voice      TEXT NOT NULL DEFAULT '',
    nsfw       BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore on db. Call [PostgresStore.Migrate]
// before first use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a pgx pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("character: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("character: ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the characters table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("character: migrate: %w", err)
	}
	return nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id string) (*Character, error) {
	const query = `SELECT id, name, voice, nsfw FROM characters WHERE id = $1`

	var c Character
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Voice, &c.NSFW)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("character %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("character: get %q: %w", id, err)
	}
	return &c, nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context) ([]Character, error) {
	const query = `SELECT id, name, voice, nsfw FROM characters ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("character: list: %w", err)
	}
	defer rows.Close()

	var out []Character
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.Name, &c.Voice, &c.NSFW); err != nil {
			return nil, fmt.Errorf("character: list scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("character: list rows: %w", err)
	}
	return out, nil
}

// Upsert implements [Store].
func (s *PostgresStore) Upsert(ctx context.Context, c *Character) error {
	if err := c.Validate(); err != nil {
		return err
	}
	const query = `
		INSERT INTO characters (id, name, voice, nsfw)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			voice = EXCLUDED.voice,
			nsfw = EXCLUDED.nsfw,
			updated_at = now()`
	if _, err := s.db.Exec(ctx, query, c.ID, c.Name, c.Voice, c.NSFW); err != nil {
		return fmt.Errorf("character: upsert %q: %w", c.ID, err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("character: ping: %w", err)
	}
	return nil
}

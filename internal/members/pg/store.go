// Package pg persists the membership list in a Postgres table via pgx.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss14tools/verilink/internal/members"
)

const schema = `
CREATE TABLE IF NOT EXISTS verified_member (
	id            TEXT PRIMARY KEY,
	game_user_id  TEXT NOT NULL,
	game_user_name TEXT NOT NULL DEFAULT '',
	discord_id    TEXT NOT NULL,
	discord_name  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS verified_member_game_uq ON verified_member (game_user_id);
CREATE UNIQUE INDEX IF NOT EXISTS verified_member_discord_uq ON verified_member (discord_id);
`

type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("members pg: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("members pg: ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) List(ctx context.Context) ([]members.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_user_id, game_user_name, discord_id, discord_name, created_at
		FROM verified_member ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("members pg: list: %w", err)
	}
	defer rows.Close()

	var out []members.Member
	for rows.Next() {
		var m members.Member
		if err := rows.Scan(&m.ID, &m.GameUserID, &m.GameUserName, &m.DiscordID, &m.DiscordName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("members pg: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (members.Member, error) {
	var m members.Member
	err := s.pool.QueryRow(ctx, `
		SELECT id, game_user_id, game_user_name, discord_id, discord_name, created_at
		FROM verified_member WHERE id=$1`, id).
		Scan(&m.ID, &m.GameUserID, &m.GameUserName, &m.DiscordID, &m.DiscordName, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return members.Member{}, members.ErrNotFound
	}
	if err != nil {
		return members.Member{}, fmt.Errorf("members pg: get: %w", err)
	}
	return m, nil
}

func (s *Store) Add(ctx context.Context, m members.Member) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verified_member (id, game_user_id, game_user_name, discord_id, discord_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.GameUserID, m.GameUserName, m.DiscordID, m.DiscordName, m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return members.ErrDuplicate
		}
		return fmt.Errorf("members pg: add: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verified_member WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("members pg: remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return members.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

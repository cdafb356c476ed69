// Package members persists the verified-user membership list: the mapping
// between game accounts and the Discord identities they linked through the
// OAuth flow. Two backends: a flat JSON file and a Postgres table.
package members

import (
	"context"
	"errors"
	"time"
)

// Member is one verified link between a game account and a Discord account.
type Member struct {
	ID           string    `json:"id"`
	GameUserID   string    `json:"game_user_id"`
	GameUserName string    `json:"game_user_name"`
	DiscordID    string    `json:"discord_id"`
	DiscordName  string    `json:"discord_name"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	ErrNotFound = errors.New("members: not found")

	// ErrDuplicate: another member already claims the game account or the
	// Discord account. Both sides of the link are unique.
	ErrDuplicate = errors.New("members: duplicate game or discord account")
)

// Store is the membership list persistence contract.
type Store interface {
	List(ctx context.Context) ([]Member, error)
	Get(ctx context.Context, id string) (Member, error)

	// Add appends a member after checking uniqueness of GameUserID and
	// DiscordID across the list. Returns ErrDuplicate on conflict.
	Add(ctx context.Context, m Member) error

	// Remove deletes a member by record ID. Returns ErrNotFound when absent.
	Remove(ctx context.Context, id string) error

	Close() error
}

// Validate checks the fields a caller must supply before Add.
func Validate(m Member) error {
	if m.GameUserID == "" || m.DiscordID == "" {
		return errors.New("members: game_user_id and discord_id are required")
	}
	return nil
}

// Package session holds per-requester OAuth flow state: the CSRF state
// nonce, the access token once the code exchange succeeds, and the cached
// user profile. Sessions are keyed by (provider endpoint name, requester
// key) where the requester key is the client's network address.
//
// Keying sessions by raw network address is a deliberate simplification;
// the Store interface isolates it so a future replacement (signed cookie,
// real session token) can swap in without touching the authenticator.
package session

import (
	"context"
	"errors"
)

// Session is one requester's flow state for one provider.
// AccessToken is only set after a successful code exchange; User is only
// populated while AccessToken is set.
type Session struct {
	StateNonce  string
	AccessToken string
	User        map[string]any
}

// ErrNotFound is returned by lookups for keys with no session.
var ErrNotFound = errors.New("session: not found")

// Store is the process-wide session table. Mutations for a single
// (provider, requester) key must be atomic; no ordering is guaranteed
// across distinct keys.
type Store interface {
	// Get returns the session for the key, or ErrNotFound.
	Get(ctx context.Context, provider, requester string) (Session, error)

	// GetOrCreateNonce returns the existing state nonce for the key, or
	// generates, stores and returns a fresh one. Idempotent: two calls for
	// the same key observe the same nonce.
	GetOrCreateNonce(ctx context.Context, provider, requester string) (string, error)

	// SetToken stores the access token obtained from the code exchange.
	SetToken(ctx context.Context, provider, requester, token string) error

	// ClearToken removes the access token and cached user but keeps the
	// session (the state nonce survives for re-login).
	ClearToken(ctx context.Context, provider, requester string) error

	// SetUser caches the fetched user profile.
	SetUser(ctx context.Context, provider, requester string, user map[string]any) error

	// Delete removes the whole session entry.
	Delete(ctx context.Context, provider, requester string) error
}

func compositeKey(provider, requester string) string {
	return provider + "|" + requester
}

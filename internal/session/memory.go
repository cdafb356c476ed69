package session

import (
	"context"
	"maps"
	"sync"

	"github.com/ss14tools/verilink/internal/security/token"
)

const nonceBytes = 16

// MemoryStore keeps sessions in-process. Lost on restart, which is
// acceptable: sessions back short-lived interactive login flows.
//
// A plain mutex-guarded map rather than an expiring cache: every mutation
// is a per-key read-modify-write that must be atomic with respect to
// concurrent requests from the same requester (double-click login), and
// entries must never expire underneath a half-finished flow.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Get(ctx context.Context, provider, requester string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[compositeKey(provider, requester)]
	if !ok {
		return Session{}, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) GetOrCreateNonce(ctx context.Context, provider, requester string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := compositeKey(provider, requester)
	if sess, ok := s.sessions[key]; ok && sess.StateNonce != "" {
		return sess.StateNonce, nil
	}
	nonce, err := token.GenerateOpaque(nonceBytes)
	if err != nil {
		return "", err
	}
	s.sessions[key] = &Session{StateNonce: nonce}
	return nonce, nil
}

func (s *MemoryStore) SetToken(ctx context.Context, provider, requester, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(provider, requester)
	sess.AccessToken = tok
	return nil
}

func (s *MemoryStore) ClearToken(ctx context.Context, provider, requester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[compositeKey(provider, requester)]; ok {
		sess.AccessToken = ""
		sess.User = nil
	}
	return nil
}

func (s *MemoryStore) SetUser(ctx context.Context, provider, requester string, user map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(provider, requester)
	sess.User = maps.Clone(user)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, provider, requester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, compositeKey(provider, requester))
	return nil
}

// ensure must be called with the lock held.
func (s *MemoryStore) ensure(provider, requester string) *Session {
	key := compositeKey(provider, requester)
	sess, ok := s.sessions[key]
	if !ok {
		sess = &Session{}
		s.sessions[key] = sess
	}
	return sess
}

func cloneSession(sess *Session) Session {
	return Session{
		StateNonce:  sess.StateNonce,
		AccessToken: sess.AccessToken,
		User:        maps.Clone(sess.User),
	}
}

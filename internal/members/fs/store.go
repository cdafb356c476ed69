// Package fs persists the membership list as a single flat JSON file.
// Writes go through a temp-file rename so a crash never leaves a truncated
// list behind. Reads are served from a short-TTL cache to keep repeated
// list requests off the disk.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ss14tools/verilink/internal/members"
	"github.com/ss14tools/verilink/internal/util/atomicwrite"
)

const (
	cacheKey     = "members"
	readCacheTTL = 2 * time.Second
)

type Store struct {
	path  string
	mu    sync.Mutex
	cache *gocache.Cache
}

// New opens (or initializes) the JSON file store at path.
func New(path string) (*Store, error) {
	s := &Store{
		path:  path,
		cache: gocache.New(readCacheTTL, time.Minute),
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write([]members.Member{}); err != nil {
			return nil, fmt.Errorf("members fs: init %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("members fs: stat %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) List(ctx context.Context) ([]members.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) Get(ctx context.Context, id string) (members.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.read()
	if err != nil {
		return members.Member{}, err
	}
	for _, m := range list {
		if m.ID == id {
			return m, nil
		}
	}
	return members.Member{}, members.ErrNotFound
}

func (s *Store) Add(ctx context.Context, m members.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.read()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.GameUserID == m.GameUserID || existing.DiscordID == m.DiscordID {
			return members.ErrDuplicate
		}
	}
	return s.write(append(list, m))
}

func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.read()
	if err != nil {
		return err
	}
	for i, m := range list {
		if m.ID == id {
			return s.write(append(list[:i], list[i+1:]...))
		}
	}
	return members.ErrNotFound
}

func (s *Store) Close() error { return nil }

// read must be called with the lock held.
func (s *Store) read() ([]members.Member, error) {
	if v, ok := s.cache.Get(cacheKey); ok {
		cached := v.([]members.Member)
		out := make([]members.Member, len(cached))
		copy(out, cached)
		return out, nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("members fs: read %s: %w", s.path, err)
	}
	var list []members.Member
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("members fs: parse %s: %w", s.path, err)
	}
	s.cache.Set(cacheKey, list, gocache.DefaultExpiration)
	return list, nil
}

// write must be called with the lock held.
func (s *Store) write(list []members.Member) error {
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("members fs: marshal: %w", err)
	}
	if err := atomicwrite.WriteFile(s.path, b, 0644); err != nil {
		return fmt.Errorf("members fs: write %s: %w", s.path, err)
	}
	s.cache.Delete(cacheKey)
	return nil
}

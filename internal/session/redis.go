package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/ss14tools/verilink/internal/security/token"
)

const (
	fieldNonce = "nonce"
	fieldToken = "token"
	fieldUser  = "user"
)

// RedisStore keeps sessions in a Redis hash per composite key. Useful when
// the service runs more than one replica behind a balancer; nonce creation
// stays atomic across instances via HSETNX.
type RedisStore struct {
	client *rdb.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. ttl bounds how long an
// abandoned login flow lingers; 0 means no expiry.
func NewRedisStore(client *rdb.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "sess:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(provider, requester string) string {
	return s.prefix + compositeKey(provider, requester)
}

func (s *RedisStore) Get(ctx context.Context, provider, requester string) (Session, error) {
	vals, err := s.client.HGetAll(ctx, s.key(provider, requester)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("session redis get: %w", err)
	}
	if len(vals) == 0 {
		return Session{}, ErrNotFound
	}
	sess := Session{
		StateNonce:  vals[fieldNonce],
		AccessToken: vals[fieldToken],
	}
	if raw := vals[fieldUser]; raw != "" {
		var user map[string]any
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			sess.User = user
		}
	}
	return sess, nil
}

func (s *RedisStore) GetOrCreateNonce(ctx context.Context, provider, requester string) (string, error) {
	key := s.key(provider, requester)
	nonce, err := token.GenerateOpaque(nonceBytes)
	if err != nil {
		return "", err
	}
	// HSETNX loses the race gracefully: whoever wins, HGET returns the winner.
	created, err := s.client.HSetNX(ctx, key, fieldNonce, nonce).Result()
	if err != nil {
		return "", fmt.Errorf("session redis setnx: %w", err)
	}
	if created {
		if s.ttl > 0 {
			_ = s.client.Expire(ctx, key, s.ttl).Err()
		}
		return nonce, nil
	}
	existing, err := s.client.HGet(ctx, key, fieldNonce).Result()
	if err != nil {
		return "", fmt.Errorf("session redis get nonce: %w", err)
	}
	return existing, nil
}

func (s *RedisStore) SetToken(ctx context.Context, provider, requester, tok string) error {
	return s.client.HSet(ctx, s.key(provider, requester), fieldToken, tok).Err()
}

func (s *RedisStore) ClearToken(ctx context.Context, provider, requester string) error {
	return s.client.HDel(ctx, s.key(provider, requester), fieldToken, fieldUser).Err()
}

func (s *RedisStore) SetUser(ctx context.Context, provider, requester string, user map[string]any) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session redis marshal user: %w", err)
	}
	return s.client.HSet(ctx, s.key(provider, requester), fieldUser, string(raw)).Err()
}

func (s *RedisStore) Delete(ctx context.Context, provider, requester string) error {
	return s.client.Del(ctx, s.key(provider, requester)).Err()
}

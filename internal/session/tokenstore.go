package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// TokenKey names the persisted token wherever it is stored.
const TokenKey = "dns_manager_token"

// TokenStore persists the single session token between runs. Load returns
// "" with a nil error when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the token for the life of the process only.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokenStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// FileTokenStore keeps the token in <dir>/dns_manager_token, readable by
// the owner only.
type FileTokenStore struct {
	fs   afero.Fs
	path string
}

func NewFileTokenStore(fs afero.Fs, dir string) *FileTokenStore {
	return &FileTokenStore{fs: fs, path: filepath.Join(dir, TokenKey)}
}

func (s *FileTokenStore) Load(context.Context) (string, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *FileTokenStore) Save(_ context.Context, token string) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, []byte(token), 0o600)
}

func (s *FileTokenStore) Clear(context.Context) error {
	err := s.fs.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RedisTokenStore keeps the token under one key, for operators sharing a
// session across hosts.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

func NewRedisTokenStore(addr, password string, db int) *RedisTokenStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisTokenStore{client: rdb, key: TokenKey}
}

func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key, token, 0).Err()
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}

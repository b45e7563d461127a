package study

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Store persists completed study results.
type Store interface {
	Save(ctx context.Context, result *Result) error
	Get(ctx context.Context, id string) (*Result, error)
	List(ctx context.Context) ([]*Result, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps results in memory. It backs tests and one-shot CLI runs
// where nothing needs to outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]*Result)}
}

func (s *MemoryStore) Save(ctx context.Context, result *Result) error {
	if result.ID == "" {
		return fmt.Errorf("study: result has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.ID] = result
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("study: result not found: %s", id)
	}
	return result, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[id]; !ok {
		return fmt.Errorf("study: result not found: %s", id)
	}
	delete(s.results, id)
	return nil
}

const redisKeyPrefix = "study:result:"

// RedisStore persists results as JSON under study:result:<id> keys, with an
// in-memory cache in front of Redis.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*Result
}

// NewRedisStore creates a store around an existing Redis client.
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
		cache:  make(map[string]*Result),
	}
}

func (s *RedisStore) Save(ctx context.Context, result *Result) error {
	if result.ID == "" {
		return fmt.Errorf("study: result has no id")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("study: failed to marshal result: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+result.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("study: failed to store result in redis: %w", err)
	}

	s.mu.Lock()
	s.cache[result.ID] = result
	s.mu.Unlock()

	s.logger.Info("Study result stored",
		zap.String("resultId", result.ID),
		zap.Int("trials", len(result.Trials)))
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Result, error) {
	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := s.client.Get(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("study: result not found: %s", id)
		}
		return nil, fmt.Errorf("study: failed to retrieve result from redis: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("study: failed to unmarshal result: %w", err)
	}

	s.mu.Lock()
	s.cache[id] = &result
	s.mu.Unlock()
	return &result, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Result, error) {
	keys, err := s.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("study: failed to list result keys: %w", err)
	}

	var results []*Result
	for _, key := range keys {
		id := strings.TrimPrefix(key, redisKeyPrefix)
		result, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to retrieve result", zap.String("resultId", id), zap.Error(err))
			continue
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	return results, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("study: failed to delete result from redis: %w", err)
	}
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("study: result not found: %s", id)
	}
	return nil
}

package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// DefaultRedisPrefix namespaces task keys in a shared Redis instance.
const DefaultRedisPrefix = "sheetshot:task:"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every task id to form the Redis key.
	// Defaults to DefaultRedisPrefix.
	Prefix string
	// TTL expires records after the given duration. Zero keeps them
	// until deleted.
	TTL time.Duration
}

// RedisStore keeps task records as JSON values in Redis, so status
// survives process restarts and can be read by multiple API replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to connect to redis at %s", cfg.Addr)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

// lock returns the per-record mutex that serializes Update calls.
// Redis itself only sees whole-record reads and writes.
func (s *RedisStore) lock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *RedisStore) dropLock(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

func (s *RedisStore) write(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to encode task %s", t.ID)
	}
	if err := s.client.Set(ctx, s.key(t.ID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to store task %s", t.ID)
	}
	return nil
}

func (s *RedisStore) read(ctx context.Context, id string) (*Task, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.New(errors.ErrCodeTaskNotFound, "task %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to read task %s", id)
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to decode task %s", id)
	}
	return &t, nil
}

func (s *RedisStore) Create(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to encode task %s", t.ID)
	}

	ok, err := s.client.SetNX(ctx, s.key(t.ID), data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to store task %s", t.ID)
	}
	if !ok {
		return errors.New(errors.ErrCodeInternal, "task %s already exists", t.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Task, error) {
	return s.read(ctx, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*Task) error) (*Task, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	t, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(t); err != nil {
		return nil, err
	}
	if err := s.write(ctx, t); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to delete task %s", id)
	}
	if n == 0 {
		return errors.New(errors.ErrCodeTaskNotFound, "task %s not found", id)
	}
	s.dropLock(id)
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Task, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to scan tasks")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to read tasks")
	}

	tasks := make([]*Task, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		var t Task
		if err := json.Unmarshal([]byte(str), &t); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to decode task")
		}
		tasks = append(tasks, &t)
	}
	sortTasks(tasks)
	return tasks, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)

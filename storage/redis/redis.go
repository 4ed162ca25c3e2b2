package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/balancednetwork/xcall-tracker/config"
	"github.com/balancednetwork/xcall-tracker/storage"
)

// Store persists blobs in Redis through a small connection pool.
type Store struct {
	pool *redis.Pool
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func NewStore(cfg *config.RedisConfig) *Store {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Store{
		pool: &redis.Pool{
			MaxIdle: 5,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr, timeoutDialOptions()...)
			},
		},
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get redis connection: %w", err)
	}
	defer conn.Close()

	value, err := redis.Bytes(conn.Do("GET", key))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("can't get key %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("can't get redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", key, value); err != nil {
		return fmt.Errorf("can't set key %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("can't get redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", key); err != nil {
		return fmt.Errorf("can't delete key %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}

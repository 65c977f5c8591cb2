// Package redis keeps the URL snapshot in a single Redis key, encoded the
// same way as the snapshot file.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/jsoncodec"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const DefaultKey = "shortlink:urls"

type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type URLRepository struct {
	client client
	key    string
}

// NewURLRepository stores the snapshot under key, or DefaultKey when key is empty.
func NewURLRepository(client client, key string) *URLRepository {
	if key == "" {
		key = DefaultKey
	}

	return &URLRepository{client: client, key: key}
}

// NewClient connects to the server at addr and checks it answers.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "redis.NewClient"

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return rdb, nil
}

func (r *URLRepository) LoadAll(ctx context.Context) (map[string]*entity.URL, error) {
	const op = "adapter.repository.redis.URLRepository.LoadAll"

	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return make(map[string]*entity.URL), nil
		}

		return nil, fmt.Errorf("%s: %w: failed to get key: %w", op, entity.ErrStorageUnavailable, err)
	}

	urls, err := jsoncodec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
	}

	return urls, nil
}

func (r *URLRepository) SaveAll(ctx context.Context, urls map[string]*entity.URL) error {
	const op = "adapter.repository.redis.URLRepository.SaveAll"

	data, err := jsoncodec.Encode(urls)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
	}

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w: failed to set key: %w", op, entity.ErrStorageUnavailable, err)
	}

	return nil
}

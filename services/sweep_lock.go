package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SweepLock serialises sweeps of the same trigger across processes.
type SweepLock interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func sweepLockKey(trigger string) string {
	return "reminder-sweep:" + trigger
}

type noopLock struct{}

func (noopLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisSweepLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisSweepLock(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisSweepLock {
	return &RedisSweepLock{client: client, ttl: ttl, logger: logger}
}

func (l *RedisSweepLock) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrSweepInProgress
	}

	release := func() {
		if err := releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("release sweep lock", slog.String("key", key), slog.Any("error", err))
		}
	}
	return release, nil
}

// PostgresSweepLock holds a session advisory lock on a pinned connection.
// It is used when no Redis is configured.
type PostgresSweepLock struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewPostgresSweepLock(db *gorm.DB, logger *slog.Logger) *PostgresSweepLock {
	return &PostgresSweepLock{db: db, logger: logger}
}

func (l *PostgresSweepLock) Acquire(ctx context.Context, key string) (func(), error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	// Session locks belong to one connection, so lock and unlock share it.
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", key).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, ErrSweepInProgress
	}

	release := func() {
		defer conn.Close()
		var unlocked bool
		err := conn.QueryRowContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock(hashtext($1))", key).Scan(&unlocked)
		if err != nil || !unlocked {
			l.logger.Warn("release sweep lock", slog.String("key", key), slog.Bool("unlocked", unlocked), slog.Any("error", err))
		}
	}
	return release, nil
}

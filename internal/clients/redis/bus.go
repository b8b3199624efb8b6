package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
)

// Bus is a thin pub/sub wrapper used for the audit log and notification
// handoff channels. Publishes are fire-and-forget from the caller's point of
// view; failures are logged and never propagated into a decision.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

type bus struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewBus(log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &bus{log: log.With("client", "RedisBus"), rdb: rdb}, nil
}

func (b *bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	return b.rdb.Publish(ctx, channel, payload).Err()
}

func (b *bus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

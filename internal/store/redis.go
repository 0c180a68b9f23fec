package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/config"
)

const changeChannel = "helpdesk:collection-changed"

// ChangeFeed propagates collection-change notifications between portal
// instances over Redis pub/sub. The payload is just the collection name;
// receivers re-read the collection and emit a fresh snapshot.
type ChangeFeed struct {
	client *redis.Client
	logger *zap.Logger
}

// NewChangeFeed connects to Redis using the provided configuration.
func NewChangeFeed(cfg config.RedisConfig, logger *zap.Logger) *ChangeFeed {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &ChangeFeed{client: client, logger: logger}
}

// Client exposes the underlying redis client for other capabilities that
// share the connection (token denylist).
func (f *ChangeFeed) Client() *redis.Client {
	if f == nil {
		return nil
	}
	return f.client
}

// Publish announces that a collection changed.
func (f *ChangeFeed) Publish(ctx context.Context, collection string) {
	if f == nil || f.client == nil {
		return
	}
	if err := f.client.Publish(ctx, changeChannel, collection).Err(); err != nil {
		f.logger.Warn("change publish failed", zap.String("collection", collection), zap.Error(err))
	}
}

// Listen invokes handle for every announced collection change until ctx ends.
func (f *ChangeFeed) Listen(ctx context.Context, handle func(ctx context.Context, collection string)) {
	if f == nil || f.client == nil {
		return
	}
	pubsub := f.client.Subscribe(ctx, changeChannel)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handle(ctx, msg.Payload)
			}
		}
	}()
}

// Close closes the client.
func (f *ChangeFeed) Close() {
	if f != nil && f.client != nil {
		_ = f.client.Close()
	}
}

// Ping verifies Redis connectivity.
func (f *ChangeFeed) Ping(ctx context.Context) error {
	if f == nil || f.client == nil {
		return errors.New("redis client not configured")
	}
	return f.client.Ping(ctx).Err()
}

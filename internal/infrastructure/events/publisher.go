package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
)

// DefaultChannel is the Redis channel ZapCompleted events go to
const DefaultChannel = "zapper:zap_completed"

// Publisher delivers events for committed zaps
type Publisher interface {
	PublishZapCompleted(ctx context.Context, event entities.ZapCompleted) error
}

// RedisPublisher publishes JSON events on a Redis channel
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) PublishZapCompleted(ctx context.Context, event entities.ZapCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish zap %s: %w", event.ID, err)
	}
	return nil
}

// LogPublisher writes events to the log
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishZapCompleted(_ context.Context, event entities.ZapCompleted) error {
	p.logger.Info("zap completed",
		zap.String("id", event.ID),
		zap.String("caller", event.Caller.Hex()),
		zap.String("token_in", event.TokenIn.Hex()),
		zap.String("pair", event.Pair.Hex()),
		zap.Stringer("amount_in", event.AmountIn),
		zap.Stringer("fee", event.Fee),
		zap.Stringer("liquidity", event.Liquidity),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}

// Multi fans an event out to every publisher and joins their errors
type Multi []Publisher

func (m Multi) PublishZapCompleted(ctx context.Context, event entities.ZapCompleted) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishZapCompleted(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

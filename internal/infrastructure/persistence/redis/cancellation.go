// Package redis 提供 Redis 缓存、取消信号与广播实现
package redis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-chat-ai-api/internal/config"
)

var cancelTracer = otel.Tracer("redis.cancellation")

// CancellationStore 回答取消信号存储
//
// 取消信号通过带 TTL 的键传递，投递协程按分片轮询。
// TTL 过期后信号自动清除，无需显式回收。
type CancellationStore struct {
	client *Client
	config *config.StreamingConfig
}

// NewCancellationStore 创建取消信号存储
func NewCancellationStore(client *Client, cfg *config.Config) *CancellationStore {
	return &CancellationStore{
		client: client,
		config: &cfg.Answer.Streaming,
	}
}

// cancelKey 取消信号键
func cancelKey(jobID string) string {
	return fmt.Sprintf("cancel:answer:%s", jobID)
}

// Set 写入取消信号
func (s *CancellationStore) Set(ctx context.Context, jobID string) error {
	ctx, span := cancelTracer.Start(ctx, "cancellation.Set",
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	err := s.client.rdb.SetEx(ctx, cancelKey(jobID), "1", s.config.CancellationTTL).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cancellation signal: %w", err)
	}
	return nil
}

// IsSet 检查取消信号是否存在
func (s *CancellationStore) IsSet(ctx context.Context, jobID string) (bool, error) {
	ctx, span := cancelTracer.Start(ctx, "cancellation.IsSet",
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	n, err := s.client.rdb.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check cancellation signal: %w", err)
	}
	return n > 0, nil
}

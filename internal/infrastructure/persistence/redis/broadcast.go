// Package redis 提供 Redis 缓存、取消信号与广播实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-chat-ai-api/pkg/logger"
)

var broadcastTracer = otel.Tracer("redis.broadcast")

// Broadcaster 基于 Redis Pub/Sub 的回答事件广播
//
// 每个会话一个频道，投递协程逐块发布，网关侧订阅后转为 SSE。
type Broadcaster struct {
	client *Client
}

// NewBroadcaster 创建广播器
func NewBroadcaster(client *Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// answerTopic 会话回答频道
func answerTopic(conversationID string) string {
	return fmt.Sprintf("answers:%s", conversationID)
}

// Publish 发布回答事件到会话频道
func (b *Broadcaster) Publish(ctx context.Context, conversationID string, event interface{}) error {
	ctx, span := broadcastTracer.Start(ctx, "broadcast.Publish",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal broadcast event: %w", err)
	}

	if err := b.client.rdb.Publish(ctx, answerTopic(conversationID), payload).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish broadcast event: %w", err)
	}
	return nil
}

// Subscribe 订阅会话频道，返回事件字节流
//
// 返回的 cancel 函数负责关闭订阅；ctx 结束时通道自动关闭。
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan []byte, func(), error) {
	ctx, span := broadcastTracer.Start(ctx, "broadcast.Subscribe",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	sub := b.client.rdb.Subscribe(ctx, answerTopic(conversationID))

	// 等待订阅确认，避免漏掉早期消息
	if _, err := sub.Receive(ctx); err != nil {
		span.RecordError(err)
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	events := make(chan []byte, 16)
	go func() {
		defer close(events)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case events <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			logger.Warn(ctx, "failed to close subscription",
				"conversation_id", conversationID, "error", err)
		}
	}
	return events, cancel, nil
}

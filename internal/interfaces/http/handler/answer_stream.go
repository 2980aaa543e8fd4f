// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/internal/infrastructure/persistence/redis"
	"z-chat-ai-api/internal/interfaces/http/dto"
	"z-chat-ai-api/pkg/logger"
)

// AnswerStreamHandler 回答事件流处理器
type AnswerStreamHandler struct {
	convRepo    repository.ConversationRepository
	broadcaster *redis.Broadcaster
}

// NewAnswerStreamHandler 创建回答事件流处理器
func NewAnswerStreamHandler(
	convRepo repository.ConversationRepository,
	broadcaster *redis.Broadcaster,
) *AnswerStreamHandler {
	return &AnswerStreamHandler{
		convRepo:    convRepo,
		broadcaster: broadcaster,
	}
}

// StreamAnswers 以 SSE 推送会话内的回答事件
// @Summary 订阅会话回答事件流
// @Description 通过 SSE 逐块接收回答文本及完成/取消事件
// @Tags Conversations
// @Produce text/event-stream
// @Param cid path string true "会话 ID"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/answers/stream [get]
func (h *AnswerStreamHandler) StreamAnswers(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := dto.BindConversationID(c)

	conv, err := h.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		logger.Error(ctx, "failed to get conversation", err)
		dto.InternalError(c, "failed to get conversation")
		return
	}
	if conv == nil {
		dto.NotFound(c, "conversation not found")
		return
	}

	events, cancel, err := h.broadcaster.Subscribe(ctx, conversationID)
	if err != nil {
		logger.Error(ctx, "failed to subscribe to answer events", err,
			"conversation_id", conversationID)
		dto.InternalError(c, "failed to subscribe to answer events")
		return
	}
	defer cancel()

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case payload, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("answer", string(payload))
			return true

		case <-ctx.Done():
			// 客户端断开
			return false
		}
	})
}

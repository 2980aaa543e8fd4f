// Package router 提供 HTTP 路由配置
package router

import (
	"z-chat-ai-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	conversationHandler *handler.ConversationHandler,
	streamHandler *handler.AnswerStreamHandler,
) {
	// 会话管理
	conversations := v1.Group("/conversations")
	{
		conversations.POST("", conversationHandler.CreateConversation)
		conversations.GET("/:cid", conversationHandler.GetConversation)

		// 会话内提问
		conversations.POST("/:cid/questions", conversationHandler.AskQuestion)
		conversations.GET("/:cid/questions/:qid", conversationHandler.GetQuestion)

		// 回答控制
		conversations.POST("/:cid/questions/:qid/answer/cancel", conversationHandler.CancelAnswer)
		conversations.POST("/:cid/questions/:qid/answer/feedback", conversationHandler.SubmitFeedback)

		// 回答事件流
		conversations.GET("/:cid/answers/stream", streamHandler.StreamAnswers) // SSE
	}
}

// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-chat-ai-api/internal/domain/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	Touch(ctx context.Context, id string) error
}

type QuestionRepository interface {
	Create(ctx context.Context, question *entity.Question) error
	GetByID(ctx context.Context, id string) (*entity.Question, error)
	// GetWithAnswer 加载问题及其回答（含来源）；无回答时 Answer 为 nil
	GetWithAnswer(ctx context.Context, id string) (*entity.Question, error)
	// ListAnswered 按创建时间升序返回会话内所有已回答的问题（含回答）
	ListAnswered(ctx context.Context, conversationID string) ([]*entity.Question, error)
	ListByConversation(ctx context.Context, conversationID string, pagination Pagination) (*PagedResult[*entity.Question], error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
}

type AnswerRepository interface {
	// Create 持久化回答及其来源
	Create(ctx context.Context, answer *entity.Answer) error
	GetByQuestionID(ctx context.Context, questionID string) (*entity.Answer, error)
	// UpsertFeedback 写入或更新回答反馈
	UpsertFeedback(ctx context.Context, feedback *entity.AnswerFeedback) error
}

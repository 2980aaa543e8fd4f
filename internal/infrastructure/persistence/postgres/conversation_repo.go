// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"z-chat-ai-api/internal/domain/entity"
)

type ConversationRepository struct {
	client *Client
}

func NewConversationRepository(client *Client) *ConversationRepository {
	return &ConversationRepository{client: client}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(conversation).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var conversation entity.Conversation
	if err := db.First(&conversation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

// Touch 刷新会话更新时间
func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.Touch")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

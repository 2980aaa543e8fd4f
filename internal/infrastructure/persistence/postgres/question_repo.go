// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
)

type QuestionRepository struct {
	client *Client
}

func NewQuestionRepository(client *Client) *QuestionRepository {
	return &QuestionRepository{client: client}
}

func (r *QuestionRepository) Create(ctx context.Context, question *entity.Question) error {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(question).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*entity.Question, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var question entity.Question
	if err := db.First(&question, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

func (r *QuestionRepository) GetWithAnswer(ctx context.Context, id string) (*entity.Question, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.GetWithAnswer")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var question entity.Question
	err := db.
		Preload("Answer").
		Preload("Answer.Sources", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&question, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get question with answer: %w", err)
	}
	return &question, nil
}

func (r *QuestionRepository) ListAnswered(ctx context.Context, conversationID string) ([]*entity.Question, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.ListAnswered")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var questions []*entity.Question
	err := db.
		Joins("JOIN answers ON answers.question_id = questions.id").
		Preload("Answer").
		Where("questions.conversation_id = ?", conversationID).
		Order("questions.created_at ASC").
		Find(&questions).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list answered questions: %w", err)
	}
	return questions, nil
}

func (r *QuestionRepository) ListByConversation(ctx context.Context, conversationID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Question], error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.ListByConversation")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Question{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	var questions []*entity.Question
	if err := query.
		Preload("Answer").
		Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&questions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	return repository.NewPagedResult(questions, total, pagination), nil
}

func (r *QuestionRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.QuestionRepository.CountByConversation")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var total int64
	if err := db.Model(&entity.Question{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return total, nil
}

// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-chat-ai-api/internal/domain/entity"
)

type AnswerRepository struct {
	client *Client
}

func NewAnswerRepository(client *Client) *AnswerRepository {
	return &AnswerRepository{client: client}
}

// Create 持久化回答；Sources 通过 GORM 关联一并写入
func (r *AnswerRepository) Create(ctx context.Context, answer *entity.Answer) error {
	ctx, span := tracer.Start(ctx, "postgres.AnswerRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(answer).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create answer: %w", err)
	}
	return nil
}

func (r *AnswerRepository) GetByQuestionID(ctx context.Context, questionID string) (*entity.Answer, error) {
	ctx, span := tracer.Start(ctx, "postgres.AnswerRepository.GetByQuestionID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var answer entity.Answer
	err := db.
		Preload("Sources", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&answer, "question_id = ?", questionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

func (r *AnswerRepository) UpsertFeedback(ctx context.Context, feedback *entity.AnswerFeedback) error {
	ctx, span := tracer.Start(ctx, "postgres.AnswerRepository.UpsertFeedback")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "answer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"useful", "created_at"}),
	}).Create(feedback).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert answer feedback: %w", err)
	}
	return nil
}

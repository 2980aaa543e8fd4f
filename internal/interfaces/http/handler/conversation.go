// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-chat-ai-api/internal/application/answer"
	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/internal/infrastructure/messaging"
	"z-chat-ai-api/internal/infrastructure/persistence/redis"
	"z-chat-ai-api/internal/interfaces/http/dto"
	"z-chat-ai-api/pkg/logger"
)

const conversationCacheTTL = 5 * time.Minute

// ConversationHandler 会话与问答处理器
type ConversationHandler struct {
	convRepo     repository.ConversationRepository
	questionRepo repository.QuestionRepository
	answerRepo   repository.AnswerRepository
	txMgr        repository.Transactor
	producer     *messaging.Producer
	cancels      answer.CancelStore
	cache        *redis.Cache
	config       *config.StreamingConfig
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(
	convRepo repository.ConversationRepository,
	questionRepo repository.QuestionRepository,
	answerRepo repository.AnswerRepository,
	txMgr repository.Transactor,
	producer *messaging.Producer,
	cancels answer.CancelStore,
	cache *redis.Cache,
	cfg *config.Config,
) *ConversationHandler {
	return &ConversationHandler{
		convRepo:     convRepo,
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		txMgr:        txMgr,
		producer:     producer,
		cancels:      cancels,
		cache:        cache,
		config:       &cfg.Answer.Streaming,
	}
}

// CreateConversation 创建会话
// @Summary 创建会话
// @Tags Conversations
// @Produce json
// @Success 201 {object} dto.Response[dto.ConversationResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/conversations [post]
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	ctx := c.Request.Context()

	conv := entity.NewConversation()
	if err := h.convRepo.Create(ctx, conv); err != nil {
		logger.Error(ctx, "failed to create conversation", err)
		dto.InternalError(c, "failed to create conversation")
		return
	}

	dto.Created(c, dto.ToConversationResponse(conv))
}

// GetConversation 获取会话及其问题列表
// @Summary 获取会话详情
// @Tags Conversations
// @Produce json
// @Param cid path string true "会话 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.QuestionListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := dto.BindConversationID(c)
	pageReq := dto.BindPage(c)

	conv, err := h.loadConversation(c, conversationID)
	if err != nil {
		logger.Error(ctx, "failed to get conversation", err)
		dto.InternalError(c, "failed to get conversation")
		return
	}
	if conv == nil {
		dto.NotFound(c, "conversation not found")
		return
	}

	result, err := h.questionRepo.ListByConversation(ctx, conversationID,
		repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list questions", err)
		dto.InternalError(c, "failed to list questions")
		return
	}

	resp := dto.ToQuestionListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// AskQuestion 提交问题并异步触发回答生成
// @Summary 提交问题
// @Tags Conversations
// @Accept json
// @Produce json
// @Param cid path string true "会话 ID"
// @Param body body dto.AskQuestionRequest true "问题内容"
// @Success 202 {object} dto.Response[dto.AskQuestionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/questions [post]
func (h *ConversationHandler) AskQuestion(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := dto.BindConversationID(c)

	var req dto.AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

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

	// 单会话提问上限
	if h.config.MaxQuestionsPerConversation > 0 {
		count, err := h.questionRepo.CountByConversation(ctx, conversationID)
		if err != nil {
			logger.Error(ctx, "failed to count questions", err)
			dto.InternalError(c, "failed to submit question")
			return
		}
		if count >= int64(h.config.MaxQuestionsPerConversation) {
			dto.TooManyRequests(c, "conversation question limit reached")
			return
		}
	}

	question := entity.NewQuestion(conversationID, req.Message, uuid.NewString())

	if err := h.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := h.questionRepo.Create(txCtx, question); err != nil {
			return err
		}
		return h.convRepo.Touch(txCtx, conversationID)
	}); err != nil {
		logger.Error(ctx, "failed to create question", err)
		dto.InternalError(c, "failed to submit question")
		return
	}

	if err := h.cache.InvalidateConversation(ctx, conversationID); err != nil {
		logger.Warn(ctx, "failed to invalidate conversation cache", "error", err)
	}

	if _, err := h.producer.PublishAnswerJob(ctx, &messaging.AnswerJobMessage{
		JobID:          question.JobID,
		ConversationID: conversationID,
		QuestionID:     question.ID,
		RequestID:      c.GetString("request_id"),
	}); err != nil {
		logger.Error(ctx, "failed to enqueue answer job", err, "question_id", question.ID)
		dto.InternalError(c, "failed to submit question")
		return
	}

	dto.Accepted(c, &dto.AskQuestionResponse{
		QuestionID:     question.ID,
		ConversationID: conversationID,
		JobID:          question.JobID,
	})
}

// GetQuestion 获取问题及其回答
// @Summary 获取问题详情
// @Tags Conversations
// @Produce json
// @Param cid path string true "会话 ID"
// @Param qid path string true "问题 ID"
// @Success 200 {object} dto.Response[dto.QuestionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/questions/{qid} [get]
func (h *ConversationHandler) GetQuestion(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := dto.BindConversationID(c)
	questionID := dto.BindQuestionID(c)

	question, err := h.questionRepo.GetWithAnswer(ctx, questionID)
	if err != nil {
		logger.Error(ctx, "failed to get question", err)
		dto.InternalError(c, "failed to get question")
		return
	}
	if question == nil || question.ConversationID != conversationID {
		dto.NotFound(c, "question not found")
		return
	}

	dto.Success(c, dto.ToQuestionResponse(question))
}

// CancelAnswer 请求取消正在生成的回答。
// 只写取消信号，不直接改回答状态；终态由投递侧在块间轮询后写入。
// @Summary 取消回答生成
// @Tags Conversations
// @Produce json
// @Param cid path string true "会话 ID"
// @Param qid path string true "问题 ID"
// @Success 202 {object} dto.Response[dto.AskQuestionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/questions/{qid}/answer/cancel [post]
func (h *ConversationHandler) CancelAnswer(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := dto.BindConversationID(c)
	questionID := dto.BindQuestionID(c)

	question, err := h.questionRepo.GetWithAnswer(ctx, questionID)
	if err != nil {
		logger.Error(ctx, "failed to get question", err)
		dto.InternalError(c, "failed to cancel answer")
		return
	}
	if question == nil || question.ConversationID != conversationID {
		logger.Warn(ctx, "cancel requested for unknown question", "question_id", questionID)
		dto.NotFound(c, "question not found")
		return
	}
	if question.Answered() {
		logger.Warn(ctx, "cancel requested after answer finalised", "question_id", questionID)
		dto.Conflict(c, "answer already finalised")
		return
	}

	if err := h.cancels.Set(ctx, question.JobID); err != nil {
		logger.Error(ctx, "failed to set cancellation signal", err, "job_id", question.JobID)
		dto.InternalError(c, "failed to cancel answer")
		return
	}

	dto.Accepted(c, &dto.AskQuestionResponse{
		QuestionID:     question.ID,
		ConversationID: conversationID,
		JobID:          question.JobID,
	})
}

// SubmitFeedback 提交回答有用性反馈
// @Summary 提交回答反馈
// @Tags Conversations
// @Accept json
// @Produce json
// @Param cid path string true "会话 ID"
// @Param qid path string true "问题 ID"
// @Param body body dto.AnswerFeedbackRequest true "反馈内容"
// @Success 204 "No Content"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/conversations/{cid}/questions/{qid}/answer/feedback [post]
func (h *ConversationHandler) SubmitFeedback(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := dto.BindConversationID(c)
	questionID := dto.BindQuestionID(c)

	var req dto.AnswerFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	question, err := h.questionRepo.GetWithAnswer(ctx, questionID)
	if err != nil {
		logger.Error(ctx, "failed to get question", err)
		dto.InternalError(c, "failed to submit feedback")
		return
	}
	if question == nil || question.ConversationID != conversationID {
		dto.NotFound(c, "question not found")
		return
	}
	if question.Answer == nil {
		dto.NotFound(c, "answer not found")
		return
	}

	feedback := entity.NewAnswerFeedback(question.Answer.ID, *req.Useful)
	if err := h.answerRepo.UpsertFeedback(ctx, feedback); err != nil {
		logger.Error(ctx, "failed to upsert feedback", err, "answer_id", question.Answer.ID)
		dto.InternalError(c, "failed to submit feedback")
		return
	}

	dto.NoContent(c)
}

// errConversationMiss 标记数据库中不存在的会话，避免缓存空值
var errConversationMiss = errors.New("conversation not found")

// loadConversation 经缓存读取会话
func (h *ConversationHandler) loadConversation(c *gin.Context, conversationID string) (*entity.Conversation, error) {
	ctx := c.Request.Context()

	data, err := h.cache.GetOrLoadSafe(ctx, redis.ConversationCacheKey(conversationID), conversationCacheTTL, func() (interface{}, error) {
		conv, err := h.convRepo.GetByID(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, errConversationMiss
		}
		return conv, nil
	})
	if err != nil {
		if errors.Is(err, errConversationMiss) {
			return nil, nil
		}
		return nil, err
	}

	var conv entity.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"z-chat-ai-api/internal/domain/entity"
)

// AskQuestionRequest 提问请求
type AskQuestionRequest struct {
	Message string `json:"message" binding:"required"`
}

// AnswerFeedbackRequest 回答反馈请求
type AnswerFeedbackRequest struct {
	Useful *bool `json:"useful" binding:"required"`
}

// ConversationResponse 会话响应
type ConversationResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// QuestionResponse 问题响应；Answer 在生成完成前为 null
type QuestionResponse struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Message        string          `json:"message"`
	CreatedAt      string          `json:"created_at"`
	Answer         *AnswerResponse `json:"answer"`
}

// QuestionListResponse 问题列表响应
type QuestionListResponse struct {
	Questions []*QuestionResponse `json:"questions"`
}

// AnswerResponse 回答响应
type AnswerResponse struct {
	ID                string            `json:"id"`
	Message           string            `json:"message"`
	Status            string            `json:"status"`
	Cancelled         bool              `json:"cancelled"`
	RephrasedQuestion string            `json:"rephrased_question,omitempty"`
	Sources           []*SourceResponse `json:"sources,omitempty"`
	CreatedAt         string            `json:"created_at"`
}

// SourceResponse 回答来源响应
type SourceResponse struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// AskQuestionResponse 提问受理响应
type AskQuestionResponse struct {
	QuestionID     string `json:"question_id"`
	ConversationID string `json:"conversation_id"`
	JobID          string `json:"job_id"`
}

// ToConversationResponse 转换会话实体
func ToConversationResponse(conv *entity.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

// ToQuestionResponse 转换问题实体
func ToQuestionResponse(q *entity.Question) *QuestionResponse {
	resp := &QuestionResponse{
		ID:             q.ID,
		ConversationID: q.ConversationID,
		Message:        q.Message,
		CreatedAt:      q.CreatedAt.Format(time.RFC3339),
	}
	if q.Answer != nil {
		resp.Answer = ToAnswerResponse(q.Answer)
	}
	return resp
}

// ToQuestionListResponse 转换问题列表
func ToQuestionListResponse(questions []*entity.Question) *QuestionListResponse {
	out := make([]*QuestionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, ToQuestionResponse(q))
	}
	return &QuestionListResponse{Questions: out}
}

// ToAnswerResponse 转换回答实体
func ToAnswerResponse(a *entity.Answer) *AnswerResponse {
	resp := &AnswerResponse{
		ID:                a.ID,
		Message:           a.Message,
		Status:            string(a.Status),
		Cancelled:         a.Cancelled,
		RephrasedQuestion: a.RephrasedQuestion,
		CreatedAt:         a.CreatedAt.Format(time.RFC3339),
	}
	for _, s := range a.Sources {
		resp.Sources = append(resp.Sources, &SourceResponse{
			URL:      s.URL,
			Title:    s.Title,
			Position: s.Position,
		})
	}
	return resp
}

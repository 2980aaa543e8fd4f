// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Conversation 一次多轮问答会话，按时间顺序持有若干 Question
type Conversation struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Questions []*Question `json:"questions,omitempty" gorm:"foreignKey:ConversationID"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Question 会话内的一次提问；回答由后台任务异步生成
type Question struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID string    `json:"conversation_id" gorm:"type:uuid;index;not null"`
	Message        string    `json:"message" gorm:"type:text;not null"`
	JobID          string    `json:"job_id" gorm:"type:uuid;index;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`

	Answer *Answer `json:"answer,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

func NewQuestion(conversationID, message, jobID string) *Question {
	return &Question{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Message:        message,
		JobID:          jobID,
		CreatedAt:      time.Now(),
	}
}

// Answered 是否已有回答
func (q *Question) Answered() bool {
	return q != nil && q.Answer != nil
}

// AnswerStatus 回答的终态
type AnswerStatus string

const (
	AnswerStatusCompleted AnswerStatus = "completed"
	AnswerStatusCancelled AnswerStatus = "cancelled"
)

// GuardrailStatus 输出护栏审计状态
type GuardrailStatus string

const (
	GuardrailStatusPass GuardrailStatus = "pass"
	GuardrailStatusFail GuardrailStatus = "fail"
	GuardrailStatusErr  GuardrailStatus = "error"
)

// Answer 针对某个 Question 生成的回答。
// 不变式：completed（message 完整，cancelled=false）与 cancelled
// （cancelled=true，message 可能为部分或空）互斥，不会同时成立。
type Answer struct {
	ID                string       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	QuestionID        string       `json:"question_id" gorm:"type:uuid;uniqueIndex;not null"`
	Message           string       `json:"message" gorm:"type:text"`
	RephrasedQuestion string       `json:"rephrased_question,omitempty" gorm:"type:text"`
	Status            AnswerStatus `json:"status" gorm:"type:varchar(16);not null"`
	Cancelled         bool         `json:"cancelled" gorm:"not null;default:false"`

	// 输出护栏审计信息（仅在启用输出护栏时填充）
	OutputGuardrailStatus GuardrailStatus `json:"output_guardrail_status,omitempty" gorm:"type:varchar(16)"`
	OutputGuardrailRaw    string          `json:"output_guardrail_raw,omitempty" gorm:"type:text"`

	PromptTokens     int `json:"prompt_tokens" gorm:"not null;default:0"`
	CompletionTokens int `json:"completion_tokens" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Sources  []*Source       `json:"sources,omitempty" gorm:"foreignKey:AnswerID"`
	Feedback *AnswerFeedback `json:"feedback,omitempty" gorm:"foreignKey:AnswerID"`
}

func (Answer) TableName() string {
	return "answers"
}

// NewAnswer 创建尚未定稿的回答；终态由流式下发器写入
func NewAnswer(questionID string) *Answer {
	return &Answer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		CreatedAt:  time.Now(),
	}
}

// MarkCompleted 标记为完整生成
func (a *Answer) MarkCompleted() {
	a.Status = AnswerStatusCompleted
	a.Cancelled = false
}

// MarkCancelled 标记为已取消，message 记录取消时已下发的部分文本
func (a *Answer) MarkCancelled(partial string) {
	a.Status = AnswerStatusCancelled
	a.Cancelled = true
	a.Message = partial
}

// Source 回答引用的内容来源
type Source struct {
	ID       string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AnswerID string `json:"answer_id" gorm:"type:uuid;index;not null"`
	URL      string `json:"url" gorm:"type:text;not null"`
	Title    string `json:"title" gorm:"type:text"`
	Position int    `json:"position" gorm:"not null;default:0"`
}

func (Source) TableName() string {
	return "sources"
}

// AnswerFeedback 用户对回答的有用性反馈
type AnswerFeedback struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AnswerID  string    `json:"answer_id" gorm:"type:uuid;uniqueIndex;not null"`
	Useful    bool      `json:"useful" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (AnswerFeedback) TableName() string {
	return "answer_feedback"
}

func NewAnswerFeedback(answerID string, useful bool) *AnswerFeedback {
	return &AnswerFeedback{
		ID:        uuid.NewString(),
		AnswerID:  answerID,
		Useful:    useful,
		CreatedAt: time.Now(),
	}
}

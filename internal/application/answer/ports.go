// Package answer 实现问答流水线：护栏检查、问题改写、内容召回、
// 重排、回答合成与逐词流式下发。
package answer

import (
	"context"
)

// Broadcaster 回答事件广播端口
type Broadcaster interface {
	Publish(ctx context.Context, conversationID string, event interface{}) error
}

// CancelStore 取消信号存储端口
type CancelStore interface {
	Set(ctx context.Context, jobID string) error
	IsSet(ctx context.Context, jobID string) (bool, error)
}

// ChunkEvent 增量词块事件
type ChunkEvent struct {
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

// FinishedEvent 完整下发结束事件
type FinishedEvent struct {
	QuestionID string `json:"question_id"`
	Finished   bool   `json:"finished"`
}

// CancelledEvent 取消终止事件；Message 为已下发的部分文本，无则为 null
type CancelledEvent struct {
	QuestionID string  `json:"question_id"`
	Cancelled  bool    `json:"cancelled"`
	Message    *string `json:"message"`
}

// NullAnswerEvent 流水线未产出回答时的终止事件
type NullAnswerEvent struct {
	Answer *string `json:"answer"`
}

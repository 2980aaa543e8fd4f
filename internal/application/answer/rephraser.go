package answer

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	workflowport "z-chat-ai-api/internal/workflow/port"
	workflowprompt "z-chat-ai-api/internal/workflow/prompt"
	apperrors "z-chat-ai-api/pkg/errors"
)

// RephraseResult 问题改写结果
type RephraseResult struct {
	// Question 可独立理解的改写后问题；无历史时等于原问题
	Question string
	// Rephrased 是否实际调用了模型改写
	Rephrased bool

	PromptTokens     int
	CompletionTokens int
}

// Rephraser 结合会话历史把最新提问改写为独立问题
type Rephraser struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry
	config   *config.ComposeConfig
}

// NewRephraser 创建问题改写器
func NewRephraser(factory workflowport.ChatModelFactory, cfg *config.Config) *Rephraser {
	return &Rephraser{
		factory:  factory,
		registry: workflowprompt.NewRegistry(),
		config:   &cfg.Answer.Compose,
	}
}

// Rephrase 改写问题。会话没有已回答的历史时跳过模型调用，原样返回。
func (r *Rephraser) Rephrase(ctx context.Context, question string, history []*entity.Question) (*RephraseResult, error) {
	ctx, span := tracer.Start(ctx, "answer.Rephrase")
	defer span.End()

	historyBlock := BuildHistory(history, r.config.MaxHistoryTurns)
	if historyBlock == "" {
		span.SetAttributes(attribute.Bool("rephrase.skipped", true))
		return &RephraseResult{Question: question}, nil
	}

	tpl, err := r.registry.ChatTemplate(workflowprompt.PromptQuestionRephraseV1)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeRephraseFailed, "failed to load rephrase prompt")
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"message_history": historyBlock,
		"question":        question,
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeRephraseFailed, "failed to format rephrase prompt")
	}

	chatModel, err := r.factory.Get(ctx, "")
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "failed to get chat model")
	}

	outMsg, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeRephraseFailed, "rephrase llm call failed")
	}
	if outMsg == nil {
		return nil, apperrors.Wrap(fmt.Errorf("empty llm response"), apperrors.CodeRephraseFailed, "rephrase llm call failed")
	}

	result := &RephraseResult{
		Question:  strings.TrimSpace(outMsg.Content),
		Rephrased: true,
	}
	if result.Question == "" {
		// 模型偶发返回空串时退回原问题，流水线不因此中断
		result.Question = question
		result.Rephrased = false
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		result.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	return result, nil
}

// Package guardrails 提供基于 LLM 的输入/输出护栏检查
package guardrails

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-chat-ai-api/internal/config"
	workflowport "z-chat-ai-api/internal/workflow/port"
	workflowprompt "z-chat-ai-api/internal/workflow/prompt"
	"z-chat-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("guardrails")

// Kind 护栏检查类型
type Kind string

const (
	// KindInput 用户提问的越狱/操纵检查
	KindInput Kind = "input"
	// KindOutput 生成回答的合规检查
	KindOutput Kind = "output"
)

// Result 护栏检查结果
type Result struct {
	// Triggered 模型判定命中护栏
	Triggered bool
	// LLMResponse 模型返回的原始哨兵值
	LLMResponse string

	PromptTokens     int
	CompletionTokens int
}

// ResponseError 模型未按要求返回任一哨兵值
type ResponseError struct {
	Raw              string
	PromptTokens     int
	CompletionTokens int
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected guardrail response: %q", e.Raw)
}

// Evaluator 护栏检查器。
// 模型必须逐字返回 PassValue 或 FailValue，其它输出一律视为检查失败。
type Evaluator struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry
	config   *config.GuardrailsConfig
}

// NewEvaluator 创建护栏检查器
func NewEvaluator(factory workflowport.ChatModelFactory, cfg *config.Config) *Evaluator {
	return &Evaluator{
		factory:  factory,
		registry: workflowprompt.NewRegistry(),
		config:   &cfg.Answer.Guardrails,
	}
}

// Evaluate 对输入文本执行护栏检查
func (e *Evaluator) Evaluate(ctx context.Context, kind Kind, input string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "guardrails.Evaluate",
		trace.WithAttributes(attribute.String("guardrail.kind", string(kind))))
	defer span.End()

	promptID := workflowprompt.PromptJailbreakGuardrailV1
	if kind == KindOutput {
		promptID = workflowprompt.PromptAnswerGuardrailV1
	}

	tpl, err := e.registry.ChatTemplate(promptID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{"input": input})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	chatModel, err := e.factory.Get(ctx, "")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	opts := make([]model.Option, 0, 1)
	if e.config.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(e.config.MaxTokens))
	}

	outMsg, err := chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		span.RecordError(err)
		metrics.GuardrailChecksTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}
	if outMsg == nil {
		metrics.GuardrailChecksTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, fmt.Errorf("empty llm response")
	}

	var promptTokens, completionTokens int
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		promptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		completionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	raw := strings.TrimSpace(outMsg.Content)
	span.SetAttributes(attribute.String("guardrail.response", raw))

	switch raw {
	case e.config.PassValue:
		metrics.GuardrailChecksTotal.WithLabelValues(string(kind), "pass").Inc()
		return &Result{
			Triggered:        false,
			LLMResponse:      raw,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		}, nil
	case e.config.FailValue:
		metrics.GuardrailChecksTotal.WithLabelValues(string(kind), "fail").Inc()
		return &Result{
			Triggered:        true,
			LLMResponse:      raw,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		}, nil
	default:
		metrics.GuardrailChecksTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, &ResponseError{
			Raw:              raw,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		}
	}
}

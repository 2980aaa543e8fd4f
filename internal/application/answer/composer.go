package answer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-chat-ai-api/internal/application/retrieval"
	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	workflowport "z-chat-ai-api/internal/workflow/port"
	workflowprompt "z-chat-ai-api/internal/workflow/prompt"
	apperrors "z-chat-ai-api/pkg/errors"
)

// citationPattern 回答正文中的引用标记，如 [1]
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// ComposeResult 回答合成结果
type ComposeResult struct {
	Message string
	Sources []*entity.Source

	PromptTokens     int
	CompletionTokens int
}

// Composer 基于召回内容合成有依据的回答
type Composer struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry
	config   *config.ComposeConfig
}

// NewComposer 创建回答合成器
func NewComposer(factory workflowport.ChatModelFactory, cfg *config.Config) *Composer {
	return &Composer{
		factory:  factory,
		registry: workflowprompt.NewRegistry(),
		config:   &cfg.Answer.Compose,
	}
}

// Compose 将 TopN 召回内容与历史轮次注入 Prompt 并合成回答。
// 回答中的 [n] 引用标记会被提取为 Sources 并从正文中剥离；
// 模型未输出任何标记时，默认引用全部注入的内容。
func (c *Composer) Compose(ctx context.Context, question string, history []*entity.Question, chunks []*retrieval.WeightedChunk) (*ComposeResult, error) {
	ctx, span := tracer.Start(ctx, "answer.Compose",
		trace.WithAttributes(attribute.Int("chunk_count", len(chunks))))
	defer span.End()

	if c.config.TopN > 0 && len(chunks) > c.config.TopN {
		chunks = chunks[:c.config.TopN]
	}

	tpl, err := c.registry.ChatTemplate(workflowprompt.PromptAnswerComposeV1)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeCompositionFailed, "failed to load compose prompt")
	}
	historyBlock := BuildHistory(history, c.config.MaxHistoryTurns)
	if historyBlock == "" {
		historyBlock = "(no previous turns)"
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"context":         renderContext(chunks),
		"message_history": historyBlock,
		"question":        question,
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeCompositionFailed, "failed to format compose prompt")
	}

	chatModel, err := c.factory.Get(ctx, "")
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "failed to get chat model")
	}

	outMsg, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeCompositionFailed, "compose llm call failed")
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, apperrors.Wrap(fmt.Errorf("empty llm response"), apperrors.CodeCompositionFailed, "compose llm call failed")
	}

	message, cited := extractCitations(outMsg.Content, len(chunks))

	result := &ComposeResult{
		Message: message,
		Sources: buildSources(chunks, cited),
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		result.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	span.SetAttributes(attribute.Int("source_count", len(result.Sources)))
	return result, nil
}

// renderContext 将分块渲染为编号上下文段落
func renderContext(chunks []*retrieval.WeightedChunk) string {
	var b strings.Builder
	for i, wc := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s", i+1, wc.HeadingTitle(), wc.URL, wc.PlainContent)
	}
	return b.String()
}

// extractCitations 提取正文中的引用序号（按首次出现顺序去重）并剥离标记。
// 模型没有输出任何有效标记时引用全部注入内容。
func extractCitations(content string, chunkCount int) (string, []int) {
	var cited []int
	seen := make(map[int]bool)

	for _, m := range citationPattern.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > chunkCount {
			continue
		}
		if !seen[n] {
			seen[n] = true
			cited = append(cited, n)
		}
	}

	message := citationPattern.ReplaceAllString(content, "")
	// 剥离标记后收紧多余空白
	message = regexp.MustCompile(`[ \t]+([.,;:!?])`).ReplaceAllString(message, "$1")
	message = regexp.MustCompile(`[ \t]{2,}`).ReplaceAllString(message, " ")
	message = strings.TrimSpace(message)

	if len(cited) == 0 {
		for i := 1; i <= chunkCount; i++ {
			cited = append(cited, i)
		}
	}
	return message, cited
}

// buildSources 按引用顺序构建来源列表
func buildSources(chunks []*retrieval.WeightedChunk, cited []int) []*entity.Source {
	sources := make([]*entity.Source, 0, len(cited))
	for pos, n := range cited {
		if n < 1 || n > len(chunks) {
			continue
		}
		wc := chunks[n-1]
		sources = append(sources, &entity.Source{
			URL:      wc.URL,
			Title:    wc.HeadingTitle(),
			Position: pos,
		})
	}
	return sources
}

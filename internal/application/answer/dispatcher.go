package answer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/pkg/logger"
	"z-chat-ai-api/pkg/metrics"
)

// chunkPattern 一个词块 = 一个词加其后的分隔符
var chunkPattern = regexp.MustCompile(`\S+\s*`)

// Dispatcher 逐词块下发回答并写入终态。
// 回答的终态（completed/cancelled）只由这里写入：取消接口只负责
// 写取消信号，由下发循环在块间轮询后收敛，避免两个写者竞争。
type Dispatcher struct {
	broadcaster Broadcaster
	cancels     CancelStore
	answers     repository.AnswerRepository
	config      *config.StreamingConfig
}

// NewDispatcher 创建流式下发器
func NewDispatcher(broadcaster Broadcaster, cancels CancelStore, answers repository.AnswerRepository, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		broadcaster: broadcaster,
		cancels:     cancels,
		answers:     answers,
		config:      &cfg.Answer.Streaming,
	}
}

// Dispatch 把草稿回答切成词块依次广播，块间停顿 ChunkDelay 并轮询取消信号。
// draft 为 nil 表示流水线未产出回答，只广播一条空回答终止事件。
func (d *Dispatcher) Dispatch(ctx context.Context, conversationID string, question *entity.Question, draft *entity.Answer) error {
	ctx, span := tracer.Start(ctx, "answer.Dispatch",
		trace.WithAttributes(
			attribute.String("question.id", question.ID),
			attribute.String("job.id", question.JobID),
		))
	defer span.End()

	log := logger.FromContext(ctx)

	if draft == nil {
		span.SetAttributes(attribute.Bool("answer.null", true))
		return d.broadcaster.Publish(ctx, conversationID, &NullAnswerEvent{})
	}

	pieces := chunkPattern.FindAllString(draft.Message, -1)
	var sent strings.Builder

	for _, piece := range pieces {
		cancelled, err := d.cancels.IsSet(ctx, question.JobID)
		if err != nil {
			// 取消信号读取失败按未取消处理，不中断下发
			log.Warn("failed to poll cancellation signal", "error", err, "job_id", question.JobID)
		}
		if cancelled {
			return d.finishCancelled(ctx, conversationID, question, draft, sent.String())
		}

		if err := d.broadcaster.Publish(ctx, conversationID, &ChunkEvent{
			QuestionID: question.ID,
			Message:    piece,
		}); err != nil {
			span.RecordError(err)
			return err
		}
		sent.WriteString(piece)
		metrics.StreamChunksEmitted.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.config.ChunkDelay):
		}
	}

	draft.MarkCompleted()
	if err := d.answers.Create(ctx, draft); err != nil {
		span.RecordError(err)
		return err
	}

	metrics.PipelineRunsTotal.WithLabelValues("completed").Inc()
	return d.broadcaster.Publish(ctx, conversationID, &FinishedEvent{
		QuestionID: question.ID,
		Finished:   true,
	})
}

// finishCancelled 写入取消终态并广播唯一的取消事件
func (d *Dispatcher) finishCancelled(ctx context.Context, conversationID string, question *entity.Question, draft *entity.Answer, sentText string) error {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool("answer.cancelled", true))

	partial := strings.TrimRight(sentText, " \t\n")
	draft.MarkCancelled(partial)
	// 取消的回答不保留来源引用，正文已不完整
	draft.Sources = nil

	if err := d.answers.Create(ctx, draft); err != nil {
		span.RecordError(err)
		return err
	}

	event := &CancelledEvent{
		QuestionID: question.ID,
		Cancelled:  true,
	}
	if partial != "" {
		event.Message = &partial
	}

	metrics.StreamCancellationsTotal.Inc()
	metrics.PipelineRunsTotal.WithLabelValues("cancelled").Inc()
	return d.broadcaster.Publish(ctx, conversationID, event)
}

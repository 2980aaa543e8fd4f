package answer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-chat-ai-api/internal/application/guardrails"
	"z-chat-ai-api/internal/application/retrieval"
	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/pkg/logger"
	"z-chat-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("answer")

// RunInput 一次回答合成任务
type RunInput struct {
	JobID          string
	ConversationID string
	QuestionID     string
}

// Service 问答流水线编排：
// 输入护栏 -> 问题改写 -> 内容召回 -> 重排 -> 回答合成 -> 输出护栏 -> 流式下发
type Service struct {
	questions  repository.QuestionRepository
	guardrails *guardrails.Evaluator
	rephraser  *Rephraser
	retriever  *retrieval.Retriever
	reranker   *retrieval.Reranker
	composer   *Composer
	dispatcher *Dispatcher
	config     *config.AnswerConfig
}

// NewService 创建流水线服务
func NewService(
	questions repository.QuestionRepository,
	evaluator *guardrails.Evaluator,
	rephraser *Rephraser,
	retriever *retrieval.Retriever,
	reranker *retrieval.Reranker,
	composer *Composer,
	dispatcher *Dispatcher,
	cfg *config.Config,
) *Service {
	return &Service{
		questions:  questions,
		guardrails: evaluator,
		rephraser:  rephraser,
		retriever:  retriever,
		reranker:   reranker,
		composer:   composer,
		dispatcher: dispatcher,
		config:     &cfg.Answer,
	}
}

// Run 执行一次完整的回答流水线并流式下发结果
func (s *Service) Run(ctx context.Context, in *RunInput) error {
	ctx, span := tracer.Start(ctx, "answer.Run",
		trace.WithAttributes(
			attribute.String("job.id", in.JobID),
			attribute.String("question.id", in.QuestionID),
		))
	defer span.End()

	ctx = logger.WithContext(ctx, logger.QuestionIDKey, in.QuestionID)
	log := logger.FromContext(ctx)

	question, err := s.questions.GetWithAnswer(ctx, in.QuestionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if question == nil {
		// 问题不存在时没有可重试的余地，吞掉消息
		log.Warn("question not found, dropping job", "question_id", in.QuestionID)
		return s.dispatcher.Dispatch(ctx, in.ConversationID, &entity.Question{
			ID:             in.QuestionID,
			ConversationID: in.ConversationID,
			JobID:          in.JobID,
		}, nil)
	}
	if question.Answered() {
		// 消息重投时回答可能已写入，保持幂等
		log.Info("question already answered, skipping", "question_id", question.ID)
		return nil
	}

	draft, err := s.compose(ctx, question)
	if err != nil {
		span.RecordError(err)
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		// 失败也要广播空回答终止事件，订阅方不能一直等；重试交给消费端
		if pubErr := s.dispatcher.Dispatch(ctx, in.ConversationID, question, nil); pubErr != nil {
			log.Error("failed to broadcast null answer", "error", pubErr)
		}
		return err
	}

	stageStart := time.Now()
	err = s.dispatcher.Dispatch(ctx, in.ConversationID, question, draft)
	metrics.PipelineStageDuration.WithLabelValues("stream").Observe(time.Since(stageStart).Seconds())
	return err
}

// compose 执行下发之前的全部阶段，返回待下发的草稿回答
func (s *Service) compose(ctx context.Context, question *entity.Question) (*entity.Answer, error) {
	log := logger.FromContext(ctx)
	draft := entity.NewAnswer(question.ID)

	// 输入护栏
	stageStart := time.Now()
	inputCheck, err := s.guardrails.Evaluate(ctx, guardrails.KindInput, question.Message)
	metrics.PipelineStageDuration.WithLabelValues("guardrail").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		if respErr, ok := err.(*guardrails.ResponseError); ok {
			// 哨兵值不合法时按命中处理，宁可误拒不可放行
			log.Error("input guardrail returned unexpected value", "raw", respErr.Raw)
			draft.Message = s.config.Guardrails.RefusalMessage
			draft.PromptTokens += respErr.PromptTokens
			draft.CompletionTokens += respErr.CompletionTokens
			metrics.PipelineRunsTotal.WithLabelValues("guardrail_triggered").Inc()
			return draft, nil
		}
		return nil, err
	}
	draft.PromptTokens += inputCheck.PromptTokens
	draft.CompletionTokens += inputCheck.CompletionTokens
	if inputCheck.Triggered {
		log.Info("input guardrail triggered", "question_id", question.ID)
		draft.Message = s.config.Guardrails.RefusalMessage
		metrics.PipelineRunsTotal.WithLabelValues("guardrail_triggered").Inc()
		return draft, nil
	}

	// 问题改写
	history, err := s.questions.ListAnswered(ctx, question.ConversationID)
	if err != nil {
		return nil, err
	}
	stageStart = time.Now()
	rephrased, err := s.rephraser.Rephrase(ctx, question.Message, history)
	metrics.PipelineStageDuration.WithLabelValues("rephrase").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return nil, err
	}
	draft.PromptTokens += rephrased.PromptTokens
	draft.CompletionTokens += rephrased.CompletionTokens
	if rephrased.Rephrased {
		draft.RephrasedQuestion = rephrased.Question
	}

	// 内容召回
	stageStart = time.Now()
	chunks, err := s.retriever.Retrieve(ctx, rephrased.Question)
	metrics.PipelineStageDuration.WithLabelValues("retrieve").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return nil, err
	}

	// 重排
	stageStart = time.Now()
	ranked := s.reranker.Rerank(chunks)
	metrics.PipelineStageDuration.WithLabelValues("rerank").Observe(time.Since(stageStart).Seconds())

	if len(ranked.Accepted) == 0 {
		log.Info("no usable chunks retrieved", "question_id", question.ID,
			"rejected_count", len(ranked.Rejected))
		draft.Message = s.config.Retrieval.NoContentMessage
		return draft, nil
	}

	// 回答合成
	stageStart = time.Now()
	composed, err := s.composer.Compose(ctx, rephrased.Question, history, ranked.Accepted)
	metrics.PipelineStageDuration.WithLabelValues("compose").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return nil, err
	}
	draft.Message = composed.Message
	draft.Sources = composed.Sources
	draft.PromptTokens += composed.PromptTokens
	draft.CompletionTokens += composed.CompletionTokens

	// 输出护栏
	if s.config.Guardrails.CheckAnswers {
		stageStart = time.Now()
		outputCheck, err := s.guardrails.Evaluate(ctx, guardrails.KindOutput, draft.Message)
		metrics.PipelineStageDuration.WithLabelValues("guardrail").Observe(time.Since(stageStart).Seconds())
		switch {
		case err != nil:
			// 输出护栏失败不拦截回答，仅记录审计状态
			draft.OutputGuardrailStatus = entity.GuardrailStatusErr
			if respErr, ok := err.(*guardrails.ResponseError); ok {
				draft.OutputGuardrailRaw = respErr.Raw
				draft.PromptTokens += respErr.PromptTokens
				draft.CompletionTokens += respErr.CompletionTokens
			}
			log.Error("output guardrail check failed", "error", err)
		case outputCheck.Triggered:
			draft.OutputGuardrailStatus = entity.GuardrailStatusFail
			draft.OutputGuardrailRaw = outputCheck.LLMResponse
			draft.Message = s.config.Guardrails.RefusalMessage
			draft.Sources = nil
			draft.PromptTokens += outputCheck.PromptTokens
			draft.CompletionTokens += outputCheck.CompletionTokens
			log.Info("output guardrail triggered", "question_id", question.ID)
		default:
			draft.OutputGuardrailStatus = entity.GuardrailStatusPass
			draft.OutputGuardrailRaw = outputCheck.LLMResponse
			draft.PromptTokens += outputCheck.PromptTokens
			draft.CompletionTokens += outputCheck.CompletionTokens
		}
	}

	return draft, nil
}

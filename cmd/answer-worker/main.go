// Package main 回答合成执行器入口（answer-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"z-chat-ai-api/internal/application/answer"
	"z-chat-ai-api/internal/application/guardrails"
	"z-chat-ai-api/internal/application/retrieval"
	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/infrastructure/embedding"
	"z-chat-ai-api/internal/infrastructure/llm"
	"z-chat-ai-api/internal/infrastructure/messaging"
	"z-chat-ai-api/internal/infrastructure/persistence/milvus"
	"z-chat-ai-api/internal/infrastructure/persistence/postgres"
	"z-chat-ai-api/internal/infrastructure/persistence/redis"
	einoobs "z-chat-ai-api/internal/observability/eino"
	"z-chat-ai-api/pkg/logger"
	"z-chat-ai-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "answer-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	// 初始化 Eino 全局 callbacks（指标/追踪）
	einoobs.Init()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	vectorRepo := milvus.NewRepository(milvusClient)
	if err := vectorRepo.EnsureContentChunksCollection(ctx); err != nil {
		logger.Fatal(ctx, "failed to ensure content chunks collection", err)
	}

	questionRepo := postgres.NewQuestionRepository(pgClient)
	answerRepo := postgres.NewAnswerRepository(pgClient)

	cancels := redis.NewCancellationStore(redisClient, cfg)
	broadcaster := redis.NewBroadcaster(redisClient)

	factory := llm.NewEinoFactory(cfg)
	embedder := embedding.NewClient(&cfg.Embedding)

	pipeline := answer.NewService(
		questionRepo,
		guardrails.NewEvaluator(factory, cfg),
		answer.NewRephraser(factory, cfg),
		retrieval.NewRetriever(embedder, milvus.NewChunkIndexAdapter(vectorRepo), cfg),
		retrieval.NewReranker(cfg),
		answer.NewComposer(factory, cfg),
		answer.NewDispatcher(broadcaster, cancels, answerRepo, cfg),
		cfg,
	)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamAnswerCompose,
		Group:         messaging.ConsumerGroupAnswerWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler("answer_compose", func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.AnswerJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		ctx = einoobs.WithProvider(ctx, cfg.LLM.DefaultProvider)
		return pipeline.Run(ctx, &answer.RunInput{
			JobID:          payload.JobID,
			ConversationID: payload.ConversationID,
			QuestionID:     payload.QuestionID,
		})
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	go consumer.MonitorDLQ(ctx, 100)

	log := logger.FromContext(ctx)
	log.Info("answer-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("answer-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

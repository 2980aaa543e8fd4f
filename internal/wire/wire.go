//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"z-chat-ai-api/internal/application/answer"
	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/internal/infrastructure/persistence/postgres"
	"z-chat-ai-api/internal/infrastructure/persistence/redis"
	"z-chat-ai-api/internal/interfaces/http/handler"
	"z-chat-ai-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		MilvusAppSet,
		RouterSet,
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewConversationRepository,
	postgres.NewQuestionRepository,
	postgres.NewAnswerRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ConversationRepository), new(*postgres.ConversationRepository)),
	wire.Bind(new(repository.QuestionRepository), new(*postgres.QuestionRepository)),
	wire.Bind(new(repository.AnswerRepository), new(*postgres.AnswerRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewCancellationStore,
	redis.NewBroadcaster,
	wire.Bind(new(answer.CancelStore), new(*redis.CancellationStore)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// MilvusAppSet API 网关可选 Milvus（仅用于就绪检查，不可达时不阻塞启动）
var MilvusAppSet = wire.NewSet(
	ProvideMilvusClientOptional,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewConversationHandler,
	handler.NewAnswerStreamHandler,
	router.New,
)

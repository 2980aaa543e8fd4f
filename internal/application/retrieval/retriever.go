package retrieval

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-chat-ai-api/internal/config"
	apperrors "z-chat-ai-api/pkg/errors"
)

var tracer = otel.Tracer("retrieval")

// Embedder 查询向量化端口
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkHit 索引命中，标量字段以字段名到值的映射返回
type ChunkHit struct {
	ID     string
	Score  float64
	Fields map[string]interface{}
}

// ChunkIndex 向量索引检索端口
type ChunkIndex interface {
	Search(ctx context.Context, queryVector []float32, topK int) ([]*ChunkHit, error)
}

// Retriever 按语义相似度从索引召回内容分块
type Retriever struct {
	embedder Embedder
	index    ChunkIndex
	config   *config.RetrievalConfig
}

// NewRetriever 创建召回器
func NewRetriever(embedder Embedder, index ChunkIndex, cfg *config.Config) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		config:   &cfg.Answer.Retrieval,
	}
}

// Retrieve 召回与查询最相似的 TopK 个分块。
// 正文在返回前按 MaxContentWords 截断，避免 Prompt 超长。
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]*Chunk, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve",
		trace.WithAttributes(attribute.Int("top_k", r.config.TopK)))
	defer span.End()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeRetrievalFailed, "failed to embed query")
	}

	hits, err := r.index.Search(ctx, vector, r.config.TopK)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to search chunk index")
	}

	chunks := make([]*Chunk, 0, len(hits))
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		chunk, err := NewChunkFromFields(hit.ID, hit.Score, hit.Fields)
		if err != nil {
			span.RecordError(err)
			return nil, apperrors.Wrap(err, apperrors.CodeRetrievalFailed, "malformed chunk in index")
		}
		chunk.TruncateContent(r.config.MaxContentWords)
		chunks = append(chunks, chunk)
	}

	span.SetAttributes(attribute.Int("result_count", len(chunks)))
	return chunks, nil
}

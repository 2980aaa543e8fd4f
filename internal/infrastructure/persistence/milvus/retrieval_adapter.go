package milvus

import (
	"context"

	"z-chat-ai-api/internal/application/retrieval"
)

// ChunkIndexAdapter 将向量仓储适配为召回端口
type ChunkIndexAdapter struct {
	repo *Repository
}

func NewChunkIndexAdapter(repo *Repository) *ChunkIndexAdapter {
	return &ChunkIndexAdapter{repo: repo}
}

var _ retrieval.ChunkIndex = (*ChunkIndexAdapter)(nil)

func (a *ChunkIndexAdapter) Search(ctx context.Context, queryVector []float32, topK int) ([]*retrieval.ChunkHit, error) {
	if a == nil || a.repo == nil {
		return nil, retrieval.ErrIndexUnavailable
	}

	out, err := a.repo.SearchChunks(ctx, &SearchParams{
		QueryVector: queryVector,
		TopK:        topK,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]*retrieval.ChunkHit, 0, len(out))
	for i := range out {
		v := out[i]
		if v == nil {
			continue
		}
		hits = append(hits, &retrieval.ChunkHit{
			ID:     v.ID,
			Score:  float64(v.Score),
			Fields: v.Fields,
		})
	}
	return hits, nil
}

package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-chat-ai-api/internal/config"
)

func newTestReranker(weights map[string]float64, minScore float64) *Reranker {
	cfg := &config.Config{}
	cfg.Answer.Rerank.Weights = weights
	cfg.Answer.Rerank.MinScore = minScore
	return NewReranker(cfg)
}

func TestRerankOrdersByWeightedScore(t *testing.T) {
	r := newTestReranker(map[string]float64{"guide": 2.0, "answer": 1.5}, 0)

	chunks := []*Chunk{
		{ID: "a", DocumentType: "answer", Score: 1.0}, // 1.5
		{ID: "b", DocumentType: "guide", Score: 0.9},  // 1.8
		{ID: "c", DocumentType: "news", Score: 1.2},   // 1.2，未配置类型权重 1.0
	}

	result := r.Rerank(chunks)
	require.Len(t, result.Accepted, 3)
	assert.Equal(t, "b", result.Accepted[0].ID)
	assert.Equal(t, "a", result.Accepted[1].ID)
	assert.Equal(t, "c", result.Accepted[2].ID)
	assert.InDelta(t, 1.8, result.Accepted[0].WeightedScore, 1e-9)
}

func TestRerankHTMLPublicationUsesParentType(t *testing.T) {
	r := newTestReranker(map[string]float64{"guide": 2.0}, 0)

	chunks := []*Chunk{
		{ID: "a", DocumentType: "html_publication", ParentDocumentType: "guide", Score: 1.0},
		{ID: "b", DocumentType: "html_publication", Score: 1.0},
	}

	result := r.Rerank(chunks)
	require.Len(t, result.Accepted, 2)
	assert.Equal(t, 2.0, result.Accepted[0].Weight)
	assert.Equal(t, 1.0, result.Accepted[1].Weight)
}

func TestRerankStableOnTies(t *testing.T) {
	r := newTestReranker(nil, 0)

	chunks := []*Chunk{
		{ID: "first", DocumentType: "guide", Score: 0.8},
		{ID: "second", DocumentType: "news", Score: 0.8},
		{ID: "third", DocumentType: "answer", Score: 0.8},
	}

	result := r.Rerank(chunks)
	require.Len(t, result.Accepted, 3)
	assert.Equal(t, "first", result.Accepted[0].ID)
	assert.Equal(t, "second", result.Accepted[1].ID)
	assert.Equal(t, "third", result.Accepted[2].ID)
}

func TestRerankRejectsBelowMinScore(t *testing.T) {
	r := newTestReranker(map[string]float64{"guide": 2.0}, 1.0)

	chunks := []*Chunk{
		{ID: "keep", DocumentType: "guide", Score: 0.6}, // 1.2
		{ID: "drop", DocumentType: "news", Score: 0.6},  // 0.6
	}

	result := r.Rerank(chunks)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "keep", result.Accepted[0].ID)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "drop", result.Rejected[0].ID)
	assert.Contains(t, result.Rejected[0].Reason, "below threshold")

	assert.Equal(t, 2, result.Metrics["retrieved_count"])
	assert.Equal(t, 1, result.Metrics["accepted_count"])
	assert.Equal(t, 1, result.Metrics["rejected_count"])
}

func TestRerankSkipsNilChunks(t *testing.T) {
	r := newTestReranker(nil, 0)
	result := r.Rerank([]*Chunk{nil, {ID: "a", Score: 0.5}})
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "a", result.Accepted[0].ID)
}

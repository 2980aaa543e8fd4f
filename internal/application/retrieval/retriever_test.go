package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-chat-ai-api/internal/config"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

type fakeIndex struct {
	hits []*ChunkHit
	err  error

	gotVector []float32
	gotTopK   int
}

func (f *fakeIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]*ChunkHit, error) {
	f.gotVector = queryVector
	f.gotTopK = topK
	return f.hits, f.err
}

func newRetrievalConfig(topK, maxWords int) *config.Config {
	cfg := &config.Config{}
	cfg.Answer.Retrieval.TopK = topK
	cfg.Answer.Retrieval.MaxContentWords = maxWords
	return cfg
}

func TestRetrieve(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	index := &fakeIndex{
		hits: []*ChunkHit{
			{ID: "a", Score: 0.9, Fields: map[string]interface{}{
				"document_type": "guide",
				"plain_content": "one two three four five",
			}},
			nil,
			{ID: "b", Score: 0.7, Fields: map[string]interface{}{
				"document_type": "answer",
			}},
		},
	}

	r := NewRetriever(embedder, index, newRetrievalConfig(20, 3))
	chunks, err := r.Retrieve(context.Background(), "how do I pay corporation tax")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2}, index.gotVector)
	assert.Equal(t, 20, index.gotTopK)

	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].ID)
	assert.Equal(t, "one two three", chunks[0].PlainContent)
	assert.Equal(t, "b", chunks[1].ID)
}

func TestRetrieveEmbedError(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	r := NewRetriever(embedder, &fakeIndex{}, newRetrievalConfig(20, 0))

	_, err := r.Retrieve(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestRetrieveSearchError(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	index := &fakeIndex{err: errors.New("index offline")}
	r := NewRetriever(embedder, index, newRetrievalConfig(20, 0))

	_, err := r.Retrieve(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to search chunk index")
}

func TestRetrieveMalformedHit(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	index := &fakeIndex{
		hits: []*ChunkHit{
			{ID: "a", Score: 0.9, Fields: map[string]interface{}{"bogus": "x"}},
		},
	}
	r := NewRetriever(embedder, index, newRetrievalConfig(20, 0))

	_, err := r.Retrieve(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed chunk in index")
}

package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-chat-ai-api/internal/application/retrieval"
	"z-chat-ai-api/internal/domain/entity"
)

func weightedChunk(id, title, url, content string) *retrieval.WeightedChunk {
	return &retrieval.WeightedChunk{
		Chunk: &retrieval.Chunk{
			ID:           id,
			Title:        title,
			URL:          url,
			PlainContent: content,
		},
		Weight:        1.0,
		WeightedScore: 1.0,
	}
}

func TestExtractCitations(t *testing.T) {
	message, cited := extractCitations("Pay online [1]. You can also pay by post [2] or online [1].", 3)

	assert.Equal(t, "Pay online. You can also pay by post or online.", message)
	assert.Equal(t, []int{1, 2}, cited)
}

func TestExtractCitationsIgnoresOutOfRange(t *testing.T) {
	message, cited := extractCitations("See [1] and [9].", 2)

	assert.Equal(t, "See and.", message)
	assert.Equal(t, []int{1}, cited)
}

func TestExtractCitationsFallbackCitesAll(t *testing.T) {
	message, cited := extractCitations("No markers here.", 3)

	assert.Equal(t, "No markers here.", message)
	assert.Equal(t, []int{1, 2, 3}, cited)
}

func TestCompose(t *testing.T) {
	chatModel := &scriptedChatModel{
		responses: []string{"You must pay by the deadline [2]. Payment can be made online [1]."},
	}
	c := NewComposer(&fakeFactory{chatModel: chatModel}, newPipelineConfig())

	chunks := []*retrieval.WeightedChunk{
		weightedChunk("a", "Pay online", "https://example.org/pay-online", "Pay online with a card."),
		weightedChunk("b", "Deadlines", "https://example.org/deadlines", "Pay nine months after year end."),
	}

	result, err := c.Compose(context.Background(), "How do I pay?", nil, chunks)
	require.NoError(t, err)

	assert.Equal(t, "You must pay by the deadline. Payment can be made online.", result.Message)
	assert.Equal(t, 10, result.PromptTokens)
	assert.Equal(t, 5, result.CompletionTokens)

	// 来源按引用出现顺序排列
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "Deadlines", result.Sources[0].Title)
	assert.Equal(t, "https://example.org/deadlines", result.Sources[0].URL)
	assert.Equal(t, 0, result.Sources[0].Position)
	assert.Equal(t, "Pay online", result.Sources[1].Title)
	assert.Equal(t, 1, result.Sources[1].Position)
}

func TestComposeTrimsToTopN(t *testing.T) {
	cfg := newPipelineConfig()
	cfg.Answer.Compose.TopN = 1

	chatModel := &scriptedChatModel{responses: []string{"Answer [1] [2]."}}
	c := NewComposer(&fakeFactory{chatModel: chatModel}, cfg)

	chunks := []*retrieval.WeightedChunk{
		weightedChunk("a", "First", "https://example.org/a", "first"),
		weightedChunk("b", "Second", "https://example.org/b", "second"),
	}

	result, err := c.Compose(context.Background(), "question", nil, chunks)
	require.NoError(t, err)

	// 只注入了一条内容，[2] 超出范围被忽略
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "First", result.Sources[0].Title)
}

func TestComposeIncludesHistory(t *testing.T) {
	chatModel := &scriptedChatModel{responses: []string{"Answer [1]."}}
	c := NewComposer(&fakeFactory{chatModel: chatModel}, newPipelineConfig())

	history := []*entity.Question{
		answeredQuestion("what is corporation tax", "", "A tax on company profits."),
	}
	_, err := c.Compose(context.Background(), "How do I pay it?", history, []*retrieval.WeightedChunk{
		weightedChunk("a", "Pay", "https://example.org/pay", "Pay online."),
	})
	require.NoError(t, err)

	require.Len(t, chatModel.inputs, 1)
	var prompt string
	for _, msg := range chatModel.inputs[0] {
		prompt += msg.Content + "\n"
	}
	assert.Contains(t, prompt, "user: what is corporation tax")
	assert.Contains(t, prompt, "assistant: A tax on company profits.")
	assert.Contains(t, prompt, "How do I pay it?")
}

func TestComposeEmptyResponse(t *testing.T) {
	chatModel := &scriptedChatModel{responses: []string{"   "}}
	c := NewComposer(&fakeFactory{chatModel: chatModel}, newPipelineConfig())

	_, err := c.Compose(context.Background(), "question", nil, []*retrieval.WeightedChunk{
		weightedChunk("a", "Title", "https://example.org", "content"),
	})
	require.Error(t, err)
}

func TestRenderContext(t *testing.T) {
	chunks := []*retrieval.WeightedChunk{
		weightedChunk("a", "Pay online", "https://example.org/pay", "Pay with a card."),
		weightedChunk("b", "Deadlines", "https://example.org/deadlines", "Nine months."),
	}

	rendered := renderContext(chunks)
	expected := "[1] Pay online\nhttps://example.org/pay\nPay with a card.\n\n" +
		"[2] Deadlines\nhttps://example.org/deadlines\nNine months."
	assert.Equal(t, expected, rendered)
}

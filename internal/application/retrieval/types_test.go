package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkFromFields(t *testing.T) {
	fields := map[string]interface{}{
		"content_id":           "content-1",
		"locale":               "en",
		"chunk_index":          int64(2),
		"base_path":            "/pay-corporation-tax",
		"document_type":        "guide",
		"parent_document_type": "",
		"title":                "Pay your Corporation Tax bill",
		"description":          "How to pay",
		"url":                  "https://example.org/pay-corporation-tax",
		"heading_hierarchy":    `["Overview","Deadlines"]`,
		"digest":               "abc123",
		"html_content":         "<p>Pay online</p>",
		"plain_content":        "Pay online or by bank transfer",
	}

	chunk, err := NewChunkFromFields("chunk-1", 0.92, fields)
	require.NoError(t, err)

	assert.Equal(t, "chunk-1", chunk.ID)
	assert.Equal(t, 0.92, chunk.Score)
	assert.Equal(t, "content-1", chunk.ContentID)
	assert.Equal(t, int64(2), chunk.ChunkIndex)
	assert.Equal(t, "guide", chunk.DocumentType)
	assert.Equal(t, []string{"Overview", "Deadlines"}, chunk.HeadingHierarchy)
	assert.Equal(t, "Pay online or by bank transfer", chunk.PlainContent)
}

func TestNewChunkFromFieldsUnknownField(t *testing.T) {
	_, err := NewChunkFromFields("chunk-1", 0.5, map[string]interface{}{
		"surprise_field": "value",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown chunk field")
}

func TestNewChunkFromFieldsEmptyID(t *testing.T) {
	_, err := NewChunkFromFields("", 0.5, map[string]interface{}{})
	require.Error(t, err)
}

func TestNewChunkFromFieldsInvalidHeadings(t *testing.T) {
	_, err := NewChunkFromFields("chunk-1", 0.5, map[string]interface{}{
		"heading_hierarchy": "not json",
	})
	require.Error(t, err)
}

func TestHeadingTitle(t *testing.T) {
	tests := []struct {
		name     string
		chunk    Chunk
		expected string
	}{
		{
			name: "title with headings",
			chunk: Chunk{
				Title:            "Corporation Tax",
				HeadingHierarchy: []string{"Rates", "Small profits"},
			},
			expected: "Corporation Tax: Rates: Small profits",
		},
		{
			name:     "title only",
			chunk:    Chunk{Title: "Corporation Tax"},
			expected: "Corporation Tax",
		},
		{
			name: "blank headings skipped",
			chunk: Chunk{
				Title:            "Corporation Tax",
				HeadingHierarchy: []string{"", "  ", "Rates"},
			},
			expected: "Corporation Tax: Rates",
		},
		{
			name:     "empty",
			chunk:    Chunk{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.chunk.HeadingTitle())
		})
	}
}

func TestTruncateContent(t *testing.T) {
	chunk := &Chunk{PlainContent: "one two three four five"}

	chunk.TruncateContent(3)
	assert.Equal(t, "one two three", chunk.PlainContent)

	// 低于上限时原样保留
	chunk.TruncateContent(10)
	assert.Equal(t, "one two three", chunk.PlainContent)

	// 非正数上限不截断
	chunk.PlainContent = "a b c"
	chunk.TruncateContent(0)
	assert.Equal(t, "a b c", chunk.PlainContent)
}

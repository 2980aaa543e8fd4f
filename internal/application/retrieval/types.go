// Package retrieval 提供基于向量索引的内容召回与重排
package retrieval

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Chunk 从索引召回的内容分块
type Chunk struct {
	ID                 string
	ContentID          string
	Locale             string
	ChunkIndex         int64
	BasePath           string
	DocumentType       string
	ParentDocumentType string
	Title              string
	Description        string
	URL                string
	HeadingHierarchy   []string
	Digest             string
	HTMLContent        string
	PlainContent       string

	// Score 索引返回的原始相似度分
	Score float64
}

// NewChunkFromFields 从索引命中的字段映射构建分块。
// 未知字段视为索引结构漂移，直接报错而不是静默丢弃。
func NewChunkFromFields(id string, score float64, fields map[string]interface{}) (*Chunk, error) {
	c := &Chunk{ID: id, Score: score}

	for key, raw := range fields {
		switch key {
		case "id":
			if v := asString(raw); v != "" {
				c.ID = v
			}
		case "content_id":
			c.ContentID = asString(raw)
		case "locale":
			c.Locale = asString(raw)
		case "chunk_index":
			v, err := asInt64(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid chunk_index: %w", err)
			}
			c.ChunkIndex = v
		case "base_path":
			c.BasePath = asString(raw)
		case "document_type":
			c.DocumentType = asString(raw)
		case "parent_document_type":
			c.ParentDocumentType = asString(raw)
		case "title":
			c.Title = asString(raw)
		case "description":
			c.Description = asString(raw)
		case "url":
			c.URL = asString(raw)
		case "heading_hierarchy":
			headings, err := parseHeadings(asString(raw))
			if err != nil {
				return nil, fmt.Errorf("invalid heading_hierarchy: %w", err)
			}
			c.HeadingHierarchy = headings
		case "digest":
			c.Digest = asString(raw)
		case "html_content":
			c.HTMLContent = asString(raw)
		case "plain_content":
			c.PlainContent = asString(raw)
		default:
			return nil, fmt.Errorf("unknown chunk field: %s", key)
		}
	}

	if c.ID == "" {
		return nil, fmt.Errorf("chunk id is empty")
	}
	return c, nil
}

// HeadingTitle 文档标题与标题层级拼接后的完整标题
func (c *Chunk) HeadingTitle() string {
	parts := make([]string, 0, 1+len(c.HeadingHierarchy))
	if strings.TrimSpace(c.Title) != "" {
		parts = append(parts, strings.TrimSpace(c.Title))
	}
	for _, h := range c.HeadingHierarchy {
		if strings.TrimSpace(h) != "" {
			parts = append(parts, strings.TrimSpace(h))
		}
	}
	return strings.Join(parts, ": ")
}

// TruncateContent 按词数截断正文，超出部分丢弃
func (c *Chunk) TruncateContent(maxWords int) {
	if maxWords <= 0 {
		return
	}
	words := strings.Fields(c.PlainContent)
	if len(words) <= maxWords {
		return
	}
	c.PlainContent = strings.Join(words[:maxWords], " ")
}

// WeightedChunk 带权重排后的分块
type WeightedChunk struct {
	*Chunk

	// Weight 按文档类型配置的乘法权重
	Weight float64
	// WeightedScore 原始分与权重的乘积
	WeightedScore float64
}

// RejectedChunk 被阈值过滤掉的分块及原因
type RejectedChunk struct {
	*WeightedChunk

	Reason string
}

// ResultSet 重排结果，包含保留项、被过滤项与诊断计数
type ResultSet struct {
	Accepted []*WeightedChunk
	Rejected []*RejectedChunk
	Metrics  map[string]any
}

func parseHeadings(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var headings []string
	if err := json.Unmarshal([]byte(raw), &headings); err != nil {
		return nil, err
	}
	return headings, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionContentChunks 内容分块集合
	CollectionContentChunks = "content_chunks"

	// VectorDimension 向量维度
	VectorDimension = 1536
)

// ContentChunksSchema 内容分块 Collection Schema
func ContentChunksSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionContentChunks,
		Description:    "Indexed content chunks for grounded answering",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1536",
				},
			},
			{
				Name:     "content_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "locale",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "base_path",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "document_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "parent_document_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "description",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "2048",
				},
			},
			{
				Name:     "url",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				// JSON 数组字符串，如 ["Overview","Eligibility"]
				Name:     "heading_hierarchy",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "2048",
				},
			},
			{
				Name:     "digest",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "html_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "plain_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// ContentChunk 内容分块数据结构
type ContentChunk struct {
	ID                 string    `json:"id"`
	Vector             []float32 `json:"vector"`
	ContentID          string    `json:"content_id"`
	Locale             string    `json:"locale"`
	ChunkIndex         int64     `json:"chunk_index"`
	BasePath           string    `json:"base_path"`
	DocumentType       string    `json:"document_type"`
	ParentDocumentType string    `json:"parent_document_type"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	URL                string    `json:"url"`
	HeadingHierarchy   string    `json:"heading_hierarchy"`
	Digest             string    `json:"digest"`
	HTMLContent        string    `json:"html_content"`
	PlainContent       string    `json:"plain_content"`
}

// chunkOutputFields 检索时返回的标量字段
var chunkOutputFields = []string{
	"id", "content_id", "locale", "chunk_index", "base_path",
	"document_type", "parent_document_type", "title", "description",
	"url", "heading_hierarchy", "digest", "html_content", "plain_content",
}

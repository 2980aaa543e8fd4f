// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数
type SearchParams struct {
	QueryVector []float32
	TopK        int
	Locale      string
}

// SearchResult 检索结果
type SearchResult struct {
	ID     string
	Score  float32
	Fields map[string]interface{}
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// SearchChunks 按查询向量检索内容分块
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(attribute.Int("top_k", params.TopK)))
	defer span.End()

	collName := r.client.CollectionName(CollectionContentChunks)

	filter := ""
	if params.Locale != "" {
		filter = fmt.Sprintf(`locale == "%s"`, params.Locale)
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		chunkOutputFields,
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score:  result.Scores[i],
				Fields: make(map[string]interface{}, len(chunkOutputFields)),
			}

			for _, name := range chunkOutputFields {
				switch col := result.Fields.GetColumn(name).(type) {
				case *entity.ColumnVarChar:
					sr.Fields[name] = col.Data()[i]
				case *entity.ColumnInt64:
					sr.Fields[name] = col.Data()[i]
				}
			}
			if id, ok := sr.Fields["id"].(string); ok {
				sr.ID = id
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertChunks 插入内容分块
func (r *Repository) InsertChunks(ctx context.Context, chunks []*ContentChunk) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(attribute.Int("count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionContentChunks)

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	contentIDs := make([]string, len(chunks))
	locales := make([]string, len(chunks))
	chunkIndexes := make([]int64, len(chunks))
	basePaths := make([]string, len(chunks))
	docTypes := make([]string, len(chunks))
	parentDocTypes := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	descriptions := make([]string, len(chunks))
	urls := make([]string, len(chunks))
	headings := make([]string, len(chunks))
	digests := make([]string, len(chunks))
	htmlContents := make([]string, len(chunks))
	plainContents := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		contentIDs[i] = c.ContentID
		locales[i] = c.Locale
		chunkIndexes[i] = c.ChunkIndex
		basePaths[i] = c.BasePath
		docTypes[i] = c.DocumentType
		parentDocTypes[i] = c.ParentDocumentType
		titles[i] = c.Title
		descriptions[i] = c.Description
		urls[i] = c.URL
		headings[i] = c.HeadingHierarchy
		digests[i] = c.Digest
		htmlContents[i] = c.HTMLContent
		plainContents[i] = c.PlainContent
	}

	_, err := r.client.milvus.Insert(ctx, collName, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", VectorDimension, vectors),
		entity.NewColumnVarChar("content_id", contentIDs),
		entity.NewColumnVarChar("locale", locales),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("base_path", basePaths),
		entity.NewColumnVarChar("document_type", docTypes),
		entity.NewColumnVarChar("parent_document_type", parentDocTypes),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("description", descriptions),
		entity.NewColumnVarChar("url", urls),
		entity.NewColumnVarChar("heading_hierarchy", headings),
		entity.NewColumnVarChar("digest", digests),
		entity.NewColumnVarChar("html_content", htmlContents),
		entity.NewColumnVarChar("plain_content", plainContents),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	return nil
}

// DeleteChunksByContentID 删除同一内容的所有分块
func (r *Repository) DeleteChunksByContentID(ctx context.Context, contentID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteChunksByContentID",
		trace.WithAttributes(attribute.String("content_id", contentID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionContentChunks)
	filter := fmt.Sprintf(`content_id == "%s"`, contentID)

	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// EnsureContentChunksCollection 确保 content_chunks 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureContentChunksCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionContentChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, ContentChunksSchema()); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx, CollectionContentChunks)
	}

	return r.client.LoadCollection(ctx, CollectionContentChunks)
}

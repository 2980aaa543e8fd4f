package retrieval

import (
	"fmt"
	"sort"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/pkg/metrics"
)

// 复合出版物按母文档类型取权重
const documentTypeHTMLPublication = "html_publication"

// Reranker 按文档类型权重对召回结果重排
type Reranker struct {
	config *config.RerankConfig
}

// NewReranker 创建重排器
func NewReranker(cfg *config.Config) *Reranker {
	return &Reranker{config: &cfg.Answer.Rerank}
}

// Rerank 计算加权分并按加权分降序排列。
// 加权分相同的保持输入顺序；低于 MinScore 的进入 Rejected 列表而不是静默丢弃。
func (r *Reranker) Rerank(chunks []*Chunk) *ResultSet {
	weighted := make([]*WeightedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		w := r.weightFor(c)
		weighted = append(weighted, &WeightedChunk{
			Chunk:         c,
			Weight:        w,
			WeightedScore: c.Score * w,
		})
	}

	sort.SliceStable(weighted, func(i, j int) bool {
		return weighted[i].WeightedScore > weighted[j].WeightedScore
	})

	result := &ResultSet{}
	for _, wc := range weighted {
		if r.config.MinScore > 0 && wc.WeightedScore < r.config.MinScore {
			result.Rejected = append(result.Rejected, &RejectedChunk{
				WeightedChunk: wc,
				Reason: fmt.Sprintf("weighted score %.4f below threshold %.4f",
					wc.WeightedScore, r.config.MinScore),
			})
			continue
		}
		result.Accepted = append(result.Accepted, wc)
	}

	result.Metrics = map[string]any{
		"retrieved_count": len(chunks),
		"accepted_count":  len(result.Accepted),
		"rejected_count":  len(result.Rejected),
	}

	metrics.RetrievedChunksTotal.WithLabelValues("accepted").Add(float64(len(result.Accepted)))
	metrics.RetrievedChunksTotal.WithLabelValues("rejected").Add(float64(len(result.Rejected)))
	return result
}

// weightFor 查表取权重；复合出版物用母文档类型，未配置的类型为 1.0
func (r *Reranker) weightFor(c *Chunk) float64 {
	docType := c.DocumentType
	if docType == documentTypeHTMLPublication && c.ParentDocumentType != "" {
		docType = c.ParentDocumentType
	}
	if w, ok := r.config.Weights[docType]; ok {
		return w
	}
	return 1.0
}

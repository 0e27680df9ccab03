package store

import (
	"context"
	"sort"

	"github.com/kart-io/nphies-rag/internal/model"
)

// Entry 表示一个待写入的文档块及其向量。
type Entry struct {
	// Chunk 文档块。
	Chunk model.Chunk
	// Embedding 嵌入向量。
	Embedding []float32
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// Reset 清空存储并按给定维度重新准备。
	Reset(ctx context.Context, dimension int) error

	// Insert 批量写入文档块。
	Insert(ctx context.Context, entries []Entry) error

	// Search 返回距离最近的 topK 个文档块，距离升序，距离相同时偏移小者优先。
	Search(ctx context.Context, embedding []float32, topK int) ([]model.Hit, error)

	// Count 返回已写入的文档块数量。
	Count(ctx context.Context) (int64, error)

	// Name 返回存储后端名称。
	Name() string

	// Close 关闭连接。
	Close(ctx context.Context) error
}

// sortHits 按 (距离, 偏移) 升序排序。
func sortHits(hits []model.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Chunk.SourceOffset < hits[j].Chunk.SourceOffset
	})
}

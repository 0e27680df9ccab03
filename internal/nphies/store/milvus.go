package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/pkg/component/milvus"
)

// BackendMilvus Milvus 存储后端名称。
const BackendMilvus = "milvus"

// searchSlack 额外请求的结果数，用于在第 topK 名同分时选出偏移最小的块。
const searchSlack = 16

// milvusClient 是 MilvusStore 依赖的客户端能力。
type milvusClient interface {
	RecreateCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	InsertChunks(ctx context.Context, collectionName string, rows []milvus.ChunkRow) error
	SearchChunks(ctx context.Context, collectionName string, vector []float32, topK int) ([]milvus.ChunkHit, error)
	Count(ctx context.Context, collectionName string) (int64, error)
	Close(ctx context.Context) error
}

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client     milvusClient
	collection string
	textMaxLen int
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。textMaxLen 为块文本的最大 rune 数。
func NewMilvusStore(client *milvus.Client, collection string, textMaxLen int) *MilvusStore {
	return newMilvusStore(client, collection, textMaxLen)
}

func newMilvusStore(client milvusClient, collection string, textMaxLen int) *MilvusStore {
	return &MilvusStore{client: client, collection: collection, textMaxLen: textMaxLen}
}

// Name 返回存储后端名称。
func (s *MilvusStore) Name() string {
	return BackendMilvus
}

// Reset 重建集合。
func (s *MilvusStore) Reset(ctx context.Context, dimension int) error {
	// VARCHAR 长度按字节计算，每个 rune 最多 4 字节
	return s.client.RecreateCollection(ctx, &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "NPHIES knowledge base chunks",
		Dimension:   dimension,
		TextMaxLen:  s.textMaxLen * utf8.UTFMax,
	})
}

// Insert 批量写入文档块到 Milvus。
func (s *MilvusStore) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]milvus.ChunkRow, len(entries))
	for i, e := range entries {
		rows[i] = milvus.ChunkRow{
			Text:      e.Chunk.Text,
			Offset:    int64(e.Chunk.SourceOffset),
			Embedding: e.Embedding,
		}
	}
	if err := s.client.InsertChunks(ctx, s.collection, rows); err != nil {
		return fmt.Errorf("milvus 写入失败: %w", err)
	}
	return nil
}

// Search 在 Milvus 中检索并把相似度转换为余弦距离。
func (s *MilvusStore) Search(ctx context.Context, embedding []float32, topK int) ([]model.Hit, error) {
	if topK <= 0 {
		return []model.Hit{}, nil
	}

	results, err := s.client.SearchChunks(ctx, s.collection, embedding, topK+searchSlack)
	if err != nil {
		return nil, fmt.Errorf("milvus 检索失败: %w", err)
	}

	hits := make([]model.Hit, len(results))
	for i, r := range results {
		hits[i] = model.Hit{
			Chunk:    model.Chunk{Text: r.Text, SourceOffset: int(r.Offset)},
			Distance: 1 - float64(r.Score),
		}
	}
	// Milvus 不保证同分结果的顺序
	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count 返回集合中的实体数量。
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	return s.client.Count(ctx, s.collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

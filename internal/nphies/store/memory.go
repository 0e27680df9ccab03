package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/pkg/textutil"
)

// BackendMemory 内存存储后端名称。
const BackendMemory = "memory"

// MemoryStore 在进程内保存全部向量，检索时做精确的余弦距离扫描。
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Name 返回存储后端名称。
func (s *MemoryStore) Name() string {
	return BackendMemory
}

// Reset 清空存储。
func (s *MemoryStore) Reset(_ context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = nil
	return nil
}

// Insert 写入文档块，存储内始终按偏移升序排列。
func (s *MemoryStore) Insert(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range entries {
		if s.dimension == 0 {
			s.dimension = len(e.Embedding)
		}
		if len(e.Embedding) != s.dimension {
			return fmt.Errorf("entry %d has dimension %d, want %d", i, len(e.Embedding), s.dimension)
		}
	}

	s.entries = append(s.entries, entries...)
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Chunk.SourceOffset < s.entries[j].Chunk.SourceOffset
	})
	return nil
}

// Search 精确扫描全部向量。
func (s *MemoryStore) Search(_ context.Context, embedding []float32, topK int) ([]model.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.entries) == 0 {
		return []model.Hit{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(embedding), s.dimension)
	}

	hits := make([]model.Hit, len(s.entries))
	for i, e := range s.entries {
		hits[i] = model.Hit{
			Chunk:    e.Chunk,
			Distance: textutil.CosineDistance(embedding, e.Embedding),
		}
	}
	sortHits(hits)

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count 返回已写入的文档块数量。
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close 释放内存。
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

package biz

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/pkg/textutil"
)

// LoadCorpus 读取知识库全文。文件不存在时返回 *CorpusNotFoundError。
func LoadCorpus(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &CorpusNotFoundError{Path: path, Err: err}
		}
		return "", fmt.Errorf("read corpus %s: %w", path, err)
	}

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return text, nil
}

// Splitter 按 rune 滑动窗口切分文本。
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewSplitter 创建切分器。
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split 返回按偏移升序排列的块。
func (s *Splitter) Split(text string) []model.Chunk {
	spans := textutil.SplitIntoChunks(text, s.ChunkSize, s.ChunkOverlap)
	chunks := make([]model.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = model.Chunk{Text: sp.Text, SourceOffset: sp.Offset}
	}
	return chunks
}

package biz

import "fmt"

// CorpusNotFoundError 知识库文件不存在。
type CorpusNotFoundError struct {
	Path string
	Err  error
}

func (e *CorpusNotFoundError) Error() string {
	return fmt.Sprintf("corpus file %q not found", e.Path)
}

func (e *CorpusNotFoundError) Unwrap() error {
	return e.Err
}

// IndexBuildError 索引构建失败，Cause 为底层原因。
type IndexBuildError struct {
	Cause error
}

func (e *IndexBuildError) Error() string {
	return "index build failed: " + e.Cause.Error()
}

func (e *IndexBuildError) Unwrap() error {
	return e.Cause
}

// EmbeddingError 问题向量化失败。
type EmbeddingError struct {
	Cause error
}

func (e *EmbeddingError) Error() string {
	return "query embedding failed: " + e.Cause.Error()
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// GenerationError 生成模型调用失败。
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return "answer generation failed: " + e.Cause.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Package nphies provides retrieval pipeline options.
package nphies

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Index backends.
const (
	BackendMemory = "memory"
	BackendMilvus = "milvus"
)

// Options 检索流水线配置。
type Options struct {
	// CorpusPath 知识库文本文件路径。
	CorpusPath string `json:"corpus-path" mapstructure:"corpus-path"`

	// ChunkSize 分块长度（按字符计）。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块重叠长度。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK 每次检索返回的分块数量。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// DefaultLanguage 请求未指定语言时使用的语言。
	DefaultLanguage string `json:"default-language" mapstructure:"default-language"`

	// BuildWorkers 构建索引时并发嵌入的协程数。
	BuildWorkers int `json:"build-workers" mapstructure:"build-workers"`

	// BuildBatchSize 每批嵌入的分块数量。
	BuildBatchSize int `json:"build-batch-size" mapstructure:"build-batch-size"`

	// QueryTimeout 单次查询的超时时间，0 表示不限制。
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// BuildTimeout 索引构建的超时时间，与查询超时无关，0 表示不限制。
	BuildTimeout time.Duration `json:"build-timeout" mapstructure:"build-timeout"`

	// IndexBackend 向量索引后端（memory, milvus）。
	IndexBackend string `json:"index-backend" mapstructure:"index-backend"`

	// WatchCorpus 是否监听知识库文件变更。
	WatchCorpus bool `json:"watch-corpus" mapstructure:"watch-corpus"`
}

// NewOptions 创建默认检索配置。
func NewOptions() *Options {
	return &Options{
		CorpusPath:      "Nphies Q-A.txt",
		ChunkSize:       1000,
		ChunkOverlap:    200,
		TopK:            3,
		DefaultLanguage: "English",
		BuildWorkers:    4,
		BuildBatchSize:  32,
		QueryTimeout:    60 * time.Second,
		BuildTimeout:    10 * time.Minute,
		IndexBackend:    BackendMemory,
		WatchCorpus:     true,
	}
}

// AddFlags adds flags for retrieval options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "nphies")...)

	fs.StringVar(&o.CorpusPath, p+"corpus-path", o.CorpusPath, "Path of the NPHIES Q&A knowledge file.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Chunk length in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks in characters.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per query.")
	fs.StringVar(&o.DefaultLanguage, p+"default-language", o.DefaultLanguage, "Answer language when a request names none (English, Arabic).")
	fs.IntVar(&o.BuildWorkers, p+"build-workers", o.BuildWorkers, "Concurrent embedding workers during index build.")
	fs.IntVar(&o.BuildBatchSize, p+"build-batch-size", o.BuildBatchSize, "Chunks embedded per batch during index build.")
	fs.DurationVar(&o.QueryTimeout, p+"query-timeout", o.QueryTimeout, "Per-query deadline (0 disables).")
	fs.DurationVar(&o.BuildTimeout, p+"build-timeout", o.BuildTimeout, "Deadline of the one-time index build, independent of query deadlines (0 disables).")
	fs.StringVar(&o.IndexBackend, p+"index-backend", o.IndexBackend, "Vector index backend (memory, milvus).")
	fs.BoolVar(&o.WatchCorpus, p+"watch-corpus", o.WatchCorpus, "Report corpus changes made after the index was built.")
}

// Validate validates the retrieval options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.CorpusPath == "" {
		errs = append(errs, fmt.Errorf("nphies.corpus-path is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("nphies.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("nphies.chunk-overlap must be within [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("nphies.top-k must be positive"))
	}
	if _, err := model.ParseLanguage(o.DefaultLanguage); err != nil {
		errs = append(errs, fmt.Errorf("nphies.default-language: %w", err))
	}
	if o.BuildWorkers <= 0 {
		errs = append(errs, fmt.Errorf("nphies.build-workers must be positive"))
	}
	if o.BuildBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("nphies.build-batch-size must be positive"))
	}
	if o.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("nphies.query-timeout must not be negative"))
	}
	if o.BuildTimeout < 0 {
		errs = append(errs, fmt.Errorf("nphies.build-timeout must not be negative"))
	}
	switch o.IndexBackend {
	case BackendMemory, BackendMilvus:
	default:
		errs = append(errs, fmt.Errorf("nphies.index-backend %q is not memory or milvus", o.IndexBackend))
	}
	return errs
}

// Complete completes the retrieval options with defaults.
func (o *Options) Complete() error {
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = string(model.LanguageEnglish)
	}
	if lang, err := model.ParseLanguage(o.DefaultLanguage); err == nil {
		o.DefaultLanguage = string(lang)
	}
	if o.IndexBackend == "" {
		o.IndexBackend = BackendMemory
	}
	return nil
}

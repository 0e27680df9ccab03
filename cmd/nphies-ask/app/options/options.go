// Package options contains flags and options for the NPHIES command line client.
package options

import (
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/nphies-rag/internal/model"
	nphiessvc "github.com/kart-io/nphies-rag/internal/nphies"
	cliflag "github.com/kart-io/nphies-rag/pkg/app/cliflag"
	cacheopts "github.com/kart-io/nphies-rag/pkg/options/cache"
	llmopts "github.com/kart-io/nphies-rag/pkg/options/llm"
	logopts "github.com/kart-io/nphies-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/nphies-rag/pkg/options/milvus"
	nphiesopts "github.com/kart-io/nphies-rag/pkg/options/nphies"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// AskOptions contains the configuration options for a single question.
type AskOptions struct {
	// Question is the question to answer.
	Question string `json:"question" mapstructure:"question"`

	// Language is the answer language. Empty means the nphies default.
	Language string `json:"language" mapstructure:"language"`

	// Output is the output format (text, json).
	Output string `json:"output" mapstructure:"output"`

	// ShowSources prints the retrieved chunks after the answer.
	ShowSources bool `json:"show-sources" mapstructure:"show-sources"`

	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	MilvusOptions    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	NphiesOptions    *nphiesopts.Options      `json:"nphies" mapstructure:"nphies"`
	CacheOptions     *cacheopts.Options       `json:"cache" mapstructure:"cache"`
}

// NewAskOptions creates an AskOptions instance with default values.
func NewAskOptions() *AskOptions {
	logOpts := logopts.NewOptions()
	logOpts.Level = "ERROR"

	nphiesOpts := nphiesopts.NewOptions()
	nphiesOpts.WatchCorpus = false

	return &AskOptions{
		Output:           OutputText,
		LogOptions:       logOpts,
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		NphiesOptions:    nphiesOpts,
		CacheOptions:     cacheopts.NewOptions(),
	}
}

// Flags returns flags grouped by section name.
func (o *AskOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("ask")
	fs.StringVarP(&o.Question, "question", "q", o.Question, "Question to answer.")
	fs.StringVarP(&o.Language, "language", "l", o.Language, "Answer language (English, Arabic). Defaults to --nphies.default-language.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format (text, json).")
	fs.BoolVar(&o.ShowSources, "show-sources", o.ShowSources, "Print the retrieved knowledge chunks.")

	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.NphiesOptions.AddFlags(fss.FlagSet("nphies"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))

	return fss
}

// Complete completes all the required options.
func (o *AskOptions) Complete() error {
	if o.Output == "" {
		o.Output = OutputText
	}
	if strings.TrimSpace(o.Language) == "" {
		o.Language = o.NphiesOptions.DefaultLanguage
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.NphiesOptions.Complete(); err != nil {
		return fmt.Errorf("nphies: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options are valid. An empty question is
// allowed and answered with the localized prompt to enter one.
func (o *AskOptions) Validate() error {
	errs := []error{}

	if _, err := model.ParseLanguage(o.Language); err != nil {
		errs = append(errs, err)
	}
	switch o.Output {
	case OutputText, OutputJSON:
	default:
		errs = append(errs, fmt.Errorf("output %q is not text or json", o.Output))
	}
	errs = append(errs, o.LogOptions.Validate()...)
	if o.NphiesOptions.IndexBackend == nphiesopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.NphiesOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a nphiessvc.Config based on AskOptions.
func (o *AskOptions) Config() *nphiessvc.Config {
	return &nphiessvc.Config{
		LogOptions:       o.LogOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		NphiesOptions:    o.NphiesOptions,
		CacheOptions:     o.CacheOptions,
	}
}

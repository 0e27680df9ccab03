package nphies

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	assert.Equal(t, "Nphies Q-A.txt", o.CorpusPath)
	assert.Equal(t, 1000, o.ChunkSize)
	assert.Equal(t, 200, o.ChunkOverlap)
	assert.Equal(t, 3, o.TopK)
	assert.Empty(t, o.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty corpus path", func(o *Options) { o.CorpusPath = "" }},
		{"zero chunk size", func(o *Options) { o.ChunkSize = 0; o.ChunkOverlap = 0 }},
		{"overlap equals size", func(o *Options) { o.ChunkOverlap = o.ChunkSize }},
		{"negative overlap", func(o *Options) { o.ChunkOverlap = -1 }},
		{"zero top-k", func(o *Options) { o.TopK = 0 }},
		{"unknown language", func(o *Options) { o.DefaultLanguage = "French" }},
		{"unknown backend", func(o *Options) { o.IndexBackend = "faiss" }},
		{"negative timeout", func(o *Options) { o.QueryTimeout = -1 }},
		{"negative build timeout", func(o *Options) { o.BuildTimeout = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.NotEmpty(t, o.Validate())
		})
	}
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--nphies.top-k=5", "--nphies.index-backend=milvus"}))
	assert.Equal(t, 5, o.TopK)
	assert.Equal(t, BackendMilvus, o.IndexBackend)
}

func TestDefaultLanguageSpellings(t *testing.T) {
	for _, raw := range []string{"English", "english", "en", "Arabic", "AR", " ar "} {
		t.Run(raw, func(t *testing.T) {
			o := NewOptions()
			o.DefaultLanguage = raw
			assert.Empty(t, o.Validate())
			require.NoError(t, o.Complete())
			assert.Contains(t, []string{"English", "Arabic"}, o.DefaultLanguage)
		})
	}
}

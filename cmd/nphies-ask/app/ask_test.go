package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/nphies-rag/cmd/nphies-ask/app/options"
	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/biz"
)

type fakeService struct {
	answer *model.Answer
	err    error

	query string
	lang  model.Language
}

func (f *fakeService) Answer(_ context.Context, query string, lang model.Language) (*model.Answer, error) {
	f.query, f.lang = query, lang
	return f.answer, f.err
}

func (f *fakeService) Stats(context.Context) (*biz.Stats, error) {
	return &biz.Stats{}, nil
}

func (f *fakeService) Health() biz.IndexInfo {
	return biz.IndexInfo{}
}

func (f *fakeService) ClearCache(context.Context) (int, error) {
	return 0, nil
}

func (f *fakeService) Welcome(model.Language) model.Greeting {
	return model.Greeting{}
}

func newAnswer() *model.Answer {
	return &model.Answer{
		Text:     "Submit the claim through the portal.",
		Language: model.LanguageEnglish,
		Sources: []model.ChunkSource{
			{SourceOffset: 800, Distance: 0.125, Preview: "Claims are submitted"},
		},
	}
}

func TestAskText(t *testing.T) {
	svc := &fakeService{answer: newAnswer()}
	opts := options.NewAskOptions()
	opts.Question = "How do I submit a claim?"
	opts.Language = "ar"

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), svc, opts, &out))

	assert.Equal(t, "Submit the claim through the portal.\n", out.String())
	assert.Equal(t, "How do I submit a claim?", svc.query)
	assert.Equal(t, model.LanguageArabic, svc.lang)
}

func TestAskShowSources(t *testing.T) {
	opts := options.NewAskOptions()
	opts.Language = "English"
	opts.ShowSources = true

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), &fakeService{answer: newAnswer()}, opts, &out))

	assert.Contains(t, out.String(), "[1] offset=800 distance=0.1250\nClaims are submitted\n")
}

func TestAskJSON(t *testing.T) {
	opts := options.NewAskOptions()
	opts.Language = "English"
	opts.Output = options.OutputJSON

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), &fakeService{answer: newAnswer()}, opts, &out))

	assert.Contains(t, out.String(), `"answer":"Submit the claim through the portal."`)
	assert.Contains(t, out.String(), `"source_offset":800`)
}

func TestAskError(t *testing.T) {
	opts := options.NewAskOptions()
	opts.Language = "English"
	cause := &biz.GenerationError{Cause: errors.New("upstream down")}

	var out bytes.Buffer
	err := ask(context.Background(), &fakeService{err: cause}, opts, &out)

	var genErr *biz.GenerationError
	assert.ErrorAs(t, err, &genErr)
	assert.Empty(t, out.String())
}

func TestAskUnsupportedLanguage(t *testing.T) {
	opts := options.NewAskOptions()
	opts.Language = "French"

	err := ask(context.Background(), &fakeService{answer: newAnswer()}, opts, &bytes.Buffer{})
	assert.Error(t, err)
}

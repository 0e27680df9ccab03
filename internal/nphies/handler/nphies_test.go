package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/biz"
	"github.com/kart-io/nphies-rag/internal/nphies/handler"
	"github.com/kart-io/nphies-rag/internal/nphies/router"
	"github.com/kart-io/nphies-rag/pkg/infra/middleware"
	apierrors "github.com/kart-io/nphies-rag/pkg/utils/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	answer   *model.Answer
	err      error
	block    bool
	status   biz.IndexStatus
	statsErr error
	clearErr error
	cleared  int
	gotQuery string
	gotLang  model.Language
}

func (f *fakeService) Answer(ctx context.Context, query string, lang model.Language) (*model.Answer, error) {
	f.gotQuery, f.gotLang = query, lang
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.answer, f.err
}

func (f *fakeService) Stats(context.Context) (*biz.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &biz.Stats{Index: f.Health(), TopK: 3}, nil
}

func (f *fakeService) Health() biz.IndexInfo {
	status := f.status
	if status == "" {
		status = biz.StatusReady
	}
	return biz.IndexInfo{Status: status, Chunks: 2, LastError: "boom"}
}

func (f *fakeService) ClearCache(context.Context) (int, error) {
	return f.cleared, f.clearErr
}

func (f *fakeService) Welcome(lang model.Language) model.Greeting {
	return biz.Welcome(lang)
}

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

func newEngine(svc biz.Service, timeout time.Duration) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	h := handler.NewNphiesHandler(svc, model.LanguageEnglish, timeout)
	router.Register(engine, h, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("nphies_queries_total 1\n"))
	}))
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestAnswer(t *testing.T) {
	svc := &fakeService{answer: &model.Answer{
		Text:     "A national platform.",
		Language: model.LanguageArabic,
		Sources:  []model.ChunkSource{{SourceOffset: 0, Distance: 0.1, Preview: "Q:"}},
	}}
	engine := newEngine(svc, time.Second)

	rec, env := do(t, engine, http.MethodPost, "/v1/nphies/answer", `{"question":"What is NPHIES?","language":"ar"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, model.LanguageArabic, svc.gotLang)
	assert.Equal(t, "What is NPHIES?", svc.gotQuery)

	var data handler.AnswerResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "A national platform.", data.Answer)
	assert.False(t, data.Canned)
	assert.Len(t, data.Sources, 1)
}

func TestAnswerDefaultsLanguage(t *testing.T) {
	svc := &fakeService{answer: &model.Answer{Text: "⚠️ Please enter a question.", Language: model.LanguageEnglish, Canned: true, Reason: model.ReasonEmptyQuery}}
	engine := newEngine(svc, time.Second)

	rec, env := do(t, engine, http.MethodPost, "/v1/nphies/answer", `{"question":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.LanguageEnglish, svc.gotLang)

	var data handler.AnswerResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Canned)
	assert.Equal(t, model.ReasonEmptyQuery, data.Reason)
	assert.NotNil(t, data.Sources)
}

func TestAnswerLanguageSpellings(t *testing.T) {
	for _, raw := range []string{"Arabic", "arabic", "AR", " ar "} {
		svc := &fakeService{answer: &model.Answer{Text: "ok", Language: model.LanguageArabic}}
		engine := newEngine(svc, time.Second)

		rec, _ := do(t, engine, http.MethodPost, "/v1/nphies/answer", `{"question":"q","language":"`+raw+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, raw)
		assert.Equal(t, model.LanguageArabic, svc.gotLang, raw)
	}
}

func TestAnswerInvalidRequest(t *testing.T) {
	engine := newEngine(&fakeService{}, time.Second)

	rec, env := do(t, engine, http.MethodPost, "/v1/nphies/answer", `{"question":"x","language":"French"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesUnsupportedLanguage.Code, env.Code)

	rec, env = do(t, engine, http.MethodPost, "/v1/nphies/answer", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesInvalidRequest.Code, env.Code)
}

func TestAnswerErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     int
		message  string
		language string
	}{
		{
			name:     "index build",
			err:      &biz.IndexBuildError{Cause: errors.New("down")},
			status:   http.StatusInternalServerError,
			code:     apierrors.ErrNphiesIndexBuild.Code,
			message:  "فشل بناء فهرس قاعدة المعرفة",
			language: "Arabic",
		},
		{
			name:     "embedding",
			err:      &biz.EmbeddingError{Cause: errors.New("quota")},
			status:   http.StatusInternalServerError,
			code:     apierrors.ErrNphiesEmbedding.Code,
			message:  "Query embedding failed",
			language: "English",
		},
		{
			name:     "generation",
			err:      &biz.GenerationError{Cause: errors.New("overloaded")},
			status:   http.StatusBadGateway,
			code:     apierrors.ErrNphiesGeneration.Code,
			message:  "Answer generation failed",
			language: "English",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newEngine(&fakeService{err: tt.err}, time.Second)
			rec, env := do(t, engine, http.MethodPost, "/v1/nphies/answer", `{"question":"q","language":"`+tt.language+`"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

func TestAnswerTimeout(t *testing.T) {
	engine := newEngine(&fakeService{block: true}, 20*time.Millisecond)

	rec, env := do(t, engine, http.MethodPost, "/v1/nphies/answer", `{"question":"q"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesQueryTimeout.Code, env.Code)
}

func TestWelcome(t *testing.T) {
	engine := newEngine(&fakeService{}, time.Second)

	rec, env := do(t, engine, http.MethodGet, "/v1/nphies/welcome?language=Arabic", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var greeting model.Greeting
	require.NoError(t, json.Unmarshal(env.Data, &greeting))
	assert.Equal(t, "🏥 مساعد نفيس", greeting.Title)

	rec, env = do(t, engine, http.MethodGet, "/v1/nphies/welcome", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &greeting))
	assert.Equal(t, "🏥 NPHIES Chat Assistant", greeting.Title)

	rec, env = do(t, engine, http.MethodGet, "/v1/nphies/welcome?language=fr", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesUnsupportedLanguage.Code, env.Code)
}

func TestStatsAndHealth(t *testing.T) {
	engine := newEngine(&fakeService{}, time.Second)

	rec, env := do(t, engine, http.MethodGet, "/v1/nphies/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats biz.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.Index.Chunks)

	rec, _ = do(t, engine, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	failed := newEngine(&fakeService{status: biz.StatusBuildFailed}, time.Second)
	rec, env = do(t, failed, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesUnavailable.Code, env.Code)
}

func TestHealthzIgnoresStatsFailure(t *testing.T) {
	svc := &fakeService{status: biz.StatusBuildFailed, statsErr: errors.New("redis down")}
	engine := newEngine(svc, time.Second)

	rec, env := do(t, engine, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesUnavailable.Code, env.Code)

	rec, env = do(t, engine, http.MethodGet, "/v1/nphies/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesStats.Code, env.Code)
}

func TestClearCache(t *testing.T) {
	engine := newEngine(&fakeService{cleared: 4}, time.Second)

	rec, env := do(t, engine, http.MethodDelete, "/v1/nphies/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 4, data.Deleted)

	failing := newEngine(&fakeService{clearErr: errors.New("scan failed")}, time.Second)
	rec, env = do(t, failing, http.MethodDelete, "/v1/nphies/cache", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierrors.ErrNphiesCacheClear.Code, env.Code)
}

func TestMetricsRoute(t *testing.T) {
	engine := newEngine(&fakeService{}, time.Second)

	rec, _ := do(t, engine, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nphies_queries_total")
}

// Package handler provides HTTP handlers for the NPHIES assistant.
package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/biz"
	apierrors "github.com/kart-io/nphies-rag/pkg/utils/errors"
	"github.com/kart-io/nphies-rag/pkg/utils/response"
)

// NphiesHandler handles NPHIES HTTP requests.
type NphiesHandler struct {
	service         biz.Service
	defaultLanguage model.Language
	queryTimeout    time.Duration
}

// NewNphiesHandler creates a new NphiesHandler. A zero queryTimeout leaves
// queries bounded only by the client connection.
func NewNphiesHandler(service biz.Service, defaultLanguage model.Language, queryTimeout time.Duration) *NphiesHandler {
	registerValidations()
	return &NphiesHandler{
		service:         service,
		defaultLanguage: defaultLanguage,
		queryTimeout:    queryTimeout,
	}
}

// AnswerRequest represents an answer request. An empty question is answered
// with the localized prompt to enter one.
type AnswerRequest struct {
	Question string `json:"question" binding:"max=4000"`
	Language string `json:"language" binding:"omitempty,nphies_language"`
}

// AnswerResponse is the payload of a successful answer.
type AnswerResponse struct {
	Answer   string              `json:"answer"`
	Language model.Language      `json:"language"`
	Canned   bool                `json:"canned"`
	Reason   model.CannedReason  `json:"reason,omitempty"`
	Sources  []model.ChunkSource `json:"sources"`
}

// Answer answers a question against the knowledge base.
func (h *NphiesHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isLanguageError(err) {
			response.Fail(c, apierrors.ErrNphiesUnsupportedLanguage.WithCause(err), h.requestLang(c, "").Code())
			return
		}
		response.Fail(c, apierrors.ErrNphiesInvalidRequest.WithCause(err), h.requestLang(c, req.Language).Code())
		return
	}

	lang, err := h.resolveLanguage(req.Language)
	if err != nil {
		response.Fail(c, apierrors.ErrNphiesUnsupportedLanguage.WithCause(err), h.defaultLanguage.Code())
		return
	}

	// 查询超时控制
	ctx := c.Request.Context()
	if h.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryTimeout)
		defer cancel()
	}

	answer, err := h.service.Answer(ctx, req.Question, lang)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			response.Fail(c, apierrors.ErrNphiesQueryTimeout.WithCause(err), lang.Code())
			return
		}
		response.Fail(c, toErrno(err), lang.Code())
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []model.ChunkSource{}
	}
	response.OK(c, AnswerResponse{
		Answer:   answer.Text,
		Language: answer.Language,
		Canned:   answer.Canned,
		Reason:   answer.Reason,
		Sources:  sources,
	})
}

// Stats returns index, cache and query statistics.
func (h *NphiesHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, apierrors.ErrNphiesStats.WithCause(err), h.defaultLanguage.Code())
		return
	}
	response.OK(c, stats)
}

// Welcome returns the localized chat UI strings.
func (h *NphiesHandler) Welcome(c *gin.Context) {
	lang, err := h.resolveLanguage(c.Query("language"))
	if err != nil {
		response.Fail(c, apierrors.ErrNphiesUnsupportedLanguage.WithCause(err), h.defaultLanguage.Code())
		return
	}
	response.OK(c, h.service.Welcome(lang))
}

// ClearCache drops every cached answer.
func (h *NphiesHandler) ClearCache(c *gin.Context) {
	deleted, err := h.service.ClearCache(c.Request.Context())
	if err != nil {
		response.Fail(c, apierrors.ErrNphiesCacheClear.WithCause(err), h.defaultLanguage.Code())
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

// Healthz reports whether the service can answer. A failed index build is
// terminal for the process and reported as unavailable.
func (h *NphiesHandler) Healthz(c *gin.Context) {
	info := h.service.Health()
	if info.Status == biz.StatusBuildFailed {
		response.Fail(c, apierrors.ErrNphiesUnavailable.WithCause(errors.New(info.LastError)), h.defaultLanguage.Code())
		return
	}
	response.OK(c, gin.H{"status": "ok", "index": info.Status})
}

func (h *NphiesHandler) resolveLanguage(raw string) (model.Language, error) {
	if raw == "" {
		return h.defaultLanguage, nil
	}
	return model.ParseLanguage(raw)
}

// requestLang picks the language for an error message before the request is
// fully validated.
func (h *NphiesHandler) requestLang(c *gin.Context, raw string) model.Language {
	if lang, err := model.ParseLanguage(raw); err == nil {
		return lang
	}
	primary, _, _ := strings.Cut(c.GetHeader("Accept-Language"), ",")
	primary, _, _ = strings.Cut(primary, "-")
	if lang, err := model.ParseLanguage(primary); err == nil {
		return lang
	}
	return h.defaultLanguage
}

// toErrno maps pipeline errors to API error codes.
func toErrno(err error) *apierrors.Errno {
	var (
		buildErr *biz.IndexBuildError
		embedErr *biz.EmbeddingError
		genErr   *biz.GenerationError
	)
	switch {
	case errors.As(err, &buildErr):
		return apierrors.ErrNphiesIndexBuild.WithCause(err)
	case errors.As(err, &embedErr):
		return apierrors.ErrNphiesEmbedding.WithCause(err)
	case errors.As(err, &genErr):
		return apierrors.ErrNphiesGeneration.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.ErrNphiesQueryTimeout.WithCause(err)
	}
	return apierrors.FromError(err)
}

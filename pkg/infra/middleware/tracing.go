package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/nphies-rag/pkg/infra/middleware/common"
	"github.com/kart-io/nphies-rag/pkg/infra/tracing"
)

// Tracing returns a middleware that continues the caller's W3C trace
// context and wraps each request in a server span. Requests to skipPaths
// are not traced.
func Tracing(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracing.StartServerSpan(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			tracing.String("http.method", c.Request.Method),
			tracing.String("http.route", route),
			tracing.String("http.target", c.Request.URL.Path),
			tracing.String("http.request_id", common.GetRequestID(c.Request.Context())),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(tracing.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

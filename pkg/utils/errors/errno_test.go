package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCodeAndParse(t *testing.T) {
	code := MakeCode(ServiceNphies, CategoryInternal, 1)
	assert.Equal(t, 2107001, code)

	service, category, seq := ParseCode(code)
	assert.Equal(t, ServiceNphies, service)
	assert.Equal(t, CategoryInternal, category)
	assert.Equal(t, 1, seq)

	assert.True(t, IsServerError(code))
	assert.False(t, IsClientError(code))
	assert.True(t, IsClientError(ErrNphiesInvalidRequest.Code))
}

func TestErrnoMessageByLanguage(t *testing.T) {
	assert.Equal(t, "Answer generation failed", ErrNphiesGeneration.Message("en"))
	assert.Equal(t, "فشل توليد الإجابة", ErrNphiesGeneration.Message("Arabic"))
	assert.Equal(t, "فشل توليد الإجابة", ErrNphiesGeneration.Message("ar"))

	noArabic := New(9999999, http.StatusTeapot, codes.Unknown, "only english", "")
	assert.Equal(t, "only english", noArabic.Message("ar"))
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrNphiesGeneration.WithCause(cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrNphiesGeneration))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, ErrNphiesGeneration.Unwrap(), "WithCause must not mutate the registered errno")
}

func TestErrnoStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, ErrNphiesGeneration.HTTPStatus())
	assert.Equal(t, codes.DeadlineExceeded, ErrNphiesQueryTimeout.GRPCStatus())

	zero := &Errno{Code: 1}
	assert.Equal(t, http.StatusInternalServerError, zero.HTTPStatus())
	assert.Equal(t, codes.Internal, zero.GRPCStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("handler: %w", ErrNphiesIndexBuild.WithCause(stderrors.New("boom")))
	e := FromError(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, ErrNphiesIndexBuild.Code, e.Code)
	assert.True(t, IsCode(wrapped, ErrNphiesIndexBuild.Code))
	assert.Equal(t, ErrNphiesIndexBuild.Code, GetCode(wrapped))

	plain := FromError(stderrors.New("plain"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, -1, GetCode(stderrors.New("plain")))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrNphiesStats.Code, 500, codes.Internal, "dup", ""))
	})

	e, ok := Lookup(ErrNphiesStats.Code)
	require.True(t, ok)
	assert.Equal(t, "Statistics unavailable", e.MessageEN)
	assert.Greater(t, RegistrySize(), 10)
}

func TestErrnoFormat(t *testing.T) {
	s := fmt.Sprintf("%+v", ErrNphiesUnsupportedLanguage.WithCause(stderrors.New("French")))
	assert.Contains(t, s, "HTTP 400")
	assert.Contains(t, s, "اللغة غير مدعومة")
	assert.Contains(t, s, "caused by: French")
}

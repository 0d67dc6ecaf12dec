package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusBadRequest,
		KindAuthRequired:      http.StatusUnauthorized,
		KindForbidden:         http.StatusForbidden,
		KindNotFound:          http.StatusNotFound,
		KindProductNotFound:   http.StatusBadRequest,
		KindInsufficientStock: http.StatusConflict,
		KindConflict:          http.StatusConflict,
		KindRateLimited:       http.StatusTooManyRequests,
		KindInternal:          http.StatusInternalServerError,
		Kind("bogus"):         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, New(kind, "x").Status(), kind)
	}
}

func TestFrom_WrappedAppError(t *testing.T) {
	err := errors.Wrap(NotFound("product"), "load")
	got := From(err)
	assert.Equal(t, KindNotFound, got.Kind)
	assert.Equal(t, "product not found", got.Message)
}

func TestFrom_UnknownIsInternal(t *testing.T) {
	cause := errors.New("connection reset")
	got := From(cause)
	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "internal server error", got.Message)
	assert.ErrorIs(t, got, cause)
	assert.NotContains(t, got.Body().Error.Message, "connection reset")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindForbidden, KindOf(Forbidden()))
}

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "checkout-service/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWrap_MatchesKind(t *testing.T) {
	cause := fmt.Errorf("signature mismatch")
	err := apperrors.Wrap(apperrors.ErrAuthentication, cause)

	assert.True(t, stderrors.Is(err, apperrors.ErrAuthentication))
	assert.False(t, stderrors.Is(err, apperrors.ErrReconciliation))
	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestWrap_DoesNotMutateKind(t *testing.T) {
	_ = apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("boom"))
	assert.Nil(t, apperrors.ErrInvalidInput.Err)
}

func errorRouter(err error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(err)
	})
	return r
}

func TestErrorMiddleware_ClientErrorCarriesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	errorRouter(apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("bad qty"))).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid input")
	assert.Contains(t, w.Body.String(), "bad qty")
}

func TestErrorMiddleware_ServerErrorIsGeneric(t *testing.T) {
	w := httptest.NewRecorder()
	errorRouter(fmt.Errorf("checkout: %w", apperrors.Wrap(apperrors.ErrSessionCreationFailed, fmt.Errorf("sk_live_secret rejected")))).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Checkout session creation failed")
	assert.NotContains(t, w.Body.String(), "sk_live_secret")
}

func TestErrorMiddleware_UnknownErrorIs500(t *testing.T) {
	w := httptest.NewRecorder()
	errorRouter(fmt.Errorf("plain")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
	assert.NotContains(t, w.Body.String(), "plain")
}

func TestErrorMiddleware_LeavesWrittenResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("logged only"))
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"queued"}`, w.Body.String())
}

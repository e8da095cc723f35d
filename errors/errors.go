package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind regardless of the wrapped cause, so
// errors.Is(Wrap(ErrAuthentication, err), ErrAuthentication) holds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of kind carrying err as its cause.
func Wrap(kind *Error, err error) *Error {
	return New(kind.Code, kind.Message, err)
}

// ErrInternalServer is rendered for errors outside the taxonomy.
var ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)

// Checkout and reconciliation error types
var (
	ErrInvalidInput              = New(http.StatusBadRequest, "Invalid input", nil)
	ErrSessionCreationFailed     = New(http.StatusInternalServerError, "Checkout session creation failed", nil)
	ErrAuthentication            = New(http.StatusBadRequest, "Webhook authentication failed", nil)
	ErrCustomerLookupFailed      = New(http.StatusBadGateway, "Customer lookup failed", nil)
	ErrReconciliation            = New(http.StatusInternalServerError, "Order reconciliation failed", nil)
	ErrNotificationPersistFailed = New(http.StatusInternalServerError, "Notification persist failed", nil)
)

// ErrorMiddleware renders the last error attached to the gin context. Client
// errors carry their cause; server errors only the generic message.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := toAppError(c.Errors.Last().Err)
		msg := appErr.Message
		if appErr.Code < http.StatusInternalServerError && appErr.Err != nil {
			msg = appErr.Error()
		}
		c.AbortWithStatusJSON(appErr.Code, gin.H{"error": msg})
	}
}

func toAppError(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Wrap(ErrInternalServer, err)
}

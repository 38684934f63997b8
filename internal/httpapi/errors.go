package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baiirun/taskflow/internal/apperr"
	"github.com/baiirun/taskflow/internal/lifecycle"
)

func statusFor(err error) int {
	if errors.Is(err, lifecycle.ErrInvalidCredentials) {
		return http.StatusUnauthorized
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindInvariant:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError responds with the mapped status and {"error": msg}. Internal
// errors are logged by the service and reported generically.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := apperr.Message(err)
	if status == http.StatusUnauthorized {
		msg = err.Error()
	}
	_ = c.Error(err)
	abortJSON(c, status, msg)
}

func badRequest(c *gin.Context, err error) {
	abortJSON(c, http.StatusBadRequest, "invalid request: "+err.Error())
}

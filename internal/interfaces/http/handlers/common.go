// Package handlers implements the HTTP handlers of the detection API.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/turtacn/StoryLink-Intelligence/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError maps err onto a status code and a structured body, then aborts
// the request.  Errors mapping to 500 are masked so internals never reach
// the client.
func writeError(c *gin.Context, err error) {
	var ae *apperrors.AppError
	if !stderrors.As(err, &ae) {
		ae = apperrors.Internal("internal server error")
	}

	status := apperrors.HTTPStatus(ae.Code)
	if status == http.StatusInternalServerError {
		ae = apperrors.Internal("internal server error")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:      string(ae.Code),
		Message:   ae.Message,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	})
}

// badRequest wraps a body-decoding failure into the standard 400 response.
func badRequest(c *gin.Context, err error) {
	writeError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid request body"))
}

func errServiceUnavailable(message string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeServiceUnavailable, message)
}

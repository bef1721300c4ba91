package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/gin-gonic/gin"
)

// Error codes carried in ApiError.Code.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

type ApiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ApiErrorResponse struct {
	StatusCode int        `json:"statusCode"`
	Message    string     `json:"message"`
	Success    bool       `json:"success"`
	Errors     []ApiError `json:"errors"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, ApiResponse{StatusCode: status, Data: data, Message: message, Success: true})
}

// statusOf maps an error kind onto an HTTP status and error code.
func statusOf(err error) (int, string) {
	switch common.KindOf(err) {
	case common.ErrorValidation:
		return http.StatusBadRequest, CodeValidation
	case common.ErrorConflict:
		return http.StatusConflict, CodeConflict
	case common.ErrorUnauthorized:
		switch {
		case errors.Is(err, common.ErrTokenExpired):
			return http.StatusUnauthorized, CodeTokenExpired
		case errors.Is(err, common.ErrInvalidToken):
			return http.StatusUnauthorized, CodeInvalidToken
		}
		return http.StatusUnauthorized, CodeUnauthorized
	case common.ErrorNotFound:
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// abortWithError writes the error envelope. Internal errors are logged with
// their cause and rendered with the generic message only.
func abortWithError(c *gin.Context, logger logging.Logger, err error) {
	status, code := statusOf(err)
	if code == CodeInternal {
		logging.LogError(c.Request.Context(), logger, "request failed", err)
	}

	msg := common.MessageOf(err)
	c.AbortWithStatusJSON(status, ApiErrorResponse{
		StatusCode: status,
		Message:    msg,
		Success:    false,
		Errors:     []ApiError{{Code: code, Message: msg}},
	})
}

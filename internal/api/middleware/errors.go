package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Render maps err to a status and body. Internal causes never reach the
// client.
func Render(err error) (int, ErrorBody) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorBody{Code: apperr.ErrInternal.Code, Message: apperr.ErrInternal.Message}
	}
	body := ErrorBody{Code: appErr.Code, Message: err.Error()}
	switch appErr.Kind {
	case apperr.KindInternal, apperr.KindCollaborator, apperr.KindReconciliationGap:
		body.Message = appErr.Message
	}
	return appErr.Kind.HTTPStatus(), body
}

// WriteError logs err according to its severity and writes the response.
func WriteError(c *gin.Context, log *zap.Logger, err error) {
	status, body := Render(err)
	fields := []zap.Field{
		zap.String("request_id", logger.RequestID(c)),
		zap.String("code", body.Code),
		zap.Error(err),
	}
	switch {
	case apperr.Is(err, apperr.KindReconciliationGap):
		log.Error("Request failed", append(fields, zap.Bool("reconciliation_gap", true))...)
	case apperr.Is(err, apperr.KindCollaborator):
		log.Warn("Request failed", fields...)
	case status >= http.StatusInternalServerError:
		log.Error("Request failed", fields...)
	default:
		log.Debug("Request rejected", fields...)
	}
	c.JSON(status, body)
}

// AbortWithError writes the error and stops the handler chain.
func AbortWithError(c *gin.Context, log *zap.Logger, err error) {
	WriteError(c, log, err)
	c.Abort()
}

// Recovery turns panics into a generic internal error response.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic recovered",
			zap.String("request_id", logger.RequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			ErrorBody{Code: apperr.ErrInternal.Code, Message: apperr.ErrInternal.Message})
	})
}

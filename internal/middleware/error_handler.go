package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/pkg/logger"
)

// ErrorResponse is the standard error body returned by the API
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ErrorHandler catches panics and turns deferred gin errors into responses
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered", nil, map[string]interface{}{
					"panic":  r,
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				})
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error: "internal server error",
					Code:  "INTERNAL_ERROR",
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			RespondError(c, c.Errors.Last().Err)
		}
	}
}

// RespondError maps a service error to its HTTP status by error kind
func RespondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusForKind(kind)

	fields := map[string]interface{}{
		"kind":   kind.String(),
		"status": status,
		"path":   c.Request.URL.Path,
	}
	if status >= 500 {
		logger.Error("Request failed", err, fields)
	} else {
		logger.Warn("Request rejected", map[string]interface{}{
			"kind":   kind.String(),
			"status": status,
			"path":   c.Request.URL.Path,
			"error":  err.Error(),
		})
	}

	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  kind.String(),
	})
	c.Abort()
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindAuthFailed:
		return http.StatusBadGateway
	case errs.KindConnectionRefused, errs.KindRuntimeUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	case errs.KindPartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

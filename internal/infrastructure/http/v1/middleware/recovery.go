// Package middleware provides the gin middleware of the v1 API.
package middleware

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"retailops/internal/core/apperror"
	"retailops/pkg/logger"
)

// Recovery converts a handler panic into a 500 response. It has to be the
// outermost middleware: a panic unwinds past ErrorHandler, so the response
// is rendered here.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "panic recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"route", c.FullPath(),
			"stack", string(debug.Stack()),
		)
		renderError(c, apperror.NewInternal(fmt.Errorf("panic: %v", recovered)))
	})
}

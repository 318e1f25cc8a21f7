package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/auxilium/internal/utils"
)

// Recovery turns handler panics into a 500 {code, message}. http.ErrAbortHandler
// is re-raised so net/http drops the connection, and so is any panic after the
// response started: a half-written body must end as a broken stream, never a clean one.
func Recovery(l *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			entry := l.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"path":       c.Request.URL.Path,
				"panic":      rec,
			})
			if c.Writer.Written() {
				entry.Error("panic after response started, dropping connection")
				panic(http.ErrAbortHandler)
			}
			entry.WithField("stack", string(debug.Stack())).Error("panic recovered")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    utils.CodeInternal,
				"message": "internal server error",
			})
		}()
		c.Next()
	}
}

package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxLoggedBody = 4096

var skipLogging = map[string]bool{
	"/health": true,
}

// LogRequest logs each request with its body at debug level and the
// response status at info level.
func LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipLogging[c.Request.URL.Path] {
			c.Next()
			return
		}

		log := Logger(c.Request.Context())
		body, err := readBody(c)
		if err != nil {
			log.Error("Failed to read request body", zap.Error(err))
		}
		if len(body) > maxLoggedBody {
			body = body[:maxLoggedBody]
		}
		log.Debug("Request body",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.ByteString("body", body),
		)

		start := time.Now()
		c.Next()

		log.Info("Request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// readBody drains the body and puts it back for the handler.
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	return body, err
}

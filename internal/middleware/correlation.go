package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/logger"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	requestScopeKey     = "requestScope"
)

type scopeContextKey struct{}

// requestScope is what every later handler needs to attribute its logs.
type requestScope struct {
	correlationID string
	log           *zap.Logger
}

// RequestScope reuses the caller's X-Correlation-ID or assigns one, echoes it
// on the response and builds a request logger tagged with it and with the
// account or association the route addresses.
func RequestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		fields := append([]zap.Field{zap.String("correlation_id", correlationID)}, routeFields(c)...)
		scope := requestScope{correlationID: correlationID, log: logger.Log.With(fields...)}

		c.Set(requestScopeKey, scope)
		c.Header(CorrelationIDHeader, correlationID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), scopeContextKey{}, scope))

		scope.log.Debug("Request received",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("client_ip", c.ClientIP()),
		)
		c.Next()
	}
}

// routeFields names the subject of the request. Accounts use the
// interoperable text form address@eip155:chainId.
func routeFields(c *gin.Context) []zap.Field {
	var fields []zap.Field
	if address := c.Param("address"); address != "" {
		fields = append(fields, zap.String("account", address+"@eip155:"+c.Param("chainId")))
	}
	if id := c.Param("id"); id != "" {
		fields = append(fields, zap.String("association_id", id))
	}
	return fields
}

// CorrelationID returns the id assigned by RequestScope, or "".
func CorrelationID(c *gin.Context) string {
	if v, ok := c.Get(requestScopeKey); ok {
		return v.(requestScope).correlationID
	}
	return ""
}

// CorrelationIDFromContext is CorrelationID for code holding only the
// request context.
func CorrelationIDFromContext(ctx context.Context) string {
	if scope, ok := ctx.Value(scopeContextKey{}).(requestScope); ok {
		return scope.correlationID
	}
	return ""
}

// Logger returns the request logger, or the global logger outside a request.
func Logger(ctx context.Context) *zap.Logger {
	if scope, ok := ctx.Value(scopeContextKey{}).(requestScope); ok {
		return scope.log
	}
	return logger.Log
}

package ginapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDKey    = "goresource.request_id"
	RequestIDHeader = "X-Request-ID"
)

type EngineConfig struct {
	Logger zerolog.Logger
	// AllowOrigins lists the CORS origins. Empty allows every origin.
	AllowOrigins []string
	// TrustedProxies is passed to gin. Nil trusts no proxy.
	TrustedProxies []string
}

// NewEngine returns a gin engine with request ids, request logging,
// recovery and CORS installed.
func NewEngine(conf EngineConfig) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(conf.TrustedProxies); err != nil {
		return nil, err
	}

	corsConf := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(conf.AllowOrigins) == 0 {
		corsConf.AllowAllOrigins = true
	} else {
		corsConf.AllowOrigins = conf.AllowOrigins
		corsConf.AllowCredentials = true
	}

	r.Use(RequestID(), Logger(conf.Logger), gin.Recovery(), cors.New(corsConf))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	return r, nil
}

// RequestID ensures every request has an id for tracing and logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID extracts the request id from the gin context when available.
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}

	return c.GetString(requestIDKey)
}

// Logger logs one line per request.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("http request")
	}
}

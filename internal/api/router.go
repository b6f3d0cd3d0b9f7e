// Package api exposes charts, indicators and candle ingestion over HTTP
// with gin, and mounts the WebSocket stream, health and metrics endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"finplotter/internal/chart"
	"finplotter/internal/indicator"
	"finplotter/internal/logger"
	"finplotter/internal/model"

	"github.com/gin-gonic/gin"
)

// ChartService is the use case surface the handlers depend on.
type ChartService interface {
	Symbols(ctx context.Context) ([]string, error)
	ChartJSON(ctx context.Context, symbol string, limit int) ([]byte, error)
	Indicator(ctx context.Context, symbol, name string, period, limit int) (*chart.Chart, error)
	Append(ctx context.Context, symbol string, candles []model.Candle) ([]model.IndicatorResult, error)
	Preview(ctx context.Context, symbol string, candle model.Candle) []model.IndicatorResult
	Latest(ctx context.Context, symbol string) ([]model.IndicatorResult, error)
	StreamConfigs() []indicator.StreamConfig
	ReloadStreams(specs string) (preserved, created int, err error)
}

// StreamHandler upgrades a request to a WebSocket stream of one symbol and
// serves the buffered envelopes of that stream.
type StreamHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request, symbol string)
	Replay(symbol string, from, to int64) [][]byte
	Seq(symbol string) int64
}

// Deps are the collaborators of the router. Stream, Health and Metrics
// are optional; their routes are not registered when nil.
type Deps struct {
	Service ChartService
	Stream  StreamHandler
	Health  http.Handler
	Metrics http.Handler
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	if d.Health != nil {
		r.GET("/healthz", gin.WrapH(d.Health))
	}
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	h := NewHandler(d.Service)
	g := r.Group("/api")
	g.GET("/symbols", h.Symbols)
	g.GET("/chart/:symbol", h.Chart)
	g.GET("/indicators/:symbol/:name", h.Indicator)
	g.GET("/latest/:symbol", h.Latest)
	g.POST("/candles/:symbol", h.AppendCandles)
	g.GET("/streams", h.Streams)
	g.PUT("/streams", h.ReloadStreams)

	if d.Stream != nil {
		r.GET("/ws/:symbol", func(c *gin.Context) {
			d.Stream.ServeWS(c.Writer, c.Request, c.Param("symbol"))
		})
		g.GET("/replay/:symbol", replayHandler(d.Stream))
	}
	return r
}

// requestLogger tags each request context with a trace id and logs the
// request once it completes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := logger.GenerateTraceID("req", start)
		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-Id", traceID)

		c.Next()

		attrs := append([]any{
			"component", "api",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		}, logger.LogWithTrace(ctx)...)
		slog.Debug("request", attrs...)
	}
}

package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"finplotter/internal/chart"
	"finplotter/internal/indicator"
	"finplotter/internal/model"
	"finplotter/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LineResponse is one indicator line mapped onto candle dates.
type LineResponse struct {
	Name   string        `json:"name"`
	Points []chart.Point `json:"points"`
}

// IndicatorResponse is the body of GET /api/indicators/:symbol/:name.
type IndicatorResponse struct {
	Symbol string         `json:"symbol"`
	Name   string         `json:"name"`
	Lines  []LineResponse `json:"lines"`
}

// CandleRequest is one candle of POST /api/candles/:symbol.
type CandleRequest struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

func (r CandleRequest) candle() model.Candle {
	return model.Candle{
		Date:   r.Date.UTC(),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

// ResultsResponse wraps streaming results.
type ResultsResponse struct {
	Symbol  string                  `json:"symbol"`
	Results []model.IndicatorResult `json:"results"`
}

// StreamsRequest is the body of PUT /api/streams.
type StreamsRequest struct {
	Indicators string `json:"indicators" binding:"required"` // "SMA:20,RSI:14"
}

// StreamsResponse lists the active streaming indicators. Preserved and
// Created are set after a reload.
type StreamsResponse struct {
	Indicators []indicator.StreamConfig `json:"indicators"`
	Preserved  int                      `json:"preserved"`
	Created    int                      `json:"created"`
}

// ReplayResponse is the body of GET /api/replay/:symbol.
type ReplayResponse struct {
	Symbol    string            `json:"symbol"`
	Seq       int64             `json:"seq"`
	Envelopes []json.RawMessage `json:"envelopes"`
}

// Handler serves the /api routes.
type Handler struct {
	svc ChartService
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc ChartService) *Handler {
	return &Handler{svc: svc}
}

// Symbols lists the stored symbols.
//
// GET /api/symbols
func (h *Handler) Symbols(c *gin.Context) {
	symbols, err := h.svc.Symbols(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	c.JSON(http.StatusOK, symbols)
}

// Chart returns the full chart of a symbol.
//
// GET /api/chart/:symbol?limit=250
func (h *Handler) Chart(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	data, err := h.svc.ChartJSON(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Indicator returns the lines of a single indicator.
//
// GET /api/indicators/:symbol/:name?period=14&limit=250
func (h *Handler) Indicator(c *gin.Context) {
	period, ok := intQuery(c, "period")
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	symbol, name := c.Param("symbol"), c.Param("name")
	ch, err := h.svc.Indicator(c.Request.Context(), symbol, name, period, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	dates := ch.Dates()
	resp := IndicatorResponse{Symbol: symbol, Name: name}
	for _, l := range ch.Lines() {
		resp.Lines = append(resp.Lines, LineResponse{Name: l.Name, Points: l.Points(dates)})
	}
	c.JSON(http.StatusOK, resp)
}

// Latest returns the latest confirmed streaming values of a symbol.
//
// GET /api/latest/:symbol
func (h *Handler) Latest(c *gin.Context) {
	symbol := c.Param("symbol")
	results, err := h.svc.Latest(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResultsResponse{Symbol: symbol, Results: nonNil(results)})
}

// AppendCandles stores a JSON array of completed candles, or previews a
// single forming candle when forming=true.
//
// POST /api/candles/:symbol[?forming=true]
func (h *Handler) AppendCandles(c *gin.Context) {
	symbol := c.Param("symbol")
	ctx := c.Request.Context()

	if c.Query("forming") == "true" {
		var req CandleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		if req.Date.IsZero() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "candle date is required"})
			return
		}
		results := h.svc.Preview(ctx, symbol, req.candle())
		c.JSON(http.StatusOK, ResultsResponse{Symbol: symbol, Results: nonNil(results)})
		return
	}

	var reqs []CandleRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	candles := make([]model.Candle, len(reqs))
	for i, r := range reqs {
		if r.Date.IsZero() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "candle date is required"})
			return
		}
		candles[i] = r.candle()
	}

	results, err := h.svc.Append(ctx, symbol, candles)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ResultsResponse{Symbol: symbol, Results: nonNil(results)})
}

// Streams lists the streaming indicators.
//
// GET /api/streams
func (h *Handler) Streams(c *gin.Context) {
	c.JSON(http.StatusOK, StreamsResponse{Indicators: h.svc.StreamConfigs()})
}

// ReloadStreams replaces the streaming indicators, keeping the state of
// those that stay.
//
// PUT /api/streams {"indicators":"SMA:20,RSI:14"}
func (h *Handler) ReloadStreams(c *gin.Context) {
	var req StreamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	preserved, created, err := h.svc.ReloadStreams(req.Indicators)
	if err != nil {
		writeError(c, err)
		return
	}
	slog.Info("stream indicators reloaded", "component", "api",
		"indicators", req.Indicators, "preserved", preserved, "created", created)
	c.JSON(http.StatusOK, StreamsResponse{
		Indicators: h.svc.StreamConfigs(),
		Preserved:  preserved,
		Created:    created,
	})
}

// replayHandler returns the buffered envelopes of a symbol after since,
// for clients that fill a gap over HTTP.
//
// GET /api/replay/:symbol?since=42
func replayHandler(stream StreamHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		since, ok := intQuery(c, "since")
		if !ok {
			return
		}
		symbol := c.Param("symbol")
		envelopes := []json.RawMessage{}
		for _, e := range stream.Replay(symbol, int64(since)+1, math.MaxInt64) {
			envelopes = append(envelopes, e)
		}
		// Read after the replay so seq is never behind the last envelope.
		c.JSON(http.StatusOK, ReplayResponse{Symbol: symbol, Seq: stream.Seq(symbol), Envelopes: envelopes})
	}
}

// intQuery parses a non-negative integer query parameter; missing is 0.
// It writes a 400 and returns false on bad input.
func intQuery(c *gin.Context, key string) (int, bool) {
	s := c.Query(key)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: key + " must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownSymbol):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, indicator.ErrInvalidParameter),
		errors.Is(err, indicator.ErrEmptySeries),
		errors.Is(err, model.ErrUnorderedSeries):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "component", "api", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func nonNil(results []model.IndicatorResult) []model.IndicatorResult {
	if results == nil {
		return []model.IndicatorResult{}
	}
	return results
}

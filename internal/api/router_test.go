package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finplotter/internal/api"
	"finplotter/internal/chart"
	"finplotter/internal/indicator"
	"finplotter/internal/model"
	"finplotter/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	SymbolsFunc   func(ctx context.Context) ([]string, error)
	ChartJSONFunc func(ctx context.Context, symbol string, limit int) ([]byte, error)
	IndicatorFunc func(ctx context.Context, symbol, name string, period, limit int) (*chart.Chart, error)
	AppendFunc    func(ctx context.Context, symbol string, candles []model.Candle) ([]model.IndicatorResult, error)
	PreviewFunc   func(ctx context.Context, symbol string, candle model.Candle) []model.IndicatorResult
	LatestFunc    func(ctx context.Context, symbol string) ([]model.IndicatorResult, error)
	ConfigsFunc   func() []indicator.StreamConfig
	ReloadFunc    func(specs string) (int, int, error)
}

func (m *mockService) Symbols(ctx context.Context) ([]string, error) { return m.SymbolsFunc(ctx) }

func (m *mockService) ChartJSON(ctx context.Context, symbol string, limit int) ([]byte, error) {
	return m.ChartJSONFunc(ctx, symbol, limit)
}

func (m *mockService) Indicator(ctx context.Context, symbol, name string, period, limit int) (*chart.Chart, error) {
	return m.IndicatorFunc(ctx, symbol, name, period, limit)
}

func (m *mockService) Append(ctx context.Context, symbol string, candles []model.Candle) ([]model.IndicatorResult, error) {
	return m.AppendFunc(ctx, symbol, candles)
}

func (m *mockService) Preview(ctx context.Context, symbol string, candle model.Candle) []model.IndicatorResult {
	return m.PreviewFunc(ctx, symbol, candle)
}

func (m *mockService) Latest(ctx context.Context, symbol string) ([]model.IndicatorResult, error) {
	return m.LatestFunc(ctx, symbol)
}

func (m *mockService) StreamConfigs() []indicator.StreamConfig { return m.ConfigsFunc() }

func (m *mockService) ReloadStreams(specs string) (int, int, error) { return m.ReloadFunc(specs) }

type stubStream struct {
	symbol    string
	seq       int64
	envelopes [][]byte
}

func (s *stubStream) ServeWS(w http.ResponseWriter, _ *http.Request, symbol string) {
	s.symbol = symbol
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (s *stubStream) Replay(symbol string, from, _ int64) [][]byte {
	if symbol != s.symbol || from > int64(len(s.envelopes)) {
		return nil
	}
	return s.envelopes[from-1:]
}

func (s *stubStream) Seq(symbol string) int64 {
	if symbol != s.symbol {
		return 0
	}
	return s.seq
}

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func serve(t *testing.T, r *gin.Engine, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, url, nil)
	} else {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSymbols(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		symbols        []string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{"success", []string{"AAPL", "MSFT"}, nil, http.StatusOK, `["AAPL","MSFT"]`},
		{"empty store", nil, nil, http.StatusOK, `[]`},
		{"store failure", nil, errors.New("disk gone"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{SymbolsFunc: func(context.Context) ([]string, error) { return tt.symbols, tt.err }}
			w := serve(t, api.NewRouter(api.Deps{Service: svc}), http.MethodGet, "/api/symbols", "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestChart(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		url            string
		mock           func(ctx context.Context, symbol string, limit int) ([]byte, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success passes raw chart bytes",
			url:  "/api/chart/AAPL?limit=50",
			mock: func(_ context.Context, symbol string, limit int) ([]byte, error) {
				assert.Equal(t, "AAPL", symbol)
				assert.Equal(t, 50, limit)
				return []byte(`{"symbol":"AAPL"}`), nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"symbol":"AAPL"}`,
		},
		{
			name: "missing limit means all candles",
			url:  "/api/chart/AAPL",
			mock: func(_ context.Context, _ string, limit int) ([]byte, error) {
				assert.Equal(t, 0, limit)
				return []byte(`{}`), nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{}`,
		},
		{
			name:           "invalid limit",
			url:            "/api/chart/AAPL?limit=abc",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"limit must be a non-negative integer"}`,
		},
		{
			name: "unknown symbol",
			url:  "/api/chart/NOPE",
			mock: func(context.Context, string, int) ([]byte, error) {
				return nil, errors.Wrapf(service.ErrUnknownSymbol, "%q", "NOPE")
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"\"NOPE\": unknown symbol"}`,
		},
		{
			name: "series too short",
			url:  "/api/chart/AAPL",
			mock: func(context.Context, string, int) ([]byte, error) {
				return nil, errors.Wrap(indicator.ErrInvalidParameter, "sma window 20 exceeds 3 samples")
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"sma window 20 exceeds 3 samples: invalid indicator parameter"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{ChartJSONFunc: func(ctx context.Context, symbol string, limit int) ([]byte, error) {
				require.NotNil(t, tt.mock, "service must not be called")
				return tt.mock(ctx, symbol, limit)
			}}
			w := serve(t, api.NewRouter(api.Deps{Service: svc}), http.MethodGet, tt.url, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestIndicator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockService{IndicatorFunc: func(_ context.Context, symbol, name string, period, limit int) (*chart.Chart, error) {
		assert.Equal(t, "AAPL", symbol)
		assert.Equal(t, "sma", name)
		assert.Equal(t, 2, period)
		assert.Equal(t, 0, limit)
		return &chart.Chart{
			Symbol: symbol,
			Candles: []model.Candle{
				{Date: day, Close: 1},
				{Date: day.AddDate(0, 0, 1), Close: 3},
			},
			Overlays: []chart.Line{{Name: "2 SMA", Offset: 1, Values: []float64{2}}},
		}, nil
	}}
	w := serve(t, api.NewRouter(api.Deps{Service: svc}), http.MethodGet, "/api/indicators/AAPL/sma?period=2", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"symbol": "AAPL",
		"name": "sma",
		"lines": [{"name": "2 SMA", "points": [{"date": "2024-01-03T00:00:00Z", "value": 2}]}]
	}`, w.Body.String())
}

func TestIndicator_Errors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockService{IndicatorFunc: func(context.Context, string, string, int, int) (*chart.Chart, error) {
		return nil, errors.Wrap(indicator.ErrInvalidParameter, "unknown indicator \"foo\"")
	}}
	r := api.NewRouter(api.Deps{Service: svc})

	w := serve(t, r, http.MethodGet, "/api/indicators/AAPL/foo", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, r, http.MethodGet, "/api/indicators/AAPL/sma?period=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"period must be a non-negative integer"}`, w.Body.String())
}

func TestLatest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockService{LatestFunc: func(_ context.Context, symbol string) ([]model.IndicatorResult, error) {
		if symbol == "NONE" {
			return nil, nil
		}
		return []model.IndicatorResult{{Name: "SMA_5", Symbol: symbol, Value: 10.5, Date: day, Ready: true}}, nil
	}}
	r := api.NewRouter(api.Deps{Service: svc})

	w := serve(t, r, http.MethodGet, "/api/latest/AAPL", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","results":[
		{"name":"SMA_5","symbol":"AAPL","value":10.5,"date":"2024-01-02T00:00:00Z","ready":true,"live":false}
	]}`, w.Body.String())

	w = serve(t, r, http.MethodGet, "/api/latest/NONE", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"NONE","results":[]}`, w.Body.String())
}

func TestAppendCandles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got []model.Candle
	svc := &mockService{AppendFunc: func(_ context.Context, symbol string, candles []model.Candle) ([]model.IndicatorResult, error) {
		if len(candles) == 0 {
			return nil, errors.Wrap(model.ErrEmptySeries, "series "+symbol)
		}
		got = candles
		return []model.IndicatorResult{{Name: "SMA_2", Symbol: symbol, Value: 1.5, Date: day, Ready: true}}, nil
	}}
	r := api.NewRouter(api.Deps{Service: svc})

	body := `[{"date":"2024-01-02T00:00:00Z","open":1,"high":2,"low":0.5,"close":1.5,"volume":100}]`
	w := serve(t, r, http.MethodPost, "/api/candles/AAPL", body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, got, 1)
	assert.True(t, got[0].Date.Equal(day))
	assert.Equal(t, 1.5, got[0].Close)
	assert.Equal(t, 100.0, got[0].Volume)
	assert.JSONEq(t, `{"symbol":"AAPL","results":[
		{"name":"SMA_2","symbol":"AAPL","value":1.5,"date":"2024-01-02T00:00:00Z","ready":true,"live":false}
	]}`, w.Body.String())

	w = serve(t, r, http.MethodPost, "/api/candles/AAPL", `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, r, http.MethodPost, "/api/candles/AAPL", `{"not":"an array"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, r, http.MethodPost, "/api/candles/AAPL", `[{"close":1}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"candle date is required"}`, w.Body.String())
}

func TestAppendCandles_Unordered(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockService{AppendFunc: func(context.Context, string, []model.Candle) ([]model.IndicatorResult, error) {
		return nil, errors.Wrap(model.ErrUnorderedSeries, "series AAPL")
	}}
	body := `[{"date":"2024-01-03T00:00:00Z","close":1},{"date":"2024-01-02T00:00:00Z","close":2}]`
	w := serve(t, api.NewRouter(api.Deps{Service: svc}), http.MethodPost, "/api/candles/AAPL", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppendCandles_Forming(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockService{PreviewFunc: func(_ context.Context, symbol string, c model.Candle) []model.IndicatorResult {
		assert.Equal(t, 7.0, c.Close)
		return []model.IndicatorResult{{Name: "EMA_3", Symbol: symbol, Value: 6, Date: c.Date, Ready: true, Live: true}}
	}}
	body := `{"date":"2024-01-02T00:00:00Z","close":7}`
	w := serve(t, api.NewRouter(api.Deps{Service: svc}), http.MethodPost, "/api/candles/AAPL?forming=true", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","results":[
		{"name":"EMA_3","symbol":"AAPL","value":6,"date":"2024-01-02T00:00:00Z","ready":true,"live":true}
	]}`, w.Body.String())
}

func TestOptionalRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	health := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	stream := &stubStream{}
	r := api.NewRouter(api.Deps{Service: &mockService{}, Stream: stream, Health: health, Metrics: metrics})

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, r, http.MethodGet, "/healthz", "").Code)

	w := serve(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())

	serve(t, r, http.MethodGet, "/ws/MSFT", "")
	assert.Equal(t, "MSFT", stream.symbol)

	bare := api.NewRouter(api.Deps{Service: &mockService{}})
	assert.Equal(t, http.StatusNotFound, serve(t, bare, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, bare, http.MethodGet, "/ws/MSFT", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, bare, http.MethodGet, "/api/replay/MSFT", "").Code)
}

func TestReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stream := &stubStream{
		symbol: "AAPL",
		seq:    3,
		envelopes: [][]byte{
			[]byte(`{"seq":1}`),
			[]byte(`{"seq":2}`),
			[]byte(`{"seq":3}`),
		},
	}
	r := api.NewRouter(api.Deps{Service: &mockService{}, Stream: stream})

	w := serve(t, r, http.MethodGet, "/api/replay/AAPL?since=1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","seq":3,"envelopes":[{"seq":2},{"seq":3}]}`, w.Body.String())

	w = serve(t, r, http.MethodGet, "/api/replay/MSFT", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"MSFT","seq":0,"envelopes":[]}`, w.Body.String())

	w = serve(t, r, http.MethodGet, "/api/replay/AAPL?since=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	configs := []indicator.StreamConfig{{Type: "SMA", Period: 5}}
	svc := &mockService{
		ConfigsFunc: func() []indicator.StreamConfig { return configs },
		ReloadFunc: func(specs string) (int, int, error) {
			if specs == "WMA:3" {
				return 0, 0, errors.Wrap(indicator.ErrInvalidParameter, `unknown indicator type "WMA"`)
			}
			configs = []indicator.StreamConfig{{Type: "SMA", Period: 5}, {Type: "RSI", Period: 14}}
			return 2, 2, nil
		},
	}
	r := api.NewRouter(api.Deps{Service: svc})

	w := serve(t, r, http.MethodGet, "/api/streams", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"indicators":[{"type":"SMA","period":5}],"preserved":0,"created":0}`, w.Body.String())

	w = serve(t, r, http.MethodPut, "/api/streams", `{"indicators":"SMA:5,RSI:14"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"indicators":[{"type":"SMA","period":5},{"type":"RSI","period":14}],"preserved":2,"created":2}`, w.Body.String())

	w = serve(t, r, http.MethodPut, "/api/streams", `{"indicators":"WMA:3"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "WMA")

	w = serve(t, r, http.MethodPut, "/api/streams", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTraceHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockService{SymbolsFunc: func(context.Context) ([]string, error) { return nil, nil }}
	w := serve(t, api.NewRouter(api.Deps{Service: svc}), http.MethodGet, "/api/symbols", "")
	assert.True(t, strings.HasPrefix(w.Header().Get("X-Trace-Id"), "req-"))
}

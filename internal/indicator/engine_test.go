package indicator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"

	"finplotter/internal/model"
)

func TestEngine_SMA20(t *testing.T) {
	engine := NewEngine([]StreamConfig{{Type: "SMA", Period: 20}})

	// Feed 25 candles with close = 100
	for i := 0; i < 25; i++ {
		results := engine.Process("ACME", candleAt(i, 100))
		if len(results) != 1 {
			t.Fatalf("candle %d: expected 1 result, got %d", i, len(results))
		}
		if results[0].Ready != (i >= 19) {
			t.Errorf("candle %d: Ready=%v", i, results[0].Ready)
		}
		if results[0].Ready && math.Abs(results[0].Value-100.0) > 0.001 {
			t.Errorf("candle %d: expected SMA=100.0, got %.4f", i, results[0].Value)
		}
		if results[0].Name != "SMA_20" || results[0].Symbol != "ACME" {
			t.Errorf("candle %d: unexpected result identity %s/%s", i, results[0].Name, results[0].Symbol)
		}
	}
}

func TestEngine_MultiIndicator(t *testing.T) {
	engine := NewEngine([]StreamConfig{
		{Type: "SMA", Period: 5},
		{Type: "EMA", Period: 5},
		{Type: "SMMA", Period: 5},
		{Type: "RSI", Period: 14},
	})

	for i := 0; i < 20; i++ {
		results := engine.Process("A", candleAt(i, 100+float64(i)))
		if len(results) != 4 {
			t.Fatalf("candle %d: expected 4 results, got %d", i, len(results))
		}
	}
	names := []string{"SMA_5", "EMA_5", "SMMA_5", "RSI_14"}
	results := engine.Process("A", candleAt(20, 120))
	for i, r := range results {
		if r.Name != names[i] {
			t.Errorf("result %d: name=%s, want %s", i, r.Name, names[i])
		}
	}
}

func TestEngine_SymbolsAreIndependent(t *testing.T) {
	engine := NewEngine([]StreamConfig{{Type: "SMA", Period: 2}})

	engine.Process("A", candleAt(0, 10))
	engine.Process("A", candleAt(1, 20))
	engine.Process("B", candleAt(0, 100))
	rb := engine.Process("B", candleAt(1, 200))
	ra := engine.Process("A", candleAt(2, 30))

	assertClose(t, "A", ra[0].Value, 25, 1e-9)
	assertClose(t, "B", rb[0].Value, 150, 1e-9)
	if got := len(engine.Symbols()); got != 2 {
		t.Errorf("expected 2 symbols, got %d", got)
	}
}

func TestProcessPeek_NilBeforeProcess(t *testing.T) {
	engine := NewEngine([]StreamConfig{{Type: "SMA", Period: 3}})
	if results := engine.ProcessPeek("ACME", candle(100)); results != nil {
		t.Errorf("expected nil for unseen symbol, got %v", results)
	}
}

func TestProcessPeek_DoesNotMutateState(t *testing.T) {
	engine := NewEngine([]StreamConfig{{Type: "SMA", Period: 3}, {Type: "RSI", Period: 2}})
	for i, p := range []float64{100, 102, 104} {
		engine.Process("ACME", candleAt(i, p))
	}

	peek := engine.ProcessPeek("ACME", candleAt(3, 106))
	if len(peek) != 2 || !peek[0].Live {
		t.Fatalf("expected 2 live results, got %+v", peek)
	}
	assertClose(t, "peek SMA", peek[0].Value, 104, 1e-9)

	// A real candle with another price must ignore the preview
	results := engine.Process("ACME", candleAt(3, 103))
	assertClose(t, "SMA after peek", results[0].Value, 103, 1e-9)
	if results[0].Live {
		t.Error("processed result must not be live")
	}
}

func TestEngine_Run(t *testing.T) {
	engine := NewEngine([]StreamConfig{{Type: "SMA", Period: 2}})
	in := make(chan SymbolCandle, 4)
	out := make(chan model.IndicatorResult, 16)

	in <- SymbolCandle{Symbol: "ACME", Candle: candleAt(0, 10)}
	in <- SymbolCandle{Symbol: "ACME", Candle: candleAt(1, 20)}
	in <- SymbolCandle{Symbol: "ACME", Candle: candleAt(2, 40), Forming: true}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	engine.Run(ctx, in, out)

	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	<-out
	second := <-out
	live := <-out
	assertClose(t, "second", second.Value, 15, 1e-9)
	if !live.Live {
		t.Error("forming candle must produce a live result")
	}
	assertClose(t, "live", live.Value, 30, 1e-9)
}

func TestReloadConfigs_PreservesState(t *testing.T) {
	engine := NewEngine([]StreamConfig{{Type: "SMA", Period: 3}})
	for i, p := range []float64{1, 2, 3} {
		engine.Process("ACME", candleAt(i, p))
	}

	preserved, created := engine.ReloadConfigs([]StreamConfig{
		{Type: "SMA", Period: 3},
		{Type: "EMA", Period: 2},
	})
	if preserved != 1 || created != 1 {
		t.Errorf("preserved=%d created=%d, want 1/1", preserved, created)
	}

	results := engine.Process("ACME", candleAt(3, 4))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// SMA kept its window: (2+3+4)/3
	assertClose(t, "SMA after reload", results[0].Value, 3, 1e-9)
	// EMA started cold with the new candle
	assertClose(t, "EMA after reload", results[1].Value, 4, 1e-9)
}

func TestReloadConfigs_Unchanged(t *testing.T) {
	engine := NewEngine([]StreamConfig{{Type: "SMA", Period: 3}, {Type: "RSI", Period: 14}})
	engine.Process("A", candle(1))
	engine.Process("B", candle(1))

	preserved, created := engine.ReloadConfigs([]StreamConfig{{Type: "RSI", Period: 14}, {Type: "SMA", Period: 3}})
	if preserved != 4 || created != 0 {
		t.Errorf("preserved=%d created=%d, want 4/0", preserved, created)
	}
	if cfgs := engine.Configs(); cfgs[0].Type != "RSI" {
		t.Errorf("expected new config order, got %+v", cfgs)
	}
}

func TestValidateConfigs(t *testing.T) {
	cases := []struct {
		name    string
		configs []StreamConfig
		ok      bool
	}{
		{"valid", []StreamConfig{{"SMA", 20}, {"EMA", 9}, {"SMMA", 7}, {"RSI", 14}}, true},
		{"unknown type", []StreamConfig{{"VWAP", 20}}, false},
		{"zero period", []StreamConfig{{"SMA", 0}}, false},
		{"duplicate", []StreamConfig{{"SMA", 20}, {"SMA", 20}}, false},
	}
	for _, tc := range cases {
		err := ValidateConfigs(tc.configs)
		if (err == nil) != tc.ok {
			t.Errorf("%s: err=%v", tc.name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%s: expected ErrInvalidParameter, got %v", tc.name, err)
		}
	}
}

func TestParseStreamSpecs(t *testing.T) {
	configs, err := ParseStreamSpecs(" sma:20, EMA:9 ,rsi:14,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []StreamConfig{{"SMA", 20}, {"EMA", 9}, {"RSI", 14}}
	if len(configs) != len(want) {
		t.Fatalf("got %+v", configs)
	}
	for i := range want {
		if configs[i] != want[i] {
			t.Errorf("config %d: got %+v, want %+v", i, configs[i], want[i])
		}
	}

	for _, bad := range []string{"SMA", "SMA:x", "SMA:-1", "FOO:3"} {
		if _, err := ParseStreamSpecs(bad); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%q: expected ErrInvalidParameter, got %v", bad, err)
		}
	}
}

package indicator

import (
	"math"
	"testing"
	"time"

	"finplotter/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func candleAt(i int, close float64) model.Candle {
	return model.Candle{
		Date: epoch.AddDate(0, 0, i),
		Open: close, High: close + 0.5, Low: close - 0.5, Close: close,
	}
}

func candle(close float64) model.Candle { return candleAt(0, close) }

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA stream
// ────────────────────────────────────────────────────────────

func TestSMAStream_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA after candle 3: (100+102+104)/3 = 102
	// SMA after candle 4: (102+104+103)/3 = 103
	// SMA after candle 5: (104+103+105)/3 = 104
	sma := NewSMAStream(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102, 103, 104}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(candle(p))
		if sma.Ready() != ready[i] {
			t.Errorf("candle %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 1e-9)
		}
	}
}

func TestSMAStream_Peek(t *testing.T) {
	sma := NewSMAStream(3)
	for _, p := range []float64{100, 102, 104} {
		sma.Update(candle(p))
	}
	before := sma.Value()

	// Peek with 106 → (102+104+106)/3 = 104
	assertClose(t, "SMA Peek", sma.Peek(106), 104, 1e-9)
	assertClose(t, "SMA after Peek", sma.Value(), before, 0)
}

func TestSMAStream_PeekBeforeReady(t *testing.T) {
	sma := NewSMAStream(5)
	sma.Update(candle(10))
	sma.Update(candle(20))
	// Partial average including the previewed price: (10+20+30)/3
	assertClose(t, "partial Peek", sma.Peek(30), 20, 1e-9)
}

func TestSMAStream_MatchesBatchExactly(t *testing.T) {
	close := cents(randomWalk(500, 5))
	close = append(close, 978.26, 978.26, 978.26, 978.26)
	want, err := SMA(close, 3)
	if err != nil {
		t.Fatal(err)
	}

	sma := NewSMAStream(3)
	for i, c := range close {
		if i >= 2 {
			if got := sma.Peek(c); got != want[i-2] {
				t.Fatalf("peek %d: got %v, want %v", i, got, want[i-2])
			}
		}
		sma.Update(candleAt(i, c))
		if sma.Ready() && sma.Value() != want[i-2] {
			t.Fatalf("candle %d: got %v, want %v", i, sma.Value(), want[i-2])
		}
	}
	if sma.Value() != 978.26 {
		t.Errorf("flat window: got %v, want 978.26", sma.Value())
	}
}

// ────────────────────────────────────────────────────────────
// EMA stream
// ────────────────────────────────────────────────────────────

func TestEMAStream_Period3(t *testing.T) {
	// multiplier = 2/(3+1) = 0.5, seeded with the first price
	// 100 → 100, 102 → 101, 104 → 102.5, 103 → 102.75, 105 → 103.875
	ema := NewEMAStream(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{100, 101, 102.5, 102.75, 103.875}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Update(candle(p))
		if ema.Ready() != ready[i] {
			t.Errorf("candle %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		assertClose(t, "EMA(3)", ema.Value(), expected[i], 1e-9)
	}
}

func TestEMAStream_Peek(t *testing.T) {
	ema := NewEMAStream(3)
	if got := ema.Peek(42); got != 42 {
		t.Errorf("Peek on empty stream: got %v, want 42", got)
	}
	for _, p := range []float64{100, 102, 104} {
		ema.Update(candle(p))
	}
	// 106*0.5 + 102.5*0.5 = 104.25
	assertClose(t, "EMA Peek", ema.Peek(106), 104.25, 1e-9)
	assertClose(t, "EMA after Peek", ema.Value(), 102.5, 0)
}

// ────────────────────────────────────────────────────────────
// SMMA stream
// ────────────────────────────────────────────────────────────

func TestSMMAStream_Period3(t *testing.T) {
	// Seed: (10+11+12)/3 = 11
	// 13 → (11*2 + 13)/3 = 11.6667
	// 14 → (11.6667*2 + 14)/3 = 12.4444
	smma := NewSMMAStream(3)
	for _, p := range []float64{10, 11, 12} {
		smma.Update(candle(p))
	}
	assertClose(t, "SMMA seed", smma.Value(), 11, 1e-9)
	smma.Update(candle(13))
	assertClose(t, "SMMA 4", smma.Value(), 35.0/3, 1e-9)
	smma.Update(candle(14))
	assertClose(t, "SMMA 5", smma.Value(), (35.0/3*2+14)/3, 1e-9)

	before := smma.Value()
	assertClose(t, "SMMA Peek", smma.Peek(20), (before*2+20)/3, 1e-9)
	assertClose(t, "SMMA after Peek", smma.Value(), before, 0)
}

// ────────────────────────────────────────────────────────────
// RSI stream
// ────────────────────────────────────────────────────────────

func TestRSIStream_AllUp_Is100(t *testing.T) {
	rsi := NewRSIStream(5)
	for i := 0; i < 20; i++ {
		rsi.Update(candle(100 + float64(i)))
	}
	assertClose(t, "RSI all up", rsi.Value(), 100, 1e-9)
}

func TestRSIStream_AllDown_Is0(t *testing.T) {
	rsi := NewRSIStream(5)
	for i := 0; i < 20; i++ {
		rsi.Update(candle(200 - float64(i)))
	}
	assertClose(t, "RSI all down", rsi.Value(), 0, 1e-9)
}

func TestRSIStream_Flat_Is0(t *testing.T) {
	rsi := NewRSIStream(5)
	for i := 0; i < 10; i++ {
		rsi.Update(candle(100))
	}
	if !rsi.Ready() {
		t.Fatal("expected Ready after 10 candles")
	}
	assertClose(t, "RSI flat", rsi.Value(), 0, 0)
}

func TestRSIStream_Peek_CorrectDirection(t *testing.T) {
	rsi := NewRSIStream(3)
	for _, p := range []float64{10, 11, 10, 11, 10, 11} {
		rsi.Update(candle(p))
	}
	before := rsi.Value()
	up := rsi.Peek(15)
	down := rsi.Peek(5)
	if !(up > before && down < before) {
		t.Errorf("Peek direction: before=%.4f up=%.4f down=%.4f", before, up, down)
	}
	assertClose(t, "RSI after Peek", rsi.Value(), before, 0)
}

// ────────────────────────────────────────────────────────────
// Streams agree with the batch functions
// ────────────────────────────────────────────────────────────

func TestStreams_MatchBatch(t *testing.T) {
	_, _, close := walk(90)

	sma, _ := SMA(close, 20)
	ema, _ := EMA(close, 12)
	rsi, _ := RSI(close, 14)

	smaS, emaS, rsiS := NewSMAStream(20), NewEMAStream(12), NewRSIStream(14)
	for i, c := range close {
		cd := candleAt(i, c)
		smaS.Update(cd)
		emaS.Update(cd)
		rsiS.Update(cd)

		assertClose(t, "EMA", emaS.Value(), ema[i], 1e-9)
		if smaS.Ready() {
			assertClose(t, "SMA", smaS.Value(), sma[i-19], 1e-9)
		}
		if rsiS.Ready() {
			assertClose(t, "RSI", rsiS.Value(), rsi[i-14], 1e-9)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Snapshot round trips of single streams
// ────────────────────────────────────────────────────────────

func TestStreamSnapshots_RoundTrip(t *testing.T) {
	_, _, close := walk(40)
	cases := []struct {
		fresh func() Snapshottable
	}{
		{func() Snapshottable { return NewSMAStream(7) }},
		{func() Snapshottable { return NewEMAStream(7) }},
		{func() Snapshottable { return NewSMMAStream(7) }},
		{func() Snapshottable { return NewRSIStream(7) }},
	}

	for _, tc := range cases {
		orig := tc.fresh()
		for i, c := range close[:30] {
			orig.Update(candleAt(i, c))
		}

		restored := tc.fresh()
		if err := restored.RestoreFromSnapshot(orig.Snapshot()); err != nil {
			t.Fatalf("%s: restore failed: %v", orig.Name(), err)
		}
		if orig.Value() != restored.Value() || orig.Ready() != restored.Ready() {
			t.Errorf("%s: restored state differs: %v/%v vs %v/%v",
				orig.Name(), orig.Value(), orig.Ready(), restored.Value(), restored.Ready())
		}

		// Feed more data: both must produce identical results
		for i, c := range close[30:] {
			orig.Update(candleAt(30+i, c))
			restored.Update(candleAt(30+i, c))
			assertClose(t, orig.Name()+" post-restore", restored.Value(), orig.Value(), 1e-10)
		}
	}
}

func TestSMAStream_RestoreRejectsMismatchedBuffer(t *testing.T) {
	s := NewSMAStream(3)
	err := s.RestoreFromSnapshot(IndicatorSnapshot{Type: "SMA", Period: 3, Buf: []float64{1, 2}})
	if err == nil {
		t.Fatal("expected error for short buffer")
	}
}

package service

import (
	"context"
	"log/slog"
	"time"

	"finplotter/internal/indicator"
)

// Restore rebuilds the streaming engine from the latest stored snapshot,
// falling back to a cold engine, then replays the stored candles the
// snapshot has not seen. Backfilled results are kept as latest values but
// not published.
func (s *Service) Restore(ctx context.Context) error {
	var snap *indicator.EngineSnapshot
	if s.snapshots != nil {
		var err error
		snap, err = s.snapshots.ReadLatestSnapshot()
		if err != nil {
			slog.Warn("read snapshot failed, cold starting", "component", "service", "error", err)
			snap = nil
		}
	}

	engine := s.restorer.RestoreFromSnap(snap)
	// A cold fallback engine holds no symbols and must replay everything.
	var lastDates map[string]time.Time
	if snap != nil && len(engine.Symbols()) > 0 {
		lastDates = snap.LastDates()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
	s.lastDates = s.restorer.Backfill(ctx, engine, s.store, lastDates, s.remember)
	return ctx.Err()
}

// SaveSnapshot checkpoints the streaming engine. A nil snapshot store is a no-op.
func (s *Service) SaveSnapshot() error {
	if s.snapshots == nil {
		return nil
	}

	s.mu.Lock()
	lastDates := make(map[string]time.Time, len(s.lastDates))
	for k, v := range s.lastDates {
		lastDates[k] = v
	}
	snap, err := indicator.SnapshotEngine(s.engine, lastDates)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.snapshots.SaveSnapshot(snap); err != nil {
		return err
	}
	slog.Debug("checkpoint saved", "component", "service", "symbols", len(snap.Symbols))
	return nil
}

// RunSnapshots saves a checkpoint every interval and a final one when ctx
// is cancelled. Blocks until then. A non-positive interval disables the
// periodic checkpoints and keeps only the final one.
func (s *Service) RunSnapshots(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			if err := s.SaveSnapshot(); err != nil {
				slog.Error("final snapshot failed", "component", "service", "error", err)
				return
			}
			slog.Info("final snapshot saved", "component", "service")
			return
		case <-tick:
			if err := s.SaveSnapshot(); err != nil {
				slog.Warn("snapshot failed", "component", "service", "error", err)
			}
		}
	}
}

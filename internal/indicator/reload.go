package indicator

import (
	"log/slog"

	"github.com/pkg/errors"
)

// ReloadConfigs replaces the engine's stream configs. State is preserved for
// indicators present in both the old and new config (matched by Type+Period);
// genuinely new indicators start cold. Returns the number of preserved and
// newly created indicator instances across all symbols.
func (e *Engine) ReloadConfigs(newConfigs []StreamConfig) (preserved, created int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if indicatorSetsEqual(e.configs, newConfigs) {
		e.configs = newConfigs
		for symbol, ss := range e.state {
			e.state[symbol] = migrateSymbolStreams(ss, newConfigs)
			preserved += len(newConfigs)
		}
		slog.Info("indicator config unchanged", "component", "reload", "symbols", len(e.state))
		return preserved, 0
	}

	for symbol, ss := range e.state {
		migrated := migrateSymbolStreams(ss, newConfigs)
		for _, st := range migrated.streams {
			if reused(ss, st) {
				preserved++
			} else {
				created++
			}
		}
		e.state[symbol] = migrated
	}
	e.configs = newConfigs

	slog.Info("indicator config reloaded",
		"component", "reload", "configs", len(newConfigs),
		"preserved", preserved, "created", created)
	return preserved, created
}

func reused(ss *symbolStreams, st Stream) bool {
	for _, old := range ss.streams {
		if old == st {
			return true
		}
	}
	return false
}

// migrateSymbolStreams builds the streams for newConfigs, reusing instances
// from ss that match by Type+Period.
func migrateSymbolStreams(ss *symbolStreams, newConfigs []StreamConfig) *symbolStreams {
	oldByKey := make(map[string]Stream, len(ss.streams))
	for i, cfg := range ss.configs {
		oldByKey[cfg.Key()] = ss.streams[i]
	}

	streams := make([]Stream, len(newConfigs))
	for i, cfg := range newConfigs {
		if existing, ok := oldByKey[cfg.Key()]; ok {
			streams[i] = existing
			continue
		}
		streams[i] = newStream(cfg)
	}
	return &symbolStreams{streams: streams, configs: newConfigs}
}

// indicatorSetsEqual checks if two config slices have the exact same
// set of indicators (order-independent).
func indicatorSetsEqual(a, b []StreamConfig) bool {
	if len(a) != len(b) {
		return false
	}
	setA := make(map[string]bool, len(a))
	for _, c := range a {
		setA[c.Key()] = true
	}
	for _, c := range b {
		if !setA[c.Key()] {
			return false
		}
	}
	return true
}

// ValidateConfigs checks a set of StreamConfigs for errors.
func ValidateConfigs(configs []StreamConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, c := range configs {
		switch c.Type {
		case "SMA", "EMA", "SMMA", "RSI":
		default:
			return errors.Wrapf(ErrInvalidParameter, "unknown indicator type %q", c.Type)
		}
		if c.Period <= 0 {
			return errors.Wrapf(ErrInvalidParameter, "invalid period=%d for %s", c.Period, c.Type)
		}
		if seen[c.Key()] {
			return errors.Wrapf(ErrInvalidParameter, "duplicate indicator %s", c.Key())
		}
		seen[c.Key()] = true
	}
	return nil
}

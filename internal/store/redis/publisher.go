package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
	"unsafe"

	"finplotter/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const defaultLatestTTL = 30 * time.Minute

// Publisher fans indicator results out over Redis pub/sub and keeps the
// latest confirmed value of every indicator per symbol in a hash.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

// NewPublisher shares the client and breaker of c. A disabled cache
// yields a publisher whose calls are no-ops.
func NewPublisher(c *Cache) *Publisher {
	return &Publisher{client: c.client, cb: c.cb}
}

// LatestKey returns the hash holding the latest results of symbol.
func LatestKey(symbol string) string {
	return "ind:latest:" + safe(symbol)
}

// PublishBatch writes results in a single pipeline. Confirmed results are
// stored with HSET and published; live results are only published.
// Results that are neither ready nor live are skipped.
func (p *Publisher) PublishBatch(ctx context.Context, results []model.IndicatorResult) error {
	if p.client == nil || len(results) == 0 {
		return nil
	}

	return p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		touched := make(map[string]struct{})
		queued := 0
		for i := range results {
			ind := &results[i]
			if !ind.Ready && !ind.Live {
				continue
			}

			jsonBytes := ind.JSON()
			// jsonBytes is not mutated after this point.
			jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

			if !ind.Live {
				key := LatestKey(ind.Symbol)
				pipe.HSet(ctx, key, ind.Name, jsonData)
				touched[key] = struct{}{}
			}
			pipe.Publish(ctx, ind.Channel(), jsonData)
			queued++
		}
		if queued == 0 {
			return nil
		}
		for key := range touched {
			pipe.Expire(ctx, key, defaultLatestTTL)
		}

		if _, err := pipe.Exec(ctx); err != nil {
			slog.Warn("indicator pipeline failed", "component", "redis", "results", len(results), "error", err)
			return errors.Wrap(err, "redis indicator pipeline")
		}
		return nil
	})
}

// Latest returns the latest confirmed results of symbol keyed by indicator
// name. A missing hash returns an empty map.
func (p *Publisher) Latest(ctx context.Context, symbol string) (map[string]model.IndicatorResult, error) {
	out := make(map[string]model.IndicatorResult)
	if p.client == nil {
		return out, nil
	}

	var raw map[string]string
	err := p.cb.Execute(func() error {
		var err error
		raw, err = p.client.HGetAll(ctx, LatestKey(symbol)).Result()
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "redis HGETALL %s", LatestKey(symbol))
	}

	for name, data := range raw {
		var r model.IndicatorResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			slog.Warn("skipping corrupt latest result", "component", "redis", "symbol", symbol, "name", name, "error", err)
			continue
		}
		out[name] = r
	}
	return out, nil
}

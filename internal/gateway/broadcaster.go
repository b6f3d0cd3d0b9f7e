package gateway

import (
	"strconv"
	"time"

	"finplotter/internal/model"
)

// Broadcast sends r to every client subscribed to r.Symbol.
// Confirmed results advance the symbol's sequence and enter its replay
// buffer; live previews carry the current sequence and are not buffered.
// Clients receive envelopes in sequence order.
func (h *Hub) Broadcast(r model.IndicatorResult) {
	now := time.Now().UTC()
	data := r.JSON()

	h.mu.Lock()
	defer h.mu.Unlock()
	seq := h.seqs[r.Symbol]
	if !r.Live {
		seq++
		h.seqs[r.Symbol] = seq
	}
	buf := buildEnvelope(r.Channel(), data, now, seq)
	if !r.Live {
		rb, ok := h.replay[r.Symbol]
		if !ok {
			rb = NewReplayBuffer(h.replayCap)
			h.replay[r.Symbol] = rb
		}
		rb.Push(seq, buf)
	}

	for client := range h.clients {
		if client.symbol != r.Symbol {
			continue
		}
		if !client.enqueue(buf) && h.OnDrop != nil {
			h.OnDrop()
		}
	}
}

// buildEnvelope hand-crafts {"channel":...,"data":...,"ts":...,"seq":N}.
// data must already be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

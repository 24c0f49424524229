package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pscheid92/pulsecast/internal/domain"
	"github.com/pscheid92/pulsecast/internal/metrics"
)

const fetchTimeout = 5 * time.Second

// statusPhrases is the fixed pool each status update draws one phrase from
// uniformly at random.
var statusPhrases = []string{
	"all systems nominal",
	"humming along",
	"steady as she goes",
	"pushing fresh bits",
	"dispatcher in the zone",
	"ticking like clockwork",
}

type referencePayloadMessage struct {
	Type string      `json:"type"`
	Mode domain.Mode `json:"mode"`
	URL  string      `json:"url"`
}

type embeddedHeaderMessage struct {
	Type        string      `json:"type"`
	Mode        domain.Mode `json:"mode"`
	ContentType string      `json:"content_type"`
	Size        int         `json:"size"`
	FetchedAt   time.Time   `json:"fetched_at"`
}

// handleTick runs once per base interval while the dispatcher is active:
// compute the due set, fetch the expensive payload at most once if any due
// connection wants it, push to due connections, and emit a status update.
func (h *Hub) handleTick() {
	start := h.clock.Now()
	defer func() {
		metrics.TickDuration.Observe(h.clock.Since(start).Seconds())
	}()

	now := start
	var due []*connection
	needFetch := false
	for _, conn := range h.conns {
		if conn.paused {
			continue
		}
		if !conn.lastPush.IsZero() && now.Sub(conn.lastPush) < time.Duration(conn.intervalMS)*time.Millisecond {
			continue
		}
		due = append(due, conn)
		if conn.mode == domain.ModeEmbeddedBytes {
			needFetch = true
		}
	}

	// At most one fetch per tick, shared by every interested due connection.
	// The fetch is the only blocking operation in the hub; commands simply
	// queue behind it in arrival order.
	var fetched *domain.FetchedPayload
	if needFetch {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		result, err := h.fetcher.Fetch(ctx)
		cancel()

		if err != nil {
			slog.Warn("Upstream fetch failed, skipping embedded pushes this tick", "error", err)
			h.counters.IncErrors(metrics.ErrorKindUpstreamFetch)
			h.notifyFetchFailure()
		} else {
			fetched = result
		}
	}

	for _, conn := range due {
		switch conn.mode {
		case domain.ModeReference:
			h.pushReference(conn, now)
		case domain.ModeEmbeddedBytes:
			if fetched != nil {
				h.pushEmbedded(conn, fetched, now)
			}
		}
	}

	if h.status != nil {
		h.status.PublishStatus(domain.StatusUpdate{
			UptimeSeconds: h.clock.Since(h.startedAt).Seconds(),
			Connections:   len(h.conns),
			PayloadsSent:  h.counters.PayloadsSent(),
			Phrase:        statusPhrases[rand.IntN(len(statusPhrases))],
		})
	}
}

// pushReference sends a freshly generated reference value, computed without
// waiting on any fetch.
func (h *Hub) pushReference(conn *connection, now time.Time) {
	// lastPush advances on attempted push, whether or not the transport
	// accepts it, to prevent retry storms after a transient send failure.
	conn.lastPush = now

	msg := referencePayloadMessage{Type: "payload", Mode: domain.ModeReference, URL: h.source.Next()}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal reference payload", "error", err)
		return
	}

	conn.writer.enqueue(textFrame(data))
	h.counters.IncPayloadsSent()
}

// pushEmbedded sends the header describing the fetched payload followed by
// the raw bytes as a second frame on the same connection. Both frames are
// enqueued atomically so no other push interleaves between them.
func (h *Hub) pushEmbedded(conn *connection, fetched *domain.FetchedPayload, now time.Time) {
	conn.lastPush = now

	header := embeddedHeaderMessage{
		Type:        "payload",
		Mode:        domain.ModeEmbeddedBytes,
		ContentType: fetched.ContentType,
		Size:        len(fetched.Data),
		FetchedAt:   fetched.FetchedAt,
	}
	data, err := json.Marshal(header)
	if err != nil {
		slog.Error("Failed to marshal embedded payload header", "error", err)
		return
	}

	conn.writer.enqueue(textFrame(data), binaryFrame(fetched.Data))
	h.counters.IncPayloadsSent()
}

// notifyFetchFailure informs every embedded-bytes connection that the
// upstream fetch failed this tick. Reference-mode pushes proceed
// independently.
func (h *Hub) notifyFetchFailure() {
	data, err := json.Marshal(errorReply{Type: "error", Error: "upstream fetch failed, embedded payload skipped this tick"})
	if err != nil {
		return
	}
	for _, conn := range h.conns {
		if conn.mode == domain.ModeEmbeddedBytes {
			conn.writer.enqueue(textFrame(data))
		}
	}
}

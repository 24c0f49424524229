package metrics

import "sync/atomic"

// Counters holds the process-wide monotonic totals served by the stats
// endpoint. Every increment also bumps the matching Prometheus instrument,
// so the JSON view and the scrape view never diverge.
type Counters struct {
	requests    atomic.Uint64
	connections atomic.Uint64
	messages    atomic.Uint64
	payloads    atomic.Uint64
	errors      atomic.Uint64
}

// CountersSnapshot is the JSON shape of the stats endpoint's counter block.
type CountersSnapshot struct {
	RequestsServed      uint64 `json:"requests_served"`
	ConnectionsAccepted uint64 `json:"connections_accepted"`
	MessagesReceived    uint64 `json:"messages_received"`
	PayloadsSent        uint64 `json:"payloads_sent"`
	Errors              uint64 `json:"errors"`
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) IncRequests() {
	c.requests.Add(1)
	RequestsTotal.Inc()
}

func (c *Counters) IncConnectionsAccepted() {
	c.connections.Add(1)
	ConnectionsAcceptedTotal.Inc()
}

func (c *Counters) IncMessagesReceived() {
	c.messages.Add(1)
	MessagesReceivedTotal.Inc()
}

func (c *Counters) IncPayloadsSent() {
	c.payloads.Add(1)
	PayloadsSentTotal.Inc()
}

func (c *Counters) IncErrors(kind string) {
	c.errors.Add(1)
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// PayloadsSent returns the current payload total, used in status updates.
func (c *Counters) PayloadsSent() uint64 {
	return c.payloads.Load()
}

// Snapshot returns a point-in-time copy of all totals.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		RequestsServed:      c.requests.Load(),
		ConnectionsAccepted: c.connections.Load(),
		MessagesReceived:    c.messages.Load(),
		PayloadsSent:        c.payloads.Load(),
		Errors:              c.errors.Load(),
	}
}

// Package hub implements the dispatcher/registry core: connection lifecycle
// tracking, per-connection rate-gated broadcast, and command-driven state
// mutation. A single goroutine owns all registry state and processes
// commands, inbound messages, and ticks as non-overlapping events (no
// mutexes); per-connection writer goroutines absorb slow peers.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pulsecast/internal/config"
	"github.com/pscheid92/pulsecast/internal/domain"
	"github.com/pscheid92/pulsecast/internal/metrics"
)

const (
	// baseTickInterval equals the minimum per-connection interval, so a
	// connection at the minimum is due every tick.
	baseTickInterval = domain.MinIntervalMS * time.Millisecond

	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// UpstreamFetcher retrieves the expensive payload. Invoked at most once per
// tick regardless of how many connections want it.
type UpstreamFetcher interface {
	Fetch(ctx context.Context) (*domain.FetchedPayload, error)
}

// ReferenceSource produces cheap reference payloads.
type ReferenceSource interface {
	Next() string
}

// StatusSink receives the per-tick status update, typically the one-way
// stream hub.
type StatusSink interface {
	PublishStatus(domain.StatusUpdate)
}

// connection is one registry entry. Mutated only by the hub goroutine.
type connection struct {
	id         uuid.UUID
	writer     *clientWriter
	intervalMS int
	paused     bool
	mode       domain.Mode
	lastPush   time.Time
}

// --- Actor commands ---

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection *websocket.Conn
	replyCh    chan registerReply
}

type registerReply struct {
	id  uuid.UUID
	err error
}

type unregisterCmd struct {
	baseHubCmd
	id uuid.UUID
}

type messageCmd struct {
	baseHubCmd
	id   uuid.UUID
	data []byte
}

type publishConfigCmd struct {
	baseHubCmd
	snapshot domain.ConfigSnapshot
}

type countCmd struct {
	baseHubCmd
	replyCh chan int
}

type runningCmd struct {
	baseHubCmd
	replyCh chan bool
}

type stopCmd struct {
	baseHubCmd
}

// Hub is the connection registry and tick dispatcher.
type Hub struct {
	cmdCh    chan hubCmd
	clock    clockwork.Clock
	store    *config.Store
	source   ReferenceSource
	fetcher  UpstreamFetcher
	status   StatusSink
	counters *metrics.Counters

	conns     map[uuid.UUID]*connection
	ticker    clockwork.Ticker
	tickCh    <-chan time.Time
	startedAt time.Time
	done      chan struct{}
}

// New creates and starts a hub. status may be nil when no one-way stream hub
// is attached.
func New(store *config.Store, source ReferenceSource, fetcher UpstreamFetcher, status StatusSink, counters *metrics.Counters, clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:     make(chan hubCmd, 256),
		clock:     clock,
		store:     store,
		source:    source,
		fetcher:   fetcher,
		status:    status,
		counters:  counters,
		conns:     make(map[uuid.UUID]*connection),
		startedAt: clock.Now(),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a bidirectional connection to the registry, assigning it the
// current configuration defaults. Returns domain.ErrCapacityExceeded when the
// registry is at its configured maximum; the connection is not registered in
// that case and the caller owns closing it.
func (h *Hub) Register(conn *websocket.Conn) (uuid.UUID, error) {
	replyCh := make(chan registerReply, 1)
	h.cmdCh <- registerCmd{connection: conn, replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.id, reply.err
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection. Close is terminal: no further state
// mutation or push attempts happen after removal.
func (h *Hub) Unregister(id uuid.UUID) {
	h.cmdCh <- unregisterCmd{id: id}
}

// HandleMessage feeds one inbound message from the given connection into the
// command protocol. Messages from one connection arrive in order because a
// single read loop produces them.
func (h *Hub) HandleMessage(id uuid.UUID, data []byte) {
	h.cmdCh <- messageCmd{id: id, data: data}
}

// PublishConfig pushes a configuration snapshot to every registered
// connection. Individually overridden interval/mode/paused state is not
// touched.
func (h *Hub) PublishConfig(snapshot domain.ConfigSnapshot) {
	h.cmdCh <- publishConfigCmd{snapshot: snapshot}
}

// ConnectionCount returns the number of registered connections, or -1 on
// timeout.
func (h *Hub) ConnectionCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- countCmd{replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ConnectionCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// DispatcherRunning reports whether the tick dispatcher is currently active.
func (h *Hub) DispatcherRunning() bool {
	replyCh := make(chan bool, 1)
	h.cmdCh <- runningCmd{replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case running := <-replyCh:
		return running
	case <-timer.Chan():
		return false
	}
}

// Stop shuts down the hub, closing all connections. Blocks until the hub
// goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				h.handleUnregister(c.id)
			case messageCmd:
				h.handleMessage(c)
			case publishConfigCmd:
				h.handlePublishConfig(c.snapshot)
			case countCmd:
				c.replyCh <- len(h.conns)
			case runningCmd:
				c.replyCh <- h.tickCh != nil
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-h.tickCh:
			h.handleTick()
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	cfg := h.store.Current()

	if len(h.conns) >= cfg.MaxConnections {
		slog.Warn("Rejecting connection: registry at capacity", "max_connections", cfg.MaxConnections)
		h.counters.IncErrors(metrics.ErrorKindCapacity)
		c.replyCh <- registerReply{err: domain.ErrCapacityExceeded}
		return
	}

	conn := &connection{
		id:         uuid.New(),
		writer:     newClientWriter(c.connection, h.clock),
		intervalMS: cfg.DefaultIntervalMS,
		mode:       cfg.DefaultMode,
	}
	h.conns[conn.id] = conn

	h.counters.IncConnectionsAccepted()
	metrics.ActiveConnections.Set(float64(len(h.conns)))

	// Lazy activation: the dispatcher only works while connections exist.
	if len(h.conns) == 1 {
		h.startDispatcher()
	}

	slog.Debug("Connection registered", "connection_id", conn.id.String(), "total", len(h.conns))
	c.replyCh <- registerReply{id: conn.id}
}

func (h *Hub) handleUnregister(id uuid.UUID) {
	conn, exists := h.conns[id]
	if !exists {
		return
	}

	conn.writer.stop()
	delete(h.conns, id)
	metrics.ActiveConnections.Set(float64(len(h.conns)))

	if len(h.conns) == 0 {
		h.stopDispatcher()
		slog.Info("Last connection closed, dispatcher stopped")
	} else {
		slog.Debug("Connection unregistered", "connection_id", id.String(), "remaining", len(h.conns))
	}
}

func (h *Hub) handleMessage(c messageCmd) {
	conn, exists := h.conns[c.id]
	if !exists {
		return
	}

	h.counters.IncMessagesReceived()

	cmd, ok := parseCommand(c.data)
	if !ok {
		// Empty or blank input, ignored without a reply.
		return
	}

	reply := h.applyCommand(conn, cmd)
	if _, isErr := reply.(errorReply); isErr {
		h.counters.IncErrors(metrics.ErrorKindCommand)
	}

	data, err := json.Marshal(reply)
	if err != nil {
		slog.Error("Failed to marshal command reply", "error", err)
		return
	}
	conn.writer.enqueue(textFrame(data))
}

type configMessage struct {
	Type   string                `json:"type"`
	Config domain.ConfigSnapshot `json:"config"`
}

func (h *Hub) handlePublishConfig(snapshot domain.ConfigSnapshot) {
	data, err := json.Marshal(configMessage{Type: "config", Config: snapshot})
	if err != nil {
		slog.Error("Failed to marshal config message", "error", err)
		return
	}
	for _, conn := range h.conns {
		conn.writer.enqueue(textFrame(data))
	}
}

func (h *Hub) startDispatcher() {
	h.ticker = h.clock.NewTicker(baseTickInterval)
	h.tickCh = h.ticker.Chan()
	metrics.DispatcherRunning.Set(1)
}

func (h *Hub) stopDispatcher() {
	if h.ticker == nil {
		return
	}
	h.ticker.Stop()
	h.ticker = nil
	h.tickCh = nil
	metrics.DispatcherRunning.Set(0)
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "connections", len(h.conns))

	for id, conn := range h.conns {
		conn.writer.stopGraceful("Server shutting down")
		delete(h.conns, id)
	}
	h.stopDispatcher()
	metrics.ActiveConnections.Set(0)
}

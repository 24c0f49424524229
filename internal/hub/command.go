package hub

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pscheid92/pulsecast/internal/domain"
)

// command is the canonical form both inbound syntaxes resolve to.
type command struct {
	name string
	ms   *float64
	mode string
}

// structuredCommand is the JSON syntax: {"command": "interval", "ms": 500}.
type structuredCommand struct {
	Command string   `json:"command"`
	MS      *float64 `json:"ms"`
	Mode    string   `json:"mode"`
}

// parseCommand resolves a raw inbound message into a command. Structured
// parsing is attempted first; on failure the raw input is re-parsed as
// whitespace-delimited text. This two-stage fallback is observable behavior
// and kept deliberately. Returns false for empty or blank input, which is
// ignored without a reply.
func parseCommand(raw []byte) (command, bool) {
	if cmd, ok := parseStructured(raw); ok {
		return cmd, true
	}
	return parseText(raw)
}

func parseStructured(raw []byte) (command, bool) {
	var sc structuredCommand
	if err := json.Unmarshal(raw, &sc); err != nil {
		return command{}, false
	}
	if strings.TrimSpace(sc.Command) == "" {
		return command{}, false
	}
	return command{
		name: strings.ToLower(strings.TrimSpace(sc.Command)),
		ms:   sc.MS,
		mode: sc.Mode,
	}, true
}

func parseText(raw []byte) (command, bool) {
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return command{}, false
	}

	cmd := command{name: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		arg := fields[1]
		cmd.mode = arg
		if ms, err := strconv.ParseFloat(arg, 64); err == nil {
			cmd.ms = &ms
		}
	}
	return cmd, true
}

// Reply shapes. Every recognized command produces exactly one synchronous
// reply on the same connection.

type okReply struct {
	Type       string       `json:"type"`
	Command    string       `json:"command"`
	IntervalMS *int         `json:"interval_ms,omitempty"`
	Mode       *domain.Mode `json:"mode,omitempty"`
}

type errorReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type helpReply struct {
	Type     string   `json:"type"`
	Commands []string `json:"commands"`
}

type pongReply struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

type whoamiReply struct {
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	IntervalMS int         `json:"interval_ms"`
	Paused     bool        `json:"paused"`
	Mode       domain.Mode `json:"mode"`
}

var helpCommands = []string{
	"help",
	"interval <ms>",
	"pause",
	"resume",
	"mode <reference|embedded-bytes>",
	"ping",
	"whoami",
}

// applyCommand mutates the connection according to cmd and returns the reply
// to send. Invalid arguments leave the connection's state unchanged.
func (h *Hub) applyCommand(c *connection, cmd command) any {
	switch cmd.name {
	case "help":
		return helpReply{Type: "help", Commands: helpCommands}

	case "interval":
		if cmd.ms == nil || math.IsNaN(*cmd.ms) || math.IsInf(*cmd.ms, 0) {
			return errorReply{Type: "error", Error: "interval requires a finite millisecond value"}
		}
		if !domain.ValidInterval(*cmd.ms) {
			return errorReply{
				Type:  "error",
				Error: fmt.Sprintf("interval must be between %d and %d ms", domain.MinIntervalMS, domain.MaxIntervalMS),
			}
		}
		c.intervalMS = int(*cmd.ms)
		return okReply{Type: "ok", Command: "interval", IntervalMS: &c.intervalMS}

	case "pause":
		c.paused = true
		return okReply{Type: "ok", Command: "pause"}

	case "resume":
		c.paused = false
		return okReply{Type: "ok", Command: "resume"}

	case "mode":
		mode, ok := domain.ParseMode(cmd.mode)
		if !ok {
			return errorReply{
				Type:  "error",
				Error: fmt.Sprintf("mode must be %q or %q", domain.ModeReference, domain.ModeEmbeddedBytes),
			}
		}
		c.mode = mode
		return okReply{Type: "ok", Command: "mode", Mode: &c.mode}

	case "ping":
		return pongReply{Type: "pong", TS: h.clock.Now().UnixMilli()}

	case "whoami":
		return whoamiReply{
			Type:       "whoami",
			ID:         c.id.String(),
			IntervalMS: c.intervalMS,
			Paused:     c.paused,
			Mode:       c.mode,
		}

	default:
		return errorReply{Type: "error", Error: fmt.Sprintf("unknown command %q", cmd.name)}
	}
}

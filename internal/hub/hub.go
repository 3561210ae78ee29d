// Package hub holds the daemon's ephemeral orchestration state and
// replicates it to connected observers. Broadcast is best-effort: a
// broken observer is dropped, never retried, and never fails the caller.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/warden-dev/warden/internal/approval"
	"github.com/warden-dev/warden/internal/clog"
)

const (
	// DefaultCommandLimit bounds the retained command events.
	DefaultCommandLimit = 50
	// DefaultLogLimit bounds the retained log entries.
	DefaultLogLimit = 200
	// DefaultHeartbeatInterval paces the observer liveness sweep.
	DefaultHeartbeatInterval = 30 * time.Second
)

// Observer is a connected duplex channel, typically a websocket client.
// Send and Ping must be safe for concurrent use and should fail fast on
// a dead connection.
type Observer interface {
	Send(Envelope) error
	Ping() error
}

// State is a consistent snapshot of everything the hub tracks. It is
// the payload of the "state" event sent to every new observer.
type State struct {
	CurrentProject   *Project               `json:"current_project"`
	Services         map[string]ServiceInfo `json:"services"`
	CommandHistory   []CommandEvent         `json:"command_history"`
	PendingApprovals []approval.Pending     `json:"pending_approvals"`
	Logs             []LogEntry             `json:"logs"`
	SavedCommands    []SavedCommand         `json:"saved_commands"`
}

// Hub is the process-wide source of truth for ephemeral state. All
// mutators take the lock only across the mutation, never across
// observer I/O.
type Hub struct {
	mu           sync.Mutex
	observers    map[Observer]struct{}
	project      *Project
	services     map[string]ServiceInfo
	approvals    []approval.Pending
	commands     []CommandEvent
	logs         []LogEntry
	saved        []SavedCommand
	commandLimit int
	logLimit     int
}

// Option configures a Hub.
type Option func(*Hub)

// WithCommandLimit overrides the retained command event cap.
func WithCommandLimit(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.commandLimit = n
		}
	}
}

// WithLogLimit overrides the retained log entry cap.
func WithLogLimit(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.logLimit = n
		}
	}
}

// New creates an empty Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		observers:    make(map[Observer]struct{}),
		services:     make(map[string]ServiceInfo),
		commandLimit: DefaultCommandLimit,
		logLimit:     DefaultLogLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddObserver registers a new observer and immediately sends it a full
// state snapshot so late joiners converge without replaying history.
func (h *Hub) AddObserver(o Observer) {
	h.mu.Lock()
	h.observers[o] = struct{}{}
	snap := h.snapshotLocked()
	h.mu.Unlock()

	if err := o.Send(newEnvelope(EventState, snap)); err != nil {
		h.RemoveObserver(o)
	}
}

// RemoveObserver drops an observer from the active set.
func (h *Hub) RemoveObserver(o Observer) {
	h.mu.Lock()
	delete(h.observers, o)
	h.mu.Unlock()
}

// ObserverCount reports the current active observer count.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Broadcast delivers an event to every connected observer. Observers
// whose send fails are silently dropped.
func (h *Hub) Broadcast(t EventType, data any) {
	h.broadcast(newEnvelope(t, data))
}

func (h *Hub) broadcast(env Envelope) {
	h.mu.Lock()
	targets := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	var dead []Observer
	for _, o := range targets {
		if err := o.Send(env); err != nil {
			dead = append(dead, o)
		}
	}
	if len(dead) > 0 {
		h.mu.Lock()
		for _, o := range dead {
			delete(h.observers, o)
		}
		h.mu.Unlock()
		clog.Debug("hub: dropped %d dead observers", len(dead))
	}
}

// Snapshot returns a consistent copy of the current state.
func (h *Hub) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() State {
	services := make(map[string]ServiceInfo, len(h.services))
	for k, v := range h.services {
		services[k] = v
	}
	snap := State{
		CurrentProject:   h.project,
		Services:         services,
		CommandHistory:   append([]CommandEvent(nil), h.commands...),
		PendingApprovals: append([]approval.Pending(nil), h.approvals...),
		Logs:             append([]LogEntry(nil), h.logs...),
		SavedCommands:    append([]SavedCommand(nil), h.saved...),
	}
	return snap
}

// BroadcastState sends a full state snapshot to all observers.
func (h *Hub) BroadcastState() {
	h.broadcast(newEnvelope(EventState, h.Snapshot()))
}

// SetProject replaces the active project context.
func (h *Hub) SetProject(p Project) {
	h.mu.Lock()
	h.project = &p
	h.mu.Unlock()
	h.Broadcast(EventProjectChanged, p)
}

// AddService records a started service.
func (h *Hub) AddService(s ServiceInfo) {
	h.mu.Lock()
	h.services[s.ID] = s
	h.mu.Unlock()
	h.Broadcast(EventServiceStarted, map[string]any{
		"id":   s.ID,
		"name": s.Name,
		"port": s.Port,
		"pid":  s.PID,
	})
}

// RemoveService drops a service from the running set.
func (h *Hub) RemoveService(id string) {
	h.mu.Lock()
	delete(h.services, id)
	h.mu.Unlock()
	h.Broadcast(EventServiceStopped, map[string]any{"id": id})
}

// UpdateServiceStatus changes a tracked service's status string.
func (h *Hub) UpdateServiceStatus(id, status string) {
	h.mu.Lock()
	if s, ok := h.services[id]; ok {
		s.Status = status
		h.services[id] = s
	}
	h.mu.Unlock()
	h.Broadcast(EventServiceStatus, map[string]any{"id": id, "status": status})
}

// Services returns a copy of the running service map.
func (h *Hub) Services() map[string]ServiceInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]ServiceInfo, len(h.services))
	for k, v := range h.services {
		out[k] = v
	}
	return out
}

// AddPendingApproval mirrors a broker registration for observers.
func (h *Hub) AddPendingApproval(p approval.Pending) {
	h.mu.Lock()
	h.approvals = append(h.approvals, p)
	h.mu.Unlock()
	h.Broadcast(EventApprovalRequired, p)
}

// RemovePendingApproval clears a resolved or expired approval. Must be
// paired with broker removal so observers never see a stale entry.
func (h *Hub) RemovePendingApproval(id string) {
	h.mu.Lock()
	kept := h.approvals[:0]
	for _, p := range h.approvals {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	h.approvals = kept
	h.mu.Unlock()
	h.Broadcast(EventApprovalResolved, map[string]any{"id": id})
}

// PendingApprovals returns a copy of the mirrored pending set.
func (h *Hub) PendingApprovals() []approval.Pending {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]approval.Pending(nil), h.approvals...)
}

// AddCommand appends a command event to the bounded history. Captured
// output is truncated to the transport caps before it is retained or
// broadcast.
func (h *Hub) AddCommand(ev CommandEvent) {
	ev.Stdout = truncate(ev.Stdout, MaxStdoutBytes)
	ev.Stderr = truncate(ev.Stderr, MaxStderrBytes)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.Lock()
	h.commands = append(h.commands, ev)
	if len(h.commands) > h.commandLimit {
		h.commands = h.commands[len(h.commands)-h.commandLimit:]
	}
	h.mu.Unlock()
	h.Broadcast(EventCommand, ev)
}

// Log appends a log entry to the bounded log buffer and broadcasts it.
func (h *Hub) Log(level, message, source string) {
	entry := LogEntry{
		Level:     level,
		Message:   message,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	h.mu.Lock()
	h.logs = append(h.logs, entry)
	if len(h.logs) > h.logLimit {
		h.logs = h.logs[len(h.logs)-h.logLimit:]
	}
	h.mu.Unlock()
	h.Broadcast(EventLog, entry)
}

// SetSavedCommands replaces the saved command mirror and broadcasts the
// full list, matching how observers consume it.
func (h *Hub) SetSavedCommands(saved []SavedCommand) {
	h.mu.Lock()
	h.saved = append([]SavedCommand(nil), saved...)
	h.mu.Unlock()
	h.Broadcast(EventSavedCommands, saved)
}

// StartHeartbeat runs the observer liveness sweep until ctx is done.
// Observers that fail a ping are dropped, bounding the broadcast set.
func (h *Hub) StartHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.sweep()
			}
		}
	}()
}

func (h *Hub) sweep() {
	h.mu.Lock()
	targets := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	for _, o := range targets {
		if err := o.Ping(); err != nil {
			h.RemoveObserver(o)
			clog.Debug("hub: observer failed ping, removed")
		}
	}
}

package plugin

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// DefaultQueueSize bounds pending deliveries before new ones are dropped.
const DefaultQueueSize = 64

// Dispatcher delivers emitted symbols to the enabled plugins in order, on
// its own goroutine so recognition never waits for a plugin.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	enabled  []string
	configs  map[string]json.RawMessage

	queue chan Request

	mu    sync.Mutex
	texts map[string]string
}

// NewDispatcher creates a Dispatcher for the named plugins. configs holds
// optional per-plugin settings forwarded with every request.
func NewDispatcher(mgr *Manager, exec *Executor, enabled []string, configs map[string]json.RawMessage, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		manager:  mgr,
		executor: exec,
		enabled:  enabled,
		configs:  configs,
		queue:    make(chan Request, queueSize),
		texts:    make(map[string]string),
	}
}

// Notify queues an emit event carrying the session text after symbol was
// applied and the text last seen for that session. It reports false when
// the queue is full and the event was dropped.
func (d *Dispatcher) Notify(session, symbol, text string) bool {
	d.mu.Lock()
	prev := d.texts[session]
	d.texts[session] = text
	d.mu.Unlock()

	req := Request{
		Event:   EventEmit,
		Session: session,
		Symbol:  symbol,
		Text:    text,
		Prev:    prev,
	}
	select {
	case d.queue <- req:
		return true
	default:
		slog.Warn("plugin queue full, dropping event", "session", session, "symbol", symbol)
		return false
	}
}

// Forget drops the remembered text of a session.
func (d *Dispatcher) Forget(session string) {
	d.mu.Lock()
	delete(d.texts, session)
	d.mu.Unlock()
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			d.deliver(ctx, req)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req Request) {
	for _, name := range d.enabled {
		p, err := d.manager.Get(name)
		if err != nil {
			slog.Debug("enabled plugin not installed", "plugin", name)
			continue
		}
		if !p.Handles(req.Event) {
			continue
		}

		r := req
		r.Config = d.configs[name]
		resp, err := d.executor.Execute(ctx, p, &r)
		switch {
		case err != nil:
			slog.Warn("plugin failed", "plugin", name, "error", err)
		case !resp.Success:
			slog.Warn("plugin reported failure", "plugin", name, "error", resp.Error)
		default:
			slog.Debug("plugin delivered", "plugin", name, "symbol", req.Symbol)
		}
	}
}

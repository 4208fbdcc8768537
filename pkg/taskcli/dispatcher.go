package taskcli

import (
	"encoding/json"
	"sync"

	"github.com/creachadair/jrpc2"
)

// Handler consumes one push notification's raw params.
type Handler func(params []byte)

// Dispatcher routes server pushes to registered handlers by method
// name. Unhandled methods are dropped.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Handle registers (or replaces) the handler for a push method, e.g.
// "task.changed".
func (d *Dispatcher) Handle(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

func (d *Dispatcher) dispatch(req *jrpc2.Request) {
	d.mu.RLock()
	h, ok := d.handlers[req.Method()]
	d.mu.RUnlock()
	if !ok {
		return
	}
	var params json.RawMessage
	if req.HasParams() {
		_ = req.UnmarshalParams(&params)
	}
	h(params)
}

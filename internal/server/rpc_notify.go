package server

import (
	"context"
	"sync"

	"github.com/creachadair/jrpc2"

	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/logger"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Push notification methods delivered to connected clients.
const (
	NotifyTaskChanged  = "task.changed"
	NotifyTaskStarting = "task.starting"
	NotifyTaskCanceled = "task.canceled"
	NotifyLogAppended  = "log.appended"
)

// RPCNotifier tracks connected jrpc2 servers per user and pushes
// notifications to the owning user's connections only. It satisfies
// the core's change-notifier and the scanner's occurrence-notifier.
// Delivery is fire-and-forget: a connection that cannot receive is
// dropped from the set.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[string]map[*jrpc2.Server]struct{}
	log     logger.Logger
}

// NewRPCNotifier creates an empty notifier.
func NewRPCNotifier(l logger.Logger) *RPCNotifier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &RPCNotifier{
		servers: make(map[string]map[*jrpc2.Server]struct{}),
		log:     l,
	}
}

// Register adds a connection to the user's push set.
func (n *RPCNotifier) Register(userID string, srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.servers[userID]
	if !ok {
		set = make(map[*jrpc2.Server]struct{})
		n.servers[userID] = set
	}
	set[srv] = struct{}{}
}

// Unregister removes a connection from the user's push set.
func (n *RPCNotifier) Unregister(userID string, srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.servers[userID]
	if !ok {
		return
	}
	delete(set, srv)
	if len(set) == 0 {
		delete(n.servers, userID)
	}
}

// Count returns the number of registered connections for a user.
func (n *RPCNotifier) Count(userID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers[userID])
}

// push sends method/params to every connection of userID, dropping
// connections that fail.
func (n *RPCNotifier) push(userID, method string, params any) {
	n.mu.RLock()
	targets := make([]*jrpc2.Server, 0, len(n.servers[userID]))
	for srv := range n.servers[userID] {
		targets = append(targets, srv)
	}
	n.mu.RUnlock()

	var failed []*jrpc2.Server
	for _, srv := range targets {
		if err := srv.Notify(context.Background(), method, params); err != nil {
			n.log.Warning("push %s to %s failed: %s", method, userID, err.Error())
			failed = append(failed, srv)
		}
	}
	if len(failed) == 0 {
		return
	}
	n.mu.Lock()
	for _, srv := range failed {
		delete(n.servers[userID], srv)
	}
	if len(n.servers[userID]) == 0 {
		delete(n.servers, userID)
	}
	n.mu.Unlock()
}

// TaskProjection is the trimmed task shape carried by pushes. The
// recurrence rule, the parent link and the push latch are daemon
// bookkeeping and stay off the wire.
type TaskProjection struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Location    string             `json:"location,omitempty"`
	Importance  tasklib.Importance `json:"importance,omitempty"`
	StartTime   string             `json:"startTime,omitempty"`
	EndTime     string             `json:"endTime,omitempty"`
	DueDate     string             `json:"dueDate,omitempty"`
	Completed   bool               `json:"completed"`
}

func projectTask(t *tasklib.Task) *TaskProjection {
	if t == nil {
		return nil
	}
	return &TaskProjection{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Location:    t.Location,
		Importance:  t.Importance,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
	}
}

// TaskChangedNotification is the task.changed payload.
type TaskChangedNotification struct {
	Action string          `json:"action"`
	Task   *TaskProjection `json:"task"`
}

// TaskEventNotification is the task.starting / task.canceled payload.
type TaskEventNotification struct {
	Task *TaskProjection `json:"task"`
}

// LogAppendedNotification is the log.appended payload.
type LogAppendedNotification struct {
	Entry *store.LogEntry `json:"entry"`
}

// TaskChanged pushes a task.changed event after a successful write.
func (n *RPCNotifier) TaskChanged(userID, action string, t *tasklib.Task) {
	n.push(userID, NotifyTaskChanged, &TaskChangedNotification{
		Action: action,
		Task:   projectTask(t),
	})
}

// TaskStarting pushes a task.starting event from the scanner.
func (n *RPCNotifier) TaskStarting(userID string, t *tasklib.Task) {
	n.push(userID, NotifyTaskStarting, &TaskEventNotification{Task: projectTask(t)})
}

// TaskCanceled pushes a task.canceled event from the scanner.
func (n *RPCNotifier) TaskCanceled(userID string, t *tasklib.Task) {
	n.push(userID, NotifyTaskCanceled, &TaskEventNotification{Task: projectTask(t)})
}

// LogAppended pushes a log.appended event from the store's log hook.
func (n *RPCNotifier) LogAppended(userID string, entry *store.LogEntry) {
	n.push(userID, NotifyLogAppended, &LogAppendedNotification{Entry: entry})
}

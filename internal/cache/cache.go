// Package cache holds the in-memory per-user projection of the task
// store. Hot paths (conflict pre-checks, background scans, API reads)
// read from here instead of reloading from the store on every
// operation. The cache is always allowed to be briefly stale; the store
// is the sole arbiter of durable consistency.
package cache

import (
	"context"
	"errors"

	"github.com/taskfuse/taskfuse/pkg/logger"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Loader is the slice of the store the cache needs.
type Loader interface {
	GetTask(ctx context.Context, id string) (*tasklib.Task, error)
	ListAllTasks(ctx context.Context, userID string) ([]*tasklib.Task, error)
}

// Registry maps user ids to their cached task lists. Incremental
// refresh is the only sanctioned mutation path after the initial load:
// every admission-path write must be followed by exactly one refresh
// naming the ids it touched, which is why the store's write methods
// return ChangeSets.
type Registry struct {
	store Loader
	log   logger.Logger
	users *tasklib.VMap[string, *userView]
}

// userView is one user's projection. The slice keeps store order; the
// index enforces the no-duplicate-ids invariant.
type userView struct {
	tasks []*tasklib.Task
	index map[string]int
}

// NewRegistry creates an empty cache registry over the given store.
func NewRegistry(store Loader, l logger.Logger) *Registry {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Registry{
		store: store,
		log:   l,
		users: tasklib.NewVMap[string, *userView](),
	}
}

// Load populates the full task list for a user, replacing any prior
// view. Used at process start and when a user is first materialized.
func (r *Registry) Load(ctx context.Context, userID string) error {
	tasks, err := r.store.ListAllTasks(ctx, userID)
	if err != nil {
		return err
	}
	v := &userView{index: make(map[string]int, len(tasks))}
	for _, t := range tasks {
		if _, dup := v.index[t.ID]; dup {
			continue
		}
		v.index[t.ID] = len(v.tasks)
		v.tasks = append(v.tasks, t)
	}
	r.users.Set(userID, v)
	return nil
}

// Get returns a snapshot of the user's cached tasks. Users never loaded
// yield an empty slice.
func (r *Registry) Get(userID string) []*tasklib.Task {
	v, ok := r.users.GetOK(userID)
	if !ok {
		return nil
	}
	return append([]*tasklib.Task(nil), v.tasks...)
}

// Users returns the ids of all loaded users.
func (r *Registry) Users() []string {
	return r.users.Keys()
}

// RefreshIncremental applies a write's changed-id sets: deleted ids are
// removed, added and updated ids are re-fetched from the store and
// either replace the matching cached entry or are appended if absent.
// The replace-if-present semantics make repeated refreshes with the
// same id sets idempotent.
func (r *Registry) RefreshIncremental(ctx context.Context, userID string, added, updated, deleted []string) error {
	v, ok := r.users.GetOK(userID)
	if !ok {
		// User never loaded; a full load covers the change.
		return r.Load(ctx, userID)
	}

	next := &userView{
		tasks: append([]*tasklib.Task(nil), v.tasks...),
		index: make(map[string]int, len(v.index)),
	}
	for id, i := range v.index {
		next.index[id] = i
	}

	for _, id := range deleted {
		next.remove(id)
	}
	for _, id := range append(append([]string(nil), added...), updated...) {
		t, err := r.store.GetTask(ctx, id)
		if errors.Is(err, tasklib.ErrTaskNotFound) {
			// Deleted between write and refresh; drop it.
			next.remove(id)
			continue
		}
		if err != nil {
			return err
		}
		next.put(t)
	}

	// Swapping the rebuilt view in wholesale keeps concurrent readers
	// on a consistent snapshot while the refresh is in flight.
	r.users.Set(userID, next)
	return nil
}

func (v *userView) put(t *tasklib.Task) {
	if i, ok := v.index[t.ID]; ok {
		v.tasks[i] = t
		return
	}
	v.index[t.ID] = len(v.tasks)
	v.tasks = append(v.tasks, t)
}

func (v *userView) remove(id string) {
	i, ok := v.index[id]
	if !ok {
		return
	}
	v.tasks = append(v.tasks[:i], v.tasks[i+1:]...)
	delete(v.index, id)
	for j := i; j < len(v.tasks); j++ {
		v.index[v.tasks[j].ID] = j
	}
}

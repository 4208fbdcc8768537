// Package api implements the admission path: every actor that wants to
// create or mutate a task (RPC caller, recurrence expansion, source
// sync, approved queue entry) goes through here. The flow is always the
// same: conflict evaluation against the cache's view, persistence (with
// re-validation at the storage boundary in blocking mode), one
// incremental cache refresh for the touched ids, then notification.
package api

import (
	"context"
	"errors"

	"github.com/taskfuse/taskfuse/internal/cache"
	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/logger"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// AdmissionMode centralizes the advisory-vs-blocking policy decision.
// It is threaded in from the outermost request context instead of being
// re-derived call site by call site.
type AdmissionMode int

const (
	// Advisory admits the write despite conflicts and surfaces them as
	// warnings on the result. Default for user-initiated creates and
	// for all automated/bulk ingestion, where hard rejection would
	// silently drop legitimate externally-sourced events.
	Advisory AdmissionMode = iota
	// Blocking refuses the write with a *tasklib.ConflictError when the
	// candidate overlaps existing tasks.
	Blocking
)

// Task mutation actions pushed to listeners.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCompleted = "completed"
)

// Notifier is the push fan-out the admission path reports mutations to.
// Delivery is fire-and-forget; implementations must never fail the
// originating operation.
type Notifier interface {
	TaskChanged(userID, action string, t *tasklib.Task)
}

type nopNotifier struct{}

func (nopNotifier) TaskChanged(string, string, *tasklib.Task) {}

// Api wires the store, the per-user cache and the notifier into the
// admission path.
type Api struct {
	store    *store.Store
	cache    *cache.Registry
	notifier Notifier
	log      logger.Logger

	defaultInclusive bool
}

// New creates the admission-path service. notifier may be nil.
func New(st *store.Store, c *cache.Registry, notifier Notifier, l logger.Logger, defaultInclusive bool) *Api {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Api{
		store:            st,
		cache:            c,
		notifier:         notifier,
		log:              l,
		defaultInclusive: defaultInclusive,
	}
}

// Store exposes the underlying store for read-only surfaces (logs,
// settings) that need no admission logic.
func (a *Api) Store() *store.Store { return a.store }

// Cache exposes the per-user cache for background scanners.
func (a *Api) Cache() *cache.Registry { return a.cache }

// TaskResult is the outcome of one admission. Conflicts is non-empty
// only in advisory mode (in blocking mode conflicts abort the write);
// Summary is set when the admitted root carried a recurrence rule.
type TaskResult struct {
	Task      *tasklib.Task    `json:"task"`
	Conflicts []*tasklib.Task  `json:"conflicts,omitempty"`
	Summary   *tasklib.Summary `json:"summary,omitempty"`
}

// policyFor resolves the user's boundary policy, falling back to the
// configured default for users without settings.
func (a *Api) policyFor(ctx context.Context, userID string) tasklib.BoundaryPolicy {
	settings, err := a.store.GetUserSettings(ctx, userID)
	if err != nil {
		if a.defaultInclusive {
			return tasklib.BoundaryInclusive
		}
		return tasklib.BoundaryExclusive
	}
	return settings.BoundaryPolicy()
}

// refresh applies a write's change set to the cache. A refresh failure
// leaves the cache stale, never fails the write; staleness is repaired
// by the next full load.
func (a *Api) refresh(ctx context.Context, userID string, cs store.ChangeSet) {
	if cs.Empty() {
		return
	}
	if err := a.cache.RefreshIncremental(ctx, userID, cs.Added, cs.Updated, cs.Deleted); err != nil {
		a.log.Error("cache refresh failed for user %s: %v", userID, err)
	}
}

// AddTask admits a candidate task. In advisory mode conflicts against
// the cache's current view are computed, logged and attached to the
// result as warnings; in blocking mode the store re-validates against
// the persisted row set and refuses overlapping writes. Roots carrying
// a recurrence rule are expanded and each occurrence persisted
// independently.
func (a *Api) AddTask(ctx context.Context, userID string, t *tasklib.Task, mode AdmissionMode) (*TaskResult, error) {
	if err := a.store.EnsureUser(ctx, userID, ""); err != nil {
		return nil, err
	}
	policy := a.policyFor(ctx, userID)

	var conflicts []*tasklib.Task
	allowConflict := mode == Advisory
	if allowConflict {
		conflicts = tasklib.FindConflicts(a.cache.Get(userID), t, policy)
		if len(conflicts) > 0 {
			a.log.Warning("admitting task %q for user %s despite %d conflict(s)",
				t.Name, userID, len(conflicts))
		}
	}

	created, cs, err := a.store.AddTask(ctx, userID, t, policy, allowConflict)
	if err != nil {
		return nil, err
	}
	a.refresh(ctx, userID, cs)
	a.notifier.TaskChanged(userID, ActionCreated, created)

	result := &TaskResult{Task: created, Conflicts: conflicts}
	if created.IsRoot() && created.RecurrenceRule != "" {
		result.Summary = a.expandRoot(ctx, userID, created, policy)
	}
	return result, nil
}

// expandRoot generates and persists the occurrences of a recurring
// root. Each occurrence is persisted independently: a conflict is
// counted and admitted, a storage failure is counted and skipped, and
// neither rolls back the root or already-persisted siblings.
func (a *Api) expandRoot(ctx context.Context, userID string, root *tasklib.Task, policy tasklib.BoundaryPolicy) *tasklib.Summary {
	rule, err := tasklib.ParseRule(root.RecurrenceRule)
	if err != nil || rule == nil {
		return tasklib.BuildSummary(0, 0, 0, nil)
	}

	var created, conflicted, errored int
	for _, occ := range tasklib.Expand(root, rule) {
		if len(tasklib.FindConflicts(a.cache.Get(userID), occ, policy)) > 0 {
			conflicted++
		}
		_, cs, err := a.store.AddTask(ctx, userID, occ, policy, true)
		if err != nil {
			a.log.Error("failed to persist occurrence of %s: %v", root.ID, err)
			errored++
			continue
		}
		created++
		a.refresh(ctx, userID, cs)
		a.notifier.TaskChanged(userID, ActionCreated, occ)
	}
	return tasklib.BuildSummary(created, conflicted, errored, rule)
}

// UpdateTask replaces an existing task through the admission path.
func (a *Api) UpdateTask(ctx context.Context, userID string, t *tasklib.Task, mode AdmissionMode) (*TaskResult, error) {
	policy := a.policyFor(ctx, userID)

	var conflicts []*tasklib.Task
	allowConflict := mode == Advisory
	if allowConflict {
		conflicts = tasklib.FindConflicts(a.cache.Get(userID), t, policy)
	}
	updated, cs, err := a.store.UpdateTask(ctx, userID, t, policy, allowConflict)
	if err != nil {
		return nil, err
	}
	a.refresh(ctx, userID, cs)
	action := ActionUpdated
	if updated.Completed {
		action = ActionCompleted
	}
	a.notifier.TaskChanged(userID, action, updated)
	return &TaskResult{Task: updated, Conflicts: conflicts}, nil
}

// PatchTask applies a partial mutation through the admission path.
// Conflict detection only runs when the patch touches the interval.
func (a *Api) PatchTask(ctx context.Context, userID, id string, patch *store.TaskPatch, mode AdmissionMode) (*TaskResult, error) {
	policy := a.policyFor(ctx, userID)

	var conflicts []*tasklib.Task
	allowConflict := mode == Advisory
	patched, cs, err := a.store.PatchTask(ctx, userID, id, patch, policy, allowConflict)
	if err != nil {
		return nil, err
	}
	if allowConflict && patch.TouchesTimes() {
		conflicts = tasklib.FindConflicts(a.cache.Get(userID), patched, policy)
		if len(conflicts) > 0 {
			a.log.Warning("patched task %s for user %s now has %d conflict(s)",
				id, userID, len(conflicts))
		}
	}
	a.refresh(ctx, userID, cs)
	action := ActionUpdated
	if patch.Completed != nil && *patch.Completed {
		action = ActionCompleted
	}
	a.notifier.TaskChanged(userID, action, patched)
	return &TaskResult{Task: patched, Conflicts: conflicts}, nil
}

// DeleteTask removes a task; with cascade set, a root is removed
// together with all of its occurrences as a unit. Deleting an absent id
// reports false without error.
func (a *Api) DeleteTask(ctx context.Context, userID, id string, cascade bool) (bool, error) {
	t, err := a.store.GetTask(ctx, id)
	if errors.Is(err, tasklib.ErrTaskNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if t.UserID != userID {
		return false, nil
	}

	var cs store.ChangeSet
	if cascade && t.IsRoot() {
		cs, err = a.store.DeleteTaskCascade(ctx, userID, id)
		if err != nil {
			return false, err
		}
	} else {
		var removed bool
		removed, cs, err = a.store.DeleteTask(ctx, userID, id)
		if err != nil || !removed {
			return false, err
		}
	}
	a.refresh(ctx, userID, cs)
	a.notifier.TaskChanged(userID, ActionDeleted, t)
	return true, nil
}

// CheckConflicts is the conflict pre-check surface: it evaluates a
// candidate interval against the cache's current view without writing
// anything.
func (a *Api) CheckConflicts(ctx context.Context, userID string, candidate *tasklib.Task) []*tasklib.Task {
	policy := a.policyFor(ctx, userID)
	return tasklib.FindConflicts(a.cache.Get(userID), candidate, policy)
}

// ListTasks delegates the paginated listing to the store (the full
// filter surface needs SQL, not the cache).
func (a *Api) ListTasks(ctx context.Context, userID string, f store.ListFilter) ([]*tasklib.Task, error) {
	return a.store.ListTasks(ctx, userID, f)
}

// ListOccurrences returns the generated occurrences of a root.
func (a *Api) ListOccurrences(ctx context.Context, userID, rootID string) ([]*tasklib.Task, error) {
	return a.store.ListOccurrences(ctx, userID, rootID)
}

package taskcli

import (
	"encoding/json"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Wire shapes of the daemon's RPC surface. Kept here rather than
// imported so the client package stays usable outside the daemon's
// module internals.

// AddParams is the input for task.add and task.update.
type AddParams struct {
	Task     tasklib.Task `json:"task"`
	Blocking bool         `json:"blocking,omitempty"`
}

// TaskPatch is a partial task mutation; nil fields are untouched.
type TaskPatch struct {
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Location    *string             `json:"location,omitempty"`
	Importance  *tasklib.Importance `json:"importance,omitempty"`
	Reminder    *bool               `json:"reminder,omitempty"`
	StartTime   *string             `json:"startTime,omitempty"`
	EndTime     *string             `json:"endTime,omitempty"`
	DueDate     *string             `json:"dueDate,omitempty"`
	Completed   *bool               `json:"completed,omitempty"`
}

// PatchParams is the input for task.patch.
type PatchParams struct {
	ID       string    `json:"id"`
	Patch    TaskPatch `json:"patch"`
	Blocking bool      `json:"blocking,omitempty"`
}

// ListOptions mirrors the daemon's task.list filter.
type ListOptions struct {
	WindowStart string `json:"windowStart,omitempty"`
	WindowEnd   string `json:"windowEnd,omitempty"`
	Search      string `json:"search,omitempty"`
	Completed   *bool  `json:"completed,omitempty"`
	SortBy      string `json:"sortBy,omitempty"`
	SortDesc    bool   `json:"sortDesc,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// TaskResult is the outcome of an admission: the stored task plus any
// advisory conflicts and, for recurring roots, the expansion summary.
type TaskResult struct {
	Task      *tasklib.Task    `json:"task"`
	Conflicts []*tasklib.Task  `json:"conflicts,omitempty"`
	Summary   *tasklib.Summary `json:"summary,omitempty"`
}

// ListResult is the response for task.list and task.occurrences.
type ListResult struct {
	Tasks []*tasklib.Task `json:"tasks"`
}

// CheckResult is the response for task.check.
type CheckResult struct {
	Conflicts []*tasklib.Task `json:"conflicts"`
}

// RemoveResult is the response for task.remove.
type RemoveResult struct {
	Removed bool `json:"removed"`
}

// AddBatchResult is the response for task.addBatch.
type AddBatchResult struct {
	Results []*TaskResult `json:"results"`
	Errors  []string      `json:"errors,omitempty"`
}

// QueueEntry is one pending schedule-change request.
type QueueEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	RawRequest json.RawMessage `json:"rawRequest"`
	Status     string          `json:"status"`
	CreatedAt  string          `json:"createdAt"`
	UpdatedAt  string          `json:"updatedAt"`
}

// QueueListResult is the response for queue.list.
type QueueListResult struct {
	Entries []*QueueEntry `json:"entries"`
}

// Settings is the per-user configuration.
type Settings struct {
	UserID            string `json:"userId"`
	Name              string `json:"name,omitempty"`
	BoundaryInclusive bool   `json:"boundaryInclusive"`
	WeekOffset        int    `json:"weekOffset"`
}

// LogEntry is one row of the activity trail.
type LogEntry struct {
	ID      string          `json:"id"`
	UserID  string          `json:"userId"`
	Time    string          `json:"time"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LogListResult is the response for log.list.
type LogListResult struct {
	Entries []*LogEntry `json:"entries"`
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
	UserID  string `json:"userId"`
}

// TaskChangedEvent is the task.changed push payload.
type TaskChangedEvent struct {
	Action string        `json:"action"`
	Task   *tasklib.Task `json:"task"`
}

// TaskEvent is the task.starting / task.canceled push payload.
type TaskEvent struct {
	Task *tasklib.Task `json:"task"`
}

// LogAppendedEvent is the log.appended push payload.
type LogAppendedEvent struct {
	Entry *LogEntry `json:"entry"`
}

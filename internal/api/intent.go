package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Intent types accepted from the automated intent source (LLM tool
// calls). The envelope is a tagged union: untyped structured data is
// validated here and converted into the core's typed inputs before it
// ever reaches the admission path.
const (
	IntentCreateTask    = "create_task"
	IntentUpdateTask    = "update_task"
	IntentDeleteTask    = "delete_task"
	IntentQuerySchedule = "query_schedule"
	IntentCurrentTime   = "current_time"
	IntentLogNote       = "log_note"
)

// IntentEnvelope is one structured tool-call intent.
type IntentEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IntentOutcome is what the intent source gets back.
type IntentOutcome struct {
	// Queued is set for create-class intents, which are gated behind
	// human approval instead of being admitted directly.
	Queued *store.QueueEntry `json:"queued,omitempty"`
	Result *TaskResult       `json:"result,omitempty"`
	Tasks  []*tasklib.Task   `json:"tasks,omitempty"`
	Text   string            `json:"text,omitempty"`
}

type createTaskIntent struct {
	Task        tasklib.Task `json:"task"`
	SourceEmail string       `json:"sourceEmail,omitempty"`
}

type updateTaskIntent struct {
	ID    string          `json:"id"`
	Patch store.TaskPatch `json:"patch"`
}

type deleteTaskIntent struct {
	ID      string `json:"id"`
	Cascade bool   `json:"cascade,omitempty"`
}

type queryScheduleIntent struct {
	WindowStart string `json:"windowStart,omitempty"`
	WindowEnd   string `json:"windowEnd,omitempty"`
	Search      string `json:"search,omitempty"`
}

type logNoteIntent struct {
	Message string `json:"message"`
}

// DispatchIntent routes one intent. Create-class intents are enqueued
// for approval; delete, update and query intents are treated as
// low-risk (the caller is already user-authenticated) and run through
// the direct admission path in advisory mode.
func (a *Api) DispatchIntent(ctx context.Context, userID string, env *IntentEnvelope) (*IntentOutcome, error) {
	switch env.Type {
	case IntentCreateTask:
		var in createTaskIntent
		if err := unmarshalIntent(env, &in); err != nil {
			return nil, err
		}
		entry, err := a.Enqueue(ctx, userID, &QueuedRequest{
			Task:        in.Task,
			SourceEmail: in.SourceEmail,
			Origin:      "llm",
		})
		if err != nil {
			return nil, err
		}
		return &IntentOutcome{Queued: entry}, nil

	case IntentUpdateTask:
		var in updateTaskIntent
		if err := unmarshalIntent(env, &in); err != nil {
			return nil, err
		}
		if in.ID == "" {
			return nil, fmt.Errorf("update_task intent missing id")
		}
		result, err := a.PatchTask(ctx, userID, in.ID, &in.Patch, Advisory)
		if err != nil {
			return nil, err
		}
		return &IntentOutcome{Result: result}, nil

	case IntentDeleteTask:
		var in deleteTaskIntent
		if err := unmarshalIntent(env, &in); err != nil {
			return nil, err
		}
		if in.ID == "" {
			return nil, fmt.Errorf("delete_task intent missing id")
		}
		removed, err := a.DeleteTask(ctx, userID, in.ID, in.Cascade)
		if err != nil {
			return nil, err
		}
		return &IntentOutcome{Text: fmt.Sprintf("removed=%t", removed)}, nil

	case IntentQuerySchedule:
		var in queryScheduleIntent
		if err := unmarshalIntent(env, &in); err != nil {
			return nil, err
		}
		tasks, err := a.ListTasks(ctx, userID, store.ListFilter{
			WindowStart: in.WindowStart,
			WindowEnd:   in.WindowEnd,
			Search:      in.Search,
		})
		if err != nil {
			return nil, err
		}
		return &IntentOutcome{Tasks: tasks}, nil

	case IntentCurrentTime:
		return &IntentOutcome{Text: time.Now().UTC().Format(time.RFC3339)}, nil

	case IntentLogNote:
		var in logNoteIntent
		if err := unmarshalIntent(env, &in); err != nil {
			return nil, err
		}
		a.store.AppendNote(ctx, userID, in.Message, nil)
		return &IntentOutcome{Text: "noted"}, nil

	default:
		return nil, fmt.Errorf("unknown intent type %q", env.Type)
	}
}

func unmarshalIntent(env *IntentEnvelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s intent missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return nil
}

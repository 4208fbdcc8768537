package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/taskfuse/taskfuse/internal/api"
	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// Custom JSON-RPC error codes for task operations.
const (
	codeTaskNotFound  = jrpc2.Code(-32001)
	codeConflict      = jrpc2.Code(-32002)
	codeQueueNotFound = jrpc2.Code(-32003)
	codeNotOwner      = jrpc2.Code(-32004)
	codeInvalidParams = jrpc2.Code(-32602)
)

// rpcSession is one authenticated connection's view of the daemon:
// every handler is closed over the user id extracted at upgrade time,
// so no method takes or trusts a caller-supplied user.
type rpcSession struct {
	api     *api.Api
	userID  string
	version string
}

// methods builds the per-connection handler map.
func (s *rpcSession) methods() handler.Map {
	return handler.Map{
		"system.getVersion": handler.New(s.systemGetVersion),

		"task.add":         handler.New(s.taskAdd),
		"task.addBatch":    handler.New(s.taskAddBatch),
		"task.update":      handler.New(s.taskUpdate),
		"task.patch":       handler.New(s.taskPatch),
		"task.remove":      handler.New(s.taskRemove),
		"task.get":         handler.New(s.taskGet),
		"task.list":        handler.New(s.taskList),
		"task.occurrences": handler.New(s.taskOccurrences),
		"task.check":       handler.New(s.taskCheck),

		"queue.list":    handler.New(s.queueList),
		"queue.approve": handler.New(s.queueApprove),
		"queue.reject":  handler.New(s.queueReject),

		"user.getSettings":       handler.New(s.userGetSettings),
		"user.setBoundaryPolicy": handler.New(s.userSetBoundaryPolicy),
		"user.setWeekOffset":     handler.New(s.userSetWeekOffset),

		"log.list": handler.New(s.logList),

		"intent.dispatch": handler.New(s.intentDispatch),
	}
}

// rpcError converts core errors into jrpc2 errors with stable codes.
// A blocking-mode conflict carries the conflicting tasks as error data.
func rpcError(err error) error {
	var ce *tasklib.ConflictError
	if errors.As(err, &ce) {
		data, _ := json.Marshal(ce.Conflicts)
		return &jrpc2.Error{Code: codeConflict, Message: ce.Error(), Data: data}
	}
	switch {
	case errors.Is(err, tasklib.ErrTaskNotFound):
		return &jrpc2.Error{Code: codeTaskNotFound, Message: err.Error()}
	case errors.Is(err, tasklib.ErrQueueEntryNotFound):
		return &jrpc2.Error{Code: codeQueueNotFound, Message: err.Error()}
	case errors.Is(err, tasklib.ErrNotQueueOwner):
		return &jrpc2.Error{Code: codeNotOwner, Message: err.Error()}
	case errors.Is(err, tasklib.ErrNameRequired),
		errors.Is(err, tasklib.ErrInvalidImportance),
		errors.Is(err, tasklib.ErrInvalidRule),
		errors.Is(err, tasklib.ErrInvalidFrequency),
		errors.Is(err, tasklib.ErrScheduleTypeMismatch),
		errors.Is(err, tasklib.ErrRuleOnOccurrence):
		return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	default:
		return err
	}
}

func admissionMode(blocking bool) api.AdmissionMode {
	if blocking {
		return api.Blocking
	}
	return api.Advisory
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
	UserID  string `json:"userId"`
}

func (s *rpcSession) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: s.version, UserID: s.userID}, nil
}

// AddParams is the input for task.add and task.update. Blocking opts
// into hard conflict rejection; the default admits with warnings.
type AddParams struct {
	Task     tasklib.Task `json:"task"`
	Blocking bool         `json:"blocking,omitempty"`
}

func (s *rpcSession) taskAdd(ctx context.Context, p *AddParams) (*api.TaskResult, error) {
	result, err := s.api.AddTask(ctx, s.userID, &p.Task, admissionMode(p.Blocking))
	if err != nil {
		return nil, rpcError(err)
	}
	return result, nil
}

// AddBatchParams is the input for task.addBatch. Batch ingestion is
// always advisory; per-item failures do not abort the batch.
type AddBatchParams struct {
	Tasks []tasklib.Task `json:"tasks"`
}

// AddBatchResult reports the per-item outcomes of a batch add.
type AddBatchResult struct {
	Results []*api.TaskResult `json:"results"`
	Errors  []string          `json:"errors,omitempty"`
}

func (s *rpcSession) taskAddBatch(ctx context.Context, p *AddBatchParams) (*AddBatchResult, error) {
	out := &AddBatchResult{Results: make([]*api.TaskResult, 0, len(p.Tasks))}
	for i := range p.Tasks {
		result, err := s.api.AddTask(ctx, s.userID, &p.Tasks[i], api.Advisory)
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		out.Results = append(out.Results, result)
	}
	return out, nil
}

func (s *rpcSession) taskUpdate(ctx context.Context, p *AddParams) (*api.TaskResult, error) {
	if p.Task.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required field: task.id"}
	}
	result, err := s.api.UpdateTask(ctx, s.userID, &p.Task, admissionMode(p.Blocking))
	if err != nil {
		return nil, rpcError(err)
	}
	return result, nil
}

// PatchParams is the input for task.patch.
type PatchParams struct {
	ID       string          `json:"id"`
	Patch    store.TaskPatch `json:"patch"`
	Blocking bool            `json:"blocking,omitempty"`
}

func (s *rpcSession) taskPatch(ctx context.Context, p *PatchParams) (*api.TaskResult, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required field: id"}
	}
	result, err := s.api.PatchTask(ctx, s.userID, p.ID, &p.Patch, admissionMode(p.Blocking))
	if err != nil {
		return nil, rpcError(err)
	}
	return result, nil
}

// RemoveParams is the input for task.remove.
type RemoveParams struct {
	ID      string `json:"id"`
	Cascade bool   `json:"cascade,omitempty"`
}

// RemoveResult reports whether anything was deleted.
type RemoveResult struct {
	Removed bool `json:"removed"`
}

func (s *rpcSession) taskRemove(ctx context.Context, p *RemoveParams) (*RemoveResult, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required field: id"}
	}
	removed, err := s.api.DeleteTask(ctx, s.userID, p.ID, p.Cascade)
	if err != nil {
		return nil, rpcError(err)
	}
	return &RemoveResult{Removed: removed}, nil
}

// IDParam is a common input with just a task id.
type IDParam struct {
	ID string `json:"id"`
}

func (s *rpcSession) taskGet(ctx context.Context, p *IDParam) (*tasklib.Task, error) {
	t, err := s.api.Store().GetTask(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	if t.UserID != s.userID {
		return nil, &jrpc2.Error{Code: codeTaskNotFound, Message: tasklib.ErrTaskNotFound.Error()}
	}
	return t, nil
}

// ListResult is the response for task.list and task.occurrences.
type ListResult struct {
	Tasks []*tasklib.Task `json:"tasks"`
}

func (s *rpcSession) taskList(ctx context.Context, p *store.ListFilter) (*ListResult, error) {
	var f store.ListFilter
	if p != nil {
		f = *p
	}
	tasks, err := s.api.ListTasks(ctx, s.userID, f)
	if err != nil {
		return nil, rpcError(err)
	}
	return &ListResult{Tasks: tasks}, nil
}

// OccurrencesParams is the input for task.occurrences.
type OccurrencesParams struct {
	RootID string `json:"rootId"`
}

func (s *rpcSession) taskOccurrences(ctx context.Context, p *OccurrencesParams) (*ListResult, error) {
	if p.RootID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required field: rootId"}
	}
	tasks, err := s.api.ListOccurrences(ctx, s.userID, p.RootID)
	if err != nil {
		return nil, rpcError(err)
	}
	return &ListResult{Tasks: tasks}, nil
}

// CheckParams is the input for task.check.
type CheckParams struct {
	Task tasklib.Task `json:"task"`
}

// CheckResult is the response for task.check.
type CheckResult struct {
	Conflicts []*tasklib.Task `json:"conflicts"`
}

func (s *rpcSession) taskCheck(ctx context.Context, p *CheckParams) (*CheckResult, error) {
	conflicts := s.api.CheckConflicts(ctx, s.userID, &p.Task)
	if conflicts == nil {
		conflicts = []*tasklib.Task{}
	}
	return &CheckResult{Conflicts: conflicts}, nil
}

// QueueListResult is the response for queue.list.
type QueueListResult struct {
	Entries []*store.QueueEntry `json:"entries"`
}

func (s *rpcSession) queueList(ctx context.Context) (*QueueListResult, error) {
	entries, err := s.api.ListQueue(ctx, s.userID)
	if err != nil {
		return nil, rpcError(err)
	}
	return &QueueListResult{Entries: entries}, nil
}

func (s *rpcSession) queueApprove(ctx context.Context, p *IDParam) (*api.TaskResult, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required field: id"}
	}
	result, err := s.api.Approve(ctx, s.userID, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	return result, nil
}

// EmptyResult is a placeholder for methods that return no data.
type EmptyResult struct{}

func (s *rpcSession) queueReject(ctx context.Context, p *IDParam) (*EmptyResult, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required field: id"}
	}
	if err := s.api.Reject(ctx, s.userID, p.ID); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

func (s *rpcSession) userGetSettings(ctx context.Context) (*store.UserSettings, error) {
	if err := s.api.Store().EnsureUser(ctx, s.userID, ""); err != nil {
		return nil, err
	}
	settings, err := s.api.Store().GetUserSettings(ctx, s.userID)
	if err != nil {
		return nil, rpcError(err)
	}
	return settings, nil
}

// BoundaryParams is the input for user.setBoundaryPolicy.
type BoundaryParams struct {
	Inclusive bool `json:"inclusive"`
}

func (s *rpcSession) userSetBoundaryPolicy(ctx context.Context, p *BoundaryParams) (*EmptyResult, error) {
	if err := s.api.Store().EnsureUser(ctx, s.userID, ""); err != nil {
		return nil, err
	}
	if err := s.api.Store().SetBoundaryPolicy(ctx, s.userID, p.Inclusive); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

// WeekOffsetParams is the input for user.setWeekOffset.
type WeekOffsetParams struct {
	Offset int `json:"offset"`
}

func (s *rpcSession) userSetWeekOffset(ctx context.Context, p *WeekOffsetParams) (*EmptyResult, error) {
	if err := s.api.Store().EnsureUser(ctx, s.userID, ""); err != nil {
		return nil, err
	}
	if err := s.api.Store().SetWeekOffset(ctx, s.userID, p.Offset); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

// LogListParams is the input for log.list.
type LogListParams struct {
	Limit int `json:"limit,omitempty"`
}

// LogListResult is the response for log.list.
type LogListResult struct {
	Entries []*store.LogEntry `json:"entries"`
}

func (s *rpcSession) logList(ctx context.Context, p *LogListParams) (*LogListResult, error) {
	entries, err := s.api.Store().ListLogs(ctx, s.userID, p.Limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return &LogListResult{Entries: entries}, nil
}

func (s *rpcSession) intentDispatch(ctx context.Context, env *api.IntentEnvelope) (*api.IntentOutcome, error) {
	outcome, err := s.api.DispatchIntent(ctx, s.userID, env)
	if err != nil {
		return nil, rpcError(err)
	}
	return outcome, nil
}

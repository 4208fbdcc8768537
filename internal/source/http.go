package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// httpSource is the shared HTTP plumbing of the bridge adapters. The
// bridges expose a small per-user REST surface; the daemon never
// speaks EWS or scrapes the timetable portal itself.
type httpSource struct {
	base     string
	client   *http.Client
	username string
	secret   string
}

func newHTTPSource(base string, client *http.Client) httpSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return httpSource{base: base, client: client}
}

// SetCredential attaches the bridge account to subsequent requests. A
// username/secret pair is sent as basic auth, a bare secret as a
// bearer token.
func (h *httpSource) SetCredential(username, secret string) {
	h.username, h.secret = username, secret
}

func (h httpSource) authorize(req *http.Request) {
	switch {
	case h.secret == "":
	case h.username == "":
		req.Header.Set("Authorization", "Bearer "+h.secret)
	default:
		req.SetBasicAuth(h.username, h.secret)
	}
}

func (h httpSource) userURL(userID, resource string) string {
	return fmt.Sprintf("%s/users/%s/%s", h.base, url.PathEscape(userID), resource)
}

func (h httpSource) getEvents(ctx context.Context, userID, resource string) ([]CalendarEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userURL(userID, resource), nil)
	if err != nil {
		return nil, err
	}
	h.authorize(req)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned %d: %s", resource, resp.StatusCode, string(body))
	}
	var events []CalendarEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", resource, err)
	}
	return events, nil
}

// HTTPMailCalendar fetches Exchange calendar events from the mail
// bridge.
type HTTPMailCalendar struct {
	httpSource
}

// NewHTTPMailCalendar creates the adapter. client may be nil.
func NewHTTPMailCalendar(base string, client *http.Client) *HTTPMailCalendar {
	return &HTTPMailCalendar{newHTTPSource(base, client)}
}

func (m *HTTPMailCalendar) FetchEvents(ctx context.Context, userID string) ([]CalendarEvent, error) {
	return m.getEvents(ctx, userID, "events")
}

// HTTPTimetable fetches timetable entries from the timetable bridge.
type HTTPTimetable struct {
	httpSource
}

// NewHTTPTimetable creates the adapter. client may be nil.
func NewHTTPTimetable(base string, client *http.Client) *HTTPTimetable {
	return &HTTPTimetable{newHTTPSource(base, client)}
}

func (t *HTTPTimetable) FetchEntries(ctx context.Context, userID string) ([]CalendarEvent, error) {
	return t.getEvents(ctx, userID, "timetable")
}

// HTTPTodoPusher mirrors completed tasks into Microsoft To-Do through
// the to-do bridge.
type HTTPTodoPusher struct {
	httpSource
}

// NewHTTPTodoPusher creates the adapter. client may be nil.
func NewHTTPTodoPusher(base string, client *http.Client) *HTTPTodoPusher {
	return &HTTPTodoPusher{newHTTPSource(base, client)}
}

// todoItem is the projection of a task the to-do bridge accepts.
// Recurrence bookkeeping, the parent link, and the push latch never
// leave the daemon.
type todoItem struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Due         string             `json:"due,omitempty"`
	Start       string             `json:"start,omitempty"`
	Importance  tasklib.Importance `json:"importance,omitempty"`
	Completed   bool               `json:"completed"`
}

func (p *HTTPTodoPusher) Push(ctx context.Context, userID string, t *tasklib.Task) error {
	body, err := json.Marshal(todoItem{
		Name:        t.Name,
		Description: t.Description,
		Due:         t.DueDate,
		Start:       t.StartTime,
		Importance:  t.Importance,
		Completed:   t.Completed,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.userURL(userID, "tasks"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("todo push returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

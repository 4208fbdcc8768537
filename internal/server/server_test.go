package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskfuse/taskfuse/internal/api"
	"github.com/taskfuse/taskfuse/internal/cache"
	"github.com/taskfuse/taskfuse/internal/store"
	"github.com/taskfuse/taskfuse/pkg/logger"
	"github.com/taskfuse/taskfuse/pkg/taskcli"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// startTestDaemon serves the full RPC surface (auth, upgrade, session,
// push) over httptest and returns the ws:// URL.
func startTestDaemon(t *testing.T, secret string) (string, *Server) {
	t.Helper()
	st, err := store.Open(":memory:", logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	notifier := NewRPCNotifier(nil)
	a := api.New(st, cache.NewRegistry(st, nil), notifier, logger.NewNopLogger(), false)
	srv := New(Config{Secret: secret, Version: "test"}, a, notifier, logger.NewNopLogger())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + RPCPath, srv
}

func TestWebSocketRoundTrip(t *testing.T) {
	url, srv := startTestDaemon(t, "s3cret")
	ctx := context.Background()

	cli, err := taskcli.Dial(ctx, url, &taskcli.Options{Secret: "s3cret", UserID: "alice"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	v, err := cli.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Version != "test" || v.UserID != "alice" {
		t.Fatalf("version = %+v", v)
	}

	res, err := cli.AddTask(ctx, &tasklib.Task{
		Name:      "standup",
		StartTime: "2026-03-02T09:00:00Z",
		EndTime:   "2026-03-02T09:15:00Z",
	}, false)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	tasks, err := cli.ListTasks(ctx, nil)
	if err != nil || len(tasks) != 1 || tasks[0].ID != res.Task.ID {
		t.Fatalf("ListTasks: %d tasks, err %v", len(tasks), err)
	}

	// The connection is registered for pushes while open.
	if srv.Notifier().Count("alice") != 1 {
		t.Fatalf("Count = %d, want 1", srv.Notifier().Count("alice"))
	}
}

func TestWebSocketPushDelivery(t *testing.T) {
	url, _ := startTestDaemon(t, "s3cret")
	ctx := context.Background()

	watcher, err := taskcli.Dial(ctx, url, &taskcli.Options{Secret: "s3cret", UserID: "alice"})
	if err != nil {
		t.Fatalf("Dial watcher: %v", err)
	}
	defer watcher.Close()

	got := make(chan []byte, 4)
	watcher.Dispatcher().Handle(NotifyTaskChanged, func(params []byte) {
		got <- params
	})

	// A second connection of the same user triggers the push the
	// watcher should see.
	writer, err := taskcli.Dial(ctx, url, &taskcli.Options{Secret: "s3cret", UserID: "alice"})
	if err != nil {
		t.Fatalf("Dial writer: %v", err)
	}
	defer writer.Close()

	if _, err := writer.AddTask(ctx, &tasklib.Task{Name: "watched"}, false); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	select {
	case params := <-got:
		if !strings.Contains(string(params), "watched") {
			t.Fatalf("push params = %s", params)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("task.changed push never arrived")
	}
}

func TestWebSocketRejectsBadSecret(t *testing.T) {
	url, _ := startTestDaemon(t, "s3cret")

	_, err := taskcli.Dial(context.Background(), url, &taskcli.Options{Secret: "wrong", UserID: "alice"})
	if err == nil {
		t.Fatal("dial with a bad secret should fail the upgrade")
	}
}

func TestWebSocketUnregistersOnClose(t *testing.T) {
	url, srv := startTestDaemon(t, "s3cret")
	ctx := context.Background()

	cli, err := taskcli.Dial(ctx, url, &taskcli.Options{Secret: "s3cret", UserID: "alice"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if srv.Notifier().Count("alice") != 1 {
		t.Fatalf("Count = %d after dial", srv.Notifier().Count("alice"))
	}

	cli.Close()

	deadline := time.After(3 * time.Second)
	for srv.Notifier().Count("alice") != 0 {
		select {
		case <-deadline:
			t.Fatal("connection never unregistered after close")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

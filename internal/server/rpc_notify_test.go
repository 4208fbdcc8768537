package server

import (
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"

	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

// newPushServer creates a jrpc2 server with push support backed by an
// io.Pipe-based channel. Returns the client channel (for draining), the
// server, and a cleanup function. The client channel must be drained or
// closed to avoid blocking the server's push operations.
func newPushServer(t *testing.T) (channel.Channel, *jrpc2.Server, func()) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cli := channel.Line(cr, cw)
	srvCh := channel.Line(sr, sw)

	srv := jrpc2.NewServer(handler.Map{}, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(srvCh)

	cleanup := func() {
		cli.Close()
		_ = srv.Wait()
	}
	return cli, srv, cleanup
}

func TestRPCNotifierRegisterUnregister(t *testing.T) {
	n := NewRPCNotifier(nil)
	if n.Count("alice") != 0 {
		t.Fatalf("fresh notifier has %d connections", n.Count("alice"))
	}

	cli, srv, cleanup := newPushServer(t)
	defer cleanup()
	_ = cli

	n.Register("alice", srv)
	n.Register("alice", srv) // idempotent
	if n.Count("alice") != 1 {
		t.Fatalf("Count = %d after double register", n.Count("alice"))
	}
	if n.Count("bob") != 0 {
		t.Fatal("registration leaked across users")
	}

	n.Unregister("alice", srv)
	if n.Count("alice") != 0 {
		t.Fatalf("Count = %d after unregister", n.Count("alice"))
	}
	// Unregistering an unknown connection is a no-op.
	n.Unregister("alice", srv)
	n.Unregister("never-seen", srv)
}

func TestRPCNotifierPushScopedToUser(t *testing.T) {
	n := NewRPCNotifier(nil)

	aliceCli, aliceSrv, cleanupA := newPushServer(t)
	defer cleanupA()
	bobCli, bobSrv, cleanupB := newPushServer(t)
	defer cleanupB()

	n.Register("alice", aliceSrv)
	n.Register("bob", bobSrv)

	got := make(chan []byte, 1)
	go func() {
		data, _ := aliceCli.Recv()
		got <- data
	}()
	// Bob's channel stays silent; a stray push would deadlock his
	// server, so any cross-delivery shows up as a test hang or in the
	// payload below.
	_ = bobCli

	n.TaskChanged("alice", "created", &tasklib.Task{ID: "t1", Name: "standup"})

	data := <-got
	var msg struct {
		Method string                  `json:"method"`
		Params TaskChangedNotification `json:"params"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal push: %v", err)
	}
	if msg.Method != NotifyTaskChanged {
		t.Errorf("method = %s", msg.Method)
	}
	if msg.Params.Action != "created" || msg.Params.Task.ID != "t1" {
		t.Errorf("params = %+v", msg.Params)
	}
}

func TestRPCNotifierPushTrimsTask(t *testing.T) {
	n := NewRPCNotifier(nil)
	cli, srv, cleanup := newPushServer(t)
	defer cleanup()
	n.Register("alice", srv)

	got := make(chan []byte, 1)
	go func() {
		data, _ := cli.Recv()
		got <- data
	}()

	n.TaskChanged("alice", "created", &tasklib.Task{
		ID:             "t1",
		UserID:         "alice",
		Name:           "lecture",
		RecurrenceRule: `{"freq":"weekly"}`,
		ParentTaskID:   "root-9",
		PushedToMSTodo: true,
		Completed:      true,
	})

	data := <-got
	var msg struct {
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal push: %v", err)
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	var task map[string]any
	if err := json.Unmarshal(params["task"], &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task["id"] != "t1" || task["name"] != "lecture" || task["completed"] != true {
		t.Errorf("task projection = %v", task)
	}
	for _, internal := range []string{"recurrenceRule", "parentTaskId", "pushedToMSTodo", "userId"} {
		if _, ok := task[internal]; ok {
			t.Errorf("%s leaked into the push payload", internal)
		}
	}
}

func TestRPCNotifierEvictsDeadConnections(t *testing.T) {
	n := NewRPCNotifier(nil)

	cli, srv, _ := newPushServer(t)
	n.Register("alice", srv)

	cli.Close()
	_ = srv.Wait()

	// Pushing to the dead connection drops it from the set.
	n.TaskStarting("alice", &tasklib.Task{ID: "t1"})
	if n.Count("alice") != 0 {
		t.Fatalf("dead connection retained, Count = %d", n.Count("alice"))
	}

	// And pushing to a user with no connections is harmless.
	n.TaskCanceled("alice", &tasklib.Task{ID: "t1"})
	n.LogAppended("alice", nil)
}

func TestRPCNotifierPartialFailure(t *testing.T) {
	n := NewRPCNotifier(nil)

	liveCli, liveSrv, cleanup := newPushServer(t)
	defer cleanup()
	deadCli, deadSrv, _ := newPushServer(t)

	n.Register("alice", liveSrv)
	n.Register("alice", deadSrv)

	deadCli.Close()
	_ = deadSrv.Wait()

	done := make(chan struct{}, 1)
	go func() { _, _ = liveCli.Recv(); done <- struct{}{} }()

	n.TaskChanged("alice", "updated", &tasklib.Task{ID: "t1"})
	<-done

	if n.Count("alice") != 1 {
		t.Fatalf("Count = %d after partial failure, want 1", n.Count("alice"))
	}
}

func TestRPCNotifierConcurrentRegisterUnregister(t *testing.T) {
	n := NewRPCNotifier(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cli, srv, _ := newPushServer(t)

			n.Register("alice", srv)
			_ = n.Count("alice")
			n.Unregister("alice", srv)

			cli.Close()
			_ = srv.Wait()
		}()
	}
	wg.Wait()

	if n.Count("alice") != 0 {
		t.Fatalf("Count = %d after concurrent churn", n.Count("alice"))
	}
}

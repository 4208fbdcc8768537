package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli"

	"github.com/taskfuse/taskfuse/pkg/taskcli"
)

// attach streams live events from the daemon until interrupted.
func attach(*cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	d := c.Dispatcher()
	d.Handle("task.changed", func(params []byte) {
		var ev taskcli.TaskChangedEvent
		if json.Unmarshal(params, &ev) == nil && ev.Task != nil {
			fmt.Printf("task %s: %s  %s\n", ev.Action, ev.Task.ID, ev.Task.Name)
		}
	})
	d.Handle("task.starting", func(params []byte) {
		var ev taskcli.TaskEvent
		if json.Unmarshal(params, &ev) == nil && ev.Task != nil {
			fmt.Printf("starting now: %s  (%s)\n", ev.Task.Name, ev.Task.StartTime)
		}
	})
	d.Handle("task.canceled", func(params []byte) {
		var ev taskcli.TaskEvent
		if json.Unmarshal(params, &ev) == nil && ev.Task != nil {
			fmt.Printf("canceled before start: %s\n", ev.Task.Name)
		}
	})
	d.Handle("log.appended", func(params []byte) {
		var ev taskcli.LogAppendedEvent
		if json.Unmarshal(params, &ev) == nil && ev.Entry != nil {
			fmt.Printf("log: [%s] %s\n", ev.Entry.Type, ev.Entry.Message)
		}
	})

	fmt.Println("attached; waiting for events (Ctrl-C to stop)")
	<-ctx.Done()
	return nil
}

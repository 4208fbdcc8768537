package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli"
)

func queueList(*cli.Context) error {
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.QueueList(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	for _, e := range entries {
		name := queuedTaskName(e.RawRequest)
		fmt.Printf("%-36s  %-8s  %s  %s\n", e.ID, e.Status, e.CreatedAt, name)
	}
	return nil
}

// queuedTaskName digs the candidate task's name out of the raw request
// for display; the queue stores requests opaquely.
func queuedTaskName(raw json.RawMessage) string {
	var req struct {
		Task struct {
			Name string `json:"name"`
		} `json:"task"`
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return "(unreadable request)"
	}
	if req.Origin != "" {
		return fmt.Sprintf("%s [%s]", req.Task.Name, req.Origin)
	}
	return req.Task.Name
}

func queueApprove(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return fmt.Errorf("an entry id is required")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Approve(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Printf("approved: created task %s  %s\n", result.Task.ID, result.Task.Name)
	printConflicts(result.Conflicts)
	return nil
}

func queueReject(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return fmt.Errorf("an entry id is required")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Reject(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("rejected %s\n", id)
	return nil
}

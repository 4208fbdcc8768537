package cmd

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/taskfuse/taskfuse/pkg/taskcli"
)

// dial connects a client command to the local daemon. The endpoint,
// secret and user id come from the same environment the daemon reads,
// with the OS username as the user fallback.
func dial(ctx context.Context) (*taskcli.Client, error) {
	addr := os.Getenv("TASKFUSE_ADDR")
	if addr == "" {
		addr = "127.0.0.1:7419"
	}
	secret := os.Getenv("TASKFUSE_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("TASKFUSE_SECRET is not set")
	}
	userID := os.Getenv("TASKFUSE_USER")
	if userID == "" {
		if u, err := user.Current(); err == nil {
			userID = u.Username
		}
	}
	if userID == "" {
		return nil, fmt.Errorf("TASKFUSE_USER is not set")
	}

	c, err := taskcli.Dial(ctx, "ws://"+addr+"/rpc/ws", &taskcli.Options{
		Secret: secret,
		UserID: userID,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot reach the daemon at %s (is it running?): %w", addr, err)
	}
	return c, nil
}

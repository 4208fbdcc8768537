package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/taskfuse/taskfuse/internal/config"
	"github.com/taskfuse/taskfuse/pkg/logger"
)

func daemon(*cli.Context) error {
	cfg := config.FromEnv()
	cfg.Version = currentBuildArgs.Version
	if cfg.RPCSecret == "" {
		return fmt.Errorf("TASKFUSE_SECRET is not set; refusing to start without RPC auth")
	}

	l := logger.NewStandardLogger(log.New(os.Stderr, "taskfuse: ", log.LstdFlags))

	components, err := initDaemonComponents(cfg, l)
	if err != nil {
		return err
	}
	defer components.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- components.Server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		l.Info("received %s, shutting down", sig)
		return nil
	}
}

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli"
)

var logLimit int

func showLogs(*cli.Context) error {
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.Logs(context.Background(), logLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no log entries")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-16s  %s\n", e.Time, e.Type, e.Message)
	}
	return nil
}

func showSettings(ctx *cli.Context) error {
	if ctx.Args().Present() {
		return fmt.Errorf("unknown settings subcommand %q", ctx.Args().First())
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	s, err := c.GetSettings(context.Background())
	if err != nil {
		return err
	}
	policy := "exclusive"
	if s.BoundaryInclusive {
		policy = "inclusive"
	}
	fmt.Printf("user:            %s\n", s.UserID)
	fmt.Printf("boundary policy: %s\n", policy)
	fmt.Printf("week offset:     %d\n", s.WeekOffset)
	return nil
}

func setBoundary(ctx *cli.Context) error {
	var inclusive bool
	switch ctx.Args().First() {
	case "exclusive":
		inclusive = false
	case "inclusive":
		inclusive = true
	default:
		return fmt.Errorf("expected 'exclusive' or 'inclusive'")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.SetBoundaryPolicy(context.Background(), inclusive); err != nil {
		return err
	}
	fmt.Printf("boundary policy set to %s\n", ctx.Args().First())
	return nil
}

func setWeekOffset(ctx *cli.Context) error {
	arg := ctx.Args().First()
	offset, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid week offset %q", arg)
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.SetWeekOffset(context.Background(), offset); err != nil {
		return err
	}
	fmt.Printf("week offset set to %d\n", offset)
	return nil
}

// Package cmd wires the taskfuse command line: the daemon plus the
// client commands that talk to it over the WebSocket RPC endpoint.
package cmd

import (
	"fmt"

	"github.com/urfave/cli"
)

// BuildArgs carries the link-time build metadata.
type BuildArgs struct {
	Version string
	Commit  string
	Date    string
}

var currentBuildArgs BuildArgs

// Execute runs the CLI with the given arguments.
func Execute(args []string, bArgs BuildArgs) error {
	if bArgs.Version == "" {
		bArgs.Version = "dev"
	}
	currentBuildArgs = bArgs

	app := cli.App{
		Name:      "taskfuse",
		HelpName:  "taskfuse",
		Usage:     "A personal task and calendar aggregation daemon.",
		Version:   bArgs.Version,
		UsageText: "taskfuse <command> [arguments...]",
		Commands: []cli.Command{
			{
				Name:   "daemon",
				Usage:  "run the taskfuse daemon",
				Action: daemon,
			},
			{
				Name:   "add",
				Usage:  "add a task",
				Action: addTask,
				Flags:  addFlags,
			},
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "list tasks",
				Action:  listTasks,
				Flags:   listFlags,
			},
			{
				Name:      "occurrences",
				Usage:     "list the generated occurrences of a recurring task",
				ArgsUsage: "<task-id>",
				Action:    listOccurrences,
			},
			{
				Name:      "complete",
				Usage:     "mark a task completed",
				ArgsUsage: "<task-id>",
				Action:    completeTask,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "remove a task",
				ArgsUsage: "<task-id>",
				Action:    removeTask,
				Flags: []cli.Flag{
					cli.BoolFlag{
						Name:        "cascade",
						Usage:       "remove a recurring root together with its occurrences",
						Destination: &removeCascade,
					},
				},
			},
			{
				Name:   "check",
				Usage:  "check a time slot for conflicts without creating anything",
				Action: checkSlot,
				Flags:  checkFlags,
			},
			{
				Name:   "queue",
				Usage:  "list pending schedule-change requests",
				Action: queueList,
			},
			{
				Name:      "approve",
				Usage:     "approve a queued schedule-change request",
				ArgsUsage: "<entry-id>",
				Action:    queueApprove,
			},
			{
				Name:      "reject",
				Usage:     "reject a queued schedule-change request",
				ArgsUsage: "<entry-id>",
				Action:    queueReject,
			},
			{
				Name:   "logs",
				Usage:  "show the activity trail",
				Action: showLogs,
				Flags: []cli.Flag{
					cli.IntFlag{
						Name:        "limit, n",
						Usage:       "maximum entries to show",
						Value:       20,
						Destination: &logLimit,
					},
				},
			},
			{
				Name:   "settings",
				Usage:  "show or change per-user settings",
				Action: showSettings,
				Subcommands: []cli.Command{
					{
						Name:      "boundary",
						Usage:     "set the conflict boundary policy (exclusive|inclusive)",
						ArgsUsage: "<exclusive|inclusive>",
						Action:    setBoundary,
					},
					{
						Name:      "week-offset",
						Usage:     "set the week-numbering offset",
						ArgsUsage: "<offset>",
						Action:    setWeekOffset,
					},
				},
			},
			{
				Name:  "credentials",
				Usage: "manage the bridge credentials (exchange, timetable, todo)",
				Subcommands: []cli.Command{
					{
						Name:      "set",
						Usage:     "store a credential, reading the secret from stdin",
						ArgsUsage: "<name>",
						Action:    credentialSet,
						Flags: []cli.Flag{
							cli.StringFlag{
								Name:        "user, u",
								Usage:       "account the secret belongs to",
								Destination: &credUsername,
							},
						},
					},
					{
						Name:   "list",
						Usage:  "list stored credential names",
						Action: credentialList,
					},
					{
						Name:      "remove",
						Aliases:   []string{"rm"},
						Usage:     "remove a credential",
						ArgsUsage: "<name>",
						Action:    credentialRemove,
					},
				},
			},
			{
				Name:   "attach",
				Usage:  "stream live task and log events from the daemon",
				Action: attach,
			},
			{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "print the installed version",
				Action: func(*cli.Context) error {
					fmt.Printf("taskfuse %s", bArgs.Version)
					if bArgs.Commit != "" {
						fmt.Printf(" (%s)", bArgs.Commit)
					}
					fmt.Println()
					return nil
				},
			},
		},
	}
	return app.Run(args)
}

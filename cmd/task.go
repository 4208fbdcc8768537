package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/taskfuse/taskfuse/pkg/taskcli"
	"github.com/taskfuse/taskfuse/pkg/tasklib"
)

var (
	addName       string
	addDesc       string
	addLocation   string
	addImportance string
	addStart      string
	addEnd        string
	addDue        string
	addRule       string
	addBlocking   bool

	addFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "name, t",
			Usage:       "task name (required)",
			Destination: &addName,
		},
		cli.StringFlag{
			Name:        "desc, m",
			Usage:       "task description",
			Destination: &addDesc,
		},
		cli.StringFlag{
			Name:        "location",
			Usage:       "task location",
			Destination: &addLocation,
		},
		cli.StringFlag{
			Name:        "importance, i",
			Usage:       "importance: high, normal or low",
			Destination: &addImportance,
		},
		cli.StringFlag{
			Name:        "start, s",
			Usage:       "start time (RFC 3339 or YYYY-MM-DDTHH:MM:SS)",
			Destination: &addStart,
		},
		cli.StringFlag{
			Name:        "end, e",
			Usage:       "end time",
			Destination: &addEnd,
		},
		cli.StringFlag{
			Name:        "due, d",
			Usage:       "due date",
			Destination: &addDue,
		},
		cli.StringFlag{
			Name:        "recur, r",
			Usage:       `recurrence rule as JSON, e.g. '{"freq":"weekly","byDay":["MO","WE"],"count":10}'`,
			Destination: &addRule,
		},
		cli.BoolFlag{
			Name:        "blocking, b",
			Usage:       "refuse the task if it conflicts instead of admitting with warnings",
			Destination: &addBlocking,
		},
	}
)

func addTask(ctx *cli.Context) error {
	if addName == "" {
		return fmt.Errorf("a task name is required (--name)")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	t := &tasklib.Task{
		Name:           addName,
		Description:    addDesc,
		Location:       addLocation,
		Importance:     tasklib.Importance(addImportance),
		StartTime:      addStart,
		EndTime:        addEnd,
		DueDate:        addDue,
		RecurrenceRule: addRule,
	}
	result, err := c.AddTask(context.Background(), t, addBlocking)
	if err != nil {
		return err
	}
	fmt.Printf("created %s  %s\n", result.Task.ID, result.Task.Name)
	printConflicts(result.Conflicts)
	if result.Summary != nil {
		fmt.Printf("expanded %d occurrence(s), %d with conflicts, %d failed\n",
			result.Summary.CreatedCount, result.Summary.ConflictCount, result.Summary.ErrorCount)
	}
	return nil
}

var (
	listSearch    string
	listFrom      string
	listTo        string
	listCompleted bool
	listPending   bool
	listLimit     int

	listFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "search, q",
			Usage:       "substring match over name, description and location",
			Destination: &listSearch,
		},
		cli.StringFlag{
			Name:        "from",
			Usage:       "window start",
			Destination: &listFrom,
		},
		cli.StringFlag{
			Name:        "to",
			Usage:       "window end",
			Destination: &listTo,
		},
		cli.BoolFlag{
			Name:        "completed, c",
			Usage:       "only completed tasks",
			Destination: &listCompleted,
		},
		cli.BoolFlag{
			Name:        "pending, p",
			Usage:       "only pending tasks",
			Destination: &listPending,
		},
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "maximum tasks to show",
			Value:       50,
			Destination: &listLimit,
		},
	}
)

func listTasks(ctx *cli.Context) error {
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	opts := &taskcli.ListOptions{
		Search:      listSearch,
		WindowStart: listFrom,
		WindowEnd:   listTo,
		SortBy:      "startTime",
		Limit:       listLimit,
	}
	if listCompleted {
		v := true
		opts.Completed = &v
	} else if listPending {
		v := false
		opts.Completed = &v
	}

	tasks, err := c.ListTasks(context.Background(), opts)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	printTasks(tasks)
	return nil
}

func listOccurrences(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return fmt.Errorf("a task id is required")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	tasks, err := c.Occurrences(context.Background(), id)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no occurrences")
		return nil
	}
	printTasks(tasks)
	return nil
}

func completeTask(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return fmt.Errorf("a task id is required")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.CompleteTask(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Printf("completed %s  %s\n", result.Task.ID, result.Task.Name)
	return nil
}

var removeCascade bool

func removeTask(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return fmt.Errorf("a task id is required")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := c.RemoveTask(context.Background(), id, removeCascade)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("nothing removed")
		return nil
	}
	fmt.Printf("removed %s\n", id)
	return nil
}

var (
	checkStart string
	checkEnd   string

	checkFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "start, s",
			Usage:       "slot start time",
			Destination: &checkStart,
		},
		cli.StringFlag{
			Name:        "end, e",
			Usage:       "slot end time",
			Destination: &checkEnd,
		},
	}
)

func checkSlot(ctx *cli.Context) error {
	if checkStart == "" || checkEnd == "" {
		return fmt.Errorf("both --start and --end are required")
	}
	c, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	conflicts, err := c.CheckConflicts(context.Background(), &tasklib.Task{
		Name:      "slot-check",
		StartTime: checkStart,
		EndTime:   checkEnd,
	})
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Println("slot is free")
		return nil
	}
	fmt.Printf("%d conflict(s):\n", len(conflicts))
	printTasks(conflicts)
	return nil
}

func printTasks(tasks []*tasklib.Task) {
	for _, t := range tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		window := t.StartTime
		if t.EndTime != "" {
			window += " -> " + t.EndTime
		}
		line := fmt.Sprintf("[%s] %-36s  %s", mark, t.ID, t.Name)
		if window != "" {
			line += "  (" + window + ")"
		}
		if t.Location != "" {
			line += "  @" + t.Location
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
}

func printConflicts(conflicts []*tasklib.Task) {
	if len(conflicts) == 0 {
		return
	}
	fmt.Printf("warning: overlaps %d existing task(s):\n", len(conflicts))
	printTasks(conflicts)
}

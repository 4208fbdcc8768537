package main

import (
	"fmt"
	"os"

	"github.com/taskfuse/taskfuse/cmd"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	err := cmd.Execute(os.Args, cmd.BuildArgs{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	if err != nil {
		fmt.Printf("taskfuse: %s\n", err.Error())
		os.Exit(1)
	}
}

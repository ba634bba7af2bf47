package main

import (
	"fmt"
	"os"

	"github.com/zhouzirui/mindcare/backend/cmd/mindcare/commands"
)

// Version information (set via -ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

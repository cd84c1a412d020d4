// Command jobqueuectl is a demo harness for the jobqueue library: it
// builds a queue from a config file, registers the built-in demo
// routines, and exposes run and demo as cobra subcommands, driving
// the library the way an embedding application would.
package main

import (
	"fmt"
	"os"

	"github.com/ehsaniara/jobqueue/internal/jobqueuectl"
)

func main() {
	if err := jobqueuectl.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package jobqueuectl

import (
	"github.com/spf13/cobra"
)

var configPath string

// NewRootCmd builds the jobqueuectl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobqueuectl",
		Short: "Drive the jobqueue library from the command line",
		Long: `jobqueuectl builds an in-process job queue from a config
file, registers the built-in demo routines, and submits jobs against
it, printing their lifecycle as they move through the queue.

Because the default store is in-memory, each invocation starts a
fresh queue: run submits one job and waits for it to finish, demo
submits a representative mix of jobs to exercise concurrency and
progression reporting.`,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a YAML configuration file (defaults built in if omitted)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newDemoCmd())

	return root
}

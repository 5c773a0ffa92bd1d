package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-run/lattice/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run <model.yaml>",
	Short: "Run a simulation session for a model file",
	Long: `Starts a session for the given model and feeds it events.

Without --event flags the session is interactive: events are read line by
line from stdin, an empty line performs an internal step, "reset" restarts
the session and "quit" stops it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		events, _ := cmd.Flags().GetStringArray("event")
		jsonMode, _ := cmd.Flags().GetBool("json")
		debug, _ := cmd.Flags().GetBool("debug")

		err := cli.Run(cmd.Context(), cli.RunOptions{
			ModelPath: args[0],
			Events:    events,
			JSON:      jsonMode,
			Debug:     debug,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArray("event", nil, "Event to send (repeatable, in order); disables interactive mode")
	runCmd.Flags().Bool("json", false, "Emit step records as NDJSON")
}

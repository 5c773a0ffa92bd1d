package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-run/lattice/internal/loader"
)

var validateCmd = &cobra.Command{
	Use:   "validate <model.yaml>",
	Short: "Check a model file for structural errors",
	Long: `Compiles the model without starting a session. Reports duplicate state
names, missing or multiple initial states and transitions whose endpoints do
not exist in their machine scope.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		model, err := loader.ParseYAML(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("OK: %d machine(s), %d state(s), %d transition(s)\n",
			len(model.Machines), len(model.States), len(model.Transitions))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lattice-run/lattice"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of lattice",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lattice version %s\n", lattice.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

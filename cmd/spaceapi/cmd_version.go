package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/spaceapi-explorer/internal/config"
)

func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "spaceapi version %s\n", config.Version)
		},
	}
}

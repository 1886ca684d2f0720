package main

import (
	"github.com/spf13/cobra"
)

// Build metadata, overridden via -ldflags at release time.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				return printJSON(map[string]string{
					"version": buildVersion,
					"commit":  buildCommit,
					"built":   buildDate,
				})
			}
			printInfo("kheapctl %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
			return nil
		},
	})
}

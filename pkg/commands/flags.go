package commands

import (
	"github.com/spf13/cobra"
)

// mustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func mustString(s string, _ error) string { return s }

// configFlag adds the persistent --config/-c flag.
func configFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "opbus.yml",
		"Configuration file, environment variables are used when it does not exist")
}

// principalFlag adds the persistent --principal/-p flag.
func principalFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("principal", "p", "admin", "Principal the operations run as")
}

// reportOutFlag adds the persistent --report-out flag.
func reportOutFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String("report-out", "",
		"Write the reports of the command to this file as YAML (requires bus.report)")
}

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/operations-bus/operations"
)

var (
	reportsExample = examples(`
		# Record the reports of a transfer
		opbus transfer alice bob 10 --report-out reports.yml

		# Show every report of the file
		opbus reports reports.yml

		# Show one dispatch and the dispatches it made, innermost first
		opbus reports reports.yml 2b0c5f1e-8d1a-4c55-9f57-3a4e0c1d2e3f
	`)
)

func newReportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "reports <file> [report-id]",
		Short:   "Show dispatch reports written with --report-out",
		Example: reportsExample,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := readReports(args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				reporter := operations.NewMemoryReporter(operations.WithReports(reports))
				if reports, err = reporter.GetExecutionReports(args[1]); err != nil {
					return err
				}
			}

			return printYAML(cmd.OutOrStdout(), reports)
		},
	}
}

func readReports(path string) ([]operations.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}

	var reports []operations.Report
	if err := yaml.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("parse reports %s: %w", path, err)
	}

	return reports, nil
}

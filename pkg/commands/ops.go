package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/operations-bus/bootstrap"
	"github.com/smartcontractkit/operations-bus/operations"
)

var (
	opsRunExample = examples(`
		# Run the latest version of an operation
		opbus ops run bank-withdraw '{"account":"alice","amount":50}'

		# Run a specific version as another principal
		opbus ops run bank-balance '{"account":"alice"}' --version 1.0.0 -p alice
	`)
)

func newOpsCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Operation catalog commands",
	}

	cmd.AddCommand(newOpsListCmd(cfg), newOpsRunCmd(cfg))

	return cmd
}

func newOpsListCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var defs []operations.Definition
			err := run(cmd, cfg, func(_ context.Context, rt *bootstrap.Runtime) (any, error) {
				defs = rt.Routes.Definitions()
				return nil, nil
			})
			if err != nil {
				return err
			}

			return printDefinitions(cmd, defs)
		},
	}
}

func printDefinitions(cmd *cobra.Command, defs []operations.Definition) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tCATEGORY\tDESCRIPTION")
	for _, def := range defs {
		version := ""
		if def.Version != nil {
			version = def.Version.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.ID, version, def.Category, def.Description)
	}

	return w.Flush()
}

func newOpsRunCmd(cfg Config) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:     "run <id> [json-input]",
		Short:   "Dispatch an operation with a JSON input",
		Example: opsRunExample,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if len(args) == 2 {
				raw = []byte(args[1])
			}

			return run(cmd, cfg, func(ctx context.Context, rt *bootstrap.Runtime) (any, error) {
				route, err := lookupRoute(rt.Routes, args[0], version)
				if err != nil {
					return nil, err
				}

				return route.DispatchJSON(ctx, rt.Bus, raw)
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Operation version, the latest when empty")

	return cmd
}

func lookupRoute(routes *operations.OperationRegistry, id, version string) (operations.Route, error) {
	if version == "" {
		return routes.RetrieveByID(id)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", version, err)
	}

	return routes.Retrieve(operations.Definition{ID: id, Version: v})
}

// dispatchRoute dispatches the latest version of the operation id with in as its input.
func dispatchRoute(ctx context.Context, rt *bootstrap.Runtime, id string, in any) (any, error) {
	route, err := rt.Routes.RetrieveByID(id)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	return route.DispatchJSON(ctx, rt.Bus, raw)
}

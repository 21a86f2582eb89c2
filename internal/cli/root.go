package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the swagger2ts CLI.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swagger2ts",
		Short:         "Generate TypeScript API clients from OpenAPI 3 documents",
		Long:          "swagger2ts turns an OpenAPI 3 document into axios client classes grouped by tag, a models module and a README.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	cmd.AddCommand(newGenerateCmd(), newInitCmd())

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	for _, c := range append([]*cobra.Command{cmd}, cmd.Commands()...) {
		c.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
			return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
		})
	}

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStrategiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the strategy registry, overrides applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.buildRegistry()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStrategies(registry.All()))
			return nil
		},
	}
}

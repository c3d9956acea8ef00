package cli

import (
	"fmt"
	"sort"

	"papertrader/src/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetBuildInfo()
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fields := make([][2]string, 0, len(keys))
			for _, k := range keys {
				fields = append(fields, [2]string{k, info[k]})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFields(fields))
		},
	}
}

package xyn

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"xyron.node/xyn/internal/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xyn %s (built %s, %s %s/%s)\n",
			types.Version, types.BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

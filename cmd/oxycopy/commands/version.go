package commands

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/spf13/cobra"
)

// Version is the oxycopy release.
var Version = "0.1.0"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ws := kernel.WorkgroupSize()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "oxycopy v%s\n", Version)
			fmt.Fprintf(out, "Copy kernel work group size: %dx%dx%d\n", ws[0], ws[1], ws[2])
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		},
	}
}

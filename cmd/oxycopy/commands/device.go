package commands

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/spf13/cobra"
)

func newDeviceCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Show the WebGPU adapter and its compute limits",
		Long: `Device requests a WebGPU adapter with the configured power preference and
prints the adapter together with the limits dispatches are validated against.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().String("power-preference", "high", "adapter preference: default, low or high")
	keys := map[string]string{"power-preference": "backend.power_preference"}

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return o.bindFlags(cmd, keys)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := o.load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		r, err := openRenderer(cfg)
		if err != nil {
			fmt.Fprintf(out, "Device: unavailable (%v)\n", err)
			fmt.Fprintln(out, "The cpu backend runs without an adapter: oxycopy run --backend cpu")
			return err
		}
		defer r.Release()

		info := r.AdapterInfo()
		limits := r.Limits()
		ws := kernel.WorkgroupSize()
		fmt.Fprintf(out, "Device: %s\n", info)
		fmt.Fprintf(out, "   Fallback adapter: %t\n", info.Fallback)
		fmt.Fprintln(out, "Limits:")
		fmt.Fprintf(out, "   Max work groups per dimension: %d\n", limits.MaxWorkgroupsPerDimension)
		fmt.Fprintf(out, "   Max storage buffer binding: %d bytes (%d records)\n",
			limits.MaxStorageBufferBindingSize, limits.MaxStorageBufferBindingSize/kernel.AttribDataStride)
		fmt.Fprintf(out, "Kernel work group size: %dx%dx%d\n", ws[0], ws[1], ws[2])
		fmt.Fprintln(out, "System:")
		fmt.Fprintf(out, "   OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "   CPUs: %d\n", runtime.NumCPU())
		return nil
	}
	return cmd
}

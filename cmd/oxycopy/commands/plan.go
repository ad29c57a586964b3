package commands

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/shader"
	"github.com/spf13/cobra"
)

func newPlanCommand(o *options) *cobra.Command {
	var (
		validateShader bool
		collisions     int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Check a dispatch without running it",
		Long: `Plan enumerates every write a dispatch of the copy kernel would perform and
prints the required buffer length, the coverage of the output buffer and any
indices written by more than one invocation. No GPU is needed.`,
		Args: cobra.NoArgs,
	}

	keys := addDispatchFlags(cmd)
	cmd.Flags().BoolVar(&validateShader, "validate-shader", false, "compile the copy kernel with naga")
	cmd.Flags().IntVar(&collisions, "collisions", 5, "number of most-written indices to list")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return o.bindFlags(cmd, keys)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := o.load()
		if err != nil {
			return err
		}
		policy, err := kernel.ParseOverlapPolicy(cfg.Planner.OverlapPolicy)
		if err != nil {
			return err
		}

		d := kernel.Dispatch{X: cfg.Dispatch.X, Y: cfg.Dispatch.Y, Z: cfg.Dispatch.Z}
		length := int(cfg.Buffers.Length)
		if length == 0 {
			if length, err = d.RequiredLength(); err != nil {
				return err
			}
		}

		planner := kernel.NewPlanner(
			kernel.WithLimits(kernel.Limits{MaxWorkgroupsPerDimension: cfg.Planner.MaxWorkgroupsPerDimension}),
			kernel.WithOverlapPolicy(policy),
			kernel.WithWorkers(cfg.Planner.Workers),
		)
		plan, err := planner.Plan(cmd.Context(), d, length, length)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, plan.Summary())

		if collisions > 0 && plan.Overlapping() {
			worst := slices.Clone(plan.Collisions)
			slices.SortStableFunc(worst, func(a, b kernel.Collision) int {
				return cmp.Compare(b.Writers, a.Writers)
			})
			fmt.Fprintln(out, "most-written indices:")
			for _, c := range worst[:min(collisions, len(worst))] {
				fmt.Fprintf(out, "  [%d] %d writers\n", c.Index, c.Writers)
			}
		}

		if validateShader {
			s, err := shader.NewShader("copy_kernel", kernel.CopyKernelSource)
			if err != nil {
				return err
			}
			spirv, err := s.Validate()
			if err != nil {
				return fmt.Errorf("copy kernel: %w", err)
			}
			fmt.Fprintf(out, "shader: %s entry point, workgroup size %v, %d bytes of SPIR-V\n", s.EntryPoint(), s.WorkgroupSize(), len(spirv))
		}
		return nil
	}
	return cmd
}

package commands

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-copy/engine"
	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/spf13/cobra"
)

// sampleRecords is the number of written records printed after a run.
const sampleRecords = 8

func newRunCommand(o *options) *cobra.Command {
	var indirect bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan, execute and verify a copy dispatch",
		Long: `Run plans a dispatch of the copy kernel, executes it on the selected backend and
verifies the output: every written index must hold the input record and every
other index must still hold the sentinel.

With --repeat N the job runs N times over its own output and fails if any run
changes the result of the first.`,
		Args: cobra.NoArgs,
	}

	keys := addDispatchFlags(cmd)
	f := cmd.Flags()
	f.String("fill", "index", "input fill: index, random or constant")
	f.Float32("sentinel", -1, "value every output component starts with")
	f.Int64("seed", 1, "seed for the random fill")
	f.Int("repeat", 1, "number of runs for the idempotence check")
	f.Bool("profile", false, "log stage timings and memory statistics")
	f.String("power-preference", "high", "adapter preference: default, low or high")
	f.BoolVar(&indirect, "indirect", false, "read work group counts from an indirect buffer on the GPU")
	keys["fill"] = "buffers.fill"
	keys["sentinel"] = "buffers.sentinel"
	keys["seed"] = "buffers.seed"
	keys["repeat"] = "planner.repeat"
	keys["profile"] = "profiling.enabled"
	keys["power-preference"] = "backend.power_preference"

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

		b, err := openBackend(cfg, indirect)
		if err != nil {
			return err
		}
		defer b.Release()

		e := engine.NewEngine(
			engine.WithExecutor(b.executor),
			engine.WithLimits(b.limits),
			engine.WithOverlapPolicy(policy),
			engine.WithWorkers(cfg.Planner.Workers),
			engine.WithProfiling(cfg.Profiling.Enabled),
		)

		d := kernel.Dispatch{X: cfg.Dispatch.X, Y: cfg.Dispatch.Y, Z: cfg.Dispatch.Z}
		length := int(cfg.Buffers.Length)
		if length == 0 {
			if length, err = d.RequiredLength(); err != nil {
				return err
			}
		}
		if err := b.limits.CheckRecords(d, uint64(length)); err != nil {
			return err
		}
		job, err := engine.NewJob(d, length, engine.FillKind(cfg.Buffers.Fill), cfg.Buffers.Seed, cfg.Buffers.Sentinel)
		if err != nil {
			return err
		}

		res, err := e.RunRepeated(cmd.Context(), job, cfg.Planner.Repeat)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, res.Summary())
		fmt.Fprintf(out, "verified: %d written records match the input, %d untouched records hold the sentinel\n",
			len(res.Plan.Written), len(job.Output)-len(res.Plan.Written))
		printSample(out, res.Plan, job)
		return nil
	}
	return cmd
}

// printSample prints the first written records of a finished job.
func printSample(w io.Writer, plan *kernel.Plan, job engine.Job) {
	n := min(sampleRecords, len(plan.Written))
	fmt.Fprintf(w, "first %d written records:\n", n)
	for _, idx := range plan.Written[:n] {
		fmt.Fprintf(w, "  [%d] %v\n", idx, job.Output[idx].Vec)
	}
}

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rogue-lang/rgc/pkg/gcrt"
)

// rootFlags mirrors RuntimeConfig's tunables one flag at a time, the
// §6 external tuning interface bound to pflag.
type rootFlags struct {
	threshold int64
	pageSize  int64
	verbose   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "rgcdemo",
		Short: "Exercise a rgc Runtime end to end",
	}
	cmd.PersistentFlags().Int64Var(&flags.threshold, "gc-threshold", gcrt.DefaultGCThreshold, "byte budget between collections")
	cmd.PersistentFlags().Int64Var(&flags.pageSize, "page-size", gcrt.DefaultPageSize, "slab allocator page size in bytes")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug-level logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newStressCmd(flags))
	cmd.AddCommand(newSingletonDemoCmd(flags))
	return cmd
}

func (f *rootFlags) newRuntime() (*gcrt.Runtime, error) {
	logger := zap.NewNop()
	if f.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = l
	}
	return gcrt.NewRuntime(
		gcrt.WithThreshold(f.threshold),
		gcrt.WithPageSize(uintptr(f.pageSize)),
		gcrt.WithLogging(logger),
	)
}

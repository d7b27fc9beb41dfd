package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rogue-lang/rgc/internal/testtypes"
)

func newStressCmd(flags *rootFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Allocate many short-lived objects to exercise the trigger and sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := flags.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Quit()

			table, fns, _ := testtypes.Build()
			if err := rt.ConfigureTypes(table, fns); err != nil {
				return err
			}
			rt.RegisterMutator()
			defer rt.UnregisterMutator()

			leafType := rt.Types().TypeByName("Leaf")
			for i := 0; i < count; i++ {
				rt.AllocateObject(leafType, leafType.ObjectSize)
				if i%10000 == 0 {
					fmt.Printf("%d allocated, stats=%+v\n", i, rt.Stats())
				}
			}
			rt.Collect(true)
			fmt.Printf("final stats: %+v\n", rt.Stats())
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100000, "number of objects to allocate")
	return cmd
}

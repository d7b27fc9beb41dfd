package main

import (
	"fmt"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/rogue-lang/rgc/internal/testtypes"
	"github.com/rogue-lang/rgc/pkg/gcrt"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Allocate a small object graph, collect, and print stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := flags.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Quit()

			table, fns, log := testtypes.Build()
			if err := rt.ConfigureTypes(table, fns); err != nil {
				return err
			}
			rt.RegisterMutator()
			defer rt.UnregisterMutator()

			pairType := rt.Types().TypeByName("Pair")
			resourceType := rt.Types().TypeByName("Resource")

			resource := rt.AllocateObject(resourceType, resourceType.ObjectSize)
			pair := rt.AllocateObject(pairType, pairType.ObjectSize)
			*gcrt.RefSlot(gcrt.HeaderOf(pair), 0) = resource

			var root unsafe.Pointer
			scope := rt.PushLocalRoot(&root)
			root = pair
			defer scope.Pop()

			rt.Collect(true)
			fmt.Printf("after first collect: %+v\n", rt.Stats())

			root = nil
			rt.Collect(true)
			fmt.Printf("after dropping root: %+v\n", rt.Stats())
			fmt.Printf("finalizers run: %v\n", log.Entries())
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rogue-lang/rgc/internal/testtypes"
)

func newSingletonDemoCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "singleton-demo",
		Short: "Request the same singleton from several goroutines and confirm a single instance",
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

			leafType := rt.Types().TypeByName("Leaf")

			const workers = 8
			results := make(chan uintptr, workers)
			for i := 0; i < workers; i++ {
				go func() {
					rt.RegisterMutator()
					defer rt.UnregisterMutator()
					h := rt.Singleton(leafType)
					results <- uintptr(h)
				}()
			}

			seen := map[uintptr]int{}
			for i := 0; i < workers; i++ {
				seen[<-results]++
			}
			fmt.Printf("distinct singleton addresses observed: %d\n", len(seen))
			return nil
		},
	}
}

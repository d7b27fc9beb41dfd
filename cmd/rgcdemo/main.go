// Command rgcdemo drives a rgc Runtime through its external
// interfaces end to end: allocation, collection, finalization, and
// singleton construction, against a small fixed set of fixture types.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package gcrt_test

import (
	"go.uber.org/atomic"

	"github.com/rogue-lang/rgc/pkg/gcrt"
	"github.com/rogue-lang/rgc/pkg/gcrt/metadata"
)

// singletonFixture pairs a one-type metadata table with an
// InitObjectFn that counts its own invocations, isolated from
// testtypes.Build's shared fixtures since IP6 needs to assert the
// constructor ran exactly once.
type singletonFixture struct {
	gcrt.Functions
	initCount atomic.Int32
}

func buildSingletonFixture() (metadata.Table, *singletonFixture, error) {
	f := &singletonFixture{}
	table := metadata.Table{
		Entries: []metadata.TypeEntry{
			{
				Name:            "SingletonLeaf",
				ObjectSize:      gcrt.FixedObjectSize(0),
				HasInitObjectFn: true,
			},
		},
	}
	f.Functions = gcrt.Functions{
		InitObject: map[string]gcrt.InitObjectFn{
			"SingletonLeaf": func(rt *gcrt.Runtime, h *gcrt.Header) {
				f.initCount.Inc()
			},
		},
	}
	return table, f, nil
}

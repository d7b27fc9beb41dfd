package gcrt_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rogue-lang/rgc/internal/testtypes"
	"github.com/rogue-lang/rgc/pkg/gcrt"
)

// newTestRuntime builds a hermetic Runtime with the shared fixture
// types configured and the calling goroutine registered as a mutator.
// Each call gets its own Runtime (and its own collector goroutine),
// per the design note that tests should never share process-wide
// state across cases.
func newTestRuntime(t *testing.T) (*gcrt.Runtime, *testtypes.CleanupLog) {
	t.Helper()
	rt, err := gcrt.NewRuntime(gcrt.WithLogging(zap.NewNop()))
	require.NoError(t, err)

	table, fns, log := testtypes.Build()
	require.NoError(t, rt.ConfigureTypes(table, fns))

	rt.RegisterMutator()
	t.Cleanup(func() {
		rt.UnregisterMutator()
		rt.Quit()
	})
	return rt, log
}

func allocLeaf(t *testing.T, rt *gcrt.Runtime) unsafe.Pointer {
	t.Helper()
	leaf := rt.Types().TypeByName("Leaf")
	require.NotNil(t, leaf)
	return rt.AllocateObject(leaf, leaf.ObjectSize)
}

func allocResource(t *testing.T, rt *gcrt.Runtime) unsafe.Pointer {
	t.Helper()
	resource := rt.Types().TypeByName("Resource")
	require.NotNil(t, resource)
	return rt.AllocateObject(resource, resource.ObjectSize)
}

func allocPair(t *testing.T, rt *gcrt.Runtime, first, second unsafe.Pointer) unsafe.Pointer {
	t.Helper()
	pair := rt.Types().TypeByName("Pair")
	require.NotNil(t, pair)
	h := rt.AllocateObject(pair, pair.ObjectSize)
	hdr := gcrt.HeaderOf(h)
	*gcrt.RefSlot(hdr, 0) = first
	*gcrt.RefSlot(hdr, 1) = second
	return h
}

package plugin

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugboard/plugboard/pkg/access"
)

func TestRegistry_SwapReplacesWholeSnapshot(t *testing.T) {
	first := &Snapshot{
		Descriptors: []*Descriptor{{Name: "publish"}},
		Tree:        &access.Tree{},
	}
	r := NewRegistry(first)
	require.Same(t, first, r.Current())

	second := &Snapshot{
		Descriptors: []*Descriptor{{Name: "publish"}, {Name: "billing"}},
		Tree:        &access.Tree{},
	}
	r.Swap(second)
	assert.Same(t, second, r.Current())
	assert.NotNil(t, r.Descriptor("billing"))
	assert.Nil(t, r.Descriptor("gone"))
}

func TestRegistry_ConcurrentReadsDuringSwap(t *testing.T) {
	r := NewRegistry(&Snapshot{Descriptors: []*Descriptor{{Name: "a"}}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				snap := r.Current()
				require.NotNil(t, snap)
				require.NotEmpty(t, snap.Descriptors)
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		r.Swap(&Snapshot{Descriptors: []*Descriptor{{Name: "b"}}})
	}
	wg.Wait()
}

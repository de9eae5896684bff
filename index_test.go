package depcache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndex_RecordIsIdempotent(t *testing.T) {
	ix := newTypeIndex()
	ix.record("T", "k", 1)
	ix.record("T", "k", 1)
	require.Equal(t, []keyRef{{key: "k", id: 1}}, ix.snapshot("T"))
}

func TestIndex_ForgetChecksOwner(t *testing.T) {
	ix := newTypeIndex()
	ix.record("T", "k", 1)
	ix.record("T", "k", 2) // successor entry for the same key

	ix.forget("T", "k", 1)
	require.Equal(t, []string{"k"}, ix.keys("T"))

	ix.forget("T", "k", 2)
	require.Empty(t, ix.keys("T"))
	require.Empty(t, ix.types(), "empty buckets are dropped")

	ix.forget("T", "k", 2) // absent: no-op
	ix.forget("missing", "k", 1)
	require.Nil(t, ix.snapshot("missing"))
	require.Empty(t, ix.types(), "snapshot of a missing type creates nothing")
}

func TestIndex_SnapshotIsACopy(t *testing.T) {
	ix := newTypeIndex()
	ix.record("T", "a", 1)
	snap := ix.snapshot("T")
	ix.record("T", "b", 2)
	ix.forget("T", "a", 1)

	require.Equal(t, []keyRef{{key: "a", id: 1}}, snap)
	require.Equal(t, []string{"b"}, ix.keys("T"))
}

func TestIndex_ConcurrentRecordForget(t *testing.T) {
	ix := newTypeIndex()
	const workers, perWorker = 8, 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				k := strconv.Itoa(w) + ":" + strconv.Itoa(i)
				ix.record("T", k, uint64(i+1))
				_ = ix.snapshot("T")
				if i%2 == 0 {
					ix.forget("T", k, uint64(i+1))
				}
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, ix.keys("T"), workers*perWorker/2)
}

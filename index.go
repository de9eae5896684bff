package depcache

import (
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyRef is one index membership: the key and the id of the entry that put it
// there.
type keyRef struct {
	key string
	id  uint64
}

// typeIndex maps a type to the keys tagged with it. Buckets are only touched
// inside Compute, so creating a bucket and inserting into it is atomic with
// respect to readers.
//
// Each membership carries the id of the entry that recorded it. forget only
// removes a membership carrying its own id, so a late exit of a replaced entry
// cannot drop the tags of its successor.
type typeIndex struct {
	m *xsync.MapOf[Type, map[string]uint64]
}

func newTypeIndex() *typeIndex {
	return &typeIndex{m: xsync.NewMapOf[Type, map[string]uint64]()}
}

// record adds key to t's bucket. Recording again overwrites the owning id.
func (ix *typeIndex) record(t Type, key string, id uint64) {
	ix.m.Compute(t, func(bucket map[string]uint64, loaded bool) (map[string]uint64, bool) {
		if !loaded || bucket == nil {
			bucket = make(map[string]uint64, 1)
		}
		bucket[key] = id
		return bucket, false
	})
}

// forget removes key from t's bucket if it is still owned by id. Empty buckets
// are dropped.
func (ix *typeIndex) forget(t Type, key string, id uint64) {
	ix.m.Compute(t, func(bucket map[string]uint64, loaded bool) (map[string]uint64, bool) {
		if !loaded {
			return bucket, true
		}
		if cur, ok := bucket[key]; ok && cur == id {
			delete(bucket, key)
		}
		return bucket, len(bucket) == 0
	})
}

// snapshot copies t's bucket. A missing type yields nil.
func (ix *typeIndex) snapshot(t Type) []keyRef {
	var out []keyRef
	ix.m.Compute(t, func(bucket map[string]uint64, loaded bool) (map[string]uint64, bool) {
		if !loaded {
			return bucket, true
		}
		out = make([]keyRef, 0, len(bucket))
		for k, id := range bucket {
			out = append(out, keyRef{key: k, id: id})
		}
		return bucket, false
	})
	return out
}

// keys returns the sorted keys of t's bucket.
func (ix *typeIndex) keys(t Type) []string {
	refs := ix.snapshot(t)
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.key
	}
	slices.Sort(out)
	return out
}

// types returns the types with a non-empty bucket, sorted. Only tests use it,
// to check that emptied buckets are dropped.
func (ix *typeIndex) types() []Type {
	var out []Type
	ix.m.Range(func(t Type, _ map[string]uint64) bool {
		out = append(out, t)
		return true
	})
	slices.Sort(out)
	return out
}

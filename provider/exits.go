package provider

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

type exitRecord struct {
	seq  uint64
	exit *Exit
}

// ExitTable tracks the exit callback of the latest Set per key for stores that
// have no per-item callback slot of their own (byte arenas, remote stores).
// Each Set gets a sequence; removal notifications carrying a sequence only
// resolve the record they were issued for.
type ExitTable struct {
	m   *xsync.MapOf[string, exitRecord]
	seq atomic.Uint64
}

func NewExitTable() *ExitTable {
	return &ExitTable{m: xsync.NewMapOf[string, exitRecord]()}
}

// Next returns a fresh, non-zero sequence.
func (t *ExitTable) Next() uint64 { return t.seq.Add(1) }

// Put registers fn as the exit of (key, seq) and returns the record it displaced.
func (t *ExitTable) Put(key string, seq uint64, fn ExitFunc) (prev *Exit) {
	rec := exitRecord{seq: seq, exit: NewExit(fn)}
	t.m.Compute(key, func(old exitRecord, loaded bool) (exitRecord, bool) {
		if loaded {
			prev = old.exit
		}
		return rec, false
	})
	return prev
}

// Take removes and returns the exit of key if its sequence is seq.
// seq == 0 matches whatever is registered.
func (t *ExitTable) Take(key string, seq uint64) (exit *Exit) {
	t.m.Compute(key, func(old exitRecord, loaded bool) (exitRecord, bool) {
		if !loaded {
			return old, true
		}
		if seq != 0 && old.seq != seq {
			return old, false
		}
		exit = old.exit
		return old, true
	})
	return exit
}

// Seq reports the sequence currently registered for key.
func (t *ExitTable) Seq(key string) (uint64, bool) {
	rec, ok := t.m.Load(key)
	return rec.seq, ok
}

// Drain removes every record and returns their exits.
func (t *ExitTable) Drain() []*Exit {
	var out []*Exit
	t.m.Range(func(key string, _ exitRecord) bool {
		if e := t.Take(key, 0); e != nil {
			out = append(out, e)
		}
		return true
	})
	return out
}

func (t *ExitTable) Len() int { return t.m.Size() }

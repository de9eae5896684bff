package depcache

import "time"

// defaultTTL applies when Options.DefaultTTL is zero and the entry sets none.
const defaultTTL = 10 * time.Minute

// coalesce returns def when v is the zero value of T, otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

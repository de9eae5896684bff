package depcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProviderRequired = errors.New("depcache: provider is required")
	ErrNilFactory       = errors.New("depcache: nil factory")
	ErrNoTypes          = errors.New("depcache: at least one type is required")
	ErrEmptyType        = errors.New("depcache: empty type name")
	ErrClosed           = errors.New("depcache: cache closed")
	ErrFactoryPanic     = errors.New("depcache: factory panicked")
	ErrPopulatePanic    = errors.New("depcache: population panicked")
)

// InvalidateError reports the keys an invalidation pass could not delete.
// Keys and Errs are parallel.
type InvalidateError struct {
	Type  Type
	Total int // keys in the snapshot
	Keys  []string
	Errs  []error
}

func (e *InvalidateError) Error() string {
	switch len(e.Errs) {
	case 0:
		return fmt.Sprintf("invalidate %q: unknown error", e.Type)
	case 1:
		return fmt.Sprintf("invalidate %q: delete %q failed: %v", e.Type, e.Keys[0], e.Errs[0])
	default:
		return fmt.Sprintf("invalidate %q: %d of %d deletes failed (%s): first: %v",
			e.Type, len(e.Errs), e.Total, strings.Join(e.Keys, ", "), e.Errs[0])
	}
}

func (e *InvalidateError) Unwrap() []error { return e.Errs }

func (e *InvalidateError) add(key string, err error) {
	e.Keys = append(e.Keys, key)
	e.Errs = append(e.Errs, err)
}

func checkTypes(types []Type) error {
	if len(types) == 0 {
		return ErrNoTypes
	}
	for _, t := range types {
		if t == "" {
			return ErrEmptyType
		}
	}
	return nil
}

package depcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type order struct{}

func TestTypeFor(t *testing.T) {
	require.Equal(t, Type("depcache.order"), TypeFor[order]())
	require.Equal(t, TypeFor[order](), TypeFor[*order]())
	require.Equal(t, TypeFor[order](), TypeOf(&order{}))
	require.Equal(t, Type(""), TypeOf(nil))
}

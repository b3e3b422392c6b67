package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueCache_PutGet(t *testing.T) {
	c := New(4)
	c.Put("BTCUSDT", Entry{PriceWindow: []float64{1, 2, 3}})

	e, ok := c.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, e.PriceWindow)
}

func TestVenueCache_MissingKey(t *testing.T) {
	c := New(4)
	_, ok := c.Get("ETHUSDT")
	assert.False(t, ok)
}

func TestVenueCache_PruneRemovesInactiveSymbols(t *testing.T) {
	c := New(4)
	c.Put("BTCUSDT", Entry{})
	c.Put("ETHUSDT", Entry{})

	c.Prune(map[string]struct{}{"BTCUSDT": {}})

	_, ok := c.Get("ETHUSDT")
	assert.False(t, ok)
	_, ok = c.Get("BTCUSDT")
	assert.True(t, ok)
}

func TestVenueCache_BoundedEviction(t *testing.T) {
	c := New(2)
	c.Put("A", Entry{})
	c.Put("B", Entry{})
	c.Put("C", Entry{}) // evicts A (least recently used)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("A")
	assert.False(t, ok)
}

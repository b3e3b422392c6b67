package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('A' + i%26))
	}
	return out
}

func unionSize(groups [][]string) int {
	seen := map[string]bool{}
	for _, g := range groups {
		for _, s := range g {
			seen[s] = true
		}
	}
	return len(seen)
}

func TestPartition_EmptySymbols(t *testing.T) {
	groups := Partition(nil, 3, 300)
	assert.Empty(t, groups)
}

func TestPartition_UnderCapacityNoRebalance(t *testing.T) {
	syms := symbols(10)
	groups := Partition(syms, 3, 5)
	require.Len(t, groups, 2) // ceil(10/5) == 2, <= 3 masters, no rebalance
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, 10, total)
}

func TestPartition_RebalancesToExactMasterCount(t *testing.T) {
	syms := make([]string, 301) // 301 distinct symbols
	for i := range syms {
		syms[i] = string(rune(i))
	}
	groups := Partition(syms, 2, 100) // ceil(301/100)=4 > 2 masters -> rebalance to 2
	require.Len(t, groups, 2)

	sizes := []int{len(groups[0]), len(groups[1])}
	diff := sizes[0] - sizes[1]
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 1)
	assert.Equal(t, len(syms), unionSize(groups))
}

func TestPartition_RemainderNotDivisible(t *testing.T) {
	syms := symbols(20)
	groups := Partition(syms, 3, 5) // ceil(20/5)=4 > 3 masters -> rebalance to 3 groups of 7,7,6
	require.Len(t, groups, 3)

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, 20, total)
	assert.Equal(t, 20, unionSize(groups))

	maxLen, minLen := 0, len(syms)
	for _, g := range groups {
		if len(g) > maxLen {
			maxLen = len(g)
		}
		if len(g) < minLen {
			minLen = len(g)
		}
	}
	assert.LessOrEqual(t, maxLen-minLen, 1)
}

func TestPartition_DisjointUnion(t *testing.T) {
	syms := symbols(26)
	groups := Partition(syms, 4, 5)
	counts := map[string]int{}
	for _, g := range groups {
		for _, s := range g {
			counts[s]++
		}
	}
	for _, s := range syms {
		assert.Equal(t, 1, counts[s], "symbol %s should appear exactly once", s)
	}
}

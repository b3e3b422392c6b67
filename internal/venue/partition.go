package venue

// Partition splits symbols into groups of at most perMaster size, then — if
// that produced more groups than masters allows — rebalances into exactly
// masters groups of near-equal size (difference of at most 1 between any
// two groups). The union of the returned groups always equals symbols; no
// symbol is ever dropped.
//
// Mirrors original_source/websocket_pool/exchange_pool.py's
// _balance_symbol_groups, including its start+size<=len guard, but the
// guard can never actually drop a tail symbol here because the remainder
// loop distributes every leftover symbol across the first `remainder`
// groups before the accumulated start could overrun len(symbols).
func Partition(symbols []string, masters int, perMaster int) [][]string {
	if len(symbols) == 0 {
		return nil
	}
	if perMaster <= 0 {
		perMaster = len(symbols)
	}

	groups := chunk(symbols, perMaster)
	if masters <= 0 || len(groups) <= masters {
		return groups
	}

	return rebalance(symbols, masters)
}

func chunk(symbols []string, size int) [][]string {
	var groups [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		groups = append(groups, append([]string(nil), symbols[i:end]...))
	}
	return groups
}

func rebalance(symbols []string, targetGroups int) [][]string {
	avgSize := len(symbols) / targetGroups
	remainder := len(symbols) % targetGroups

	groups := make([][]string, 0, targetGroups)
	start := 0
	for i := 0; i < targetGroups; i++ {
		size := avgSize
		if i < remainder {
			size++
		}
		if start+size > len(symbols) {
			size = len(symbols) - start
		}
		if size <= 0 {
			continue
		}
		groups = append(groups, append([]string(nil), symbols[start:start+size]...))
		start += size
	}
	return groups
}

package indexer

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// NextRange computes the next scan window after lastSynced. It returns false
// when nothing is safe to scan yet: the chain head minus the confirmation
// buffer has not passed lastSynced.
func NextRange(lastSynced, maxRange, head, confirmations uint64) (BlockRange, bool) {
	if maxRange == 0 || head < confirmations {
		return BlockRange{}, false
	}
	from := lastSynced + 1
	safeHead := head - confirmations
	to := from + maxRange - 1
	if to > safeHead {
		to = safeHead
	}
	if to < from {
		return BlockRange{}, false
	}
	return BlockRange{From: from, To: to}, true
}

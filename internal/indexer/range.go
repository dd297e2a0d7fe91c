package indexer

import "fmt"

// BlockRange is an inclusive span of blocks fetched in one eth_getLogs call.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len is the number of blocks in the range.
func (r BlockRange) Len() uint64 { return r.To - r.From + 1 }

// SplitRange cuts [from, to] into consecutive ranges of at most size blocks.
func SplitRange(from, to, size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}

	out := make([]BlockRange, 0, (to-from)/size+1)
	for start := from; ; start += size {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == to {
			return out, nil
		}
	}
}

// resumeFrom moves from past a checkpoint that already covers it.
func resumeFrom(from uint64, cp Checkpoint, ok bool) uint64 {
	if ok && cp.LastBlock >= from {
		return cp.LastBlock + 1
	}
	return from
}

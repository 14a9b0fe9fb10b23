package bufferpool

import "KernelDB/types"

/*
This file holds helper functions for the buffer pool.
*/

// GetStats returns current buffer pool statistics.
func (bp *BufferPoolManager) GetStats() BufferPoolStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	stats := BufferPoolStats{
		PoolSize:   bp.poolSize,
		FreeFrames: len(bp.freeList),
		NumHits:    bp.numHits,
		NumMisses:  bp.numMisses,
	}

	for _, pg := range bp.frames {
		if pg.ID == types.InvalidPageID {
			continue
		}
		stats.ResidentPages++
		if pg.PinCount > 0 {
			stats.PinnedPages++
		}
		if pg.IsDirty {
			stats.DirtyPages++
		}
	}

	if total := bp.numHits + bp.numMisses; total > 0 {
		stats.HitRate = float64(bp.numHits) / float64(total)
	}

	return stats
}

// Size returns the number of resident pages.
func (bp *BufferPoolManager) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	n := 0
	for _, pg := range bp.frames {
		if pg.ID != types.InvalidPageID {
			n++
		}
	}
	return n
}

// PoolSize returns the frame count the pool was created with.
func (bp *BufferPoolManager) PoolSize() int {
	return bp.poolSize
}

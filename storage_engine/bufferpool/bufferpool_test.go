package bufferpool

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"

	diskmanager "KernelDB/storage_engine/disk_manager"
	"KernelDB/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, poolSize, k int) (*BufferPoolManager, *diskmanager.DiskManager) {
	t.Helper()
	dm, err := diskmanager.NewDiskManager(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return NewBufferPool(poolSize, k, dm, zap.NewNop()), dm
}

func TestNewPageAllocatesSequentialIDs(t *testing.T) {
	bp, _ := newTestPool(t, 10, 2)

	for want := types.PageID(0); want < 5; want++ {
		pg, err := bp.NewPage()
		require.NoError(t, err)
		require.Equal(t, want, pg.ID)
		require.Equal(t, 1, pg.PinCount)
		require.False(t, pg.IsDirty)
	}
}

func TestNewPageSaturation(t *testing.T) {
	bp, _ := newTestPool(t, 3, 2)

	pages := make([]types.PageID, 0, 3)
	for i := 0; i < 3; i++ {
		pg, err := bp.NewPage()
		require.NoError(t, err)
		pages = append(pages, pg.ID)
	}

	// Every frame pinned: the pool refuses rather than blocks.
	_, err := bp.NewPage()
	require.ErrorIs(t, err, ErrNoFreeFrames)
	_, err = bp.FetchPage(types.PageID(99))
	require.ErrorIs(t, err, ErrNoFreeFrames)

	// Unpinning one page frees exactly one admission.
	require.NoError(t, bp.UnpinPage(pages[1], false))
	pg, err := bp.NewPage()
	require.NoError(t, err)
	require.NotEqual(t, pages[1], pg.ID)

	// The evicted page is gone from the pool; the rest are still pinned.
	_, err = bp.NewPage()
	require.ErrorIs(t, err, ErrNoFreeFrames)
}

func TestDirtyWriteback(t *testing.T) {
	bp, _ := newTestPool(t, 1, 2)

	pg, err := bp.NewPage()
	require.NoError(t, err)
	p0 := pg.ID
	payload := []byte("written before eviction")
	copy(pg.Data, payload)
	require.NoError(t, bp.UnpinPage(p0, true))

	// A single frame: the next NewPage must evict p0, flushing it first.
	pg1, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(pg1.ID, false))

	fetched, err := bp.FetchPage(p0)
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, fetched.Data[:len(payload)]),
		"bytes written before eviction must survive the round trip")
	require.NoError(t, bp.UnpinPage(p0, false))
}

func TestUnpinSemantics(t *testing.T) {
	bp, _ := newTestPool(t, 4, 2)

	require.ErrorIs(t, bp.UnpinPage(types.PageID(7), false), ErrPageNotFound)

	pg, err := bp.NewPage()
	require.NoError(t, err)

	require.NoError(t, bp.UnpinPage(pg.ID, false))
	require.ErrorIs(t, bp.UnpinPage(pg.ID, false), ErrPageNotPinned)

	// Pin twice, unpin dirty once: the dirty mark must stick even if the
	// second holder unpins clean.
	_, err = bp.FetchPage(pg.ID)
	require.NoError(t, err)
	_, err = bp.FetchPage(pg.ID)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(pg.ID, true))
	require.NoError(t, bp.UnpinPage(pg.ID, false))
	require.True(t, pg.IsDirty, "unpinning clean must never clear the dirty flag")
}

func TestFlushPage(t *testing.T) {
	bp, dm := newTestPool(t, 4, 2)

	require.ErrorIs(t, bp.FlushPage(types.InvalidPageID), ErrInvalidPageID)
	require.ErrorIs(t, bp.FlushPage(types.PageID(3)), ErrPageNotFound)

	pg, err := bp.NewPage()
	require.NoError(t, err)
	copy(pg.Data, []byte("flush me"))
	require.NoError(t, bp.UnpinPage(pg.ID, true))

	require.NoError(t, bp.FlushPage(pg.ID))
	require.False(t, pg.IsDirty)

	// Flush is idempotent: a second flush of a clean page rewrites the
	// same bytes.
	require.NoError(t, bp.FlushPage(pg.ID))

	buf := make([]byte, types.PageSize)
	require.NoError(t, dm.ReadPage(pg.ID, buf))
	require.True(t, bytes.Equal([]byte("flush me"), buf[:8]))
}

func TestFlushAllPages(t *testing.T) {
	bp, dm := newTestPool(t, 4, 2)

	ids := make([]types.PageID, 0, 3)
	for i := 0; i < 3; i++ {
		pg, err := bp.NewPage()
		require.NoError(t, err)
		pg.Data[0] = byte('a' + i)
		require.NoError(t, bp.UnpinPage(pg.ID, true))
		ids = append(ids, pg.ID)
	}

	require.NoError(t, bp.FlushAllPages())

	buf := make([]byte, types.PageSize)
	for i, id := range ids {
		require.NoError(t, dm.ReadPage(id, buf))
		require.Equal(t, byte('a'+i), buf[0])
	}
}

func TestDeletePage(t *testing.T) {
	bp, _ := newTestPool(t, 4, 2)

	// Unknown page: nothing to do.
	require.NoError(t, bp.DeletePage(types.PageID(40)))

	pg, err := bp.NewPage()
	require.NoError(t, err)
	pid := pg.ID

	require.ErrorIs(t, bp.DeletePage(pid), ErrPagePinned)

	require.NoError(t, bp.UnpinPage(pid, false))
	require.NoError(t, bp.DeletePage(pid))

	// The page table entry is gone; a re-fetch goes to disk and reads
	// whatever is there (zeros — the page never hit the disk).
	fetched, err := bp.FetchPage(pid)
	require.NoError(t, err)
	require.Equal(t, byte(0), fetched.Data[0])
	require.NoError(t, bp.UnpinPage(pid, false))
}

func TestNoTwoFramesShareAPage(t *testing.T) {
	bp, _ := newTestPool(t, 4, 2)

	ids := map[types.PageID]bool{}
	for i := 0; i < 4; i++ {
		pg, err := bp.NewPage()
		require.NoError(t, err)
		require.False(t, ids[pg.ID], "page id %d handed out twice", pg.ID)
		ids[pg.ID] = true
		require.NoError(t, bp.UnpinPage(pg.ID, false))
	}

	// Fetching an already-resident page must reuse its frame, not admit a
	// second copy.
	a, err := bp.FetchPage(0)
	require.NoError(t, err)
	b, err := bp.FetchPage(0)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 2, a.PinCount)
	require.NoError(t, bp.UnpinPage(0, false))
	require.NoError(t, bp.UnpinPage(0, false))
}

func TestPoolStats(t *testing.T) {
	bp, _ := newTestPool(t, 4, 2)

	p0, err := bp.NewPage()
	require.NoError(t, err)
	p1, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(p1.ID, true))

	stats := bp.GetStats()
	require.Equal(t, 2, stats.ResidentPages)
	require.Equal(t, 1, stats.PinnedPages)
	require.Equal(t, 1, stats.DirtyPages)
	require.Equal(t, 2, stats.FreeFrames)
	require.Equal(t, 4, stats.PoolSize)

	_, err = bp.FetchPage(p0.ID)
	require.NoError(t, err)
	stats = bp.GetStats()
	require.Equal(t, uint64(1), stats.NumHits)
}

// Concurrent fetch/unpin churn over a pool smaller than the page set. The
// race detector is the real assertion here; the invariant check is that
// every worker always gets the page it asked for.
func TestPoolConcurrentFetch(t *testing.T) {
	bp, _ := newTestPool(t, 8, 2)

	ids := make([]types.PageID, 0, 24)
	for i := 0; i < 24; i++ {
		pg, err := bp.NewPage()
		if err != nil {
			// Pool full of pinned pages is impossible here, but guard anyway.
			require.ErrorIs(t, err, ErrNoFreeFrames)
			break
		}
		pg.Data[0] = byte(i)
		require.NoError(t, bp.UnpinPage(pg.ID, true))
		ids = append(ids, pg.ID)
	}
	require.Len(t, ids, 24)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				pid := ids[(seed*31+i)%len(ids)]
				pg, err := bp.FetchPage(pid)
				if err != nil {
					continue // transient saturation under churn
				}
				if pg.ID != pid {
					t.Errorf("asked for page %d, got %d", pid, pg.ID)
				}
				_ = bp.UnpinPage(pid, false)
			}
		}(w)
	}
	wg.Wait()
}

package bplustree

import (
	"path/filepath"
	"testing"

	"KernelDB/storage_engine/bufferpool"
	diskmanager "KernelDB/storage_engine/disk_manager"
	"KernelDB/storage_engine/page"
	"KernelDB/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKeySize = 8

func newTestPool(t *testing.T, poolSize int) *bufferpool.BufferPoolManager {
	t.Helper()
	dm, err := diskmanager.NewDiskManager(filepath.Join(t.TempDir(), "index.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return bufferpool.NewBufferPool(poolSize, 2, dm, zap.NewNop())
}

// newStandalonePage builds an internal page over a detached buffer for
// tests that never touch the pool.
func newStandalonePage(pageID, parentID types.PageID, maxSize int) *InternalPage {
	ip := NewInternalPage(page.New(), testKeySize)
	ip.Init(pageID, parentID, maxSize)
	return ip
}

func TestInternalPageInit(t *testing.T) {
	ip := newStandalonePage(7, 3, 64)

	require.Equal(t, 0, ip.Size())
	require.Equal(t, 64, ip.MaxSize())
	require.Equal(t, 32, ip.MinSize())
	require.Equal(t, types.PageID(7), ip.PageID())
	require.Equal(t, types.PageID(3), ip.ParentPageID())
	require.True(t, IsInternalPage(ip.pg))
}

func TestInternalPageKeyValueAccessors(t *testing.T) {
	ip := newStandalonePage(1, types.InvalidPageID, 8)
	ip.SetSize(3)

	ip.SetKeyAt(1, EncodeInt64Key(42))
	ip.SetValueAt(1, 77)
	ip.SetValueAt(0, 10)
	ip.SetValueAt(2, 88)

	require.Equal(t, EncodeInt64Key(42), ip.KeyAt(1))
	require.Equal(t, types.PageID(77), ip.ValueAt(1))
	require.Equal(t, 1, ip.ValueIndex(77))
	require.Equal(t, 0, ip.ValueIndex(10))
	require.Equal(t, -1, ip.ValueIndex(999))
}

// Slots: [(–, 10), (5, 20), (9, 30), (14, 40)], size 4. Lookup follows
// K(i) <= K < K(i+1) with slot 0's key ignored.
func TestInternalPageLookup(t *testing.T) {
	ip := newStandalonePage(1, types.InvalidPageID, 8)
	ip.SetSize(4)
	ip.SetValueAt(0, 10)
	ip.SetKeyAt(1, EncodeInt64Key(5))
	ip.SetValueAt(1, 20)
	ip.SetKeyAt(2, EncodeInt64Key(9))
	ip.SetValueAt(2, 30)
	ip.SetKeyAt(3, EncodeInt64Key(14))
	ip.SetValueAt(3, 40)

	cases := []struct {
		key  int64
		want types.PageID
	}{
		{4, 10},
		{5, 20},
		{8, 20},
		{9, 30},
		{100, 40},
	}
	for _, c := range cases {
		got := ip.Lookup(EncodeInt64Key(c.key), Int64Comparator)
		require.Equal(t, c.want, got, "Lookup(%d)", c.key)
	}
}

func TestInternalPagePopulateNewRoot(t *testing.T) {
	ip := newStandalonePage(9, types.InvalidPageID, 8)

	ip.PopulateNewRoot(3, EncodeInt64Key(50), 4)

	require.Equal(t, 2, ip.Size())
	require.Equal(t, types.PageID(3), ip.ValueAt(0))
	require.Equal(t, EncodeInt64Key(50), ip.KeyAt(1))
	require.Equal(t, types.PageID(4), ip.ValueAt(1))

	require.Equal(t, types.PageID(3), ip.Lookup(EncodeInt64Key(49), Int64Comparator))
	require.Equal(t, types.PageID(4), ip.Lookup(EncodeInt64Key(50), Int64Comparator))
}

func TestInternalPageInsertNodeAfter(t *testing.T) {
	ip := newStandalonePage(9, types.InvalidPageID, 8)
	ip.PopulateNewRoot(3, EncodeInt64Key(50), 4)

	newSize := ip.InsertNodeAfter(3, EncodeInt64Key(20), 5)
	require.Equal(t, 3, newSize)

	// Order is now (–,3), (20,5), (50,4).
	require.Equal(t, types.PageID(3), ip.ValueAt(0))
	require.Equal(t, EncodeInt64Key(20), ip.KeyAt(1))
	require.Equal(t, types.PageID(5), ip.ValueAt(1))
	require.Equal(t, EncodeInt64Key(50), ip.KeyAt(2))
	require.Equal(t, types.PageID(4), ip.ValueAt(2))

	newSize = ip.InsertNodeAfter(4, EncodeInt64Key(80), 6)
	require.Equal(t, 4, newSize)
	require.Equal(t, types.PageID(6), ip.ValueAt(3))
	require.Equal(t, EncodeInt64Key(80), ip.KeyAt(3))
}

func TestInternalPageRemove(t *testing.T) {
	ip := newStandalonePage(9, types.InvalidPageID, 8)
	ip.PopulateNewRoot(3, EncodeInt64Key(50), 4)
	ip.InsertNodeAfter(4, EncodeInt64Key(80), 6)

	ip.Remove(1)
	require.Equal(t, 2, ip.Size())
	require.Equal(t, types.PageID(3), ip.ValueAt(0))
	require.Equal(t, EncodeInt64Key(80), ip.KeyAt(1))
	require.Equal(t, types.PageID(6), ip.ValueAt(1))

	only := ip.RemoveAndReturnOnlyChild()
	require.Equal(t, types.PageID(3), only)
	require.Equal(t, 0, ip.Size())
}

// allocTreePage creates a pooled page initialised as an internal page and
// leaves it unpinned so moves can re-fetch it.
func allocTreePage(t *testing.T, pool *bufferpool.BufferPoolManager, parent types.PageID, maxSize int) types.PageID {
	t.Helper()
	pg, err := pool.NewPage()
	require.NoError(t, err)
	ip := NewInternalPage(pg, testKeySize)
	ip.Init(pg.ID, parent, maxSize)
	id := pg.ID
	require.NoError(t, pool.UnpinPage(id, true))
	return id
}

func TestInternalPageMoveHalfToReparents(t *testing.T) {
	pool := newTestPool(t, 16)

	// Build a full source page whose children are real pooled pages.
	srcID := allocTreePage(t, pool, types.InvalidPageID, 4)
	dstID := allocTreePage(t, pool, types.InvalidPageID, 4)

	children := make([]types.PageID, 4)
	for i := range children {
		children[i] = allocTreePage(t, pool, srcID, 4)
	}

	srcPg, err := pool.FetchPage(srcID)
	require.NoError(t, err)
	src := NewInternalPage(srcPg, testKeySize)
	src.SetSize(4)
	for i, child := range children {
		src.SetKeyAt(i, EncodeInt64Key(int64(i*10)))
		src.SetValueAt(i, child)
	}

	dstPg, err := pool.FetchPage(dstID)
	require.NoError(t, err)
	dst := NewInternalPage(dstPg, testKeySize)

	require.NoError(t, src.MoveHalfTo(dst, pool))
	require.Equal(t, 2, src.Size())
	require.Equal(t, 2, dst.Size())
	require.Equal(t, children[2], dst.ValueAt(0))
	require.Equal(t, children[3], dst.ValueAt(1))

	require.NoError(t, pool.UnpinPage(srcID, true))
	require.NoError(t, pool.UnpinPage(dstID, true))

	// Moved children now point at dst; kept children still point at src.
	for i, child := range children {
		pg, err := pool.FetchPage(child)
		require.NoError(t, err)
		wantParent := srcID
		if i >= 2 {
			wantParent = dstID
		}
		require.Equal(t, wantParent, ParentPageID(pg), "child %d", i)
		require.NoError(t, pool.UnpinPage(child, false))
	}
}

func TestInternalPageMoveAllTo(t *testing.T) {
	pool := newTestPool(t, 16)

	srcID := allocTreePage(t, pool, types.InvalidPageID, 6)
	dstID := allocTreePage(t, pool, types.InvalidPageID, 6)

	srcChildren := []types.PageID{
		allocTreePage(t, pool, srcID, 6),
		allocTreePage(t, pool, srcID, 6),
	}
	dstChildren := []types.PageID{
		allocTreePage(t, pool, dstID, 6),
		allocTreePage(t, pool, dstID, 6),
	}

	srcPg, err := pool.FetchPage(srcID)
	require.NoError(t, err)
	src := NewInternalPage(srcPg, testKeySize)
	src.SetSize(2)
	src.SetValueAt(0, srcChildren[0])
	src.SetKeyAt(1, EncodeInt64Key(70))
	src.SetValueAt(1, srcChildren[1])

	dstPg, err := pool.FetchPage(dstID)
	require.NoError(t, err)
	dst := NewInternalPage(dstPg, testKeySize)
	dst.SetSize(2)
	dst.SetValueAt(0, dstChildren[0])
	dst.SetKeyAt(1, EncodeInt64Key(30))
	dst.SetValueAt(1, dstChildren[1])

	// middleKey 50 separates dst's keys from src's; it materialises as
	// src's slot-0 key during the merge.
	require.NoError(t, src.MoveAllTo(dst, EncodeInt64Key(50), pool))
	require.Equal(t, 0, src.Size())
	require.Equal(t, 4, dst.Size())
	require.Equal(t, EncodeInt64Key(50), dst.KeyAt(2))
	require.Equal(t, srcChildren[0], dst.ValueAt(2))
	require.Equal(t, EncodeInt64Key(70), dst.KeyAt(3))
	require.Equal(t, srcChildren[1], dst.ValueAt(3))

	require.NoError(t, pool.UnpinPage(srcID, true))
	require.NoError(t, pool.UnpinPage(dstID, true))

	for _, child := range srcChildren {
		pg, err := pool.FetchPage(child)
		require.NoError(t, err)
		require.Equal(t, dstID, ParentPageID(pg))
		require.NoError(t, pool.UnpinPage(child, false))
	}
}

func TestInternalPageRedistribute(t *testing.T) {
	pool := newTestPool(t, 16)

	leftID := allocTreePage(t, pool, types.InvalidPageID, 6)
	rightID := allocTreePage(t, pool, types.InvalidPageID, 6)

	leftChildren := []types.PageID{
		allocTreePage(t, pool, leftID, 6),
		allocTreePage(t, pool, leftID, 6),
		allocTreePage(t, pool, leftID, 6),
	}
	rightChild := allocTreePage(t, pool, rightID, 6)

	leftPg, err := pool.FetchPage(leftID)
	require.NoError(t, err)
	left := NewInternalPage(leftPg, testKeySize)
	left.SetSize(3)
	left.SetValueAt(0, leftChildren[0])
	left.SetKeyAt(1, EncodeInt64Key(10))
	left.SetValueAt(1, leftChildren[1])
	left.SetKeyAt(2, EncodeInt64Key(20))
	left.SetValueAt(2, leftChildren[2])

	rightPg, err := pool.FetchPage(rightID)
	require.NoError(t, err)
	right := NewInternalPage(rightPg, testKeySize)
	right.SetSize(1)
	right.SetValueAt(0, rightChild)

	// Shift left's last child into right's front; the parent separator 30
	// becomes right's first in-page key.
	require.NoError(t, left.MoveLastToFrontOf(right, EncodeInt64Key(30), pool))
	require.Equal(t, 2, left.Size())
	require.Equal(t, 2, right.Size())
	require.Equal(t, leftChildren[2], right.ValueAt(0))
	require.Equal(t, EncodeInt64Key(30), right.KeyAt(1))
	require.Equal(t, rightChild, right.ValueAt(1))

	// And back the other way: right's first child appends to left with
	// separator 40.
	require.NoError(t, right.MoveFirstToEndOf(left, EncodeInt64Key(40), pool))
	require.Equal(t, 3, left.Size())
	require.Equal(t, 1, right.Size())
	require.Equal(t, leftChildren[2], left.ValueAt(2))
	require.Equal(t, EncodeInt64Key(40), left.KeyAt(2))

	require.NoError(t, pool.UnpinPage(leftID, true))
	require.NoError(t, pool.UnpinPage(rightID, true))

	pg, err := pool.FetchPage(leftChildren[2])
	require.NoError(t, err)
	require.Equal(t, leftID, ParentPageID(pg), "twice-moved child must end up parented to left")
	require.NoError(t, pool.UnpinPage(leftChildren[2], false))
}

func TestMaxInternalSlots(t *testing.T) {
	// header 24 bytes, slot = key + 8-byte child id
	require.Equal(t, (types.PageSize-24)/12, MaxInternalSlots(4))
	require.Equal(t, (types.PageSize-24)/16, MaxInternalSlots(8))
	require.Equal(t, (types.PageSize-24)/72, MaxInternalSlots(64))
}

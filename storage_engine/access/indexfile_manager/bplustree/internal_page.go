package bplustree

import (
	"encoding/binary"
	"fmt"
	"sort"

	"KernelDB/storage_engine/bufferpool"
	"KernelDB/storage_engine/page"
	"KernelDB/types"
)

/*
Internal (non-leaf) B+ tree page operations.

An internal page stores n keys and n child pointers as n slots of
(key, child PageID); slot 0's key is ignored, so the page effectively holds
n-1 separators and n children. Child i covers K(i) <= K < K(i+1), with
K(0) = -inf and K(n) = +inf. Keys in slots 1..n-1 are sorted.

The page operates directly on the byte buffer of a pinned page.Page — the
slot array is laid over the page tail after the 24-byte header, never
heap-allocated. None of these methods touch pool locks; the caller pins the
pages involved and unpins dirty after mutating. The exception is
re-parenting: moving slots between pages changes the parent of every moved
child, and that change must reach the child pages themselves, so the move
operations fetch each moved child through the buffer pool, rewrite its
parent pointer, and unpin it dirty.
*/

// InternalPage is a typed view over a pinned page's bytes.
type InternalPage struct {
	pg      *page.Page
	keySize int
}

// NewInternalPage wraps a pinned page as an internal page with the given
// fixed key width. It does not validate the page tag; use Init for fresh
// pages.
func NewInternalPage(pg *page.Page, keySize int) *InternalPage {
	return &InternalPage{pg: pg, keySize: keySize}
}

// Init stamps a fresh internal page header: tag, ids, size 0.
func (ip *InternalPage) Init(pageID, parentID types.PageID, maxSize int) {
	binary.LittleEndian.PutUint16(ip.pg.Data[treeOffPageType:], internalPageTag)
	binary.LittleEndian.PutUint16(ip.pg.Data[treeOffSize:], 0)
	binary.LittleEndian.PutUint16(ip.pg.Data[treeOffMaxSize:], uint16(maxSize))
	binary.LittleEndian.PutUint64(ip.pg.Data[treeOffParent:], uint64(parentID))
	binary.LittleEndian.PutUint64(ip.pg.Data[treeOffPageID:], uint64(pageID))
	ip.pg.PageType = types.PageTypeBPlusInternal
}

func (ip *InternalPage) slotSize() int {
	return ip.keySize + 8
}

func (ip *InternalPage) slotOffset(index int) int {
	return TreePageHeaderSize + index*ip.slotSize()
}

// Size returns the number of slots in use.
func (ip *InternalPage) Size() int {
	return int(binary.LittleEndian.Uint16(ip.pg.Data[treeOffSize:]))
}

// SetSize overwrites the slot count.
func (ip *InternalPage) SetSize(size int) {
	binary.LittleEndian.PutUint16(ip.pg.Data[treeOffSize:], uint16(size))
}

// MaxSize returns the slot capacity stamped at Init.
func (ip *InternalPage) MaxSize() int {
	return int(binary.LittleEndian.Uint16(ip.pg.Data[treeOffMaxSize:]))
}

// MinSize is the occupancy floor: half the capacity.
func (ip *InternalPage) MinSize() int {
	return ip.MaxSize() / 2
}

// PageID returns the self id stamped into the header.
func (ip *InternalPage) PageID() types.PageID {
	return TreePageID(ip.pg)
}

// ParentPageID returns the parent pointer.
func (ip *InternalPage) ParentPageID() types.PageID {
	return ParentPageID(ip.pg)
}

// SetParentPageID rewrites the parent pointer.
func (ip *InternalPage) SetParentPageID(parent types.PageID) {
	SetParentPageID(ip.pg, parent)
}

// KeyAt copies out the key in the given slot. Slot 0's key bytes exist but
// carry no meaning.
func (ip *InternalPage) KeyAt(index int) []byte {
	off := ip.slotOffset(index)
	key := make([]byte, ip.keySize)
	copy(key, ip.pg.Data[off:off+ip.keySize])
	return key
}

// SetKeyAt writes the key bytes of the given slot.
func (ip *InternalPage) SetKeyAt(index int, key []byte) {
	off := ip.slotOffset(index)
	copy(ip.pg.Data[off:off+ip.keySize], key)
}

// ValueAt returns the child page id in the given slot.
func (ip *InternalPage) ValueAt(index int) types.PageID {
	off := ip.slotOffset(index) + ip.keySize
	return types.PageID(binary.LittleEndian.Uint64(ip.pg.Data[off:]))
}

// SetValueAt writes the child page id of the given slot.
func (ip *InternalPage) SetValueAt(index int, value types.PageID) {
	off := ip.slotOffset(index) + ip.keySize
	binary.LittleEndian.PutUint64(ip.pg.Data[off:], uint64(value))
}

// ValueIndex scans for the slot holding the given child id, or -1.
func (ip *InternalPage) ValueIndex(value types.PageID) int {
	for i := 0; i < ip.Size(); i++ {
		if ip.ValueAt(i) == value {
			return i
		}
	}
	return -1
}

// rawKey returns the key bytes in place, without copying. Internal use
// only; callers must not retain the slice across slot shifts.
func (ip *InternalPage) rawKey(index int) []byte {
	off := ip.slotOffset(index)
	return ip.pg.Data[off : off+ip.keySize]
}

// rawSlot returns one whole (key, value) slot in place.
func (ip *InternalPage) rawSlot(index int) []byte {
	off := ip.slotOffset(index)
	return ip.pg.Data[off : off+ip.slotSize()]
}

// Lookup returns the child page id covering key: binary search over slots
// [1, size) for the first separator >= key; an exact match follows that
// child, otherwise the preceding one. Slot 0's key is never consulted.
func (ip *InternalPage) Lookup(key []byte, cmp KeyComparator) types.PageID {
	size := ip.Size()
	idx := 1 + sort.Search(size-1, func(i int) bool {
		return cmp(ip.rawKey(1+i), key) >= 0
	})
	if idx == size {
		return ip.ValueAt(size - 1)
	}
	if cmp(ip.rawKey(idx), key) == 0 {
		return ip.ValueAt(idx)
	}
	return ip.ValueAt(idx - 1)
}

// PopulateNewRoot seeds a fresh root after the old root split: the old root
// as child 0, the separator and the new sibling as slot 1.
func (ip *InternalPage) PopulateNewRoot(oldValue types.PageID, newKey []byte, newValue types.PageID) {
	ip.SetValueAt(0, oldValue)
	ip.SetKeyAt(1, newKey)
	ip.SetValueAt(1, newValue)
	ip.SetSize(2)
}

// InsertNodeAfter places (newKey, newValue) immediately after the slot whose
// child is oldValue, shifting the tail right. Returns the new size.
func (ip *InternalPage) InsertNodeAfter(oldValue types.PageID, newKey []byte, newValue types.PageID) int {
	size := ip.Size()
	idx := ip.ValueIndex(oldValue) + 1

	// Shift slots [idx, size) one slot to the right.
	src := ip.slotOffset(idx)
	end := ip.slotOffset(size)
	copy(ip.pg.Data[src+ip.slotSize():end+ip.slotSize()], ip.pg.Data[src:end])

	ip.SetKeyAt(idx, newKey)
	ip.SetValueAt(idx, newValue)
	ip.SetSize(size + 1)
	return size + 1
}

// Remove erases the slot at index, shifting the tail left.
func (ip *InternalPage) Remove(index int) {
	size := ip.Size()
	src := ip.slotOffset(index + 1)
	end := ip.slotOffset(size)
	copy(ip.pg.Data[ip.slotOffset(index):], ip.pg.Data[src:end])
	ip.SetSize(size - 1)
}

// RemoveAndReturnOnlyChild empties the page and hands back the lone child.
func (ip *InternalPage) RemoveAndReturnOnlyChild() types.PageID {
	only := ip.ValueAt(0)
	ip.SetSize(0)
	return only
}

// MoveHalfTo keeps the first MinSize slots and hands the rest to dst,
// re-parenting every moved child.
func (ip *InternalPage) MoveHalfTo(dst *InternalPage, pool *bufferpool.BufferPoolManager) error {
	splitAt := ip.MinSize()
	originalSize := ip.Size()
	ip.SetSize(splitAt)
	return dst.copyNFrom(ip, splitAt, originalSize-splitAt, pool)
}

// MoveAllTo materializes middleKey into slot 0 (the separator that lived in
// the parent), then hands every slot to dst and empties the page.
func (ip *InternalPage) MoveAllTo(dst *InternalPage, middleKey []byte, pool *bufferpool.BufferPoolManager) error {
	ip.SetKeyAt(0, middleKey)
	if err := dst.copyNFrom(ip, 0, ip.Size(), pool); err != nil {
		return err
	}
	ip.SetSize(0)
	return nil
}

// MoveFirstToEndOf writes middleKey into slot 0, appends that slot to dst,
// and shifts itself left by one.
func (ip *InternalPage) MoveFirstToEndOf(dst *InternalPage, middleKey []byte, pool *bufferpool.BufferPoolManager) error {
	ip.SetKeyAt(0, middleKey)
	if err := dst.copyLastFrom(ip.rawSlot(0), pool); err != nil {
		return err
	}

	size := ip.Size()
	copy(ip.pg.Data[ip.slotOffset(0):], ip.pg.Data[ip.slotOffset(1):ip.slotOffset(size)])
	ip.SetSize(size - 1)
	return nil
}

// MoveLastToFrontOf writes middleKey into dst's slot 0 key (so it becomes
// dst's first separator after the shift), then prepends this page's last
// slot to dst.
func (ip *InternalPage) MoveLastToFrontOf(dst *InternalPage, middleKey []byte, pool *bufferpool.BufferPoolManager) error {
	size := ip.Size()
	dst.SetKeyAt(0, middleKey)
	if err := dst.copyFirstFrom(ip.rawSlot(size-1), pool); err != nil {
		return err
	}
	ip.SetSize(size - 1)
	return nil
}

// copyNFrom appends n slots from src starting at srcIndex and adopts the
// moved children: each child page's parent pointer is rewritten to this
// page, persisted through the pool.
func (ip *InternalPage) copyNFrom(src *InternalPage, srcIndex, n int, pool *bufferpool.BufferPoolManager) error {
	base := ip.Size()
	from := src.slotOffset(srcIndex)
	to := src.slotOffset(srcIndex + n)
	copy(ip.pg.Data[ip.slotOffset(base):], src.pg.Data[from:to])

	for i := 0; i < n; i++ {
		if err := ip.adoptChild(ip.ValueAt(base+i), pool); err != nil {
			return err
		}
	}
	ip.SetSize(base + n)
	return nil
}

// copyLastFrom appends one raw slot and adopts its child.
func (ip *InternalPage) copyLastFrom(slot []byte, pool *bufferpool.BufferPoolManager) error {
	size := ip.Size()
	copy(ip.pg.Data[ip.slotOffset(size):], slot)
	ip.SetSize(size + 1)
	return ip.adoptChild(ip.ValueAt(size), pool)
}

// copyFirstFrom shifts everything right by one, writes the raw slot at 0,
// and adopts its child.
func (ip *InternalPage) copyFirstFrom(slot []byte, pool *bufferpool.BufferPoolManager) error {
	size := ip.Size()
	src := ip.slotOffset(0)
	end := ip.slotOffset(size)
	copy(ip.pg.Data[src+ip.slotSize():end+ip.slotSize()], ip.pg.Data[src:end])
	copy(ip.pg.Data[src:], slot)
	ip.SetSize(size + 1)
	return ip.adoptChild(ip.ValueAt(0), pool)
}

// adoptChild pins the child page, points its parent at this page, and
// unpins it dirty.
func (ip *InternalPage) adoptChild(childID types.PageID, pool *bufferpool.BufferPoolManager) error {
	child, err := pool.FetchPage(childID)
	if err != nil {
		return fmt.Errorf("failed to fetch child page %d for re-parenting: %w", childID, err)
	}
	SetParentPageID(child, ip.PageID())
	if err := pool.UnpinPage(childID, true); err != nil {
		return fmt.Errorf("failed to unpin re-parented child %d: %w", childID, err)
	}
	return nil
}

package bplustree

import (
	"encoding/binary"

	"KernelDB/storage_engine/page"
	"KernelDB/types"
)

/*
Shared B+ tree page header, laid over the first bytes of every tree page
(internal and leaf) so that structural moves can re-parent a child without
knowing which kind of page it is.

Tree page binary layout (all values little-endian):

	Offset  Size  Field
	──────────────────────────────────────────────
	0       2     PageType      uint16
	2       2     CurrentSize   uint16 — slots in use
	4       2     MaxSize       uint16 — slot capacity
	6       2     reserved
	8       8     ParentPageID  int64
	16      8     PageID        int64
	──────────────────────────────────────────────
	24            TreePageHeaderSize

The slot array follows the header. For internal pages each slot is
(key, child PageID): keySize bytes of key followed by 8 bytes of child id.
Slot 0's key bytes are present but semantically invalid.
*/

const (
	treeOffPageType = 0  // uint16 (2)
	treeOffSize     = 2  // uint16 (2)
	treeOffMaxSize  = 4  // uint16 (2)
	treeOffParent   = 8  // int64  (8)
	treeOffPageID   = 16 // int64  (8)

	// TreePageHeaderSize is the fixed header size shared by internal and
	// leaf pages.
	TreePageHeaderSize = 24
)

const (
	internalPageTag uint16 = 1
	leafPageTag     uint16 = 2
)

// ParentPageID reads the parent pointer out of any tree page.
func ParentPageID(pg *page.Page) types.PageID {
	return types.PageID(binary.LittleEndian.Uint64(pg.Data[treeOffParent:]))
}

// SetParentPageID rewrites the parent pointer of any tree page. The caller
// must hold a pin and unpin with dirty=true afterwards.
func SetParentPageID(pg *page.Page, parent types.PageID) {
	binary.LittleEndian.PutUint64(pg.Data[treeOffParent:], uint64(parent))
}

// TreePageID reads the self id stamped into the page header.
func TreePageID(pg *page.Page) types.PageID {
	return types.PageID(binary.LittleEndian.Uint64(pg.Data[treeOffPageID:]))
}

// IsInternalPage reports whether the page carries the internal tag.
func IsInternalPage(pg *page.Page) bool {
	return binary.LittleEndian.Uint16(pg.Data[treeOffPageType:]) == internalPageTag
}

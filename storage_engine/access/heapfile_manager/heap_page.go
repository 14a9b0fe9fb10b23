package heapfile

import (
	"encoding/binary"
	"fmt"

	"KernelDB/storage_engine/page"
	"KernelDB/types"
)

/*
This file contains standalone functions operating on *page.Page for heap
file operations. All functions take *page.Page as first argument since
methods cannot be defined on types from external packages.

Heap page binary layout (all values little-endian):

	Offset  Size  Field
	──────────────────────────────────────────────────────
	0       8     NextPageID      int64   — next page in the heap chain,
	                                        InvalidPageID at the tail
	8       1     PageType        uint8
	9       2     RecordEndPtr    uint16  — first free byte after last record
	11      2     SlotRegionStart uint16  — first byte of slot directory
	13      2     NumRows         uint16  — live records
	15      2     NumRowsFree     uint16  — tombstone slots
	17      2     IsPageFull      uint16  — 1 when no usable space remains
	19      2     SlotCount       uint16  — total slot entries (live + tombstone)
	21      8     reserved
	──────────────────────────────────────────────────────
	29            HeapHeaderSize

Standard slotted-page layout:

	[ header 29B ][ records → ][ free space ][ ← slot dir ]
	0            29            ^             ^             4096
	                           RecordEndPtr  SlotRegionStart

	Records grow FORWARD  from HeapHeaderSize.
	Slot directory grows BACKWARD from PageSize.
	Free space is the gap between RecordEndPtr and SlotRegionStart.

A slot entry is 4 bytes: [ Offset uint16 ][ Length uint16 ]

	Offset  — absolute byte offset from start of page to the record data.
	Length  — byte length of the record (0 = tombstone / deleted).

Slot i lives at:  PageSize - (i+1)*SlotSize
This means slot 0 is at bytes 4092-4095, slot 1 at 4088-4091, etc.
*/

const (
	heapOffNextPage        = 0  // int64  (8)
	heapOffPageType        = 8  // uint8  (1)
	heapOffRecordEndPtr    = 9  // uint16 (2)
	heapOffSlotRegionStart = 11 // uint16 (2)
	heapOffNumRows         = 13 // uint16 (2)
	heapOffNumRowsFree     = 15 // uint16 (2)
	heapOffIsPageFull      = 17 // uint16 (2)
	heapOffSlotCount       = 19 // uint16 (2)

	// HeapHeaderSize is the fixed header size in bytes.
	// Records start at this offset on a fresh page.
	HeapHeaderSize = 29

	// SlotSize is the byte size of one slot entry: Offset(2) + Length(2).
	SlotSize = 4
)

// ─────────────────────────────────────────────────────────────────────────────
// Header accessors
// ─────────────────────────────────────────────────────────────────────────────

func GetNextPageID(pg *page.Page) types.PageID {
	return types.PageID(binary.LittleEndian.Uint64(pg.Data[heapOffNextPage:]))
}

func SetNextPageID(pg *page.Page, next types.PageID) {
	binary.LittleEndian.PutUint64(pg.Data[heapOffNextPage:], uint64(next))
	pg.IsDirty = true
}

func GetRecordEndPtr(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffRecordEndPtr:])
}

func setRecordEndPtr(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffRecordEndPtr:], v)
}

func GetSlotRegionStart(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffSlotRegionStart:])
}

func setSlotRegionStart(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotRegionStart:], v)
}

func GetNumRows(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffNumRows:])
}

func setNumRows(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRows:], v)
}

func GetNumRowsFree(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffNumRowsFree:])
}

func setNumRowsFree(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRowsFree:], v)
}

func GetSlotCount(pg *page.Page) uint16 {
	return binary.LittleEndian.Uint16(pg.Data[heapOffSlotCount:])
}

func setSlotCount(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotCount:], v)
}

func setIsPageFull(pg *page.Page, full bool) {
	v := uint16(0)
	if full {
		v = 1
	}
	binary.LittleEndian.PutUint16(pg.Data[heapOffIsPageFull:], v)
}

// FreeSpace is the byte gap between the record region and the slot
// directory.
func FreeSpace(pg *page.Page) int {
	return int(GetSlotRegionStart(pg)) - int(GetRecordEndPtr(pg))
}

// ─────────────────────────────────────────────────────────────────────────────
// Slot directory
// ─────────────────────────────────────────────────────────────────────────────

func slotPos(slotIdx uint16) int {
	return types.PageSize - int(slotIdx+1)*SlotSize
}

func readSlot(pg *page.Page, slotIdx uint16) (offset, length uint16) {
	pos := slotPos(slotIdx)
	offset = binary.LittleEndian.Uint16(pg.Data[pos:])
	length = binary.LittleEndian.Uint16(pg.Data[pos+2:])
	return offset, length
}

func writeSlot(pg *page.Page, slotIdx uint16, offset, length uint16) {
	pos := slotPos(slotIdx)
	binary.LittleEndian.PutUint16(pg.Data[pos:], offset)
	binary.LittleEndian.PutUint16(pg.Data[pos+2:], length)
}

// ─────────────────────────────────────────────────────────────────────────────
// Initialisation
// ─────────────────────────────────────────────────────────────────────────────

// InitHeapPage stamps a fresh heap-page header into pg.Data.
//
// After this call:
//   - NextPageID      == InvalidPageID  (tail of the chain)
//   - RecordEndPtr    == HeapHeaderSize (records start right after header)
//   - SlotRegionStart == PageSize       (slot dir starts at end of page, empty)
//   - all row/slot counters zero, all non-header bytes zeroed
func InitHeapPage(pg *page.Page) {
	pg.ResetMemory()

	nextPageID := types.InvalidPageID
	binary.LittleEndian.PutUint64(pg.Data[heapOffNextPage:], uint64(nextPageID))
	pg.Data[heapOffPageType] = byte(types.PageTypeHeapData)
	setRecordEndPtr(pg, HeapHeaderSize)
	setSlotRegionStart(pg, types.PageSize)
	setNumRows(pg, 0)
	setNumRowsFree(pg, 0)
	setIsPageFull(pg, false)
	setSlotCount(pg, 0)

	pg.PageType = types.PageTypeHeapData
	pg.IsDirty = true
}

// ─────────────────────────────────────────────────────────────────────────────
// Record operations
// ─────────────────────────────────────────────────────────────────────────────

// RecordFits reports whether a record of recordLen bytes can be placed on
// this page, accounting for the slot entry a fresh slot would need.
func RecordFits(pg *page.Page, recordLen int) bool {
	need := recordLen
	if GetNumRowsFree(pg) == 0 {
		need += SlotSize // no tombstone to recycle, the directory grows
	}
	return FreeSpace(pg) >= need
}

// InsertRecord writes data into the page and returns the slot index.
// The slot index is the local part of a RowPointer (PageID + SlotIndex).
// Returns an error if there is insufficient space — caller must get a new
// page.
func InsertRecord(pg *page.Page, data []byte) (slotIdx uint16, err error) {
	recordLen := uint16(len(data))
	if recordLen == 0 {
		return 0, fmt.Errorf("InsertRecord: data must not be empty")
	}
	if !RecordFits(pg, len(data)) {
		return 0, fmt.Errorf("InsertRecord: need %d bytes, only %d available",
			recordLen, FreeSpace(pg))
	}

	// Reuse a tombstone slot if one exists — avoids shrinking SlotRegionStart.
	slotIdx = GetSlotCount(pg) // default: new slot
	for i := uint16(0); i < GetSlotCount(pg); i++ {
		if _, l := readSlot(pg, i); l == 0 {
			slotIdx = i
			break
		}
	}

	// Write record data at RecordEndPtr and advance it forward.
	recordOffset := GetRecordEndPtr(pg)
	copy(pg.Data[recordOffset:], data)
	setRecordEndPtr(pg, recordOffset+recordLen)

	// Write the slot entry pointing at the record.
	writeSlot(pg, slotIdx, recordOffset, recordLen)

	// Update header counts.
	if slotIdx == GetSlotCount(pg) {
		// New slot — grow slot directory backward.
		setSlotRegionStart(pg, GetSlotRegionStart(pg)-SlotSize)
		setSlotCount(pg, GetSlotCount(pg)+1)
	} else {
		// Recycled tombstone — one fewer free slot.
		setNumRowsFree(pg, GetNumRowsFree(pg)-1)
	}
	setNumRows(pg, GetNumRows(pg)+1)

	if FreeSpace(pg) <= 0 {
		setIsPageFull(pg, true)
	}

	pg.IsDirty = true
	return slotIdx, nil
}

// GetRecord returns a copy of the record at slotIdx.
func GetRecord(pg *page.Page, slotIdx uint16) ([]byte, error) {
	if slotIdx >= GetSlotCount(pg) {
		return nil, fmt.Errorf("GetRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return nil, fmt.Errorf("GetRecord: slot %d is a tombstone", slotIdx)
	}
	out := make([]byte, length)
	copy(out, pg.Data[offset:offset+length])
	return out, nil
}

// DeleteRecord marks slotIdx as a tombstone.
// Space used by the record is NOT reclaimed; a later insert may reuse the
// slot entry but not the record bytes.
// The slot entry remains so existing RowPointers stay valid.
func DeleteRecord(pg *page.Page, slotIdx uint16) error {
	if slotIdx >= GetSlotCount(pg) {
		return fmt.Errorf("DeleteRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	if _, length := readSlot(pg, slotIdx); length == 0 {
		return fmt.Errorf("DeleteRecord: slot %d already deleted", slotIdx)
	}
	writeSlot(pg, slotIdx, 0, 0) // tombstone: offset=0, length=0
	setNumRows(pg, GetNumRows(pg)-1)
	setNumRowsFree(pg, GetNumRowsFree(pg)+1)
	setIsPageFull(pg, false)
	pg.IsDirty = true
	return nil
}

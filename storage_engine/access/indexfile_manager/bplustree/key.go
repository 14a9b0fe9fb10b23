package bplustree

import (
	"bytes"
	"encoding/binary"

	"KernelDB/types"
)

// KeyComparator orders two fixed-width keys: negative, zero, positive for
// a < b, a == b, a > b.
type KeyComparator func(a, b []byte) int

// Supported fixed key widths. A tree is instantiated with one of these and
// the comparator that matches its column type.
var KeyWidths = []int{4, 8, 16, 32, 64}

// MaxInternalSlots derives the internal page slot capacity from the key
// width: header plus M slots of (key, child id) must fit one page.
func MaxInternalSlots(keySize int) int {
	return (types.PageSize - TreePageHeaderSize) / (keySize + 8)
}

// BytesComparator orders generic keys lexicographically by their raw bytes.
func BytesComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Int64Comparator orders 8-byte keys as little-endian signed integers.
func Int64Comparator(a, b []byte) int {
	x := int64(binary.LittleEndian.Uint64(a))
	y := int64(binary.LittleEndian.Uint64(b))
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// EncodeInt64Key renders an int64 as an 8-byte key for Int64Comparator.
func EncodeInt64Key(v int64) []byte {
	key := make([]byte, 8)
	binary.LittleEndian.PutUint64(key, uint64(v))
	return key
}

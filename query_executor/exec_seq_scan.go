package executor

import (
	"fmt"

	heapfile "KernelDB/storage_engine/access/heapfile_manager"
	"KernelDB/types"
)

/*
Sequential scan: stream every live row of a table in heap-chain order.
Read-only — pages are pinned one at a time by the heap iterator and
unpinned clean.
*/

// SeqScanExecutor yields each row of a table exactly once.
type SeqScanExecutor struct {
	ctx       *ExecutorContext
	tableName string
	iter      *heapfile.Iterator
}

// NewSeqScanExecutor scans tableName through ctx.
func NewSeqScanExecutor(ctx *ExecutorContext, tableName string) *SeqScanExecutor {
	return &SeqScanExecutor{ctx: ctx, tableName: tableName}
}

// Init resolves the table and positions the scan at the first page.
// Calling Init again restarts the scan.
func (e *SeqScanExecutor) Init() error {
	info, err := e.ctx.Catalog.GetTable(e.tableName)
	if err != nil {
		return fmt.Errorf("seq scan: %w", err)
	}
	e.iter = info.Heap.NewIterator()
	return nil
}

// Next returns the next row until the heap file is exhausted.
func (e *SeqScanExecutor) Next() (types.Row, types.RowPointer, bool, error) {
	if e.iter == nil {
		return types.Row{}, types.RowPointer{}, false, fmt.Errorf("seq scan: Init not called")
	}

	data, ptr, ok, err := e.iter.Next()
	if err != nil || !ok {
		return types.Row{}, types.RowPointer{}, false, err
	}

	row, err := DecodeRow(data)
	if err != nil {
		return types.Row{}, types.RowPointer{}, false, err
	}
	return row, ptr, true, nil
}

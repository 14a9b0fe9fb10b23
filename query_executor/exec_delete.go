package executor

import (
	"fmt"

	"KernelDB/types"
)

/*
Delete executor: drains its child executor (normally a sequential scan over
the target table), tombstones every row the child yields, and emits a
single affected-row-count tuple.
*/

// DeleteExecutor removes every row produced by child.
type DeleteExecutor struct {
	ctx       *ExecutorContext
	tableName string
	child     Executor
	done      bool
}

// NewDeleteExecutor deletes child's output rows from tableName.
func NewDeleteExecutor(ctx *ExecutorContext, tableName string, child Executor) *DeleteExecutor {
	return &DeleteExecutor{ctx: ctx, tableName: tableName, child: child}
}

// Init resolves the table and initialises the child.
func (e *DeleteExecutor) Init() error {
	if _, err := e.ctx.Catalog.GetTable(e.tableName); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	e.done = false
	return e.child.Init()
}

// Next drains the child, deletes, and emits the count tuple once.
func (e *DeleteExecutor) Next() (types.Row, types.RowPointer, bool, error) {
	if e.done {
		return types.Row{}, types.RowPointer{}, false, nil
	}
	e.done = true

	info, err := e.ctx.Catalog.GetTable(e.tableName)
	if err != nil {
		return types.Row{}, types.RowPointer{}, false, err
	}

	deleted := 0
	for {
		_, ptr, ok, err := e.child.Next()
		if err != nil {
			return types.Row{}, types.RowPointer{}, false, err
		}
		if !ok {
			break
		}
		if err := info.Heap.DeleteRow(ptr); err != nil {
			return types.Row{}, types.RowPointer{}, false, fmt.Errorf("delete from '%s': %w", e.tableName, err)
		}
		deleted++
	}

	result := types.Row{}
	result.Set("rows_affected", deleted)
	return result, types.RowPointer{}, true, nil
}

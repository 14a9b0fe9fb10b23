package executor

import (
	"fmt"
	"strings"

	"KernelDB/types"
)

/*
Insert executor: places its raw rows into the target table's heap file,
then emits a single tuple carrying the affected-row count. The first Next
does all the work; every later Next reports exhaustion.
*/

// InsertExecutor inserts a fixed batch of rows.
type InsertExecutor struct {
	ctx       *ExecutorContext
	tableName string
	rows      []types.Row
	done      bool
}

// NewInsertExecutor inserts rows into tableName through ctx.
func NewInsertExecutor(ctx *ExecutorContext, tableName string, rows []types.Row) *InsertExecutor {
	return &InsertExecutor{ctx: ctx, tableName: tableName, rows: rows}
}

// Init resolves the target table.
func (e *InsertExecutor) Init() error {
	if _, err := e.ctx.Catalog.GetTable(e.tableName); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	e.done = false
	return nil
}

// Next performs the batch insert once and emits the count tuple.
func (e *InsertExecutor) Next() (types.Row, types.RowPointer, bool, error) {
	if e.done {
		return types.Row{}, types.RowPointer{}, false, nil
	}
	e.done = true

	info, err := e.ctx.Catalog.GetTable(e.tableName)
	if err != nil {
		return types.Row{}, types.RowPointer{}, false, err
	}

	inserted := 0
	for _, row := range e.rows {
		if len(row.Values) != 0 && len(info.Schema.Columns) > 0 {
			if err := validateRow(row, info.Schema); err != nil {
				return types.Row{}, types.RowPointer{}, false, err
			}
		}
		data, err := EncodeRow(row)
		if err != nil {
			return types.Row{}, types.RowPointer{}, false, err
		}
		if _, err := info.Heap.InsertRow(data); err != nil {
			return types.Row{}, types.RowPointer{}, false, fmt.Errorf("insert into '%s': %w", e.tableName, err)
		}
		inserted++
	}

	result := types.Row{}
	result.Set("rows_affected", inserted)
	return result, types.RowPointer{}, true, nil
}

// validateRow rejects values for columns the schema does not declare.
func validateRow(row types.Row, schema types.TableSchema) error {
	for col := range row.Values {
		found := false
		for _, def := range schema.Columns {
			if strings.EqualFold(def.Name, col) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("column '%s' not in schema of '%s'", col, schema.TableName)
		}
	}
	return nil
}

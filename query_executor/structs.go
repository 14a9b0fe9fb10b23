package executor

import (
	"KernelDB/storage_engine/bufferpool"
	"KernelDB/storage_engine/catalog"
	"KernelDB/types"
)

// Executor is the volcano-style iterator contract: Init once, then Next
// until ok is false. Insert and delete executors emit exactly one
// affected-row-count tuple before reporting exhaustion.
type Executor interface {
	Init() error
	Next() (row types.Row, ptr types.RowPointer, ok bool, err error)
}

// ExecutorContext carries what every executor needs to reach storage.
type ExecutorContext struct {
	Catalog *catalog.CatalogManager
	Pool    *bufferpool.BufferPoolManager
}

// NewExecutorContext bundles the catalog and pool for executor trees.
func NewExecutorContext(cat *catalog.CatalogManager, pool *bufferpool.BufferPoolManager) *ExecutorContext {
	return &ExecutorContext{Catalog: cat, Pool: pool}
}

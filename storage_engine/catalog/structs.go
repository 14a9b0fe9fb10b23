package catalog

import (
	"sync"

	heapfile "KernelDB/storage_engine/access/heapfile_manager"
	"KernelDB/storage_engine/bufferpool"
	"KernelDB/storage_engine/hashtable"
	"KernelDB/types"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

// TableInfo bundles what an executor needs to touch a table: its schema and
// its heap file.
type TableInfo struct {
	Schema      types.TableSchema
	Heap        *heapfile.HeapFile
	FirstPageID types.PageID
}

// CatalogManager owns the table directory. The authoritative mapping is an
// extendible hash table keyed by table name; in front of it sits a
// ristretto cache so hot lookups skip the directory mutex.
type CatalogManager struct {
	pool   *bufferpool.BufferPoolManager
	tables *hashtable.ExtendibleHashTable[string, *TableInfo]
	cache  *ristretto.Cache[string, *TableInfo]
	names  []string

	logger *zap.Logger
	mu     sync.Mutex
}

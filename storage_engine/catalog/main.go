package catalog

import (
	"fmt"

	heapfile "KernelDB/storage_engine/access/heapfile_manager"
	"KernelDB/storage_engine/bufferpool"
	"KernelDB/storage_engine/hashtable"
	"KernelDB/types"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

/*
The catalog maps table names to their schema and storage. Tables live in
heap files whose pages come from the buffer pool, so creating a table
allocates its first page and dropping a table releases the whole chain.

Lookup path: ristretto first (admission-controlled, no catalog mutex),
then the extendible-hash directory on a cache miss. The directory is
authoritative; the cache may drop or refuse entries at any time.
*/

const tableDirBucketSize = 8

// NewCatalogManager creates an empty catalog over the pool.
func NewCatalogManager(pool *bufferpool.BufferPoolManager, logger *zap.Logger) (*CatalogManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *TableInfo]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	return &CatalogManager{
		pool:   pool,
		tables: hashtable.NewExtendibleHashTable[string, *TableInfo](tableDirBucketSize, hashtable.StringHasher),
		cache:  cache,
		logger: logger,
	}, nil
}

// CreateTable registers a new table and allocates its heap file.
func (cm *CatalogManager) CreateTable(schema types.TableSchema) (*TableInfo, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	name := schema.TableName
	if name == "" {
		return nil, fmt.Errorf("table name must not be empty")
	}
	if _, exists := cm.tables.Find(name); exists {
		return nil, fmt.Errorf("table '%s' already exists", name)
	}

	heap, err := heapfile.CreateHeapFile(cm.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create heap file for table '%s': %w", name, err)
	}

	info := &TableInfo{
		Schema:      schema,
		Heap:        heap,
		FirstPageID: heap.FirstPageID(),
	}
	cm.tables.Insert(name, info)
	cm.names = append(cm.names, name)
	cm.cache.Set(name, info, 1)

	cm.logger.Debug("created table",
		zap.String("table", name),
		zap.Int64("firstPageID", int64(info.FirstPageID)))

	return info, nil
}

// GetTable resolves a table by name, preferring the hot cache.
func (cm *CatalogManager) GetTable(name string) (*TableInfo, error) {
	if info, ok := cm.cache.Get(name); ok {
		return info, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	info, ok := cm.tables.Find(name)
	if !ok {
		return nil, fmt.Errorf("table '%s' not found", name)
	}
	cm.cache.Set(name, info, 1)
	return info, nil
}

// DropTable unregisters the table and deletes every page of its heap chain.
func (cm *CatalogManager) DropTable(name string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	info, ok := cm.tables.Find(name)
	if !ok {
		return fmt.Errorf("table '%s' not found", name)
	}

	// Collect the chain before deleting: the link field dies with the page.
	var chain []types.PageID
	pageID := info.FirstPageID
	for pageID != types.InvalidPageID {
		pg, err := cm.pool.FetchPage(pageID)
		if err != nil {
			return fmt.Errorf("failed to walk heap chain of '%s': %w", name, err)
		}
		next := heapfile.GetNextPageID(pg)
		if err := cm.pool.UnpinPage(pageID, false); err != nil {
			return err
		}
		chain = append(chain, pageID)
		pageID = next
	}

	for _, pid := range chain {
		if err := cm.pool.DeletePage(pid); err != nil {
			return fmt.Errorf("failed to delete heap page %d of '%s': %w", pid, name, err)
		}
	}

	cm.tables.Remove(name)
	cm.cache.Del(name)
	for i, n := range cm.names {
		if n == name {
			cm.names = append(cm.names[:i], cm.names[i+1:]...)
			break
		}
	}

	cm.logger.Debug("dropped table", zap.String("table", name))
	return nil
}

// ListTables returns registered table names in creation order.
func (cm *CatalogManager) ListTables() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	out := make([]string, len(cm.names))
	copy(out, cm.names)
	return out
}

// Close releases the lookup cache.
func (cm *CatalogManager) Close() {
	cm.cache.Close()
}

package storage

import (
	"bytes"
	"errors"
	"sort"
)

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// Batch collects writes that a Database applies atomically.
type Batch struct {
	ops []batchOp
}

// Put queues a key-value write.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

// Delete queues a key removal.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), del: true})
}

// Len reports the number of queued operations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

// Reset clears the queued operations.
func (b *Batch) Reset() { b.ops = b.ops[:0] }

var errCacheClosed = errors.New("storage: cache already committed or discarded")

type cacheEntry struct {
	value []byte
	del   bool
}

// CacheDB buffers writes on top of a parent Database. Reads see the buffered
// writes first. Nothing reaches the parent until Commit, which flushes the
// buffer as a single atomic Batch; Discard drops it.
//
// CacheDB is not safe for concurrent use.
type CacheDB struct {
	parent Database
	dirty  map[string]cacheEntry
	closed bool
}

// NewCacheDB wraps parent in a write buffer.
func NewCacheDB(parent Database) *CacheDB {
	return &CacheDB{parent: parent, dirty: make(map[string]cacheEntry)}
}

func (c *CacheDB) Get(key []byte) ([]byte, error) {
	if entry, ok := c.dirty[string(key)]; ok {
		if entry.del {
			return nil, ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	return c.parent.Get(key)
}

func (c *CacheDB) Has(key []byte) (bool, error) {
	if entry, ok := c.dirty[string(key)]; ok {
		return !entry.del, nil
	}
	return c.parent.Has(key)
}

func (c *CacheDB) Put(key []byte, value []byte) error {
	if c.closed {
		return errCacheClosed
	}
	c.dirty[string(key)] = cacheEntry{value: append([]byte(nil), value...)}
	return nil
}

func (c *CacheDB) Delete(key []byte) error {
	if c.closed {
		return errCacheClosed
	}
	c.dirty[string(key)] = cacheEntry{del: true}
	return nil
}

func (c *CacheDB) Write(batch *Batch) error {
	if c.closed {
		return errCacheClosed
	}
	if batch == nil {
		return nil
	}
	for _, op := range batch.ops {
		if op.del {
			c.dirty[string(op.key)] = cacheEntry{del: true}
			continue
		}
		c.dirty[string(op.key)] = cacheEntry{value: append([]byte(nil), op.value...)}
	}
	return nil
}

// Iterate merges buffered writes with the parent's keys, keeping ascending
// order and hiding buffered deletions.
func (c *CacheDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	if err := c.parent.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	}); err != nil {
		return err
	}
	for k, entry := range c.dirty {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if entry.del {
			delete(merged, k)
			continue
		}
		merged[k] = entry.value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), append([]byte(nil), merged[k]...)) {
			return nil
		}
	}
	return nil
}

// Pending reports the number of buffered keys.
func (c *CacheDB) Pending() int { return len(c.dirty) }

// Commit flushes the buffered writes to the parent atomically.
func (c *CacheDB) Commit() error {
	if c.closed {
		return errCacheClosed
	}
	batch := new(Batch)
	keys := make([]string, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := c.dirty[k]
		if entry.del {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), entry.value)
	}
	if err := c.parent.Write(batch); err != nil {
		return err
	}
	c.closed = true
	c.dirty = nil
	return nil
}

// Discard drops every buffered write.
func (c *CacheDB) Discard() {
	c.closed = true
	c.dirty = nil
}

// Close discards the buffer; the parent stays open.
func (c *CacheDB) Close() error {
	c.Discard()
	return nil
}

// Package cache memoizes structuring results with LRU eviction and
// msgpack disk persistence. Keys are content digests of the input
// procedure documents, so a changed input never hits a stale entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gitmesam/dcc/pkg/cfg"
)

// Key derives the cache key for a serialized procedure document.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// entry pairs a key with its result for persistence; order on disk is
// most recently used first.
type entry struct {
	Key    string      `msgpack:"key"`
	Result *cfg.Result `msgpack:"result"`
}

type listItem struct {
	entry
	prev, next *listItem
}

// ResultCache is an in-memory LRU of structuring results with optional
// disk persistence.
type ResultCache struct {
	mu      sync.RWMutex
	items   map[string]*listItem
	head    *listItem // most recently used
	tail    *listItem // least recently used
	maxSize int
}

// New creates a cache bounded to maxSize entries (0 means unlimited).
func New(maxSize int) *ResultCache {
	return &ResultCache{
		items:   make(map[string]*listItem),
		maxSize: maxSize,
	}
}

// Get retrieves the result for key, refreshing its recency.
func (c *ResultCache) Get(key string) (*cfg.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}
	c.moveToFront(item)
	return item.Result, true
}

// Set stores a result, evicting the least recently used entry when the
// cache is full.
func (c *ResultCache) Set(key string, r *cfg.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.Result = r
		c.moveToFront(item)
		return
	}

	item := &listItem{entry: entry{Key: key, Result: r}}
	c.items[key] = item
	c.pushFront(item)

	for c.maxSize > 0 && len(c.items) > c.maxSize {
		lru := c.tail
		if lru == nil {
			break
		}
		c.unlink(lru)
		delete(c.items, lru.Key)
	}
}

// Delete removes a key from the cache.
func (c *ResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.unlink(item)
	delete(c.items, key)
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Save writes the cache to w in recency order.
func (c *ResultCache) Save(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]entry, 0, len(c.items))
	for item := c.head; item != nil; item = item.next {
		entries = append(entries, item.entry)
	}
	return msgpack.NewEncoder(w).Encode(entries)
}

// Load restores the cache from r, replacing the current contents.
func (c *ResultCache) Load(r io.Reader) error {
	var entries []entry
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem, len(entries))
	c.head, c.tail = nil, nil
	// Entries were saved most recent first; pushing in reverse
	// restores the original recency order.
	for i := len(entries) - 1; i >= 0; i-- {
		item := &listItem{entry: entries[i]}
		c.items[item.Key] = item
		c.pushFront(item)
	}
	return nil
}

// SaveFile persists the cache under dir, creating it as needed.
func (c *ResultCache) SaveFile(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "results.msgpack"))
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer f.Close()
	return c.Save(f)
}

// LoadFile restores the cache persisted under dir. A missing file is
// not an error: the cache starts empty.
func (c *ResultCache) LoadFile(dir string) error {
	f, err := os.Open(filepath.Join(dir, "results.msgpack"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}

func (c *ResultCache) moveToFront(item *listItem) {
	if item == c.head {
		return
	}
	c.unlink(item)
	c.pushFront(item)
}

func (c *ResultCache) pushFront(item *listItem) {
	item.prev = nil
	item.next = c.head
	if c.head != nil {
		c.head.prev = item
	}
	c.head = item
	if c.tail == nil {
		c.tail = item
	}
}

func (c *ResultCache) unlink(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}
	item.prev, item.next = nil, nil
}

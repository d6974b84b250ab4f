// Package dedupe tracks league tags that are queued or being computed so the
// same tag is never scheduled twice at once.
package dedupe

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduper records in-flight keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key is in flight and records it if
	// not. Returns true if key was already recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key once its work finished or could not be queued.
	Unrecord(ctx context.Context, key string)

	// Pending lists recorded keys in lexical order.
	Pending() []string

	Size() int64
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	keyFunc func(string) string
	size    atomic.Int64
}

// NormalizeTag is the default key function: tags compare case-insensitively
// and ignore surrounding blanks.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    make(map[string]struct{}),
		keyFunc: NormalizeTag,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	key = d.keyFunc(key)
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	key = d.keyFunc(key)
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Pending() []string {
	d.mu.Lock()
	out := make([]string, 0, len(d.seen))
	for k := range d.seen {
		out = append(out, k)
	}
	d.mu.Unlock()
	sort.Strings(out)
	return out
}

// Size returns the number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

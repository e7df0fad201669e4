// Package dedupe tracks prediction request keys so a retried request
// replays its original result instead of recording a second prediction.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper binds idempotency keys to the prediction they produced.
type Deduper interface {
	// Claim atomically reserves key. If key was already claimed it returns
	// the bound prediction ID (empty while the first request is in flight)
	// and true.
	Claim(ctx context.Context, key string) (string, bool)

	// Bind attaches the prediction ID produced for a claimed key.
	Bind(ctx context.Context, key, predictionID string)

	// Release drops a claim so the request can be retried. Used when the
	// claimed request ended without recording a prediction.
	Release(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key          string
	predictionID string
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest once
// maxSize is reached. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	byKey   map[string]*list.Element
}

// NewInMemoryDeduper creates a Deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.order = list.New()
	d.byKey = make(map[string]*list.Element)
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.byKey[key]; ok {
		return el.Value.(*entry).predictionID, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.byKey, oldest.Value.(*entry).key)
	}
	d.byKey[key] = d.order.PushBack(&entry{key: key})
	return "", false
}

func (d *inMemoryDeduper) Bind(_ context.Context, key, predictionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.byKey[key]; ok {
		el.Value.(*entry).predictionID = predictionID
	}
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.byKey[key]; ok {
		d.order.Remove(el)
		delete(d.byKey, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

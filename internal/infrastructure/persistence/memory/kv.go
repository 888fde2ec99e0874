// Package memory provides an in-memory durable store for tests and dry runs.
package memory

import (
	"context"
	"sync"
)

// KV is a map-backed preferences.DurableStore. Failures can be injected.
type KV struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	sets    int
	failErr error
	failN   int
}

// NewKV creates an empty store
func NewKV() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Get implements preferences.DurableStore
func (kv *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.gets++
	data, ok := kv.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Set implements preferences.DurableStore
func (kv *KV) Set(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.sets++
	if kv.failN != 0 {
		if kv.failN > 0 {
			kv.failN--
		}
		return kv.failErr
	}
	kv.data[key] = append([]byte(nil), data...)
	return nil
}

// FailSets makes the next n Set calls return err; n < 0 fails until reset.
func (kv *KV) FailSets(n int, err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.failN = n
	kv.failErr = err
}

// Put stores data directly, bypassing counters and failures.
func (kv *KV) Put(key string, data []byte) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = append([]byte(nil), data...)
}

// Raw returns the stored bytes for key.
func (kv *KV) Raw(key string) ([]byte, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	data, ok := kv.data[key]
	return data, ok
}

// Gets returns how many Get calls were made.
func (kv *KV) Gets() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.gets
}

// Sets returns how many Set calls were made, failed ones included.
func (kv *KV) Sets() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.sets
}

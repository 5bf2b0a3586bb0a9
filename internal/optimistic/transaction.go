// Package optimistic applies anticipated edits to cached records before the
// upstream call resolves and restores the prior bytes when it fails.
package optimistic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/privacyops/console/internal/querycache"
)

// ErrNotObject is returned when a cached record is not a JSON object.
var ErrNotObject = errors.New("optimistic: cached record is not an object")

// SlotCache is the cache surface a Transaction patches.
type SlotCache interface {
	Slot(ctx context.Context, resource, id string) (querycache.Slot, error)
	Read(ctx context.Context, slot querycache.Slot) ([]byte, bool, error)
	Write(ctx context.Context, slot querycache.Slot, data []byte) error
}

// Transaction holds the snapshot of one cached record taken before a patch.
type Transaction struct {
	cache   SlotCache
	slot    querycache.Slot
	prior   []byte
	present bool
	patched bool

	once sync.Once
}

// Begin snapshots the cached record id of resource and writes the result of
// patch over it. When nothing is cached the transaction records the absence
// and writes nothing.
func Begin(ctx context.Context, cache SlotCache, resource, id string, patch func([]byte) ([]byte, error)) (*Transaction, error) {
	slot, err := cache.Slot(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	prior, ok, err := cache.Read(ctx, slot)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{cache: cache, slot: slot, prior: prior, present: ok}
	if !ok {
		return tx, nil
	}
	next, err := patch(append([]byte(nil), prior...))
	if err != nil {
		return nil, err
	}
	if err := cache.Write(ctx, slot, next); err != nil {
		return nil, err
	}
	tx.patched = true
	return tx, nil
}

// Snapshot returns the bytes captured at Begin.
func (tx *Transaction) Snapshot() ([]byte, bool) {
	return append([]byte(nil), tx.prior...), tx.present
}

// Rollback restores the captured bytes verbatim, or removes the entry when it
// was absent. Only the first Rollback or Commit has an effect.
func (tx *Transaction) Rollback(ctx context.Context) error {
	var err error
	tx.once.Do(func() {
		if !tx.patched {
			return
		}
		if tx.present {
			err = tx.cache.Write(ctx, tx.slot, tx.prior)
			return
		}
		err = tx.cache.Write(ctx, tx.slot, nil)
	})
	return err
}

// Commit keeps the patch. Only the first Rollback or Commit has an effect.
func (tx *Transaction) Commit() {
	tx.once.Do(func() {})
}

// MergeJSON overwrites top-level fields of the JSON object record.
func MergeJSON(record []byte, fields map[string]any) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(record, &obj); err != nil || obj == nil {
		return nil, ErrNotObject
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("optimistic: encode field %s: %w", k, err)
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

package cache

import (
	"context"
	"time"
)

// TieredStore reads from an in-process L1 before a shared L2 (usually
// Redis). L2 hits are copied into L1 for backfillTTL. L2 errors are
// reported to the caller but writes always reach L1 first.
type TieredStore struct {
	l1          *MemoryStore
	l2          Store
	backfillTTL time.Duration
}

func NewTieredStore(l1 *MemoryStore, l2 Store, backfillTTL time.Duration) *TieredStore {
	if backfillTTL <= 0 {
		backfillTTL = time.Minute
	}
	return &TieredStore{l1: l1, l2: l2, backfillTTL: backfillTTL}
}

func (t *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if data, ok, _ := t.l1.Get(ctx, key); ok {
		return data, true, nil
	}
	if t.l2 == nil {
		return nil, false, nil
	}
	data, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.l1.Set(ctx, key, data, t.backfillTTL)
	return data, true, nil
}

func (t *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = t.l1.Set(ctx, key, value, ttl)
	if t.l2 == nil {
		return nil
	}
	return t.l2.Set(ctx, key, value, ttl)
}

// Package cache holds the short-lived result cache shared by the provider
// clients. Entries are addressed by a Key built from a sorted identifier set
// and a time bucket, so repeated polls within one bucket coalesce.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Store is a key/value store with per-entry TTL.
type Store interface {
	// Get returns the stored bytes and whether the key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key identifies one cached poll result.
type Key struct {
	Namespace string
	IDs       []string
	Bucket    int64
}

// NewKey normalizes ids (trimmed, lowercased, deduplicated, sorted) and
// computes the bucket index of now for the given bucket width.
func NewKey(namespace string, ids []string, now time.Time, width time.Duration) Key {
	return Key{
		Namespace: namespace,
		IDs:       NormalizeIDs(ids),
		Bucket:    Bucket(now, width),
	}
}

// Bucket returns floor(now / width).
func Bucket(now time.Time, width time.Duration) int64 {
	if width <= 0 {
		return 0
	}
	return now.UnixMilli() / width.Milliseconds()
}

// NormalizeIDs trims, lowercases, drops blanks, deduplicates and sorts.
func NormalizeIDs(ids []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string {
		return strings.ToLower(strings.TrimSpace(id))
	})))
	slices.Sort(out)
	return out
}

// Fingerprint is the store key: the namespace followed by a sha256 digest of
// the identifier list and the bucket.
func (k Key) Fingerprint() string {
	h := sha256.Sum256([]byte(strings.Join(k.IDs, ",") + "|" + strconv.FormatInt(k.Bucket, 10)))
	return fmt.Sprintf("%s:%x", k.Namespace, h[:12])
}

// Load decodes a JSON value stored under key.
func Load[T any](ctx context.Context, s Store, key Key) (T, bool, error) {
	var zero T
	data, ok, err := s.Get(ctx, key.Fingerprint())
	if err != nil || !ok {
		return zero, false, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key.Namespace, err)
	}
	return out, true, nil
}

// Save encodes v as JSON and stores it under key for ttl.
func Save[T any](ctx context.Context, s Store, key Key, v T, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key.Namespace, err)
	}
	return s.Set(ctx, key.Fingerprint(), data, ttl)
}

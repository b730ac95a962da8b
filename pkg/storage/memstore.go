package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/sw33tLie/creatorlive/pkg/creator"
)

const profilesTable = "profiles"

// memRecord wraps a profile with its insertion sequence, zero padded so the
// "seq" index iterates in insertion order.
type memRecord struct {
	Seq     string
	ID      string
	Path    string
	Profile creator.Profile
}

var memSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		profilesTable: {
			Name: profilesTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"path": {
					Name:    "path",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Path", Lowercase: true},
				},
				"seq": {
					Name:    "seq",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Seq"},
				},
			},
		},
	},
}

// MemStore is an in-memory Repository, used when profiles come from the
// config file instead of a database.
type MemStore struct {
	db  *memdb.MemDB
	seq atomic.Int64
}

func NewMemStore() (*MemStore, error) {
	db, err := memdb.NewMemDB(memSchema)
	if err != nil {
		return nil, err
	}
	return &MemStore{db: db}, nil
}

// NewMemStoreFrom builds a MemStore seeded with profiles.
func NewMemStoreFrom(ctx context.Context, profiles []creator.Profile) (*MemStore, error) {
	m, err := NewMemStore()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if _, _, err := m.UpsertProfile(ctx, p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}
	return m, nil
}

func (m *MemStore) ListProfiles(_ context.Context, limit int) ([]creator.Profile, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(profilesTable, "seq")
	if err != nil {
		return nil, err
	}
	profiles := []creator.Profile{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if limit > 0 && len(profiles) >= limit {
			break
		}
		profiles = append(profiles, obj.(*memRecord).Profile)
	}
	return profiles, nil
}

func (m *MemStore) GetProfile(_ context.Context, idOrPath string) (creator.Profile, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	rec, err := lookup(txn, idOrPath)
	if err != nil {
		return creator.Profile{}, err
	}
	return rec.Profile, nil
}

func lookup(txn *memdb.Txn, idOrPath string) (*memRecord, error) {
	if obj, err := txn.First(profilesTable, "id", idOrPath); err != nil {
		return nil, err
	} else if obj != nil {
		return obj.(*memRecord), nil
	}
	if obj, err := txn.First(profilesTable, "path", NormalizePath(idOrPath)); err != nil {
		return nil, err
	} else if obj != nil {
		return obj.(*memRecord), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPath)
}

func (m *MemStore) UpsertProfile(_ context.Context, p creator.Profile) (creator.Profile, Change, error) {
	byID := p.ID != ""
	p, err := NormalizeProfile(p)
	if err != nil {
		return p, Change{}, err
	}

	txn := m.db.Txn(true)
	defer txn.Abort()

	change := Change{OccurredAt: time.Now().UTC(), Path: p.Path, ChangeType: "added"}
	rec := &memRecord{Path: p.Path}

	existing, err := findRecord(txn, p, byID)
	if err != nil {
		return p, Change{}, err
	}
	if existing != nil {
		p.ID = existing.ID
		if existing.Profile == p {
			return p, Change{}, nil
		}
		rec.Seq = existing.Seq
		change.ChangeType = "updated"
	} else {
		rec.Seq = fmt.Sprintf("%020d", m.seq.Add(1))
	}

	rec.ID = p.ID
	rec.Profile = p
	if err := txn.Insert(profilesTable, rec); err != nil {
		return p, Change{}, err
	}
	txn.Commit()

	change.ProfileID = p.ID
	return p, change, nil
}

// findRecord mirrors the SQLite lookup order: a known id first, then the
// path. It returns nil when p is a new profile.
func findRecord(txn *memdb.Txn, p creator.Profile, byID bool) (*memRecord, error) {
	if byID {
		obj, err := txn.First(profilesTable, "id", p.ID)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			rec := obj.(*memRecord)
			other, err := txn.First(profilesTable, "path", p.Path)
			if err != nil {
				return nil, err
			}
			if other != nil && other.(*memRecord).ID != rec.ID {
				return nil, fmt.Errorf("%w: path %q belongs to profile %s", ErrInvalidInput, p.Path, other.(*memRecord).ID)
			}
			return rec, nil
		}
	}

	obj, err := txn.First(profilesTable, "path", p.Path)
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*memRecord), nil
}

func (m *MemStore) DeleteProfile(_ context.Context, idOrPath string) (Change, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	rec, err := lookup(txn, idOrPath)
	if err != nil {
		return Change{}, err
	}
	if err := txn.Delete(profilesTable, rec); err != nil {
		return Change{}, err
	}
	txn.Commit()
	return Change{OccurredAt: time.Now().UTC(), ProfileID: rec.ID, Path: rec.Path, ChangeType: "removed"}, nil
}

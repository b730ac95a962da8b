package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/creatorlive/pkg/creator"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "profiles.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openMemStore(t *testing.T) *MemStore {
	t.Helper()
	m, err := NewMemStore()
	require.NoError(t, err)
	return m
}

func repositories(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"sqlite": openTestDB(t),
		"memdb":  openMemStore(t),
	}
}

func TestNormalizeProfile(t *testing.T) {
	p, err := NormalizeProfile(creator.Profile{Name: "  Alice Plays! ", TwitchUsername: "@alice_1", XUsername: " alice "})
	require.NoError(t, err)
	assert.Equal(t, "alice-plays", p.Path)
	assert.Equal(t, "Alice Plays!", p.Name)
	assert.Equal(t, "alice_1", p.TwitchUsername)
	assert.Equal(t, "alice", p.XUsername)
	_, err = uuid.Parse(p.ID)
	assert.NoError(t, err)

	_, err = NormalizeProfile(creator.Profile{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NormalizeProfile(creator.Profile{Name: "x", TwitchUsername: "no spaces allowed"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRepositoryCRUD(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			alice, change, err := repo.UpsertProfile(ctx, creator.Profile{Name: "Alice", TwitchUsername: "alice", SearchTerms: "speedrun"})
			require.NoError(t, err)
			assert.Equal(t, "added", change.ChangeType)
			assert.Equal(t, alice.ID, change.ProfileID)

			_, _, err = repo.UpsertProfile(ctx, creator.Profile{Name: "Bob", XUsername: "bob"})
			require.NoError(t, err)
			_, _, err = repo.UpsertProfile(ctx, creator.Profile{Name: "Carol", TwitchChannel: "carol"})
			require.NoError(t, err)

			// Same path, same content: no change.
			same, change, err := repo.UpsertProfile(ctx, creator.Profile{Name: "Alice", TwitchUsername: "alice", SearchTerms: "speedrun"})
			require.NoError(t, err)
			assert.Empty(t, change.ChangeType)
			assert.Equal(t, alice.ID, same.ID)

			// Same path, new content: update keeps id and position.
			updated, change, err := repo.UpsertProfile(ctx, creator.Profile{Path: "ALICE", Name: "Alice", TwitchUsername: "alice2"})
			require.NoError(t, err)
			assert.Equal(t, "updated", change.ChangeType)
			assert.Equal(t, alice.ID, updated.ID)

			list, err := repo.ListProfiles(ctx, 0)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"alice", "bob", "carol"}, []string{list[0].Path, list[1].Path, list[2].Path})
			assert.Equal(t, "alice2", list[0].TwitchUsername)
			assert.Empty(t, list[0].SearchTerms)

			limited, err := repo.ListProfiles(ctx, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			got, err := repo.GetProfile(ctx, alice.ID)
			require.NoError(t, err)
			assert.Equal(t, "alice", got.Path)
			got, err = repo.GetProfile(ctx, "Bob")
			require.NoError(t, err)
			assert.Equal(t, "bob", got.XUsername)

			change, err = repo.DeleteProfile(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, "removed", change.ChangeType)
			_, err = repo.DeleteProfile(ctx, "bob")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = repo.GetProfile(ctx, "bob")
			assert.ErrorIs(t, err, ErrNotFound)

			// Known id, new path: the profile is renamed in place.
			renamed, change, err := repo.UpsertProfile(ctx, creator.Profile{ID: alice.ID, Path: "alice-new", Name: "Alice", TwitchUsername: "alice2"})
			require.NoError(t, err)
			assert.Equal(t, "updated", change.ChangeType)
			assert.Equal(t, alice.ID, renamed.ID)
			assert.Equal(t, "alice-new", change.Path)
			got, err = repo.GetProfile(ctx, "alice-new")
			require.NoError(t, err)
			assert.Equal(t, alice.ID, got.ID)
			_, err = repo.GetProfile(ctx, "alice")
			assert.ErrorIs(t, err, ErrNotFound)

			// Known id, path owned by another profile.
			_, _, err = repo.UpsertProfile(ctx, creator.Profile{ID: alice.ID, Path: "carol", Name: "Alice"})
			assert.ErrorIs(t, err, ErrInvalidInput)

			// Unknown id is kept for a new profile.
			dave, change, err := repo.UpsertProfile(ctx, creator.Profile{ID: "dave-id", Name: "Dave", XUsername: "dave"})
			require.NoError(t, err)
			assert.Equal(t, "added", change.ChangeType)
			assert.Equal(t, "dave-id", dave.ID)

			list, err = repo.ListProfiles(ctx, 1000)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"alice-new", "carol", "dave"}, []string{list[0].Path, list[1].Path, list[2].Path})
		})
	}
}

func TestListRecentChanges(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, _, err := db.UpsertProfile(ctx, creator.Profile{Name: "Alice", TwitchUsername: "alice"})
	require.NoError(t, err)
	_, err = db.DeleteProfile(ctx, "alice")
	require.NoError(t, err)

	changes, err := db.ListRecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "removed", changes[0].ChangeType)
	assert.Equal(t, "added", changes[1].ChangeType)
	assert.False(t, changes[0].OccurredAt.IsZero())
}

func TestNewMemStoreFrom(t *testing.T) {
	m, err := NewMemStoreFrom(context.Background(), []creator.Profile{
		{Name: "One", TwitchUsername: "one"},
		{Name: "Two", XUsername: "two"},
	})
	require.NoError(t, err)

	list, err := m.ListProfiles(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "one", list[0].Path)
	assert.Equal(t, "two", list[1].Path)

	_, err = NewMemStoreFrom(context.Background(), []creator.Profile{{Name: "@@@"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

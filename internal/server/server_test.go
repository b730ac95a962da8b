package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/storage"
)

type staticLive []creator.LiveStatus

func (s staticLive) GetLiveStreams(context.Context) []creator.LiveStatus { return s }

func newTestServer(t *testing.T, repo storage.Repository, user, pass string) *httptest.Server {
	t.Helper()
	live := staticLive{
		{ID: "p1", Name: "Alice", Platform: creator.PlatformVideo, IsLive: true, ViewerCount: 10, StreamURL: "https://twitch.tv/alice", Tags: []string{}},
		{ID: "p2", Name: "Bob", Tags: []string{"chess"}},
	}
	srv := httptest.NewServer(New(live, repo, user, pass).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body, user, pass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestLiveStreamsIsPublic(t *testing.T) {
	m, err := storage.NewMemStore()
	require.NoError(t, err)
	srv := newTestServer(t, m, "admin", "secret")

	res := do(t, http.MethodGet, srv.URL+"/api/live-streams", "", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var raw []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "video", raw[0]["platform"])
	assert.Equal(t, true, raw[0]["isLive"])
	assert.Nil(t, raw[1]["platform"])
	assert.Contains(t, raw[1], "platform")
	assert.Equal(t, []any{"chess"}, raw[1]["tags"])
}

func TestAdminRequiresAuth(t *testing.T) {
	m, err := storage.NewMemStore()
	require.NoError(t, err)
	srv := newTestServer(t, m, "admin", "secret")

	res := do(t, http.MethodGet, srv.URL+"/api/profiles", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("WWW-Authenticate"))

	res = do(t, http.MethodGet, srv.URL+"/api/profiles", "", "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = do(t, http.MethodGet, srv.URL+"/api/profiles", "", "admin", "secret")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProfileEndpoints(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "p.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	srv := newTestServer(t, db, "", "")

	res := do(t, http.MethodPost, srv.URL+"/api/profiles", `{"name":"Alice","twitchUsername":"alice"}`, "", "")
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created creator.Profile
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	assert.Equal(t, "alice", created.Path)
	assert.NotEmpty(t, created.ID)

	res = do(t, http.MethodPost, srv.URL+"/api/profiles", `{"name":"Alice","twitchUsername":"alice","searchTerms":"rpg"}`, "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = do(t, http.MethodPost, srv.URL+"/api/profiles", `{"name":"   "}`, "", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = do(t, http.MethodPost, srv.URL+"/api/profiles", `not json`, "", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = do(t, http.MethodGet, srv.URL+"/api/profiles", "", "", "")
	var profiles []creator.Profile
	require.NoError(t, json.NewDecoder(res.Body).Decode(&profiles))
	require.Len(t, profiles, 1)
	assert.Equal(t, "rpg", profiles[0].SearchTerms)

	res = do(t, http.MethodDelete, srv.URL+"/api/profiles/"+created.ID, "", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res = do(t, http.MethodDelete, srv.URL+"/api/profiles/"+created.ID, "", "", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = do(t, http.MethodGet, srv.URL+"/api/changes", "", "", "")
	var changes []storage.Change
	require.NoError(t, json.NewDecoder(res.Body).Decode(&changes))
	require.Len(t, changes, 3)
	assert.Equal(t, "removed", changes[0].ChangeType)
}

func TestProfileRenameByID(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "p.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	srv := newTestServer(t, db, "", "")

	res := do(t, http.MethodPost, srv.URL+"/api/profiles", `{"name":"Alice","twitchUsername":"alice"}`, "", "")
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created creator.Profile
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))

	res = do(t, http.MethodPost, srv.URL+"/api/profiles", `{"id":"`+created.ID+`","path":"alice-new","name":"Alice","twitchUsername":"alice"}`, "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var renamed creator.Profile
	require.NoError(t, json.NewDecoder(res.Body).Decode(&renamed))
	assert.Equal(t, created.ID, renamed.ID)
	assert.Equal(t, "alice-new", renamed.Path)
}

type recordingLock struct {
	mu      sync.Mutex
	held    bool
	locks   int
	unlocks int
	err     error
}

func (l *recordingLock) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.held = true
	l.locks++
	return nil
}

func (l *recordingLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.unlocks++
	return nil
}

// lockCheckingRepo fails writes made without the lock held.
type lockCheckingRepo struct {
	storage.Repository
	lock *recordingLock
}

func (r lockCheckingRepo) assertHeld() error {
	r.lock.mu.Lock()
	defer r.lock.mu.Unlock()
	if !r.lock.held {
		return errors.New("write without lock")
	}
	return nil
}

func (r lockCheckingRepo) UpsertProfile(ctx context.Context, p creator.Profile) (creator.Profile, storage.Change, error) {
	if err := r.assertHeld(); err != nil {
		return p, storage.Change{}, err
	}
	return r.Repository.UpsertProfile(ctx, p)
}

func (r lockCheckingRepo) DeleteProfile(ctx context.Context, idOrPath string) (storage.Change, error) {
	if err := r.assertHeld(); err != nil {
		return storage.Change{}, err
	}
	return r.Repository.DeleteProfile(ctx, idOrPath)
}

func TestWritesHoldWriteLock(t *testing.T) {
	m, err := storage.NewMemStore()
	require.NoError(t, err)
	lock := &recordingLock{}
	s := New(staticLive{}, lockCheckingRepo{Repository: m, lock: lock}, "", "")
	s.WriteLock = lock
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	res := do(t, http.MethodPost, srv.URL+"/api/profiles", `{"name":"Alice","twitchUsername":"alice"}`, "", "")
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res = do(t, http.MethodGet, srv.URL+"/api/profiles", "", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	res = do(t, http.MethodDelete, srv.URL+"/api/profiles/alice", "", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	lock.mu.Lock()
	assert.Equal(t, 2, lock.locks)
	assert.Equal(t, 2, lock.unlocks)
	assert.False(t, lock.held)
	lock.err = errors.New("lock busy")
	lock.mu.Unlock()

	res = do(t, http.MethodPost, srv.URL+"/api/profiles", `{"name":"Bob"}`, "", "")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	list, err := m.ListProfiles(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHealth(t *testing.T) {
	m, err := storage.NewMemStore()
	require.NoError(t, err)
	srv := newTestServer(t, m, "admin", "secret")

	res := do(t, http.MethodGet, srv.URL+"/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

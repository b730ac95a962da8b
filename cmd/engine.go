package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/sw33tLie/creatorlive/internal/server"
	"github.com/sw33tLie/creatorlive/internal/utils"
	"github.com/sw33tLie/creatorlive/pkg/cache"
	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/platforms"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitch"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitter"
	"github.com/sw33tLie/creatorlive/pkg/polling"
	"github.com/sw33tLie/creatorlive/pkg/storage"
	"github.com/sw33tLie/creatorlive/pkg/whttp"
)

// engine bundles everything built from the config for one command run.
type engine struct {
	Aggregator *polling.Aggregator
	Profiles   storage.Repository
	Memory     *cache.MemoryStore
	// WriteLock is set when Profiles is the shared SQLite database.
	WriteLock server.Locker

	closers []func() error
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			utils.Log.Debugf("Close: %v", err)
		}
	}
}

func newEngine(ctx context.Context) (*engine, error) {
	e := &engine{}

	profiles, err := e.openProfiles(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Profiles = profiles

	store := e.openCache(ctx)

	httpClient := whttp.NewClient(whttp.Options{
		Timeout:  viper.GetDuration("http.timeout"),
		RetryMax: viper.GetInt("http.retry_max"),
		Proxy:    viper.GetString("http.proxy"),
	})

	video := twitch.NewClient(twitch.Config{
		Auth: platforms.AuthConfig{
			ClientID:     viper.GetString("twitch.client_id"),
			ClientSecret: viper.GetString("twitch.client_secret"),
		},
		Endpoints: platforms.Endpoints{
			APIURL:   viper.GetString("twitch.api_url"),
			TokenURL: viper.GetString("twitch.token_url"),
		},
		HTTPClient: httpClient,
		Cache:      store,
		Log:        utils.Log,
	})

	space := twitter.NewClient(twitter.Config{
		Auth:              platforms.AuthConfig{BearerToken: viper.GetString("x.bearer_token")},
		Endpoints:         platforms.Endpoints{APIURL: viper.GetString("x.api_url")},
		HTTPClient:        httpClient,
		Cache:             store,
		Log:               utils.Log,
		RequestsPerSecond: viper.GetFloat64("x.requests_per_second"),
	})

	e.Aggregator = polling.NewAggregator(polling.Config{
		Profiles: profiles,
		Video:    video,
		Space:    space,
		Links: polling.Links{
			VideoSiteURL: viper.GetString("twitch.site_url"),
			SpaceSiteURL: viper.GetString("x.site_url"),
		},
		ProfileLimit: viper.GetInt("aggregator.profile_limit"),
		PathTimeout:  viper.GetDuration("aggregator.path_timeout"),
		Log:          utils.Log,
	})
	return e, nil
}

// openProfiles prefers a "profiles:" list from the config file and falls
// back to the SQLite database.
func (e *engine) openProfiles(ctx context.Context) (storage.Repository, error) {
	var configured []creator.Profile
	if err := viper.UnmarshalKey("profiles", &configured); err != nil {
		return nil, fmt.Errorf("invalid profiles in config: %w", err)
	}
	if len(configured) > 0 {
		utils.Log.Debugf("Using %d profiles from config", len(configured))
		return storage.NewMemStoreFrom(ctx, configured)
	}

	lock, err := dbLock()
	if err != nil {
		return nil, err
	}
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	e.WriteLock = lock
	e.closers = append(e.closers, db.Close)
	return db, nil
}

// dbLock returns the cross-process write lock for the configured database.
func dbLock() (*utils.DBLock, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return utils.NewDBLock(path)
}

func openDB() (*storage.DB, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile db %s: %w", path, err)
	}
	return db, nil
}

// openCache returns the memory store alone, or memory in front of Redis when
// cache.redis_url is set and reachable.
func (e *engine) openCache(ctx context.Context) cache.Store {
	e.Memory = cache.NewMemoryStore(viper.GetInt("cache.max_entries"))

	redisURL := viper.GetString("cache.redis_url")
	if redisURL == "" {
		return e.Memory
	}

	rs, err := cache.NewRedisStore(cache.RedisConfig{URL: redisURL})
	if err != nil {
		utils.Log.Warnf("Redis cache disabled: %v", err)
		return e.Memory
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		utils.Log.Warnf("Redis cache unreachable, using memory only: %v", err)
		_ = rs.Close()
		return e.Memory
	}

	e.closers = append(e.closers, rs.Close)
	return cache.NewTieredStore(e.Memory, rs, 0)
}

// Package twitch reports which creators are currently streaming on Twitch.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/sw33tLie/creatorlive/pkg/cache"
	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/platforms"
	"github.com/sw33tLie/creatorlive/pkg/whttp"
)

const (
	DefaultAPIURL   = "https://api.twitch.tv"
	DefaultTokenURL = "https://id.twitch.tv"
	DefaultSiteURL  = "https://twitch.tv"
)

// Helix endpoint paths.
const (
	TWITCH_STREAMS_PATH = "/helix/streams"
)

const (
	// BatchSize is the maximum number of user_login values per request.
	BatchSize      = 100
	CacheNamespace = "twitch_streams"
	CacheWindow    = 2 * time.Minute
)

// Stream is one live broadcast as reported by helix/streams.
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameID       string    `json:"game_id"`
	GameName     string    `json:"game_name"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	Language     string    `json:"language"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

type Config struct {
	Auth      platforms.AuthConfig
	Endpoints platforms.Endpoints
	// Tokens is shared between clients; one is built from Auth when nil.
	Tokens     *TokenManager
	HTTPClient *retryablehttp.Client
	// Cache is optional. Without it every call reaches the API.
	Cache cache.Store
	Log   platforms.Logger
}

type Client struct {
	clientID string
	apiURL   string
	tokens   *TokenManager
	http     *retryablehttp.Client
	cache    cache.Store
	log      platforms.Logger
	now      func() time.Time

	// flight coalesces concurrent misses on the same cache key.
	flight singleflight.Group
}

func NewClient(cfg Config) *Client {
	apiURL := cfg.Endpoints.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = whttp.DefaultClient()
	}
	log := platforms.LoggerOrNop(cfg.Log)

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewTokenManager(cfg.Auth, cfg.Endpoints.TokenURL, httpClient, log)
	}

	return &Client{
		clientID: cfg.Auth.ClientID,
		apiURL:   strings.TrimRight(apiURL, "/"),
		tokens:   tokens,
		http:     httpClient,
		cache:    cfg.Cache,
		log:      log,
		now:      time.Now,
	}
}

// FetchLiveStatus returns the live streams among handles keyed by lowercased
// login. Handles that are offline or unknown are absent. It never fails:
// missing credentials or upstream errors yield an empty or partial map.
func (c *Client) FetchLiveStatus(ctx context.Context, handles []string) map[string]Stream {
	return c.fetch(ctx, handles).OrElse(map[string]Stream{})
}

func (c *Client) fetch(ctx context.Context, handles []string) mo.Result[map[string]Stream] {
	key := cache.NewKey(CacheNamespace, handles, c.now(), CacheWindow)
	if len(key.IDs) == 0 {
		return mo.Ok(map[string]Stream{})
	}

	v, err, _ := c.flight.Do(key.Fingerprint(), func() (any, error) {
		return c.load(ctx, key).Get()
	})
	if err != nil {
		return mo.Err[map[string]Stream](err)
	}
	return mo.Ok(maps.Clone(v.(map[string]Stream)))
}

// load answers key from the cache or the API.
func (c *Client) load(ctx context.Context, key cache.Key) mo.Result[map[string]Stream] {
	if c.cache != nil {
		cached, ok, err := cache.Load[map[string]Stream](ctx, c.cache, key)
		if err != nil {
			c.log.Debugf("Twitch cache lookup failed: %v", err)
		} else if ok {
			return mo.Ok(cached)
		}
	}

	token := c.tokens.Token(ctx)
	if token == "" {
		return mo.Ok(map[string]Stream{})
	}

	streams := make(map[string]Stream)
	var failed error
	for _, batch := range lo.Chunk(key.IDs, BatchSize) {
		live, err := c.fetchBatch(ctx, token, batch)
		if err != nil {
			c.log.Errorf("Error fetching Twitch streams (%d logins): %v", len(batch), err)
			failed = errors.Join(failed, err)
			continue
		}
		maps.Copy(streams, live)
	}

	if failed != nil {
		if len(streams) == 0 {
			return mo.Err[map[string]Stream](failed)
		}
		// Partial answers are served but never cached.
		return mo.Ok(streams)
	}

	if c.cache != nil {
		if err := cache.Save(ctx, c.cache, key, streams, CacheWindow); err != nil {
			c.log.Debugf("Twitch cache store failed: %v", err)
		}
	}
	return mo.Ok(streams)
}

func (c *Client) fetchBatch(ctx context.Context, token string, logins []string) (map[string]Stream, error) {
	query := url.Values{}
	query.Set("first", strconv.Itoa(len(logins)))
	for _, login := range logins {
		query.Add("user_login", login)
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    c.apiURL + TWITCH_STREAMS_PATH,
		Query:  query,
		Headers: []whttp.WHTTPHeader{
			{Name: "Client-ID", Value: c.clientID},
			{Name: "Authorization", Value: "Bearer " + token},
		},
	}, c.http)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", creator.ErrUpstreamUnavailable, err)
	}
	if res.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if err := whttp.CheckStatus(res); err != nil {
		return nil, fmt.Errorf("%w: %w", creator.ErrUpstreamUnavailable, err)
	}

	return parseStreams(res.BodyString)
}

func parseStreams(body string) (map[string]Stream, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: malformed streams response", creator.ErrUpstreamUnavailable)
	}

	streams := make(map[string]Stream)
	gjson.Get(body, "data").ForEach(func(_, s gjson.Result) bool {
		login := strings.ToLower(s.Get("user_login").String())
		if login == "" {
			return true
		}
		streams[login] = Stream{
			ID:           s.Get("id").String(),
			UserID:       s.Get("user_id").String(),
			UserLogin:    s.Get("user_login").String(),
			UserName:     s.Get("user_name").String(),
			GameID:       s.Get("game_id").String(),
			GameName:     s.Get("game_name").String(),
			Type:         s.Get("type").String(),
			Title:        s.Get("title").String(),
			ViewerCount:  int(s.Get("viewer_count").Int()),
			StartedAt:    s.Get("started_at").Time(),
			Language:     s.Get("language").String(),
			ThumbnailURL: s.Get("thumbnail_url").String(),
		}
		return true
	})
	return streams, nil
}

// Package twitter reports which creators are hosting a live X Space.
package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/sw33tLie/creatorlive/pkg/cache"
	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/platforms"
	"github.com/sw33tLie/creatorlive/pkg/whttp"
)

const (
	DefaultAPIURL  = "https://api.twitter.com"
	DefaultSiteURL = "https://twitter.com"
)

// API v2 endpoint paths.
const (
	X_USERS_BY_PATH      = "/2/users/by"
	X_SPACES_BY_CREATORS = "/2/spaces/by/creator_ids"
)

const (
	SpaceFields = "id,state,title,participant_count,started_at,scheduled_start,host_ids,speaker_ids"

	// LookupBatchSize is the maximum number of usernames per users/by call.
	LookupBatchSize = 100
	CacheNamespace  = "x_spaces"
	CacheWindow     = 15 * time.Minute
)

// User is a resolved account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Space is one audio room. Only spaces in state "live" are returned by the
// client.
type Space struct {
	ID               string     `json:"id"`
	State            string     `json:"state"`
	Title            string     `json:"title,omitempty"`
	ParticipantCount int        `json:"participant_count"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ScheduledStart   *time.Time `json:"scheduled_start,omitempty"`
	HostIDs          []string   `json:"host_ids,omitempty"`
	SpeakerIDs       []string   `json:"speaker_ids,omitempty"`
}

type Config struct {
	Auth       platforms.AuthConfig
	Endpoints  platforms.Endpoints
	HTTPClient *retryablehttp.Client
	Cache      cache.Store
	Log        platforms.Logger
	// RequestsPerSecond paces outgoing calls. Zero means unlimited.
	RequestsPerSecond float64
}

type Client struct {
	bearer  string
	apiURL  string
	http    *retryablehttp.Client
	cache   cache.Store
	log     platforms.Logger
	limiter *rate.Limiter
	now     func() time.Time
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

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	return &Client{
		bearer:  cfg.Auth.BearerToken,
		apiURL:  strings.TrimRight(apiURL, "/"),
		http:    httpClient,
		cache:   cfg.Cache,
		log:     platforms.LoggerOrNop(cfg.Log),
		limiter: limiter,
		now:     time.Now,
	}
}

func (c *Client) Configured() bool {
	return c.bearer != ""
}

// FetchLiveSpaces returns the live spaces created by handles, keyed by
// lowercased username. It never fails: a missing bearer token or a failed
// user lookup yields an empty map, and a failed per-user query only drops
// that user.
func (c *Client) FetchLiveSpaces(ctx context.Context, handles []string) map[string]Space {
	return c.fetch(ctx, handles).OrElse(map[string]Space{})
}

func (c *Client) fetch(ctx context.Context, handles []string) mo.Result[map[string]Space] {
	if !c.Configured() {
		c.log.Warnf("X API bearer token not configured")
		return mo.Err[map[string]Space](creator.ErrConfigurationMissing)
	}

	key := cache.NewKey(CacheNamespace, handles, c.now(), CacheWindow)
	if len(key.IDs) == 0 {
		return mo.Ok(map[string]Space{})
	}

	if c.cache != nil {
		cached, ok, err := cache.Load[map[string]Space](ctx, c.cache, key)
		if err != nil {
			c.log.Debugf("X cache lookup failed: %v", err)
		} else if ok {
			return mo.Ok(cached)
		}
	}

	users, err := c.LookupUsers(ctx, key.IDs)
	if err != nil {
		c.log.Errorf("Error fetching X users: %v", err)
		return mo.Err[map[string]Space](err)
	}

	queried := lo.SliceToMap(key.IDs, func(id string) (string, struct{}) { return id, struct{}{} })
	spaces := make(map[string]Space)
	for _, user := range users {
		handle := strings.ToLower(user.Username)
		if _, ok := queried[handle]; !ok {
			c.log.Debugf("X returned unrequested user %q", user.Username)
			continue
		}

		userSpaces, err := c.SpacesByCreator(ctx, user.ID)
		if err != nil {
			c.log.Debugf("Error fetching spaces for %s: %v", user.Username, err)
			continue
		}
		for _, space := range userSpaces {
			if space.State == "live" {
				spaces[handle] = space
			}
		}
	}

	if c.cache != nil {
		if err := cache.Save(ctx, c.cache, key, spaces, CacheWindow); err != nil {
			c.log.Debugf("X cache store failed: %v", err)
		}
	}
	return mo.Ok(spaces)
}

// LookupUsers resolves usernames to accounts. Unknown usernames are simply
// missing from the result. Any failed batch fails the whole lookup.
func (c *Client) LookupUsers(ctx context.Context, usernames []string) ([]User, error) {
	var users []User
	for _, batch := range lo.Chunk(usernames, LookupBatchSize) {
		body, err := c.get(ctx, X_USERS_BY_PATH, url.Values{"usernames": {strings.Join(batch, ",")}})
		if err != nil {
			return nil, err
		}
		gjson.Get(body, "data").ForEach(func(_, u gjson.Result) bool {
			users = append(users, User{ID: u.Get("id").String(), Username: u.Get("username").String()})
			return true
		})
	}
	return users, nil
}

// SpacesByCreator lists the spaces created by one user id, in any state.
func (c *Client) SpacesByCreator(ctx context.Context, userID string) ([]Space, error) {
	body, err := c.get(ctx, X_SPACES_BY_CREATORS, url.Values{
		"user_ids":     {userID},
		"space.fields": {SpaceFields},
	})
	if err != nil {
		return nil, err
	}

	var spaces []Space
	gjson.Get(body, "data").ForEach(func(_, s gjson.Result) bool {
		spaces = append(spaces, Space{
			ID:               s.Get("id").String(),
			State:            s.Get("state").String(),
			Title:            s.Get("title").String(),
			ParticipantCount: int(s.Get("participant_count").Int()),
			StartedAt:        optionalTime(s.Get("started_at")),
			ScheduledStart:   optionalTime(s.Get("scheduled_start")),
			HostIDs:          stringArray(s.Get("host_ids")),
			SpeakerIDs:       stringArray(s.Get("speaker_ids")),
		})
		return true
	})
	return spaces, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    c.apiURL + path,
		Query:  query,
		Headers: []whttp.WHTTPHeader{
			{Name: "Authorization", Value: "Bearer " + c.bearer},
		},
	}, c.http)
	if err != nil {
		return "", fmt.Errorf("%w: %w", creator.ErrUpstreamUnavailable, err)
	}
	if err := whttp.CheckStatus(res); err != nil {
		return "", fmt.Errorf("%w: %w", creator.ErrUpstreamUnavailable, err)
	}
	if !gjson.Valid(res.BodyString) {
		return "", fmt.Errorf("%w: malformed response from %s", creator.ErrUpstreamUnavailable, path)
	}
	return res.BodyString, nil
}

func optionalTime(r gjson.Result) *time.Time {
	if !r.Exists() || r.String() == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, r.String())
	if err != nil {
		return nil
	}
	return &t
}

func stringArray(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	return lo.Map(r.Array(), func(v gjson.Result, _ int) string { return v.String() })
}


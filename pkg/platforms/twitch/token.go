package twitch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/mo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/platforms"
	"github.com/sw33tLie/creatorlive/pkg/whttp"
)

// refreshMargin is subtracted from the provider TTL so tokens are renewed
// an hour before they actually expire.
const refreshMargin = time.Hour

type accessToken struct {
	value  string
	expiry time.Time
}

// TokenManager acquires and caches an app access token through the client
// credentials grant. It is safe for concurrent use: the token and its expiry
// are swapped together as one immutable value.
type TokenManager struct {
	auth     platforms.AuthConfig
	tokenURL string
	client   *retryablehttp.Client
	log      platforms.Logger
	now      func() time.Time

	current atomic.Pointer[accessToken]
	flight  singleflight.Group
}

// NewTokenManager builds a manager for the given credentials. tokenURL is
// the identity host; "/oauth2/token" is appended. A nil client uses the
// whttp default.
func NewTokenManager(auth platforms.AuthConfig, tokenURL string, client *retryablehttp.Client, log platforms.Logger) *TokenManager {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if client == nil {
		client = whttp.DefaultClient()
	}
	return &TokenManager{
		auth:     auth,
		tokenURL: strings.TrimRight(tokenURL, "/") + "/oauth2/token",
		client:   client,
		log:      platforms.LoggerOrNop(log),
		now:      time.Now,
	}
}

// Configured reports whether client credentials are present.
func (m *TokenManager) Configured() bool {
	return m.auth.ClientID != "" && m.auth.ClientSecret != ""
}

// Token returns a valid access token, refreshing it when needed. An empty
// string means the video provider is unavailable for now.
func (m *TokenManager) Token(ctx context.Context) string {
	if t := m.current.Load(); t != nil && m.now().Before(t.expiry) {
		return t.value
	}

	v, err, _ := m.flight.Do("token", func() (any, error) {
		if t := m.current.Load(); t != nil && m.now().Before(t.expiry) {
			return t.value, nil
		}
		return m.refresh(ctx).Get()
	})
	if err != nil {
		if errors.Is(err, creator.ErrConfigurationMissing) {
			m.log.Warnf("Twitch API credentials not configured")
		} else {
			m.log.Errorf("Failed to get Twitch access token: %v", err)
		}
		return ""
	}
	return v.(string)
}

// Invalidate drops the cached token so the next call re-acquires one.
func (m *TokenManager) Invalidate() {
	m.current.Store(nil)
}

func (m *TokenManager) refresh(ctx context.Context) mo.Result[string] {
	if !m.Configured() {
		return mo.Err[string](creator.ErrConfigurationMissing)
	}

	conf := clientcredentials.Config{
		ClientID:     m.auth.ClientID,
		ClientSecret: m.auth.ClientSecret,
		TokenURL:     m.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client.StandardClient())

	requested := time.Now()
	tok, err := conf.Token(ctx)
	if err != nil {
		return mo.Err[string](fmt.Errorf("%w: token exchange: %w", creator.ErrUpstreamUnavailable, err))
	}

	// oauth2 stamps Expiry from the wall clock; only the TTL is kept and
	// re-anchored on our clock.
	var ttl time.Duration
	if !tok.Expiry.IsZero() {
		ttl = tok.Expiry.Sub(requested)
	}
	m.current.Store(&accessToken{
		value:  tok.AccessToken,
		expiry: m.now().Add(ttl - refreshMargin),
	})
	return mo.Ok(tok.AccessToken)
}

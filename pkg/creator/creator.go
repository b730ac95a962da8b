package creator

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Platform tags a live status with the provider it came from.
// The zero value means "no platform" and marshals to JSON null.
type Platform string

const (
	PlatformNone  Platform = ""
	PlatformVideo Platform = "video"
	PlatformSpace Platform = "space"
)

func (p Platform) MarshalJSON() ([]byte, error) {
	if p == PlatformNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

func (p *Platform) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = PlatformNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = Platform(s)
	return nil
}

var (
	// ErrConfigurationMissing is reported when a provider credential is absent.
	ErrConfigurationMissing = errors.New("provider credentials not configured")
	// ErrUpstreamUnavailable wraps network errors, timeouts and non-2xx answers.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Profile is a creator page as stored by the profile store.
type Profile struct {
	ID             string `json:"id" mapstructure:"id"`
	Path           string `json:"path" mapstructure:"path"`
	Name           string `json:"name" mapstructure:"name"`
	Description    string `json:"description,omitempty" mapstructure:"description"`
	LogoURL        string `json:"logo,omitempty" mapstructure:"logo"`
	TwitchUsername string `json:"twitchUsername,omitempty" mapstructure:"twitch_username"`
	TwitchChannel  string `json:"twitchChannel,omitempty" mapstructure:"twitch_channel"`
	XUsername      string `json:"xUsername,omitempty" mapstructure:"x_username"`
	SearchTerms    string `json:"searchTerms,omitempty" mapstructure:"search_terms"`
}

// LiveStatus is one entry of the ranked live-streams listing.
type LiveStatus struct {
	ID          string     `json:"id"`
	Path        string     `json:"path"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Logo        string     `json:"logo,omitempty"`
	Platform    Platform   `json:"platform"`
	IsLive      bool       `json:"isLive"`
	StreamTitle string     `json:"streamTitle,omitempty"`
	ViewerCount int        `json:"viewerCount"`
	StreamURL   string     `json:"streamUrl,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	Tags        []string   `json:"tags"`
}

// ProfileStore supplies the candidate profiles for an aggregation run.
type ProfileStore interface {
	ListProfiles(ctx context.Context, limit int) ([]Profile, error)
}

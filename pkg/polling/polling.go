// Package polling aggregates the live status of every known creator profile.
package polling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/platforms"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitch"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitter"
)

const (
	DefaultProfileLimit = 1000
	DefaultPathTimeout  = 30 * time.Second
)

// VideoFetcher reports live video streams keyed by lowercased login.
type VideoFetcher interface {
	FetchLiveStatus(ctx context.Context, handles []string) map[string]twitch.Stream
}

// SpaceFetcher reports live audio spaces keyed by lowercased username.
type SpaceFetcher interface {
	FetchLiveSpaces(ctx context.Context, handles []string) map[string]twitter.Space
}

// Links holds the public site roots used to build stream URLs.
type Links struct {
	VideoSiteURL string
	SpaceSiteURL string
}

// Config holds everything an Aggregator needs.
type Config struct {
	Profiles creator.ProfileStore
	Video    VideoFetcher // nil = video path disabled
	Space    SpaceFetcher // nil = space path disabled
	Links    Links

	ProfileLimit int           // defaults to 1000 if <= 0
	PathTimeout  time.Duration // per provider path; defaults to 30s if <= 0
	Log          platforms.Logger
}

// Result holds the outcome of one aggregation pass.
type Result struct {
	Statuses []creator.LiveStatus
	Profiles int
	// VideoLive and SpaceLive count the live entries each provider returned.
	VideoLive int
	SpaceLive int
}

type Aggregator struct {
	cfg Config
	log platforms.Logger
}

func NewAggregator(cfg Config) *Aggregator {
	if cfg.ProfileLimit <= 0 {
		cfg.ProfileLimit = DefaultProfileLimit
	}
	if cfg.PathTimeout <= 0 {
		cfg.PathTimeout = DefaultPathTimeout
	}
	if cfg.Links.VideoSiteURL == "" {
		cfg.Links.VideoSiteURL = twitch.DefaultSiteURL
	}
	if cfg.Links.SpaceSiteURL == "" {
		cfg.Links.SpaceSiteURL = twitter.DefaultSiteURL
	}
	return &Aggregator{cfg: cfg, log: platforms.LoggerOrNop(cfg.Log)}
}

// GetLiveStreams returns one entry per profile that has at least one handle,
// live entries first and then by viewer count. It never fails; any error
// yields an empty list.
func (a *Aggregator) GetLiveStreams(ctx context.Context) []creator.LiveStatus {
	res, err := a.Poll(ctx)
	if err != nil {
		a.log.Errorf("Error getting live streams: %v", err)
		return []creator.LiveStatus{}
	}
	return res.Statuses
}

// Poll runs one aggregation pass. The only error is a failure to load
// profiles; provider failures degrade to "not live".
func (a *Aggregator) Poll(ctx context.Context) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("aggregation panicked: %v", r)
		}
	}()

	profiles, err := a.cfg.Profiles.ListProfiles(ctx, a.cfg.ProfileLimit)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	videoHandles := lo.Uniq(lo.FilterMap(profiles, func(p creator.Profile, _ int) (string, bool) {
		h := p.VideoHandle()
		return h, h != ""
	}))
	spaceHandles := lo.Uniq(lo.FilterMap(profiles, func(p creator.Profile, _ int) (string, bool) {
		h := p.SpaceHandle()
		return h, h != ""
	}))

	var (
		wg      sync.WaitGroup
		streams = map[string]twitch.Stream{}
		spaces  = map[string]twitter.Space{}
	)

	if a.cfg.Video != nil && len(videoHandles) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			streams = runPath(ctx, a, "video", func(ctx context.Context) map[string]twitch.Stream {
				return a.cfg.Video.FetchLiveStatus(ctx, videoHandles)
			})
		}()
	}
	if a.cfg.Space != nil && len(spaceHandles) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			spaces = runPath(ctx, a, "space", func(ctx context.Context) map[string]twitter.Space {
				return a.cfg.Space.FetchLiveSpaces(ctx, spaceHandles)
			})
		}()
	}
	wg.Wait()

	statuses := Merge(profiles, streams, spaces, a.cfg.Links)
	Rank(statuses)

	a.log.Debugf("Aggregated %d profiles: %d live video, %d live spaces", len(profiles), len(streams), len(spaces))
	return &Result{
		Statuses:  statuses,
		Profiles:  len(profiles),
		VideoLive: len(streams),
		SpaceLive: len(spaces),
	}, nil
}

// runPath calls one provider under its own deadline. A panic or a nil answer
// degrades to an empty map so the other path is unaffected.
func runPath[T any](ctx context.Context, a *Aggregator, name string, fetch func(context.Context) map[string]T) (out map[string]T) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.PathTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a.log.Errorf("The %s path failed: %v", name, r)
			out = map[string]T{}
		}
	}()

	out = fetch(ctx)
	if out == nil {
		out = map[string]T{}
	}
	if ctx.Err() != nil {
		a.log.Warnf("The %s path hit its deadline: %v", name, ctx.Err())
	}
	return out
}

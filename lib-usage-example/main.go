package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/sw33tLie/creatorlive/pkg/cache"
	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/platforms"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitch"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitter"
	"github.com/sw33tLie/creatorlive/pkg/polling"
	"github.com/sw33tLie/creatorlive/pkg/storage"
)

func main() {
	// Usage: go run *.go -client-id ID -client-secret SECRET -bearer TOKEN -twitch a,b -x c,d

	clientID := flag.String("client-id", "", "Twitch client id")
	clientSecret := flag.String("client-secret", "", "Twitch client secret")
	bearer := flag.String("bearer", "", "X API bearer token")
	twitchHandles := flag.String("twitch", "", "Comma-separated Twitch usernames")
	xHandles := flag.String("x", "", "Comma-separated X usernames")

	// Parse the command-line flags
	flag.Parse()

	var profiles []creator.Profile
	for _, h := range splitList(*twitchHandles) {
		profiles = append(profiles, creator.Profile{Name: h, TwitchUsername: h})
	}
	for _, h := range splitList(*xHandles) {
		profiles = append(profiles, creator.Profile{Name: "x-" + h, XUsername: h})
	}

	ctx := context.Background()
	store, err := storage.NewMemStoreFrom(ctx, profiles)
	if err != nil {
		fmt.Println(err)
		return
	}

	// Both clients can share one cache; keys are namespaced per provider.
	results := cache.NewMemoryStore(1000)

	agg := polling.NewAggregator(polling.Config{
		Profiles: store,
		Video: twitch.NewClient(twitch.Config{
			Auth:  platforms.AuthConfig{ClientID: *clientID, ClientSecret: *clientSecret},
			Cache: results,
		}),
		Space: twitter.NewClient(twitter.Config{
			Auth:  platforms.AuthConfig{BearerToken: *bearer},
			Cache: results,
		}),
	})

	for _, s := range agg.GetLiveStreams(ctx) {
		state := "featured"
		if s.IsLive {
			state = fmt.Sprintf("live (%d)", s.ViewerCount)
		}
		fmt.Println(s.Name, state, s.StreamURL)
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package polling

import (
	"sort"
	"strings"

	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitch"
	"github.com/sw33tLie/creatorlive/pkg/platforms/twitter"
)

// Merge builds one LiveStatus per profile that has a handle, in profile
// order. A live video stream wins over a live space; profiles live on
// neither are emitted as featured entries linking to their channel.
func Merge(profiles []creator.Profile, streams map[string]twitch.Stream, spaces map[string]twitter.Space, links Links) []creator.LiveStatus {
	videoSite := strings.TrimRight(links.VideoSiteURL, "/")
	spaceSite := strings.TrimRight(links.SpaceSiteURL, "/")

	out := make([]creator.LiveStatus, 0, len(profiles))
	for _, p := range profiles {
		if !p.HasHandle() {
			continue
		}

		status := creator.LiveStatus{
			ID:          p.ID,
			Path:        p.Path,
			Name:        p.Name,
			Description: p.Description,
			Logo:        p.LogoURL,
			Tags:        p.Tags(),
		}

		videoHandle := p.VideoHandle()
		spaceHandle := p.SpaceHandle()

		if stream, ok := streams[strings.ToLower(videoHandle)]; ok && videoHandle != "" {
			startedAt := stream.StartedAt
			status.Platform = creator.PlatformVideo
			status.IsLive = true
			status.StreamTitle = stream.Title
			status.ViewerCount = stream.ViewerCount
			status.StreamURL = videoSite + "/" + stream.UserLogin
			if !startedAt.IsZero() {
				status.StartedAt = &startedAt
			}
		} else if space, ok := spaces[strings.ToLower(spaceHandle)]; ok && spaceHandle != "" {
			status.Platform = creator.PlatformSpace
			status.IsLive = true
			status.StreamTitle = space.Title
			status.ViewerCount = space.ParticipantCount
			status.StreamURL = spaceSite + "/i/spaces/" + space.ID
			status.StartedAt = space.StartedAt
		} else {
			status.Platform = creator.PlatformNone
			if videoHandle != "" {
				status.StreamURL = videoSite + "/" + videoHandle
			} else {
				status.StreamURL = spaceSite + "/" + spaceHandle
			}
		}

		out = append(out, status)
	}
	return out
}

// Rank orders live entries first, then by viewer count descending. Equal
// entries keep their relative order.
func Rank(statuses []creator.LiveStatus) {
	sort.SliceStable(statuses, func(i, j int) bool {
		if statuses[i].IsLive != statuses[j].IsLive {
			return statuses[i].IsLive
		}
		return statuses[i].ViewerCount > statuses[j].ViewerCount
	})
}

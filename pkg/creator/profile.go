package creator

import "strings"

// VideoHandle returns the channel handle used against the video provider.
// The primary username wins over the legacy channel field; both are trimmed
// and an all-blank pair yields "".
func (p Profile) VideoHandle() string {
	for _, h := range []string{p.TwitchUsername, p.TwitchChannel} {
		if h = strings.TrimSpace(h); h != "" {
			return h
		}
	}
	return ""
}

// SpaceHandle returns the handle used against the space provider.
func (p Profile) SpaceHandle() string {
	return strings.TrimSpace(p.XUsername)
}

// HasHandle reports whether any platform handle is configured.
func (p Profile) HasHandle() bool {
	return p.VideoHandle() != "" || p.SpaceHandle() != ""
}

// Tags splits SearchTerms on commas, trimming entries and dropping blanks.
// The result is never nil.
func (p Profile) Tags() []string {
	tags := []string{}
	for _, t := range strings.Split(p.SearchTerms, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

package storage

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sw33tLie/creatorlive/pkg/creator"
)

var (
	ErrNotFound     = errors.New("profile not found")
	ErrInvalidInput = errors.New("invalid profile")

	pathCleaner = regexp.MustCompile(`[^a-z0-9_-]+`)
	handleRe    = regexp.MustCompile(`^[A-Za-z0-9_]{1,25}$`)
)

// NormalizePath turns a display name or path into a lowercase slug.
func NormalizePath(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "/")
	s = pathCleaner.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeProfile trims every field, derives a path from the name when
// needed, strips a leading "@" from handles and assigns an id to new
// profiles.
func NormalizeProfile(p creator.Profile) (creator.Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.LogoURL = strings.TrimSpace(p.LogoURL)
	p.SearchTerms = strings.TrimSpace(p.SearchTerms)
	p.TwitchUsername = normalizeHandle(p.TwitchUsername)
	p.TwitchChannel = normalizeHandle(p.TwitchChannel)
	p.XUsername = normalizeHandle(p.XUsername)

	if p.Path == "" {
		p.Path = p.Name
	}
	p.Path = NormalizePath(p.Path)
	if p.Path == "" {
		return p, fmt.Errorf("%w: name or path is required", ErrInvalidInput)
	}
	if p.Name == "" {
		p.Name = p.Path
	}

	for field, h := range map[string]string{
		"twitch username": p.TwitchUsername,
		"twitch channel":  p.TwitchChannel,
		"x username":      p.XUsername,
	} {
		if h != "" && !handleRe.MatchString(h) {
			return p, fmt.Errorf("%w: bad %s %q", ErrInvalidInput, field, h)
		}
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p, nil
}

func normalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}

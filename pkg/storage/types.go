package storage

import (
	"context"
	"time"

	"github.com/sw33tLie/creatorlive/pkg/creator"
)

// Repository is a profile store that can also be edited.
type Repository interface {
	creator.ProfileStore
	GetProfile(ctx context.Context, idOrPath string) (creator.Profile, error)
	UpsertProfile(ctx context.Context, p creator.Profile) (creator.Profile, Change, error)
	DeleteProfile(ctx context.Context, idOrPath string) (Change, error)
}

// Change captures a single profile edit for auditing or printing.
type Change struct {
	OccurredAt time.Time `json:"occurredAt"`
	ProfileID  string    `json:"profileId"`
	Path       string    `json:"path"`
	ChangeType string    `json:"changeType"` // added | updated | removed
}

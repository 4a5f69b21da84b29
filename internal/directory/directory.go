package directory

import (
	"context"

	"github.com/example/ride-marketplace/internal/identity"
)

// Profile is the display subset of an account used to enrich read
// responses. It is never consulted for authorization.
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// Lookup resolves a user id to a display profile.
type Lookup interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// PlaceholderName stands in when a lookup fails; enrichment never fails
// the surrounding read.
const PlaceholderName = "Unknown"

// DisplayName resolves the profile name, degrading to the placeholder.
func DisplayName(ctx context.Context, l Lookup, userID string) string {
	if l == nil || userID == "" {
		return PlaceholderName
	}
	p, err := l.Profile(ctx, userID)
	if err != nil || p.Name == "" {
		return PlaceholderName
	}
	return p.Name
}

// Local serves lookups from the in-process identity service.
type Local struct {
	Identity *identity.Service
}

func (l *Local) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := l.Identity.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{UserID: u.ID, Name: u.Name, Phone: u.Phone}, nil
}

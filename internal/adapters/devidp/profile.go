package devidp

import (
	"context"

	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/ports"
)

// StaticProfileStore serves one configured profile for the dev user.
type StaticProfileStore struct {
	UserID  string
	Profile domainauth.Profile
}

var _ ports.ProfileStore = (*StaticProfileStore)(nil)

// FetchProfile returns the configured profile for the dev user id and
// ports.ErrProfileNotFound for anyone else.
func (s *StaticProfileStore) FetchProfile(_ context.Context, userID string) (domainauth.Profile, error) {
	if userID != s.UserID {
		return domainauth.Profile{}, ports.ErrProfileNotFound
	}
	return s.Profile, nil
}

package out

import (
	"context"

	"training_server/core/domain"

	"golang.org/x/oauth2"
)

// TokenProvider acquires Graph access tokens.
type TokenProvider interface {
	// UserToken exchanges the caller's assertion for a delegated Graph token.
	UserToken(ctx context.Context, userID, assertion string) (*oauth2.Token, error)
	// AppToken returns an application-permission Graph token.
	AppToken(ctx context.Context) (*oauth2.Token, error)
}

// DirectoryPort reads users from the cloud directory.
type DirectoryPort interface {
	GetUser(ctx context.Context, id string) (*domain.DirectoryProfile, error)
}

// UserProfileResolver batch-resolves attendee identifiers.
// Results keep input order; identifiers that do not resolve are omitted.
type UserProfileResolver interface {
	ResolveProfiles(ctx context.Context, ids []string) ([]*domain.DirectoryProfile, error)
}

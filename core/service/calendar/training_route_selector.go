package calendar

import (
	"context"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"
	"training_server/pkg/logger"
)

// RouteSelector decides which calendar backend serves a user.
type RouteSelector struct {
	directory out.DirectoryPort
}

func NewRouteSelector(directory out.DirectoryPort) *RouteSelector {
	return &RouteSelector{directory: directory}
}

// ResolveRoute performs one directory lookup. Any value in onPremisesSyncEnabled,
// true or false, means the mailbox is served by Exchange on-premises.
// A failed lookup is returned as DIRECTORY_LOOKUP_FAILED; there is no fallback route.
func (s *RouteSelector) ResolveRoute(ctx context.Context, userID string) (domain.BackendRoute, error) {
	if userID == "" {
		return "", apperr.MissingField("user_id")
	}

	profile, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return "", asDirectoryError(userID, err)
	}

	route := domain.RouteCloud
	if profile.OnPremisesSyncEnabled != nil {
		route = domain.RouteOnPremises
	}
	logger.WithContext(ctx).WithField("route", route).Debug("[RouteSelector] resolved route for %s", userID)
	return route, nil
}

// Mailbox returns the user principal name that EWS impersonates for userID.
func (s *RouteSelector) Mailbox(ctx context.Context, userID string) (string, error) {
	profile, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return "", asDirectoryError(userID, err)
	}
	if profile.UserPrincipalName == "" {
		return "", apperr.DirectoryLookupFailed(userID, nil).WithDetail("reason", "no user principal name")
	}
	return profile.UserPrincipalName, nil
}

func asDirectoryError(userID string, err error) error {
	if apperr.CodeOf(err) == apperr.CodeDirectoryLookupFailed {
		return err
	}
	return apperr.DirectoryLookupFailed(userID, err)
}

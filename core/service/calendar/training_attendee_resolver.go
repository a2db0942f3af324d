package calendar

import (
	"context"
	"strings"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"
)

const attendeeSeparator = ";"

// AttendeeResolver expands the registered and auto-registered attendee lists.
type AttendeeResolver struct {
	profiles out.UserProfileResolver
}

func NewAttendeeResolver(profiles out.UserProfileResolver) *AttendeeResolver {
	return &AttendeeResolver{profiles: profiles}
}

// ResolveAttendees returns registered attendees followed by auto-registered ones,
// all required. Identifiers present in both lists appear twice.
func (r *AttendeeResolver) ResolveAttendees(ctx context.Context, rec *domain.EventRecord) ([]domain.Attendee, error) {
	if rec == nil {
		return nil, apperr.MappingPrecondition("event record is nil")
	}

	attendees := []domain.Attendee{}
	for _, list := range []string{rec.RegisteredAttendees, rec.AutoRegisteredAttendees} {
		ids := SplitIdentifiers(list)
		if len(ids) == 0 {
			continue
		}

		profiles, err := r.profiles.ResolveProfiles(ctx, ids)
		if err != nil {
			if apperr.IsAppError(err) {
				return nil, err
			}
			return nil, apperr.DirectoryLookupFailed(strings.Join(ids, attendeeSeparator), err)
		}

		for _, p := range profiles {
			attendees = append(attendees, domain.Attendee{
				Email: p.Address(),
				Name:  p.DisplayName,
				Type:  domain.AttendeeRequired,
			})
		}
	}
	return attendees, nil
}

// SplitIdentifiers splits a ';' list, trimming entries and dropping empty ones.
func SplitIdentifiers(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, attendeeSeparator)
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

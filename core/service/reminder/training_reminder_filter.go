package reminder

import (
	"fmt"
	"time"

	"training_server/core/domain"
)

// GenerateDayBeforeFilter selects active events with registrations whose start
// falls on the UTC day after now.
func GenerateDayBeforeFilter(now time.Time) string {
	u := now.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	from := midnight.AddDate(0, 0, 1)
	to := midnight.AddDate(0, 0, 2)

	return fmt.Sprintf(
		"Status eq %d and StartDate ge %s and StartDate le %s and RegisteredAttendeesCount gt 0",
		domain.EventStatusActive,
		from.Format(domain.RoundTripLayout),
		to.Format(domain.RoundTripLayout),
	)
}

package softdelete

import "time"

// DefaultRetentionDays is used when no positive retention is configured.
const DefaultRetentionDays = 30

func normalizeRetentionDays(days int) int {
	if days <= 0 {
		return DefaultRetentionDays
	}
	return days
}

// RetentionWindow converts retention days into a duration.
func RetentionWindow(days int) time.Duration {
	return time.Duration(normalizeRetentionDays(days)) * 24 * time.Hour
}

// ScheduledDeletionAt is the date a soft deleted user becomes eligible for
// permanent deletion.
func ScheduledDeletionAt(deletedAt time.Time, retentionDays int) time.Time {
	return deletedAt.Add(RetentionWindow(retentionDays))
}

// BlockExpiresAt is the expiry of a block created at now.
func BlockExpiresAt(now time.Time, retentionDays int) time.Time {
	return now.Add(RetentionWindow(retentionDays))
}

// BlockExpired reports whether row no longer blocks sign up at now.
func BlockExpired(row *BlockedIdentifier, now time.Time) bool {
	return row.IsExpired(now)
}

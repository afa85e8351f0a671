package models

import "time"

// BlockRecord suppresses a user's access until UnblockAt.
// The cache TTL derived from DurationMinutes only removes stale records,
// UnblockAt decides whether the block is in force.
type BlockRecord struct {
	UnblockAt       time.Time `json:"unblockedAt"`
	DurationMinutes int       `json:"duration"`
}

// IsBlocked reports whether the record still blocks at now. A nil record never blocks.
func (b *BlockRecord) IsBlocked(now time.Time) bool {
	if b == nil {
		return false
	}
	return now.Before(b.UnblockAt)
}

// TTL is the cache lifetime for the record.
func (b *BlockRecord) TTL() time.Duration {
	return time.Duration(b.DurationMinutes) * time.Minute
}

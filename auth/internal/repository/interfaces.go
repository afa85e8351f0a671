package repository

import (
	"context"
	"time"

	"nodove/auth/internal/domain/models"
)

// UserRepository is the user directory the token core reads identities from.
type UserRepository interface {
	// SaveUser stores a new user and returns its row id
	SaveUser(ctx context.Context, user *models.User) (int64, error)

	// UserByID finds a user by its public user id
	UserByID(ctx context.Context, userID string) (*models.User, error)

	// UserByEmail finds a user by email
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	// UserByNickname finds a user by nickname
	UserByNickname(ctx context.Context, nickname string) (*models.User, error)

	// EmailExists reports whether the email is taken
	EmailExists(ctx context.Context, email string) (bool, error)

	// NicknameExists reports whether the nickname is taken
	NicknameExists(ctx context.Context, nickname string) (bool, error)

	// SetActive enables or disables the account
	SetActive(ctx context.Context, userID string, active bool) error
}

// BlockRepository is the distributed block cache (Redis).
type BlockRepository interface {
	// SetBlock stores the record for userID with the given cache TTL
	SetBlock(ctx context.Context, userID string, record *models.BlockRecord, ttl time.Duration) error

	// GetBlock returns the record or ErrBlockNotFound
	GetBlock(ctx context.Context, userID string) (*models.BlockRecord, error)

	// DeleteBlock removes the record
	DeleteBlock(ctx context.Context, userID string) error

	// BlockExists reports whether a record is present, expired or not
	BlockExists(ctx context.Context, userID string) (bool, error)
}

// SessionRepository is the per-device session store (Redis).
type SessionRepository interface {
	// PutSession overwrites the session stored under key
	PutSession(ctx context.Context, key models.SessionKey, session *models.Session, ttl time.Duration) error

	// GetSession returns the session or ErrSessionNotFound
	GetSession(ctx context.Context, key models.SessionKey) (*models.Session, error)

	// DeleteSession removes the session; deleting a missing key is not an error
	DeleteSession(ctx context.Context, key models.SessionKey) error

	// SessionsByUser returns every device session of the user
	SessionsByUser(ctx context.Context, provider, userID string) ([]*models.Session, error)
}

// RedisRepository combines the Redis backed repositories
type RedisRepository interface {
	BlockRepository
	SessionRepository
}

package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/sl"
	"nodove/auth/internal/repository"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidDuration = errors.New("block duration must be at least one minute")
)

type UserProvider interface {
	UserByID(ctx context.Context, userID string) (*models.User, error)
	SetActive(ctx context.Context, userID string, active bool) error
}

// Moderation writes block records. The authorization gate picks them up on the
// next request of the blocked user.
type Moderation struct {
	log    *slog.Logger
	users  UserProvider
	blocks repository.BlockRepository
	now    func() time.Time
}

func New(log *slog.Logger, users UserProvider, blocks repository.BlockRepository) *Moderation {
	return &Moderation{
		log:    log,
		users:  users,
		blocks: blocks,
		now:    time.Now,
	}
}

// Block suppresses userID until now+duration. Blocking an already blocked user
// replaces the previous record.
func (m *Moderation) Block(ctx context.Context, userID string, duration time.Duration) (*models.BlockRecord, error) {
	const op = "moderation.Block"

	log := m.log.With(
		slog.String("op", op),
		slog.String("userId", userID),
	)

	minutes := int(duration / time.Minute)
	if minutes < 1 {
		return nil, ErrInvalidDuration
	}

	if _, err := m.users.UserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	record := &models.BlockRecord{
		UnblockAt:       m.now().Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
	}

	if err := m.blocks.SetBlock(ctx, userID, record, record.TTL()); err != nil {
		log.Error("failed to write block record", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user blocked", slog.Time("unblockAt", record.UnblockAt))

	return record, nil
}

// Unblock lifts a block. Lifting a missing block is not an error.
func (m *Moderation) Unblock(ctx context.Context, userID string) error {
	const op = "moderation.Unblock"

	if err := m.blocks.DeleteBlock(ctx, userID); err != nil {
		m.log.Error("failed to delete block record", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("user unblocked", slog.String("op", op), slog.String("userId", userID))

	return nil
}

// SetActive enables or disables an account. Inactive accounts cannot log in or
// refresh; access tokens already issued stay valid until they expire.
func (m *Moderation) SetActive(ctx context.Context, userID string, active bool) error {
	const op = "moderation.SetActive"

	if err := m.users.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		m.log.Error("failed to update account state", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("account state changed",
		slog.String("op", op),
		slog.String("userId", userID),
		slog.Bool("active", active),
	)

	return nil
}

// Status returns the block in force for userID, or nil.
func (m *Moderation) Status(ctx context.Context, userID string) (*models.BlockRecord, error) {
	const op = "moderation.Status"

	record, err := m.blocks.GetBlock(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !record.IsBlocked(m.now()) {
		return nil, nil
	}

	return record, nil
}

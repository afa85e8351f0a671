package sqlite

import (
	"context"
	"fmt"
	"strings"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/repository"
)

const userColumns = "id, user_id, email, nickname, pass_hash, roles, active"

func (s *Storage) SaveUser(ctx context.Context, user *models.User) (int64, error) {
	const op = "storage.sqlite.SaveUser"

	stmt, err := s.db.PrepareContext(ctx,
		"INSERT INTO users(user_id, email, nickname, pass_hash, roles, active) VALUES(?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx,
		user.UserID, strings.ToLower(user.Email), user.Nickname, user.PassHash, joinRoles(user.Roles), user.Active)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, uniqueViolation(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) UserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.userBy(ctx, "storage.sqlite.UserByID", "user_id", userID)
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.userBy(ctx, "storage.sqlite.UserByEmail", "email", strings.ToLower(email))
}

func (s *Storage) UserByNickname(ctx context.Context, nickname string) (*models.User, error) {
	return s.userBy(ctx, "storage.sqlite.UserByNickname", "nickname", nickname)
}

func (s *Storage) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "storage.sqlite.EmailExists", "email", strings.ToLower(email))
}

func (s *Storage) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	return s.exists(ctx, "storage.sqlite.NicknameExists", "nickname", nickname)
}

// SetActive enables or disables a user.
func (s *Storage) SetActive(ctx context.Context, userID string, active bool) error {
	const op = "storage.sqlite.SetActive"

	res, err := s.db.ExecContext(ctx, "UPDATE users SET active = ? WHERE user_id = ?", active, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrUserNotFound)
	}

	return nil
}

// column is always one of the constants above, never user input.
func (s *Storage) userBy(ctx context.Context, op, column, value string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) exists(ctx context.Context, op, column, value string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM users WHERE "+column+" = ?", value).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

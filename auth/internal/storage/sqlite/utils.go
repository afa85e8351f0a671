package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/repository"
)

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var roles string

	err := row.Scan(&user.ID, &user.UserID, &user.Email, &user.Nickname, &user.PassHash, &roles, &user.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}

	user.Roles = splitRoles(roles)

	return &user, nil
}

func joinRoles(roles []models.Role) string {
	if len(roles) == 0 {
		return string(models.RoleUser)
	}

	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}

	return strings.Join(parts, ",")
}

func splitRoles(s string) []models.Role {
	parts := strings.Split(s, ",")

	roles := make([]models.Role, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, models.Role(p))
		}
	}

	if len(roles) == 0 {
		return []models.Role{models.RoleUser}
	}

	return roles
}

// uniqueViolation maps UNIQUE constraint failures to repository errors.
func uniqueViolation(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}

	msg := sqliteErr.Error()
	if !strings.Contains(msg, "UNIQUE") {
		return err
	}

	switch {
	case strings.Contains(msg, "users.email"):
		return repository.ErrEmailUnique
	case strings.Contains(msg, "users.nickname"):
		return repository.ErrUsernameUnique
	default:
		return repository.ErrUserExists
	}
}

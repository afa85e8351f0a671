package repository

import "errors"

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")

	ErrUsernameUnique = errors.New("nickname must be unique")
	ErrEmailUnique    = errors.New("email must be unique")

	ErrSessionNotFound = errors.New("session not found")
	ErrBlockNotFound   = errors.New("block record not found")
)

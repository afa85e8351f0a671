package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/password"
	"nodove/auth/internal/repository"
	"nodove/auth/internal/storage/sqlite"
)

func main() {
	var storagePath string
	var adminEmail, adminPassword, adminNickname string

	flag.StringVar(&storagePath, "storage-path", "", "path to the SQLite database")
	flag.StringVar(&adminEmail, "admin-email", "", "seed an ADMIN user with this email")
	flag.StringVar(&adminPassword, "admin-password", "", "password of the seeded ADMIN user")
	flag.StringVar(&adminNickname, "admin-nickname", "admin", "nickname of the seeded ADMIN user")
	flag.Parse()

	// env overrides flags
	if env := os.Getenv("STORAGE_PATH"); env != "" {
		storagePath = env
	}
	if env := os.Getenv("ADMIN_PASSWORD"); env != "" {
		adminPassword = env
	}

	if storagePath == "" {
		panic("storage-path is required (use -storage-path flag or STORAGE_PATH env)")
	}

	storage, err := sqlite.New(storagePath)
	if err != nil {
		panic(err)
	}
	defer storage.Close()

	changed, err := storage.Migrate()
	if err != nil {
		panic(err)
	}
	if changed {
		fmt.Println("migrations applied successfully")
	} else {
		fmt.Println("no migrations to apply")
	}

	if adminEmail == "" {
		return
	}
	if adminPassword == "" {
		panic("admin-password is required when admin-email is set")
	}

	created, err := seedAdmin(context.Background(), storage, adminEmail, adminNickname, adminPassword)
	if err != nil {
		panic(err)
	}
	if !created {
		fmt.Println("admin user already exists")
		return
	}

	fmt.Println("admin user created:", adminEmail)
}

func seedAdmin(ctx context.Context, users repository.UserRepository, email, nickname, pass string) (bool, error) {
	taken, err := users.EmailExists(ctx, email)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	hash, err := password.Hash(pass)
	if err != nil {
		return false, err
	}

	_, err = users.SaveUser(ctx, &models.User{
		UserID:   strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:    email,
		Nickname: nickname,
		PassHash: hash,
		Roles:    []models.Role{models.RoleAdmin},
		Active:   true,
	})
	if errors.Is(err, repository.ErrUsernameUnique) {
		return false, fmt.Errorf("nickname %q is taken: %w", nickname, err)
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

package main

import (
	"flag"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"nodove/auth/internal/config"
	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/token"
	"nodove/auth/pkg/utils"
)

// gentoken mints a development access token with the configured secrets.
// Pass --config (or CONFIG_PATH) as for the service.
func main() {
	var userID, email, nickname, roles string
	var refresh bool

	flag.StringVar(&userID, "user-id", "1", "userId claim")
	flag.StringVar(&email, "email", "admin@example.com", "email claim")
	flag.StringVar(&nickname, "nickname", "", "userNick claim")
	flag.StringVar(&roles, "roles", string(models.RoleAdmin), "comma separated roles")
	flag.BoolVar(&refresh, "refresh", false, "mint a refresh token instead")

	cfg := config.MustLoad()

	parsed, err := parseRoles(roles)
	if err != nil {
		panic(err)
	}

	codec, err := token.New(token.Options{
		Format:        token.Format(cfg.Token.Format),
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		ClockSkew:     cfg.Token.ClockSkew,
	})
	if err != nil {
		panic(err)
	}

	var tok string
	if refresh {
		tok, err = codec.IssueRefresh(userID)
	} else {
		tok, err = codec.IssueAccess(parsed, userID, email, nickname)
	}
	if err != nil {
		panic(fmt.Errorf("failed to issue token: %w", err))
	}

	fmt.Println(tok)
}

func parseRoles(s string) ([]models.Role, error) {
	var out []models.Role
	for _, r := range strings.Split(s, ",") {
		r = strings.TrimSpace(strings.ToUpper(r))
		if r == "" {
			continue
		}
		role := models.Role(r)
		if err := validation.Validate(role, validation.In(utils.GetValidRoles()...)); err != nil {
			return nil, fmt.Errorf("role %q: %w", r, err)
		}
		out = append(out, role)
	}
	return out, nil
}

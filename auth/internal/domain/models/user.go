package models

// Role is the authority granted to a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the identity record owned by the user directory.
// The token core only reads it.
type User struct {
	ID       int64
	UserID   string
	Email    string
	Nickname string
	PassHash string
	Roles    []Role
	Active   bool
}

// PrimaryRole returns the first role, which is the only one assigned today.
func (u *User) PrimaryRole() Role {
	if len(u.Roles) == 0 {
		return RoleUser
	}
	return u.Roles[0]
}

// HasAnyRole reports whether roles contains one of want.
func HasAnyRole(roles []Role, want ...Role) bool {
	for _, r := range roles {
		for _, w := range want {
			if r == w {
				return true
			}
		}
	}
	return false
}

// Credentials is a login request after transport decoding.
type Credentials struct {
	Email    string
	Password string
}

// ClientInfo describes the device a request comes from.
type ClientInfo struct {
	DeviceID  string
	IP        string
	UserAgent string
}

// Package users is the admin-only user management surface of the client.
package users

import (
	"context"
	"regexp"
	"strings"

	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
	"dnsmanager/internal/session"
)

// MainAdmin is the bootstrap account; it can never be deleted.
const MainAdmin = "admin"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// ValidateNew applies the account rules shared by client and service.
func ValidateNew(u model.NewUser) error {
	if u.Username == "" || u.Password == "" {
		return failure.Validation("Username and password are required")
	}
	if !usernamePattern.MatchString(u.Username) {
		return failure.Validation("Username must be 3-20 characters (letters, numbers, underscore)")
	}
	if len(u.Password) < 8 {
		return failure.Validation("Password must be at least 8 characters")
	}
	if u.Role != model.RoleAdmin && u.Role != model.RoleUser {
		return failure.Validation("Role must be admin or user")
	}
	return nil
}

type API interface {
	ListUsers(ctx context.Context, token string) ([]model.User, error)
	CreateUser(ctx context.Context, token string, u model.NewUser) error
	DeleteUser(ctx context.Context, token, username string) error
}

type Admin struct {
	api      API
	sessions *session.Manager
}

func NewAdmin(api API, sessions *session.Manager) *Admin {
	return &Admin{api: api, sessions: sessions}
}

// authorize returns the token of an admin session.
func (a *Admin) authorize() (string, model.Identity, error) {
	token, err := a.sessions.Token()
	if err != nil {
		return "", model.Identity{}, err
	}
	user, err := a.sessions.User()
	if err != nil {
		return "", model.Identity{}, err
	}
	if !user.IsAdmin() {
		return "", model.Identity{}, failure.Permission(failure.MsgAdminOnly)
	}
	return token, user, nil
}

func (a *Admin) List(ctx context.Context) ([]model.User, error) {
	token, _, err := a.authorize()
	if err != nil {
		return nil, err
	}
	users, err := a.api.ListUsers(ctx, token)
	if err != nil {
		return nil, a.sessions.Observe(ctx, err)
	}
	return users, nil
}

// Create adds an account. An empty role means "user".
func (a *Admin) Create(ctx context.Context, username, password, role string) error {
	token, _, err := a.authorize()
	if err != nil {
		return err
	}
	u := model.NewUser{Username: strings.TrimSpace(username), Password: password, Role: role}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if err := ValidateNew(u); err != nil {
		return err
	}
	return a.sessions.Observe(ctx, a.api.CreateUser(ctx, token, u))
}

// Delete removes an account. The main admin and the caller's own account
// are refused without contacting the service.
func (a *Admin) Delete(ctx context.Context, username string) error {
	token, me, err := a.authorize()
	if err != nil {
		return err
	}
	switch username {
	case MainAdmin:
		return failure.Permission("Cannot delete the main admin user")
	case me.Username:
		return failure.Permission("Cannot delete your own account")
	}
	return a.sessions.Observe(ctx, a.api.DeleteUser(ctx, token, username))
}

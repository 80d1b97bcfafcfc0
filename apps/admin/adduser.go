package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/user"
)

// addUser updates or creates a verified, active account. The -admin flag
// grants the super admin role.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	role := user.RoleUser
	if isAdmin {
		role = user.RoleSuperAdmin
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}

		now := time.Now().UTC()
		usr = user.User{
			Name:       name,
			Email:      email,
			Role:       role,
			Status:     user.StatusActive,
			IsVerified: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if usr.Name == "" {
			usr.Name = email
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}

	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	values := map[string]interface{}{
		"role":          role,
		"status":        user.StatusActive,
		"is_verified":   true,
		"password_hash": usr.PasswordHash,
		"updated_at":    time.Now().UTC(),
	}
	if name != "" {
		values["name"] = name
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr.ID, values)
	return err
}

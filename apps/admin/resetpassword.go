package main

import (
	"context"
	"time"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr.ID, map[string]interface{}{
		"password_hash": usr.PasswordHash,
		"updated_at":    time.Now().UTC(),
	})
	return err
}

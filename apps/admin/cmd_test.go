package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core/user"
	gormrepos "github.com/edusuite/usafiri/storage/database/gorm"
	testutil "github.com/edusuite/usafiri/tests"
)

func setup(t *testing.T) *commandLine {
	db := testutil.PrepareDB(t)
	return &commandLine{
		db:      db,
		usrRepo: gormrepos.NewUserRepository(db),
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate", args: []string{"migrate"}},
		{name: "adduser: no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "adduser: email but no password", args: []string{"adduser", "-email", "a@test.test"}, wantErr: errHelp},
		{name: "resetpassword: no args", args: []string{"resetpassword"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte("S3cur3!pass"), nil
	}

	// creates a verified, active super admin
	if err := cli.run([]string{"admin", "adduser", "-email", "Root@test.test", "-name", "Root", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: "root@test.test"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if usr.Role != user.RoleSuperAdmin || usr.Status != user.StatusActive || !usr.IsVerified {
		t.Errorf("addUser() = %+v; want active verified super admin", usr)
	}
	if err = usr.CheckPassword("S3cur3!pass"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	// running again updates the existing account instead of failing on the email
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte("N3w!password"), nil
	}
	if err = cli.run([]string{"admin", "adduser", "-email", "root@test.test"}); err != nil {
		t.Fatalf("cli.run() on existing user failed: %v", err)
	}
	refreshed, err := cli.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if refreshed.Role != user.RoleUser {
		t.Errorf("addUser() role = %s, want %s", refreshed.Role, user.RoleUser)
	}
	if err = refreshed.CheckPassword("N3w!password"); err != nil {
		t.Errorf("CheckPassword() after update failed: %v", err)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, cli.usrRepo, "Awe", "awe@test.test", "mdr", user.RoleUser, true)

	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte("lol"), nil
	}
	if err := cli.run([]string{"admin", "resetpassword", "-email", "ghost@test.test"}); errors.Cause(err) != user.ErrNotFound {
		t.Errorf("cli.run() error = %v, wantErr %v", err, user.ErrNotFound)
	}

	if err := cli.run([]string{"admin", "resetpassword", "-email", "awe@test.test"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	refreshed, err := cli.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if bytes.Equal(refreshed.PasswordHash, usr.PasswordHash) {
		t.Error("failed to update new password")
	}
}

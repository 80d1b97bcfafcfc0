package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core"
)

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrAlreadyVerified  = errors.New("user already verified")
	ErrNotVerified      = errors.New("please verify your email first")
	ErrAccountDisabled  = errors.New("account deactivated")
	ErrInvalidPassword  = errors.New("password incorrect")
	ErrInvalidToken     = errors.New("invalid or expired token")
	errTokenExpired     = errors.New("token expired")
	ErrCannotDeleteSelf = errors.New("cannot delete own account")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers returns the matching page of users and the total match count.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, int64, error)
		UpdateUser(ctx context.Context, id string, values map[string]interface{}) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string) (int, error)
	}

	ServiceInterface interface {
		Register(ctx context.Context, ru RegisterUser) (User, error)
		ConfirmEmail(ctx context.Context, ve VerifyEmail) error
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error

		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, int64, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func clean(s string, lower ...bool) string { return core.CleanString(s, lower...) }

// Register creates an unverified regular account and emails a verification link.
func (svc *Service) Register(ctx context.Context, ru RegisterUser) (User, error) {
	if err := svc.checkUniqueness(ctx, ru.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:          ru.Name,
		Email:         ru.Email,
		Role:          RoleUser,
		Status:        StatusActive,
		ContactNumber: ru.ContactNumber,
		Address:       ru.Address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(ru.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.sendVerificationEmail(usr)
	return usr, nil
}

// ConfirmEmail marks the account as verified when the token checks out.
func (svc *Service) ConfirmEmail(ctx context.Context, ve VerifyEmail) error {
	id, err := decodeUID(ve.UID)
	if err != nil {
		return ErrInvalidToken
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidToken
		}
		return err
	}
	if usr.IsVerified {
		return ErrAlreadyVerified
	}
	if err = verifyToken(svc.conf, usr, ve.Token, scopeEmailVerif); err != nil {
		return ErrInvalidToken
	}

	_, err = svc.repo.UpdateUser(ctx, usr.ID, map[string]interface{}{"is_verified": true})
	return err
}

// Authenticate checks the credentials of an active, verified account
// and records the login time.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: clean(email, true)})
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive() {
		return User{}, ErrAccountDisabled
	}
	if !usr.IsVerified {
		return User{}, ErrNotVerified
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidPassword
	}
	return svc.repo.UpdateUser(ctx, usr.ID, map[string]interface{}{"last_login": time.Now().UTC()})
}

// ChangePassword verifies the old password before setting the new one.
func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return core.NewValidationError(ErrInvalidPassword, core.FieldError{Field: "oldPassword", Error: ErrInvalidPassword.Error()})
	}
	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err := svc.repo.UpdateUser(ctx, usr.ID, map[string]interface{}{
		"password_hash":        usr.PasswordHash,
		"need_password_change": false,
	})
	return err
}

// RequestPasswordReset emails a reset link when an active account matches.
// ErrNotFound bubbles up so the API can hide it from the caller.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: clean(email, true)})
	if err != nil {
		return err
	}
	if !usr.IsActive() {
		return ErrNotFound
	}

	token, err := MakeToken(svc.conf, usr, scopePasswordReset)
	if err != nil {
		return errors.Wrap(err, "generating reset token")
	}
	link := fmt.Sprintf("%s/reset-password?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password reset",
		TextContent: fmt.Sprintf("Dear %s,\n\nFollow the link below to reset your password:\n%s\n\n"+
			"If you did not request this, you can safely ignore this email.", usr.Name, link),
		HTMLContent: fmt.Sprintf(
			`<p>Dear %s,</p><p>Click below to reset your password:</p><p><a href="%s">Reset Password</a></p>`,
			usr.Name, link),
	})
	return nil
}

// ResetPassword sets a new password when the reset token checks out.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return ErrInvalidToken
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidToken
		}
		return err
	}
	if err = verifyToken(svc.conf, usr, rp.Token, scopePasswordReset); err != nil {
		return ErrInvalidToken
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = svc.repo.UpdateUser(ctx, usr.ID, map[string]interface{}{
		"password_hash":        usr.PasswordHash,
		"need_password_change": false,
	})
	return err
}

// Create adds a user on behalf of an admin; the account is verified immediately
// and flagged for a password change on first login.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:               nu.Name,
		Email:              nu.Email,
		Role:               nu.Role,
		Status:             StatusActive,
		IsVerified:         true,
		NeedPasswordChange: true,
		ContactNumber:      nu.ContactNumber,
		Address:            nu.Address,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, int64, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: clean(email, true)})
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	values := make(map[string]interface{})
	if uu.Name != "" {
		values["name"] = uu.Name
	}
	if uu.Role != "" {
		values["role"] = uu.Role
	}
	if uu.Status != "" {
		values["status"] = uu.Status
	}
	if uu.ContactNumber != "" {
		values["contact_number"] = uu.ContactNumber
	}
	if uu.Address != "" {
		values["address"] = uu.Address
	}
	if uu.Password != "" {
		var usr User
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		values["password_hash"] = usr.PasswordHash
	}
	if len(values) == 0 {
		return svc.repo.GetUser(ctx, GetFilter{ID: id})
	}
	values["updated_at"] = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, id, values)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) sendVerificationEmail(usr User) {
	token, err := MakeToken(svc.conf, usr, scopeEmailVerif)
	if err != nil {
		return
	}
	link := fmt.Sprintf("%s/verify-email?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Verify your email address",
		TextContent: fmt.Sprintf("Welcome to %s, %s!\n\nPlease verify your email address to start your journey:\n%s",
			svc.conf.AppName, usr.Name, link),
		HTMLContent: fmt.Sprintf(
			`<div style="font-family: Arial, sans-serif; padding: 20px;">`+
				`<h2>Welcome to %s, %s!</h2>`+
				`<p>Please verify your email address to start your journey.</p>`+
				`<a href="%s">Verify Email</a></div>`,
			svc.conf.AppName, usr.Name, link),
	})
}

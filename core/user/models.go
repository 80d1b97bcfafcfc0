package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleUser       = "USER"
)

// Statuses
const (
	StatusActive  = "ACTIVE"
	StatusBlocked = "BLOCKED"
	StatusDeleted = "DELETED"
)

var (
	AllRoles    = []string{RoleSuperAdmin, RoleAdmin, RoleUser}
	AdminRoles  = []string{RoleSuperAdmin, RoleAdmin}
	AllStatuses = []string{StatusActive, StatusBlocked, StatusDeleted}
)

type User struct {
	ID                 string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name               string    `json:"name" gorm:"not null"`
	Email              string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash       []byte    `json:"-" gorm:"not null"`
	Role               string    `json:"role" gorm:"not null;default:USER"`
	Status             string    `json:"status" gorm:"not null;default:ACTIVE"`
	IsVerified         bool      `json:"isVerified" gorm:"not null;default:false"`
	NeedPasswordChange bool      `json:"needPasswordChange" gorm:"not null;default:false"`
	ContactNumber      string    `json:"contactNumber,omitempty"`
	Address            string    `json:"address,omitempty"`
	CreatedAt          time.Time `json:"createdAt"` // UTC
	UpdatedAt          time.Time `json:"updatedAt"` // UTC
	LastLogin          time.Time `json:"lastLogin"` // UTC
}

func (User) TableName() string { return "users" }

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// RegisterUser contains information needed for self-registration.
// Registered accounts always start as unverified regular users.
type RegisterUser struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
}

func (ru *RegisterUser) Clean() {
	ru.Name = clean(ru.Name)
	ru.Email = clean(ru.Email, true)
}

// NewUser contains information needed by an admin to create a new User.
type NewUser struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
	Role          string `json:"role" validate:"required,userrole"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
}

func (nu *NewUser) Clean() {
	nu.Name = clean(nu.Name)
	nu.Email = clean(nu.Email, true)
}

// UpdateUser contains admin-updatable User information.
// Zero-valued fields are left untouched.
type UpdateUser struct {
	Name          string `json:"name"`
	Role          string `json:"role" validate:"omitempty,userrole"`
	Status        string `json:"status" validate:"omitempty,userstatus"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
	Password      string `json:"password"`
}

func (uu *UpdateUser) Clean() {
	uu.Name = clean(uu.Name)
}

// ChangePassword is the payload for an authenticated password change.
type ChangePassword struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ResetUserPassword is the payload for a password reset confirmation.
type ResetUserPassword struct {
	UID      string `json:"uid" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmail is the payload for an email verification confirmation.
type VerifyEmail struct {
	UID   string `json:"uid" validate:"required"`
	Token string `json:"token" validate:"required"`
}

// QueryFilter applies an AND operation on available fields.
// Search does a case-insensitive match on one of User.Name or User.Email.
type QueryFilter struct {
	Search     string `query:"search"`
	Role       string `query:"role"`
	Status     string `query:"status"`
	IsVerified *bool  `query:"isVerified"`
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
}

func (f *QueryFilter) Clean() {
	f.Search = clean(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// GetFilter looks a User up by ID or Email; ID wins when both are set.
type GetFilter struct {
	ID    string
	Email string
}

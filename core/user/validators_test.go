package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/edusuite/usafiri/core"
)

func setUpValidators(t *testing.T) *validator.Validate {
	t.Helper()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestPasswordPolicy(t *testing.T) {
	validate := setUpValidators(t)

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1$", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123$", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", wantTag: pwdNotAllNumTag},
		{name: "no uppercase", pwd: "abcdef1$", wantTag: pwdComplexityTag},
		{name: "no digit", pwd: "Abcdefg$", wantTag: pwdComplexityTag},
		{name: "no special", pwd: "Abcdefg1", wantTag: pwdComplexityTag},
		{name: "similar to email", pwd: "Jdoe@test.test1", wantTag: pwdAttrSimTag},
		{name: "valid", pwd: "S3cur3!pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := RegisterUser{
				Name:     "John Doe",
				Email:    "jdoe@test.test",
				Password: tt.pwd,
			}
			err := validate.Struct(&data)

			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Struct() error = %v, want nil", err)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Struct() error = %v, want validator.ValidationErrors", err)
			}
			for _, vErr := range vErrs {
				if vErr.Tag() == tt.wantTag {
					return
				}
			}
			t.Errorf("Struct() errors = %v, want tag %q", vErrs, tt.wantTag)
		})
	}
}

func TestRoleAndStatusValidation(t *testing.T) {
	validate := setUpValidators(t)

	nu := NewUser{Name: "N", Email: "n@test.test", Password: "S3cur3!pass", Role: "OVERLORD"}
	if err := validate.Struct(&nu); err == nil {
		t.Error("Struct() expected an error for an unknown role")
	}
	nu.Role = RoleAdmin
	if err := validate.Struct(&nu); err != nil {
		t.Errorf("Struct() error = %v, want nil", err)
	}

	uu := UpdateUser{Status: "SLEEPING"}
	if err := validate.Struct(&uu); err == nil {
		t.Error("Struct() expected an error for an unknown status")
	}
	uu.Status = StatusBlocked
	if err := validate.Struct(&uu); err != nil {
		t.Errorf("Struct() error = %v, want nil", err)
	}
}

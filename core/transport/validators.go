package transport

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/edusuite/usafiri/core"
)

var (
	feeTypeTag    = "feetype"
	feeTypeText   = "invalid fee type"
	feeStatusTag  = "feestatus"
	feeStatusText = "invalid fee status"
)

// InitValidators registers this package's custom validations and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(feeTypeTag, feeTypeValidation)
	core.RegisterCustomTranslation(validate, translator, feeTypeTag, feeTypeText)

	_ = validate.RegisterValidation(feeStatusTag, feeStatusValidation)
	core.RegisterCustomTranslation(validate, translator, feeStatusTag, feeStatusText)
}

func feeTypeValidation(fl validator.FieldLevel) bool {
	t := fl.Field().String()
	for _, ft := range AllFeeTypes {
		if t == ft {
			return true
		}
	}
	return false
}

func feeStatusValidation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	for _, fs := range AllFeeStatuses {
		if s == fs {
			return true
		}
	}
	return false
}

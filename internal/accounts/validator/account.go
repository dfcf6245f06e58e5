package validator

import (
	"meetly/pkg/logger"
	"meetly/pkg/model"
	"meetly/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type AccountValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAccountValidator(log *logger.Logger) *AccountValidator {
	return &AccountValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *AccountValidator) ValidateInput(input *model.ConferencingAccountInput) error {
	return validation.Struct(v.validate, input)
}

func (v *AccountValidator) ValidateUpdate(update *model.ConferencingAccountUpdate) error {
	return validation.Struct(v.validate, update)
}

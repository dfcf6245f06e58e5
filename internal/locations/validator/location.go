package validator

import (
	"meetly/pkg/logger"
	"meetly/pkg/model"
	"meetly/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type LocationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLocationValidator(log *logger.Logger) *LocationValidator {
	return &LocationValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *LocationValidator) Validate(location *model.MeetingLocation) error {
	return validation.Struct(v.validate, location)
}

func (v *LocationValidator) ValidateUpdate(update *model.MeetingLocationUpdate) error {
	return validation.Struct(v.validate, update)
}

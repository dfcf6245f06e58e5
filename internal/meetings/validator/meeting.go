package validator

import (
	"meetly/pkg/logger"
	"meetly/pkg/model"
	"meetly/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type MeetingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewMeetingValidator(log *logger.Logger) *MeetingValidator {
	v := validation.New()

	if err := v.RegisterValidation("meeting_type", validateMeetingType); err != nil {
		log.Fatal("Failed to register 'meeting_type' validator",
			"error", err,
		)
	}
	if err := v.RegisterValidation("meeting_status", validateMeetingStatus); err != nil {
		log.Fatal("Failed to register 'meeting_status' validator",
			"error", err,
		)
	}

	log.Info("Meeting validator initialized successfully")

	return &MeetingValidator{
		validate: v,
		logger:   log,
	}
}

func validateMeetingType(fl validator.FieldLevel) bool {
	_, err := model.ParseMeetingType(fl.Field().String())
	return err == nil
}

func validateMeetingStatus(fl validator.FieldLevel) bool {
	_, err := model.ParseMeetingStatus(fl.Field().String())
	return err == nil
}

func (v *MeetingValidator) ValidateInput(input *model.MeetingInput) error {
	if err := validation.Struct(v.validate, input); err != nil {
		return err
	}

	t, _ := model.ParseMeetingType(input.Type)
	if t.RequiresLocation() && input.LocationID == "" {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "location_id",
				Message: "location_id is required for offline and hybrid meetings",
			},
		}
	}
	return nil
}

func (v *MeetingValidator) ValidateUpdate(update *model.MeetingUpdate) error {
	return validation.Struct(v.validate, update)
}

func (v *MeetingValidator) ValidateAttendance(input *model.AttendanceInput) error {
	return validation.Struct(v.validate, input)
}

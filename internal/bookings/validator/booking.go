package validator

import (
	"errors"
	"fmt"
	"strings"

	"coworking/internal/calendar"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("isodate", validateISODate); err != nil {
		log.Fatal("Failed to register 'isodate' validator",
			"error", err,
		)
	}

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := calendar.ParseDate(fl.Field().String())
	return err == nil
}

// ValidateReservation checks the request shape and the order of its dates.
// Lead time and bookability depend on the clock and storage and are checked
// by the service.
func (v *BookingValidator) ValidateReservation(req *model.ReservationRequest) error {
	if err := v.validateStruct(req); err != nil {
		return err
	}
	if _, err := calendar.ParseRange(req.Start, req.End); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "End",
				Message: "end must not be before start",
			},
		}
	}
	return nil
}

// ValidateQuote applies the reservation rules to a price quote request.
func (v *BookingValidator) ValidateQuote(req *model.QuoteRequest) error {
	return v.ValidateReservation(&model.ReservationRequest{
		ResourceID: req.ResourceID,
		Tier:       req.Tier,
		Start:      req.Start,
		End:        req.End,
	})
}

func (v *BookingValidator) ValidateRevalidation(req *model.RevalidationRequest) error {
	if err := v.validateStruct(req); err != nil {
		return err
	}

	var errs ValidationErrors
	for i, line := range req.Lines {
		if _, err := calendar.ParseRange(line.Start, line.End); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("Lines[%d].End", i),
				Message: "end must not be before start",
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *BookingValidator) ValidateOrderEvent(event *model.OrderEvent) error {
	if err := v.validateStruct(event); err != nil {
		return err
	}

	var errs ValidationErrors
	for i, line := range event.Lines {
		if line.Start == "" || line.End == "" {
			continue
		}
		if _, err := calendar.ParseRange(line.Start, line.End); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("Lines[%d].End", i),
				Message: "end must not be before start",
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *BookingValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must contain at least %s item(s)", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "isodate":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Namespace(),
			Message: message,
		})
	}

	return validationErrors
}

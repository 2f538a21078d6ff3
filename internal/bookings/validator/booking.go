package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

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

// Fields converts the errors to the details.fields payload of a VALIDATION_ERROR.
func (v ValidationErrors) Fields() []apperrors.FieldError {
	fields := make([]apperrors.FieldError, 0, len(v))
	for _, err := range v {
		fields = append(fields, apperrors.FieldError{Field: err.Field, Message: err.Message})
	}
	return fields
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterStructValidation(validateEquipmentSelection, model.EquipmentSelection{})

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// A full set and individual items cannot be rented together.
func validateEquipmentSelection(sl validator.StructLevel) {
	equipment, ok := sl.Current().Interface().(model.EquipmentSelection)
	if !ok {
		return
	}
	if equipment.Set && equipment.Itemised() {
		sl.ReportError(equipment.Set, "set", "Set", "equipment_exclusive", "")
	}
}

func (v *BookingValidator) Validate(req *model.CreateBookingRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateQuote(req *model.QuoteRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateReschedule(req *model.RescheduleBookingRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateRefund(req *model.RefundPaymentRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateGatewayResult(result *model.GatewayResult) error {
	return v.check(result)
}

func (v *BookingValidator) check(s any) error {
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
		field := fieldPath(err.Namespace())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", field)
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +85291234567)", field)
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", field, jsonName(err.Param()))
		case "equipment_exclusive":
			message = "equipment set cannot be combined with individual rackets or balls"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

// fieldPath drops the root struct name: "CreateBookingRequest.contact.phone" becomes "contact.phone".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func jsonName(goName string) string {
	switch goName {
	case "StartTime":
		return "start_time"
	case "EndTime":
		return "end_time"
	}
	return goName
}

package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

var courtCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,19}$`)

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

func (v ValidationErrors) Fields() []apperrors.FieldError {
	fields := make([]apperrors.FieldError, 0, len(v))
	for _, err := range v {
		fields = append(fields, apperrors.FieldError{Field: err.Field, Message: err.Message})
	}
	return fields
}

type CourtValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewCourtValidator(log *logger.Logger) *CourtValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("court_code", validateCourtCode); err != nil {
		log.Fatal("Failed to register 'court_code' validator", "error", err)
	}
	if err := v.RegisterValidation("clock_time", validateClockTime); err != nil {
		log.Fatal("Failed to register 'clock_time' validator", "error", err)
	}
	if err := v.RegisterValidation("weekday_set", validateWeekdaySet); err != nil {
		log.Fatal("Failed to register 'weekday_set' validator", "error", err)
	}
	if err := v.RegisterValidation("weekday_name", validateWeekdayName); err != nil {
		log.Fatal("Failed to register 'weekday_name' validator", "error", err)
	}
	v.RegisterStructValidation(validateCourtRules, model.Court{})

	log.Info("Court validator initialized successfully")

	return &CourtValidator{
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

func validateCourtCode(fl validator.FieldLevel) bool {
	return courtCodePattern.MatchString(fl.Field().String())
}

func validateClockTime(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 5 {
		return false
	}
	_, ok := model.ClockMinutes(s)
	return ok
}

// Days are Sunday=0 through Saturday=6 and may not repeat.
func validateWeekdaySet(fl validator.FieldLevel) bool {
	days, ok := fl.Field().Interface().([]int)
	if !ok || len(days) == 0 {
		return false
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			return false
		}
		seen[d] = true
	}
	return true
}

func validateWeekdayName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	_, ok := model.ParseWeekday(name)
	return ok && name == strings.ToLower(name)
}

func validateCourtRules(sl validator.StructLevel) {
	court, ok := sl.Current().Interface().(model.Court)
	if !ok {
		return
	}

	for day, hours := range court.OperatingHours {
		if !hours.IsOpen {
			continue
		}
		open, okOpen := model.ClockMinutes(hours.Open)
		closing, okClose := model.ClockMinutes(hours.Close)
		if !okOpen || !okClose || closing <= open {
			sl.ReportError(hours.Close, "operating_hours."+day+".close", "Close", "close_after_open", hours.Open)
		}
	}

	for i, rule := range court.PeakHours {
		start, okStart := model.ClockMinutes(rule.Start)
		end, okEnd := model.ClockMinutes(rule.End)
		if okStart && okEnd && end <= start {
			sl.ReportError(rule.End, fmt.Sprintf("peak_hours[%d].end", i), "End", "end_after_start", rule.Start)
		}
	}

	seen := make(map[float64]bool, len(court.BookingRules.CancellationPolicy))
	for i, tier := range court.BookingRules.CancellationPolicy {
		if seen[tier.HoursBefore] {
			sl.ReportError(tier.HoursBefore, fmt.Sprintf("booking_rules.cancellation_policy[%d].hours_before", i), "HoursBefore", "unique_tier", "")
		}
		seen[tier.HoursBefore] = true
	}
}

func (v *CourtValidator) Validate(court *model.Court) error {
	return v.check(court)
}

func (v *CourtValidator) ValidateUpdate(updates *model.CourtUpdate) error {
	return v.check(updates)
}

func (v *CourtValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *CourtValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "gtefield":
			message = fmt.Sprintf("%s must not be less than min_duration_minutes", field)
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid ID", field)
		case "iso4217":
			message = fmt.Sprintf("%s must be an ISO 4217 currency code", field)
		case "timezone":
			message = fmt.Sprintf("%s must be an IANA time zone", field)
		case "court_code":
			message = "code must be 2-20 uppercase letters, digits or dashes"
		case "clock_time":
			message = fmt.Sprintf("%s must be in HH:MM 24-hour format", field)
		case "weekday_set":
			message = fmt.Sprintf("%s must list distinct weekdays between 0 (Sunday) and 6 (Saturday)", field)
		case "weekday_name":
			message = "operating_hours keys must be lowercase weekday names (sunday-saturday)"
		case "close_after_open":
			message = fmt.Sprintf("%s must be a valid time after open (%s)", field, err.Param())
		case "end_after_start":
			message = fmt.Sprintf("%s must be after start (%s)", field, err.Param())
		case "unique_tier":
			message = fmt.Sprintf("%s repeats another tier", field)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

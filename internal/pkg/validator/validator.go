package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/zyra-ai/zyra/internal/domain/models"
)

var validate *validator.Validate

// cronParser accepts the classic five-field syntax used by workflow schedules.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("cron", validateCron)
	validate.RegisterValidation("schedule_type", validateScheduleType)
	validate.RegisterValidation("interval_unit", validateIntervalUnit)
}

func Get() *validator.Validate {
	return validate
}

func Validate(s interface{}) error {
	return validate.Struct(s)
}

func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}

// Custom validators

func validateCron(fl validator.FieldLevel) bool {
	expr := strings.TrimSpace(fl.Field().String())
	if len(strings.Fields(expr)) != 5 {
		return false
	}
	_, err := cronParser.Parse(expr)
	return err == nil
}

func validateScheduleType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.ScheduleTypeInterval, models.ScheduleTypeCron, models.ScheduleTypeOnce:
		return true
	}
	return false
}

func validateIntervalUnit(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.IntervalMinutes, models.IntervalHours, models.IntervalDays:
		return true
	}
	return false
}

// Error formatting
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func FormatErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, ValidationError{
				Field:   fieldPath(e.Namespace()),
				Message: formatMessage(e),
			})
		}
	}

	return errors
}

func formatMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "min", "gt":
		return "Value is too small"
	case "max":
		return "Value is too long"
	case "cron":
		return "Invalid cron expression (expected 5 fields: minute hour day month weekday)"
	case "schedule_type":
		return "Schedule type must be one of interval, cron, once"
	case "interval_unit":
		return "Interval unit must be one of minutes, hours, days"
	case "oneof":
		return "Value must be one of: " + e.Param()
	default:
		return "Invalid value"
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

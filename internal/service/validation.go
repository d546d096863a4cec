package service

import (
	"fmt"
	"reflect"
	"strings"

	"example.com/raceday/services/registration/internal/timing"

	"github.com/go-playground/validator/v10"
)

// EventInput carries the caller-supplied fields of an event write.
type EventInput struct {
	Title       string `json:"title" validate:"required"`
	Year        int    `json:"year" validate:"required,min=1990,max=2500"`
	NextStartNo int    `json:"next_start_no" validate:"required,min=1"`
}

// RunnerInput carries the caller-supplied fields of a runner write. Time
// is only honored on updates: nil means the field was omitted, an empty
// string means the caller explicitly cleared the time; both clear it.
type RunnerInput struct {
	StartNo   int     `json:"start_no" validate:"required,min=1"`
	Name      string  `json:"name" validate:"required,max=200"`
	Team      string  `json:"team" validate:"max=200"`
	Gender    string  `json:"gender" validate:"required,oneof=male female"`
	BirthYear int     `json:"birth_year" validate:"required,min=1900"`
	Race      string  `json:"race" validate:"required,oneof=6km 12km"`
	Time      *string `json:"time,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields under their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs tag validation and folds the result into a
// ValidationError with one message per offending field.
func checkStruct(s interface{}) *ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out := NewValidationError()
		out.Add("input", err.Error())
		return out
	}

	out := NewValidationError()
	for _, fe := range verrs {
		out.Add(fe.Field(), messageFor(fe))
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("is invalid (%s)", fe.Tag())
	}
}

// validateEventInput checks the field constraints of an event write.
func validateEventInput(input EventInput) *ValidationError {
	return checkStruct(input)
}

// validateRunnerInput checks the field constraints of a runner write and
// parses the time field if one was supplied. The parsed seconds are
// returned so the caller does not parse twice; nil means no time.
func validateRunnerInput(input RunnerInput) (*int, *ValidationError) {
	verr := checkStruct(input)

	var seconds *int
	if input.Time != nil && strings.TrimSpace(*input.Time) != "" {
		parsed, err := timing.Parse(*input.Time)
		if err != nil {
			if verr == nil {
				verr = NewValidationError()
			}
			verr.Add("time", "does not match [hh:]mm:ss")
		} else {
			seconds = parsed
		}
	}

	return seconds, verr
}

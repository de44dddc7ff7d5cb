package ingestion

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names so device authors recognise them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateTelemetry validates a telemetry message
func ValidateTelemetry(msg *TelemetryMessage) error {
	if err := validateStruct(msg); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		return &ValidationError{Field: "ts", Message: "ts is required"}
	}
	if gps := msg.GPS; gps != nil && (gps.Lat == nil) != (gps.Lng == nil) {
		return &ValidationError{Field: "gps", Message: "lat and lng must be sent together"}
	}
	return nil
}

// ValidateTripStart validates a trip start message
func ValidateTripStart(msg *TripStartMessage) error {
	if err := validateStruct(msg); err != nil {
		return err
	}
	if (msg.StartLat == nil) != (msg.StartLng == nil) {
		return &ValidationError{Field: "start_lat", Message: "start_lat and start_lng must be sent together"}
	}
	return nil
}

// ValidateTripEnd validates a trip end message
func ValidateTripEnd(msg *TripEndMessage) error {
	if err := validateStruct(msg); err != nil {
		return err
	}
	if (msg.EndLat == nil) != (msg.EndLng == nil) {
		return &ValidationError{Field: "end_lat", Message: "end_lat and end_lng must be sent together"}
	}
	return nil
}

// validateStruct runs the tag validator and reports the first failure as a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), rootName(fe.Namespace())+".")
	return &ValidationError{Field: field, Message: describe(fe)}
}

func rootName(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[:i]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "printascii":
		return fe.Field() + " must be printable ASCII"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

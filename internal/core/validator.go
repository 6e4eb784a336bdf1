package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"atbat/internal/types"
)

// Validator wraps go-playground/validator to register domain-specific rules
// and translate failures into *types.AppError values.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes one failing field of a request DTO.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult aggregates the field failures of one request.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
}

// IsValid reports whether no field failed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// fieldCodes maps JSON field names to their dedicated error codes. Fields
// not listed here report validation_invalid_request.
var fieldCodes = map[string]types.ErrorCode{
	"launch_speed": types.ErrCodeValidationLaunchSpeed,
	"launch_angle": types.ErrCodeValidationLaunchAngle,
	"bearing":      types.ErrCodeValidationBearing,
	"index":        types.ErrCodeValidationScenarioIndex,
}

// NewValidator creates a new Validator and registers custom validation tags:
//   - bearing: case-insensitive left/center/right.
//
// Field names in errors use the json tag so they match the request body.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("bearing", validateBearing); err != nil {
		logger.Error("failed to register bearing validator", "error", err)
	}

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

func validateBearing(fl validator.FieldLevel) bool {
	_, ok := types.ParseBearing(fl.Field().String())
	return ok
}

// Check runs struct validation and returns every failing field.
func (v *Validator) Check(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("struct validation could not run", "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationInvalidRequest),
			Message: "request could not be validated",
		}}}
	}

	result := ValidationResult{Errors: make([]ValidationError, 0, len(verrs))}
	for _, fe := range verrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    string(codeFor(fe)),
			Message: messageFor(fe),
		})
	}
	return result
}

// ValidateStruct validates s and returns nil or a *types.AppError. The
// error code is that of the first failing field; all failures are listed
// under details["fields"].
func (v *Validator) ValidateStruct(s any) error {
	result := v.Check(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"fields": result.Errors},
	)
}

func codeFor(fe validator.FieldError) types.ErrorCode {
	if fe.Tag() == "required" {
		return types.ErrCodeValidationMissingField
	}
	if code, ok := fieldCodes[fe.Field()]; ok {
		return code
	}
	return types.ErrCodeValidationInvalidRequest
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "bearing":
		return fmt.Sprintf("%s must be one of Left, Center, Right", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

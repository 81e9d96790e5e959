package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/tensai-22/penal-sub001/internal/urgency"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// report fields by their JSON name when they have one
	Validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	if err := Validate.RegisterValidation("sort_strategy", validateSortStrategy); err != nil {
		panic(fmt.Sprintf("failed to register sort_strategy validator: %v", err))
	}
	if err := Validate.RegisterValidation("urgency_class", validateUrgencyClass); err != nil {
		panic(fmt.Sprintf("failed to register urgency_class validator: %v", err))
	}
}

// validateSortStrategy accepts "diff" and "label"
func validateSortStrategy(fl validator.FieldLevel) bool {
	return ValidateSortStrategy(fl.Field().String()) == nil
}

// validateUrgencyClass accepts any urgency class name
func validateUrgencyClass(fl validator.FieldLevel) bool {
	return ValidateUrgencyClass(fl.Field().String()) == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateSortStrategy validates a sort strategy name
func ValidateSortStrategy(value string) error {
	if _, err := urgency.ParseSortStrategy(value); err != nil {
		return fmt.Errorf("invalid sort: %s (must be 'diff' or 'label')", value)
	}
	return nil
}

// ValidateUrgencyClass validates an urgency class name
func ValidateUrgencyClass(value string) error {
	for _, c := range urgency.Classes {
		if string(c) == value {
			return nil
		}
	}
	return fmt.Errorf("invalid class: %s", value)
}

// FieldErrors flattens validator errors into field: tag messages
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			out["_"] = err.Error()
		}
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

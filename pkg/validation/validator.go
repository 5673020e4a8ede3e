package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// MaxNodeIDLength bounds node identities accepted from clients.
	MaxNodeIDLength = 256

	nodeIDPattern = regexp.MustCompile(`^[\p{L}\p{N}_.:@#/+-]+$`)
)

func init() {
	validate = validator.New()
}

// Struct validates a struct against its `validate` tags.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateNodeID checks a node identity received from a client.
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("node id cannot be empty")
	}
	if !utf8.ValidString(id) {
		return errors.New("node id must be valid UTF-8")
	}
	if len(id) > MaxNodeIDLength {
		return fmt.Errorf("node id exceeds maximum length of %d bytes", MaxNodeIDLength)
	}
	if !nodeIDPattern.MatchString(id) {
		return fmt.Errorf("node id %q contains invalid characters", id)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly
// format, one line per failed field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: field is required", field))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s", field, param))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s: must not exceed %s", field, param))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s: must be greater than %s", field, param))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s: must be a valid URL", field))
		case "startswith":
			msgs = append(msgs, fmt.Sprintf("%s: must start with %q", field, param))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s]", field, param))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

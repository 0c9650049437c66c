package validator

import (
	"mime"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagIdentifier   = "identifier"   // Document/workspace/subject identifier (1-64 chars of [A-Za-z0-9._:-])
	TagMimeType     = "mimetype"     // Media type such as text/plain or application/pdf, parameters allowed
	TagNotBlank     = "notblank"     // String must contain a non-whitespace character
	TagNoWhitespace = "nowhitespace" // No whitespace characters
	TagTrimmed      = "trimmed"      // String should be trimmed (no leading/trailing spaces)
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,63}$`)

// registerCustomRules registers all custom validation rules.
func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagIdentifier, validateIdentifier)
	_ = v.validate.RegisterValidation(TagMimeType, validateMimeType)
	_ = v.validate.RegisterValidation(TagNotBlank, validateNotBlank)
	_ = v.validate.RegisterValidation(TagNoWhitespace, validateNoWhitespace)
	_ = v.validate.RegisterValidation(TagTrimmed, validateTrimmed)
}

// validateIdentifier validates ids used as primary keys and vector store filter values.
func validateIdentifier(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return identifierRegex.MatchString(value)
}

// validateMimeType validates a media type, e.g. "text/plain; charset=utf-8".
func validateMimeType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(value)
	return err == nil && strings.Contains(mt, "/")
}

// validateNotBlank rejects whitespace-only strings. Empty strings are left to 'required'.
func validateNotBlank(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return strings.TrimSpace(value) != ""
}

// validateNoWhitespace validates that string contains no whitespace.
func validateNoWhitespace(fl validator.FieldLevel) bool {
	for _, char := range fl.Field().String() {
		if unicode.IsSpace(char) {
			return false
		}
	}
	return true
}

// validateTrimmed validates that string has no leading/trailing whitespace.
func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == strings.TrimSpace(value)
}

package validator

import (
	"strings"
)

// ValidationErrors collects translated field errors of one validation pass.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string `json:"field"`           // JSON name of the field
	Tag     string `json:"tag"`             // failing rule
	Param   string `json:"param,omitempty"` // rule parameter, e.g. "255" for max=255
	Message string `json:"message"`
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return "validation failed: " + strings.Join(v.Messages(), "; ")
}

// HasErrors returns true if there are validation errors.
func (v *ValidationErrors) HasErrors() bool {
	return v != nil && len(v.Errors) > 0
}

// Count returns the number of validation errors.
func (v *ValidationErrors) Count() int {
	if v == nil {
		return 0
	}
	return len(v.Errors)
}

// First returns the first error message, or "" when there is none.
func (v *ValidationErrors) First() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Message
}

// FirstField returns the first failing field, or "" when there is none.
func (v *ValidationErrors) FirstField() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Field
}

// Messages returns all error messages in order.
func (v *ValidationErrors) Messages() []string {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	messages := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		messages[i] = fe.Message
	}
	return messages
}

// ForField returns all error messages for a specific field.
func (v *ValidationErrors) ForField(field string) []string {
	if v == nil {
		return nil
	}
	var messages []string
	for _, fe := range v.Errors {
		if fe.Field == field {
			messages = append(messages, fe.Message)
		}
	}
	return messages
}

// Append adds a field error to the collection.
func (v *ValidationErrors) Append(field, tag, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Tag: tag, Message: message})
}

// Package validator wraps go-playground/validator with a global instance,
// custom rules for request identifiers and media types, and translated
// (en/zh) error messages.
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Language constants for i18n support.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator wraps go-playground/validator with additional features.
type Validator struct {
	validate *validator.Validate
	uni      *ut.UniversalTranslator
	trans    map[string]ut.Translator
	mu       sync.RWMutex
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global returns the global validator instance.
// It initializes the validator on first call with default settings.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a new Validator instance with default configuration.
func New() *Validator {
	v := &Validator{
		validate: validator.New(),
		trans:    make(map[string]ut.Translator),
	}

	// Use JSON tag names for error field names
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Initialize universal translator
	enLocale := en.New()
	zhLocale := zh.New()
	v.uni = ut.New(enLocale, enLocale, zhLocale)

	// Register English translations
	enTrans, _ := v.uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	// Register Chinese translations
	zhTrans, _ := v.uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	// Register custom validation rules
	v.registerCustomRules()

	// Register custom translations
	v.registerCustomTranslations()

	return v
}

// ValidateWithLang validates a struct and returns translated validation errors.
func (v *Validator) ValidateWithLang(s interface{}, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		// nil or non-struct input
		errs := &ValidationErrors{}
		errs.Append("", "invalid", err.Error())
		return errs
	}
	return v.translateErrors(validationErrors, v.GetTranslator(lang))
}

// ValidateVar validates a single variable.
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// GetTranslator returns a translator for the specified language.
func (v *Validator) GetTranslator(lang string) ut.Translator {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if trans, ok := v.trans[lang]; ok {
		return trans
	}
	// Default to English
	return v.trans[LangEN]
}

// translateErrors translates validation errors to human-readable messages.
func (v *Validator) translateErrors(errs validator.ValidationErrors, trans ut.Translator) *ValidationErrors {
	result := &ValidationErrors{
		Errors: make([]FieldError, 0, len(errs)),
	}

	for _, err := range errs {
		fe := FieldError{
			Field:   err.Field(),
			Tag:     err.Tag(),
			Param:   err.Param(),
			Message: err.Translate(trans),
		}
		result.Errors = append(result.Errors, fe)
	}

	return result
}

// Var validates a single variable (convenience wrapper for global validator).
func Var(field interface{}, tag string) error {
	return Global().ValidateVar(field, tag)
}

// StructWithLang validates a struct with the global validator and translates
// the errors into lang.
func StructWithLang(s interface{}, lang string) *ValidationErrors {
	return Global().ValidateWithLang(s, lang)
}

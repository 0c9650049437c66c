package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// registerCustomTranslations registers translations for custom validation rules.
func (v *Validator) registerCustomTranslations() {
	if enTrans := v.GetTranslator(LangEN); enTrans != nil {
		v.registerAll(enTrans, map[string]string{
			TagIdentifier:   "{0} must be 1-64 letters, digits, '.', '_', ':' or '-'",
			TagMimeType:     "{0} must be a valid media type such as text/plain",
			TagNotBlank:     "{0} must not be blank",
			TagNoWhitespace: "{0} must not contain whitespace characters",
			TagTrimmed:      "{0} must not have leading or trailing spaces",
		})
	}

	if zhTrans := v.GetTranslator(LangZH); zhTrans != nil {
		v.registerAll(zhTrans, map[string]string{
			TagIdentifier:   "{0}只能包含1-64个字母、数字、'.'、'_'、':'或'-'",
			TagMimeType:     "{0}必须是有效的媒体类型，例如text/plain",
			TagNotBlank:     "{0}不能为空白",
			TagNoWhitespace: "{0}不能包含空白字符",
			TagTrimmed:      "{0}不能有前导或尾随空格",
		})
	}
}

func (v *Validator) registerAll(trans ut.Translator, translations map[string]string) {
	for tag, message := range translations {
		registerTranslation(v.validate, trans, tag, message)
	}
}

// registerTranslation registers a single translation.
func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}

// RegisterTranslation registers a single translation override.
func (v *Validator) RegisterTranslation(lang, tag, message string) {
	trans := v.GetTranslator(lang)
	if trans == nil {
		return
	}
	registerTranslation(v.validate, trans, tag, message)
}

package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// customMessages 自定义规则在各语言下的提示，{0} 为字段名。
var customMessages = map[string]map[string]string{
	LangEN: {
		TagCollection:  "{0} may only contain letters, numbers, underscores and hyphens",
		TagPDFFilename: "{0} must be a .pdf file name made of letters, numbers, dots, underscores and hyphens",
		TagNotBlank:    "{0} must not be blank",
	},
	LangZH: {
		TagCollection:  "{0}只能包含字母、数字、下划线和连字符",
		TagPDFFilename: "{0}必须是以.pdf结尾的文件名，且只能包含字母、数字、点、下划线和连字符",
		TagNotBlank:    "{0}不能为空白",
	},
}

func (v *Validator) registerCustomTranslations() {
	for lang, messages := range customMessages {
		trans := v.GetTranslator(lang)
		if trans == nil {
			continue
		}
		for tag, msg := range messages {
			_ = v.validate.RegisterTranslation(tag, trans, addMessage(tag, msg), translate(tag))
		}
	}
}

func addMessage(tag, msg string) validator.RegisterTranslationsFunc {
	return func(t ut.Translator) error { return t.Add(tag, msg, true) }
}

func translate(tag string) validator.TranslationFunc {
	return func(t ut.Translator, fe validator.FieldError) string {
		s, _ := t.T(tag, fe.Field())
		return s
	}
}

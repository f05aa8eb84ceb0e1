// Package validator 基于 go-playground/validator 提供统一的请求校验组件，
// 包含全局实例、RAG 自定义规则以及中英文错误消息。
package validator

import (
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

// Validator wraps go-playground/validator with translators and custom rules.
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

// Global returns the process-wide validator, creating it on first use.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a Validator with en/zh translations and the custom rules registered.
func New() *Validator {
	v := &Validator{
		validate: validator.New(),
		trans:    make(map[string]ut.Translator),
	}

	// 错误中的字段名使用 json/form 标签
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

	enLocale := en.New()
	v.uni = ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := v.uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := v.uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	v.registerCustomRules()
	v.registerCustomTranslations()

	return v
}

// Validate validates a struct.
func (v *Validator) Validate(s any) error {
	return v.validate.Struct(s)
}

// ValidateWithLang validates a struct and returns translated errors, nil when valid.
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	return v.translate(v.validate.Struct(s), "unknown", "unknown", lang)
}

// ValidateVar validates a single variable.
func (v *Validator) ValidateVar(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// ValidateVarWithLang validates a single variable and returns translated errors.
func (v *Validator) ValidateVarWithLang(field any, tag, lang string) *ValidationErrors {
	return v.translate(v.validate.Var(field, tag), "value", tag, lang)
}

func (v *Validator) translate(err error, field, tag, lang string) *ValidationErrors {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewValidationError(field, tag, err.Error())
	}

	trans := v.GetTranslator(lang)
	result := &ValidationErrors{Errors: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		result.Errors = append(result.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return result
}

// GetTranslator returns the translator for lang, falling back to English.
// lang may be an Accept-Language value such as "zh-CN,zh;q=0.9".
func (v *Validator) GetTranslator(lang string) ut.Translator {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if trans, ok := v.trans[normalizeLang(lang)]; ok {
		return trans
	}
	return v.trans[LangEN]
}

// RegisterValidationWithTranslation registers a custom rule together with its messages per language.
func (v *Validator) RegisterValidationWithTranslation(tag string, fn validator.Func, translations map[string]string) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return err
	}
	for lang, message := range translations {
		_ = v.validate.RegisterTranslation(tag, v.GetTranslator(lang), addMessage(tag, message), translate(tag))
	}
	return nil
}

// Engine returns the underlying validator.Validate instance.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if strings.HasPrefix(lang, LangZH) {
		return LangZH
	}
	return LangEN
}

// Struct validates s with the global validator.
func Struct(s any) error {
	return Global().Validate(s)
}

// StructWithLang validates s with the global validator and translates the errors.
func StructWithLang(s any, lang string) *ValidationErrors {
	return Global().ValidateWithLang(s, lang)
}

// Var validates a single variable with the global validator.
func Var(field any, tag string) error {
	return Global().ValidateVar(field, tag)
}

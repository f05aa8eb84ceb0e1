package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagCollection  = "collection"  // 集合名：字母、数字、下划线、连字符
	TagPDFFilename = "pdffilename" // 上传文件名：字母、数字、点、下划线、连字符，以 .pdf 结尾
	TagNotBlank    = "notblank"    // 去除首尾空白后非空
)

var (
	collectionRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	pdfFilenameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+\.pdf$`)
)

// unsafeQueryChars are removed from questions before they reach the prompt.
const unsafeQueryChars = `<>"';`

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagCollection, validateCollection)
	_ = v.validate.RegisterValidation(TagPDFFilename, validatePDFFilename)
	_ = v.validate.RegisterValidation(TagNotBlank, validateNotBlank)
}

// validateCollection accepts empty values so that optional collection fields
// fall back to the default collection.
func validateCollection(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return collectionRegex.MatchString(value)
}

func validatePDFFilename(fl validator.FieldLevel) bool {
	return pdfFilenameRegex.MatchString(fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// IsCollectionName reports whether name is a valid collection name.
func IsCollectionName(name string) bool {
	return collectionRegex.MatchString(name)
}

// SanitizeQuery trims a question and strips the characters < > " ' ;.
func SanitizeQuery(q string) string {
	q = strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeQueryChars, r) {
			return -1
		}
		return r
	}, q)
	return strings.TrimSpace(q)
}

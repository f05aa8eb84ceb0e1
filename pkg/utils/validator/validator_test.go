package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryRequest struct {
	Query          string `json:"query" validate:"notblank,max=1000"`
	TopK           int    `json:"top_k" validate:"min=1,max=20"`
	CollectionName string `json:"collection_name" validate:"omitempty,collection"`
}

func TestGlobal(t *testing.T) {
	assert.Same(t, Global(), Global())
}

func TestCollectionRule(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"simple", "documents", false},
		{"mixed", "My_docs-2", false},
		{"space", "my docs", true},
		{"dot", "a.b", true},
		{"slash", "a/b", true},
		{"unicode", "文档", true},
	}
	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateVar(tt.value, TagCollection)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestPDFFilenameRule(t *testing.T) {
	v := New()
	assert.NoError(t, v.ValidateVar("report_2024-v1.pdf", TagPDFFilename))
	assert.Error(t, v.ValidateVar("report.PDF", TagPDFFilename))
	assert.Error(t, v.ValidateVar("notes.txt", TagPDFFilename))
	assert.Error(t, v.ValidateVar("../etc/passwd.pdf", TagPDFFilename))
	assert.Error(t, v.ValidateVar("my report.pdf", TagPDFFilename))
}

func TestValidateWithLang(t *testing.T) {
	v := New()

	assert.Nil(t, v.ValidateWithLang(queryRequest{Query: "hi", TopK: 5}, LangEN))

	errs := v.ValidateWithLang(queryRequest{Query: "  ", TopK: 21, CollectionName: "bad name"}, LangEN)
	require.True(t, errs.HasErrors())
	assert.Len(t, errs.Errors, 3)
	assert.Equal(t, []string{"query must not be blank"}, errs.ForField("query"))
	assert.NotEmpty(t, errs.ForField("top_k"))
	assert.Equal(t, []string{"collection_name may only contain letters, numbers, underscores and hyphens"},
		errs.ForField("collection_name"))
	assert.Contains(t, errs.Error(), "validation failed: ")

	zh := v.ValidateWithLang(queryRequest{Query: "x", TopK: 1, CollectionName: "a b"}, "zh-CN,zh;q=0.9")
	require.True(t, zh.HasErrors())
	assert.Equal(t, "collection_name只能包含字母、数字、下划线和连字符", zh.First())
}

func TestSanitizeQuery(t *testing.T) {
	assert.Equal(t, "scriptalert(1)/script", SanitizeQuery(` <script>alert(1)</script> `))
	assert.Equal(t, "whats up", SanitizeQuery(`what's up;`))
	assert.Empty(t, SanitizeQuery(`"';`))
}

func TestValidationErrorsNil(t *testing.T) {
	var errs *ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Empty(t, errs.Error())
	assert.Empty(t, errs.First())
	assert.Nil(t, errs.Messages())
}

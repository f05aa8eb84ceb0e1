package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Empty(t, o.Validate())
	assert.Equal(t, "documents", o.Collection)
	assert.Equal(t, 1000, o.ChunkSize)
	assert.Equal(t, 150, o.ChunkOverlap)
	assert.Equal(t, int64(50<<20), o.MaxUploadSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"overlap equals size", func(o *Options) { o.ChunkOverlap = o.ChunkSize }, "must be smaller than rag.chunk-size"},
		{"zero chunk size", func(o *Options) { o.ChunkSize = 0 }, "rag.chunk-size must be positive"},
		{"negative overlap", func(o *Options) { o.ChunkOverlap = -1 }, "rag.chunk-overlap must not be negative"},
		{"top-k too large", func(o *Options) { o.TopK = 21 }, "rag.top-k"},
		{"bad collection", func(o *Options) { o.Collection = "my docs" }, "rag.collection"},
		{"upload size", func(o *Options) { o.MaxUploadSize = 0 }, "rag.max-upload-size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			errs := o.Validate()
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0].Error(), tt.want)
		})
	}
}

func TestCompleteFillsRetriesAndSources(t *testing.T) {
	o := NewOptions()
	o.QueryRetries = 0
	o.ContextSources = 0
	require.NoError(t, o.Complete())
	assert.Equal(t, 1, o.QueryRetries)
	assert.Equal(t, 5, o.ContextSources)
}

func TestValidCollectionName(t *testing.T) {
	assert.True(t, ValidCollectionName("research_papers-2024"))
	assert.False(t, ValidCollectionName(""))
	assert.False(t, ValidCollectionName("../etc"))
}

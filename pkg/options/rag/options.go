// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"regexp"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// collectionPattern 集合名称只允许字母、数字、下划线和连字符。
var collectionPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Options contains RAG-specific configuration.
type Options struct {
	// Collection is the default collection used when a request names none.
	Collection string `json:"collection" mapstructure:"collection"`

	// ChunkSize is the size of text chunks, in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the default number of sources returned from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ContextSources 拼接到 prompt 中的最大来源数量。
	ContextSources int `json:"context-sources" mapstructure:"context-sources"`

	// MaxUploadSize 单个上传文件的最大字节数。
	MaxUploadSize int64 `json:"max-upload-size" mapstructure:"max-upload-size"`

	// QueryRetries 查询入口对瞬时故障的最大尝试次数。
	QueryRetries int `json:"query-retries" mapstructure:"query-retries"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Collection:     "documents",
		ChunkSize:      1000,
		ChunkOverlap:   150,
		TopK:           5,
		ContextSources: 5,
		MaxUploadSize:  50 << 20,
		QueryRetries:   3,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Default collection name.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between chunks in characters.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Default number of results from similarity search.")
	fs.IntVar(&o.ContextSources, p+"context-sources", o.ContextSources, "Maximum number of sources placed in the prompt context.")
	fs.Int64Var(&o.MaxUploadSize, p+"max-upload-size", o.MaxUploadSize, "Maximum size of an uploaded PDF in bytes.")
	fs.IntVar(&o.QueryRetries, p+"query-retries", o.QueryRetries, "Attempts for a query hitting transient backend failures.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if !collectionPattern.MatchString(o.Collection) {
		errs = append(errs, fmt.Errorf("rag.collection %q must match %s", o.Collection, collectionPattern))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must not be negative"))
	}
	if o.ChunkSize > 0 && o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap (%d) must be smaller than rag.chunk-size (%d)", o.ChunkOverlap, o.ChunkSize))
	}
	if o.TopK < 1 || o.TopK > 20 {
		errs = append(errs, fmt.Errorf("rag.top-k must be within [1, 20]"))
	}
	if o.ContextSources <= 0 {
		errs = append(errs, fmt.Errorf("rag.context-sources must be positive"))
	}
	if o.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-upload-size must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.ContextSources <= 0 {
		o.ContextSources = 5
	}
	if o.QueryRetries <= 0 {
		o.QueryRetries = 1
	}
	return nil
}

// ValidCollectionName reports whether name is a legal collection name.
func ValidCollectionName(name string) bool {
	return collectionPattern.MatchString(name)
}

// Package options contains flags and options for initializing the pdfrag server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/pdfrag/internal/rag"
	"github.com/kart-io/pdfrag/pkg/infra/app"
	cacheopts "github.com/kart-io/pdfrag/pkg/options/cache"
	httpopts "github.com/kart-io/pdfrag/pkg/options/http"
	llmopts "github.com/kart-io/pdfrag/pkg/options/llm"
	logopts "github.com/kart-io/pdfrag/pkg/options/logger"
	milvusopts "github.com/kart-io/pdfrag/pkg/options/milvus"
	postgresopts "github.com/kart-io/pdfrag/pkg/options/postgres"
	qdrantopts "github.com/kart-io/pdfrag/pkg/options/qdrant"
	ragopts "github.com/kart-io/pdfrag/pkg/options/rag"
	tracingopts "github.com/kart-io/pdfrag/pkg/options/tracing"
	vectoropts "github.com/kart-io/pdfrag/pkg/options/vector"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server and middleware configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// VectorOptions selects the vector index backend.
	VectorOptions *vectoropts.Options `json:"vector" mapstructure:"vector"`

	// QdrantOptions contains Qdrant configuration.
	QdrantOptions *qdrantopts.Options `json:"qdrant" mapstructure:"qdrant"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// PostgresOptions contains PostgreSQL (pgvector) configuration.
	PostgresOptions *postgresopts.Options `json:"postgres" mapstructure:"postgres"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"llm" mapstructure:"llm"`

	// RAGOptions contains RAG-specific configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// CacheOptions contains embedding cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		VectorOptions:    vectoropts.NewOptions(),
		QdrantOptions:    qdrantopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		PostgresOptions:  postgresopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.VectorOptions.AddFlags(fss.FlagSet("vector"))
	o.QdrantOptions.AddFlags(fss.FlagSet("qdrant"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("llm"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	// embedding 未配置的连接参数沿用 llm
	if err := o.EmbeddingOptions.Complete(o.ChatOptions); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
// Only the options of the selected vector backend are validated.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.VectorOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	switch o.VectorOptions.Backend {
	case vectoropts.BackendQdrant:
		errs = append(errs, o.QdrantOptions.Validate()...)
	case vectoropts.BackendMilvus:
		errs = append(errs, o.MilvusOptions.Validate()...)
	case vectoropts.BackendPGVector:
		errs = append(errs, o.PostgresOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		TracingOptions:   o.TracingOptions,
		VectorOptions:    o.VectorOptions,
		QdrantOptions:    o.QdrantOptions,
		MilvusOptions:    o.MilvusOptions,
		PostgresOptions:  o.PostgresOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		CacheOptions:     o.CacheOptions,
	}, nil
}

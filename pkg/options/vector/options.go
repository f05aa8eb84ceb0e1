// Package vector provides options for selecting and tuning the vector index backend.
package vector

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Backend names a vector index implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendBolt     Backend = "bolt"
	BackendQdrant   Backend = "qdrant"
	BackendMilvus   Backend = "milvus"
	BackendPGVector Backend = "pgvector"
)

// Options configures the vector index.
type Options struct {
	// Backend selects the implementation; resolved once at startup.
	Backend Backend `json:"backend" mapstructure:"backend"`

	// Dimension overrides the embedding dimension. 0 infers it from the embedding model name.
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Timeout bounds every index call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// BoltPath is the database file used by the bolt backend.
	BoltPath string `json:"bolt-path" mapstructure:"bolt-path"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend:  BackendQdrant,
		Timeout:  30 * time.Second,
		BoltPath: "data/pdfrag.db",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "vector."
	fs.StringVar((*string)(&o.Backend), p+"backend", string(o.Backend), "Vector index backend (memory, bolt, qdrant, milvus, pgvector).")
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension; 0 infers it from the embedding model.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Timeout applied to every vector index call.")
	fs.StringVar(&o.BoltPath, p+"bolt-path", o.BoltPath, "Database file for the bolt backend.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendMemory, BackendQdrant, BackendMilvus, BackendPGVector:
	case BackendBolt:
		if o.BoltPath == "" {
			errs = append(errs, fmt.Errorf("vector.bolt-path is required for the bolt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector.backend %q is not supported", o.Backend))
	}
	if o.Dimension < 0 {
		errs = append(errs, fmt.Errorf("vector.dimension must not be negative"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("vector.timeout must be positive"))
	}
	return errs
}

// Package postgres provides PostgreSQL connection options for the pgvector backend.
package postgres

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines configuration options for PostgreSQL.
type Options struct {
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	SSLMode               string        `json:"ssl-mode" mapstructure:"ssl-mode"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	// LogLevel is the gorm log level: 1 silent, 2 error, 3 warn, 4 info.
	LogLevel int `json:"log-level" mapstructure:"log-level"`
	// TablePrefix is prepended to the collection name to form the table name.
	TablePrefix string `json:"table-prefix" mapstructure:"table-prefix"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                  "127.0.0.1",
		Port:                  5432,
		Username:              "postgres",
		Database:              "pdfrag",
		SSLMode:               "disable",
		MaxIdleConnections:    10,
		MaxOpenConnections:    100,
		MaxConnectionLifeTime: 10 * time.Minute,
		LogLevel:              1,
		TablePrefix:           "rag_",
	}
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("postgres.host must not be empty"))
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("postgres.database must not be empty"))
	}
	if o.LogLevel < 1 || o.LogLevel > 4 {
		errs = append(errs, fmt.Errorf("postgres.log-level must be between 1 and 4"))
	}
	switch o.SSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		errs = append(errs, fmt.Errorf("postgres.ssl-mode %q is not supported", o.SSLMode))
	}
	return errs
}

// AddFlags adds flags for PostgreSQL options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "postgres."
	fs.StringVar(&o.Host, p+"host", o.Host, "PostgreSQL host")
	fs.IntVar(&o.Port, p+"port", o.Port, "PostgreSQL port")
	fs.StringVar(&o.Username, p+"username", o.Username, "PostgreSQL username")
	fs.StringVar(&o.Password, p+"password", o.Password, "PostgreSQL password; prefer PDFRAG_POSTGRES_PASSWORD")
	fs.StringVar(&o.Database, p+"database", o.Database, "PostgreSQL database")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "PostgreSQL max idle connections")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "PostgreSQL max open connections")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "PostgreSQL max connection life time")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "Gorm log level (1 silent, 2 error, 3 warn, 4 info)")
	fs.StringVar(&o.TablePrefix, p+"table-prefix", o.TablePrefix, "Prefix of per-collection vector tables")
}

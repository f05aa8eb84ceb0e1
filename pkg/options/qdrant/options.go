// Package qdrant provides Qdrant connection options.
package qdrant

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Connection modes.
const (
	ModeURL  = "url"
	ModeHost = "host"
)

// Options contains Qdrant REST client configuration.
type Options struct {
	// Mode selects how the endpoint is built: "url" uses URL and APIKey,
	// "host" uses http://Host:Port without credentials.
	Mode string `json:"mode" mapstructure:"mode"`

	URL    string `json:"url" mapstructure:"url"`
	APIKey string `json:"-" mapstructure:"api-key"`
	Host   string `json:"host" mapstructure:"host"`
	Port   int    `json:"port" mapstructure:"port"`

	// Timeout is the HTTP client timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Mode:    ModeHost,
		Host:    "qdrant",
		Port:    6333,
		Timeout: 30 * time.Second,
	}
}

// Endpoint returns the base URL resolved from the connection mode.
func (o *Options) Endpoint() string {
	if o.Mode == ModeURL {
		return strings.TrimRight(o.URL, "/")
	}
	return "http://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "qdrant."
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Connection mode: url (qdrant.url + api key) or host (qdrant.host:qdrant.port).")
	fs.StringVar(&o.URL, p+"url", o.URL, "Qdrant base URL used in url mode.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Qdrant API key sent as the api-key header in url mode.")
	fs.StringVar(&o.Host, p+"host", o.Host, "Qdrant host used in host mode.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Qdrant port used in host mode.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Qdrant HTTP client timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Mode {
	case ModeURL:
		if o.URL == "" {
			errs = append(errs, fmt.Errorf("qdrant.url is required in url mode"))
		}
	case ModeHost:
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("qdrant.host is required in host mode"))
		}
		if o.Port <= 0 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("qdrant.port %d out of range", o.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("qdrant.mode must be %q or %q", ModeURL, ModeHost))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("qdrant.timeout must be positive"))
	}
	return errs
}

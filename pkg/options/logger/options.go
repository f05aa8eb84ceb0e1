// Package logger binds github.com/kart-io/logger options to the log.* flags.
package logger

import (
	"fmt"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options embeds option.LogOption so that the config file uses the logger
// library's own keys (level, format, output_paths, rotation...).
type Options struct {
	*option.LogOption `mapstructure:",squash"`
}

// NewOptions returns the library defaults: slog engine, INFO level, JSON to stdout.
func NewOptions() *Options {
	o := &Options{LogOption: option.DefaultLogOption()}
	o.ensureNested()
	return o
}

func (o *Options) ensureNested() {
	if o.LogOption == nil {
		o.LogOption = option.DefaultLogOption()
	}
	if o.OTLP == nil {
		o.OTLP = &option.OTLPOption{Protocol: "grpc"}
	}
	if o.Rotation == nil {
		o.Rotation = &option.RotationOption{MaxSize: 100, MaxAge: 15, MaxBackups: 30, Compress: true}
	}
}

// AddFlags 注册 log.* 参数。轮转参数只对文件输出生效。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.ensureNested()
	p := options.Join(prefixes...) + "log."

	fs.StringVar(&o.Engine, p+"engine", o.Engine, "Logging engine: zap or slog")
	fs.StringVar(&o.Level, p+"level", o.Level, "Minimum level: DEBUG, INFO, WARN, ERROR or FATAL")
	fs.StringVar(&o.Format, p+"format", o.Format, "Output format: json or console")
	fs.StringSliceVar(&o.OutputPaths, p+"output-paths", o.OutputPaths, "Where to write logs: stdout, stderr or file paths")
	fs.BoolVar(&o.Development, p+"development", o.Development, "Development mode with caller info and stack traces")
	fs.BoolVar(&o.DisableCaller, p+"disable-caller", o.DisableCaller, "Omit the caller from log entries")
	fs.BoolVar(&o.DisableStacktrace, p+"disable-stacktrace", o.DisableStacktrace, "Omit stack traces from error entries")
	fs.StringVar(&o.OTLPEndpoint, p+"otlp-endpoint", o.OTLPEndpoint, "Also ship logs to this OTLP endpoint")
	fs.StringVar(&o.OTLP.Protocol, p+"otlp.protocol", o.OTLP.Protocol, "OTLP protocol: grpc or http")
	fs.IntVar(&o.Rotation.MaxSize, p+"rotation.max-size", o.Rotation.MaxSize, "Rotate log files at this size in MB")
	fs.IntVar(&o.Rotation.MaxAge, p+"rotation.max-age", o.Rotation.MaxAge, "Days to keep rotated files")
	fs.IntVar(&o.Rotation.MaxBackups, p+"rotation.max-backups", o.Rotation.MaxBackups, "Number of rotated files to keep")
	fs.BoolVar(&o.Rotation.Compress, p+"rotation.compress", o.Rotation.Compress, "Gzip rotated files")
}

// Validate delegates to the logger library.
func (o *Options) Validate() []error {
	if o == nil || o.LogOption == nil {
		return nil
	}
	if err := o.LogOption.Validate(); err != nil {
		return []error{fmt.Errorf("log: %w", err)}
	}
	return nil
}

// Complete fills nil nested sections left by a partial config file.
func (o *Options) Complete() error {
	o.ensureNested()
	return nil
}

// Init builds a logger from the options and installs it as the global one.
func (o *Options) Init() error {
	o.ensureNested()
	l, err := logger.New(o.LogOption)
	if err != nil {
		return err
	}
	logger.SetGlobal(l)
	return nil
}

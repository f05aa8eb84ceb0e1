// Package milvusopts 定义 Milvus 向量后端的连接配置。
package milvusopts

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options Milvus 连接配置。用户名与密码都为空时不做认证。
type Options struct {
	Address  string        `json:"address" mapstructure:"address"`
	Database string        `json:"database" mapstructure:"database"`
	Username string        `json:"username" mapstructure:"username"`
	Password string        `json:"-" mapstructure:"password"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewOptions() *Options {
	return &Options{Address: "localhost:19530", Database: "default", Timeout: 30 * time.Second}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus proxy address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Timeout for connecting to Milvus.")
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if _, _, err := net.SplitHostPort(o.Address); err != nil {
		errs = append(errs, fmt.Errorf("milvus.address %q must be host:port", o.Address))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("milvus.timeout must be positive"))
	}
	if o.Username != "" && o.Password == "" {
		errs = append(errs, errors.New("milvus.password is required when milvus.username is set"))
	}
	return errs
}

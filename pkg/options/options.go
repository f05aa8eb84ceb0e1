// Package options holds what the per-concern option packages share: the
// IOptions contract and flag naming.
//
// Every option struct registers its flags under a section, so a flag reads
// "<prefixes>.<section>.<key>", e.g. "cache.redis.host". The same dotted path
// is the config file key, and upper-cased with "_" it is the environment
// variable (PDFRAG_CACHE_REDIS_HOST).
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join returns prefixes as a dotted flag-name prefix with a trailing ".",
// or "" when there is nothing to join. Empty elements are skipped.
func Join(prefixes ...string) string {
	var b strings.Builder
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		b.WriteString(p)
		b.WriteByte('.')
	}
	return b.String()
}

// IOptions is implemented by every option struct.
type IOptions interface {
	// Validate returns every problem found, nil when valid.
	Validate() []error

	// AddFlags registers the flags of the option struct on fs.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

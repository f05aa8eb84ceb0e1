package postgres

import (
	"strconv"
	"strings"

	options "github.com/kart-io/pdfrag/pkg/options/postgres"
)

// applicationName is reported to the server and shows up in pg_stat_activity.
const applicationName = "pdfrag"

// BuildDSN renders opts as a libpq keyword/value connection string:
//
//	host=localhost port=5432 user=postgres password=secret dbname=pdfrag sslmode=disable application_name=pdfrag
//
// Values containing spaces, quotes or backslashes are quoted.
func BuildDSN(opts *options.Options) string {
	if opts == nil {
		return ""
	}

	pairs := [][2]string{
		{"host", opts.Host},
		{"port", strconv.Itoa(opts.Port)},
		{"user", opts.Username},
		{"password", opts.Password},
		{"dbname", opts.Database},
		{"sslmode", opts.SSLMode},
		{"application_name", applicationName},
	}

	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(quoteValue(kv[1]))
	}
	return b.String()
}

// quoteValue 按 libpq 规则转义：空值或含空格、单引号、反斜杠时加单引号，
// 内部的单引号与反斜杠用反斜杠转义。
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	options "github.com/kart-io/pdfrag/pkg/options/postgres"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

func TestBuildDSN(t *testing.T) {
	opts := &options.Options{
		Host:     "db",
		Port:     5433,
		Username: "rag",
		Password: "secret",
		Database: "vectors",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db port=5433 user=rag password=secret dbname=vectors sslmode=require application_name=pdfrag",
		BuildDSN(opts))
	assert.Empty(t, BuildDSN(nil))
}

func TestQuoteValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"", "''"},
		{"with space", "'with space'"},
		{"it's", `'it\'s'`},
		{`back\slash`, `'back\\slash'`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, quoteValue(tt.in))
		})
	}
}

func TestBuildDSNQuotesPassword(t *testing.T) {
	opts := options.NewOptions()
	opts.Password = "p@ss word"
	assert.Contains(t, BuildDSN(opts), "password='p@ss word' ")
}

func TestOptionsJSONOmitsPassword(t *testing.T) {
	opts := options.NewOptions()
	opts.Password = "supersecret"

	data, err := json.Marshal(opts)
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")
}

func TestDialRejectsInvalidOptions(t *testing.T) {
	_, err := Dial(context.Background(), nil)
	assert.Error(t, err)

	opts := options.NewOptions()
	opts.Database = ""
	_, err = Dial(context.Background(), opts)
	assert.ErrorContains(t, err, "invalid postgres options")
}

func TestNewGormLoggerLevel(t *testing.T) {
	assert.NotNil(t, newGormLogger(1))
	var c *Client
	assert.NoError(t, c.Close())
}

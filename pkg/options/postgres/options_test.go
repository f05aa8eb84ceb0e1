package postgres

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.SSLMode = "sometimes"
	o.LogLevel = 9
	o.Host = ""
	assert.Len(t, o.Validate(), 3)
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--postgres.host=pg", "--postgres.password=s3cret", "--postgres.table-prefix=v_"}))
	assert.Equal(t, "pg", o.Host)
	assert.Equal(t, "s3cret", o.Password)
	assert.Equal(t, "v_", o.TablePrefix)
}

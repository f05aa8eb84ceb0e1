package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGWhere(t *testing.T) {
	where, args, err := pgWhere(nil)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args, err = pgWhere(map[string]any{"document_id": "d1", "text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, " WHERE text = ? AND metadata @> ?::jsonb", where)
	require.Len(t, args, 2)
	assert.Equal(t, "hello", args[0])
	assert.JSONEq(t, `{"document_id":"d1"}`, args[1].(string))
}

func TestPGTableName(t *testing.T) {
	b := &PGVectorBackend{prefix: "rag_"}
	assert.Equal(t, `"rag_c_my-docs"`, b.tableName("my-docs"))
	assert.Equal(t, "rag_collections", b.registryTable())
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}

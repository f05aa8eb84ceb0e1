package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

func TestRoundTripPoint(t *testing.T) {
	in := point{
		ID:      "c-1",
		Vector:  []float32{0.6, 0.8},
		Payload: map[string]interface{}{"text": "hello", "page": 1},
	}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out point
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.InDeltaSlice(t, in.Vector, out.Vector, 1e-6)
	assert.Equal(t, "hello", out.Payload["text"])
	assert.EqualValues(t, 1, out.Payload["page"])
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]string{"status": "healthy"}))

	var got map[string]string
	require.NoError(t, NewDecoder(&buf).Decode(&got))
	assert.Equal(t, "healthy", got["status"])
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"a": 1}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"a\": 1")
}

func TestBackendMatchesArch(t *testing.T) {
	if IsUsingSonic() {
		_, std := impl.(stdCodec)
		assert.False(t, std)
		return
	}
	assert.Equal(t, stdCodec{}, impl)
}

package milvusopts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.Address = "milvus"
	assert.Len(t, o.Validate(), 1)

	o = NewOptions()
	o.Username = "root"
	assert.Len(t, o.Validate(), 1)
	o.Password = "Milvus"
	assert.Empty(t, o.Validate())
}

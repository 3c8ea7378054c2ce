package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vintage-realtime/internal/domain"
)

type sample struct {
	Topic string `validate:"required"`
	Count int    `validate:"min=1"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{Topic: "product:1", Count: 1}))
}

func TestStruct_ReportsEveryField(t *testing.T) {
	err := Struct(sample{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Contains(t, err.Error(), "field 'Topic' failed 'required'")
	assert.Contains(t, err.Error(), "field 'Count' failed 'min'")
}

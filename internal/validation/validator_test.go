package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwellapp/readwell-server/internal/errors"
)

type sample struct {
	ItemID   string `json:"item_id" validate:"required"`
	Position int64  `json:"position" validate:"gte=0"`
}

func TestValidate(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(sample{ItemID: "ch1", Position: 0}))

	err := v.Validate(sample{Position: -5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// Messages use the wire field names.
	assert.Contains(t, err.Error(), "item_id is required")
	assert.Contains(t, err.Error(), "position must be greater than or equal to 0")
}

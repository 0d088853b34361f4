package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("connection refused")
	err := New(base).
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "get_throttle_settings").
		Build()

	assert.Equal(t, "connection refused", err.Error())
	assert.Equal(t, "datastore", err.GetComponent())
	assert.Equal(t, string(CategoryDatabase), err.GetCategory())
	assert.Equal(t, "get_throttle_settings", err.GetContext()["operation"])
	assert.True(t, Is(err, base))
}

func TestEnhancedErrorIsMatchesCategory(t *testing.T) {
	t.Parallel()

	a := Newf("first").Category(CategoryValidation).Build()
	b := Newf("second").Category(CategoryValidation).Build()
	c := Newf("third").Category(CategoryDatabase).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestAsUnwrapsEnhancedError(t *testing.T) {
	t.Parallel()

	err := Newf("bad condition config").
		Component("trigger").
		Category(CategoryConfiguration).
		Build()
	wrapped := fmt.Errorf("run aborted: %w", err)

	var enhanced *EnhancedError
	require.True(t, As(wrapped, &enhanced))
	assert.Equal(t, "trigger", enhanced.GetComponent())
}

func TestGetContextReturnsCopy(t *testing.T) {
	t.Parallel()

	err := Newf("boom").Context("user_id", "u1").Build()
	ctx := err.GetContext()
	ctx["user_id"] = "mutated"

	assert.Equal(t, "u1", err.GetContext()["user_id"])
}

func TestUnknownComponent(t *testing.T) {
	t.Parallel()

	err := Newf("no component").Build()
	assert.Equal(t, ComponentUnknown, err.GetComponent())
}

package check

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type widget struct{}

func TestNotNil(t *testing.T) {
	w := &widget{}
	got, err := NotNil(w, "widget")
	assert.NoError(t, err)
	assert.Same(t, w, got)

	var nilPtr *widget
	_, err = NotNil(nilPtr, "widget")
	assert.True(t, errors.Is(err, ErrNil))
	assert.ErrorContains(t, err, "widget")

	var iface error
	_, err = NotNil(iface, "err")
	assert.ErrorIs(t, err, ErrNil)

	var m map[string]int
	_, err = NotNil(m, "m")
	assert.ErrorIs(t, err, ErrNil)

	_, err = NotNil(0, "zero")
	assert.NoError(t, err)
}

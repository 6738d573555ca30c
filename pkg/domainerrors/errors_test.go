package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNilYieldsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "whatever"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "missing")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")), "uncoded errors default to internal")
	assert.Equal(t, CodeInternal, CodeOf(nil))

	wrapped := fmt.Errorf("context: %w", New(CodeConflict, "duplicate"))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
}

func TestCodeOfReturnsOutermost(t *testing.T) {
	inner := New(CodeTransient, "broker down")
	outer := Wrap(inner, CodeInternal, "operation failed")
	assert.Equal(t, CodeInternal, CodeOf(outer))
}

func TestHasCodeWalksTheChain(t *testing.T) {
	inner := New(CodeTransient, "broker down")
	outer := Wrap(inner, CodeInternal, "operation failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeTransient))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(errors.New("pq: deadlock"), CodeConflict, "save invoice")
	assert.Equal(t, "save invoice: pq: deadlock", err.Error())
	assert.ErrorContains(t, err, "deadlock")
}

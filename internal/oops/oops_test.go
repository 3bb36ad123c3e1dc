package oops

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsCause(t *testing.T) {
	err := New(os.ErrNotExist, "open %s", "a.png")

	assert.EqualError(t, err, "open a.png: "+os.ErrNotExist.Error())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewWithoutCause(t *testing.T) {
	err := New(nil, "boom")
	assert.EqualError(t, err, "boom")
}

func TestNewCapturesCaller(t *testing.T) {
	err := New(nil, "boom")

	var oe *Error
	require.True(t, errors.As(err, &oe))
	require.NotEmpty(t, oe.Stack)
	assert.Contains(t, oe.Stack[0].Function, "TestNewCapturesCaller")
	assert.NotNil(t, ZerologStackMarshaler(err))
	assert.Nil(t, ZerologStackMarshaler(errors.New("plain")))
}

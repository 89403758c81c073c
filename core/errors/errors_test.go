package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeInvalidArgument, "bad suffix")
	require.Error(t, err)

	var e *E
	require.True(t, errors.As(err, &e))
	assert.Equal(t, CodeInvalidArgument, e.Code)
	assert.Equal(t, "INVALID_ARGUMENT: bad suffix", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrapf(CodeInternal, "op", cause, "doing %s", "work")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL: op: doing work: boom", err.Error())
}

func TestTaxonomy(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name  string
		err   error
		code  Code
		check func(error) bool
	}{
		{"configuration", Configuration("op", "missing path", cause), CodeConfiguration, IsConfiguration},
		{"plugin load", PluginLoad("op", "/p/a.Data.so", cause), CodePluginLoad, IsPluginLoad},
		{"registrar instantiation", RegistrarInstantiation("op", "x.Reg", cause), CodeRegistrarInstantiation, IsRegistrarInstantiation},
		{"registrar execution", RegistrarExecution("op", "x.Reg", cause), CodeRegistrarExecution, IsRegistrarExecution},
		{"endpoint configuration", EndpointConfiguration("op", "Divergent.ITOps", cause), CodeEndpointConfiguration, IsEndpointConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.True(t, tt.check(tt.err))
			assert.ErrorIs(t, tt.err, cause)
		})
	}
}

func TestIsCodeWalksChain(t *testing.T) {
	inner := PluginLoad("pluginx.Locate", "a.Data.so", errors.New("bad elf"))
	outer := Wrap(CodeAborted, "nodex.Bootstrap", fmt.Errorf("locate: %w", inner))

	assert.Equal(t, CodeAborted, CodeOf(outer))
	assert.True(t, IsPluginLoad(outer))
	assert.False(t, IsConfiguration(outer))
	assert.False(t, IsCode(nil, CodeAborted))
}

func TestBuilder(t *testing.T) {
	err := Build(CodeNotFound).
		WithOp("catalog.Lookup").
		WithMsgf("assembly %s", "shipping").
		WithDetails("name", "shipping").
		Err()

	var e *E
	require.True(t, As(err, &e))
	assert.Equal(t, "catalog.Lookup", e.Op)
	assert.Equal(t, []any{"name", "shipping"}, e.Details)
}

package script_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/reactor/builtin/script"
	"github.com/bittoy/reactor/example/car"
	"github.com/bittoy/reactor/types"
)

func TestTagValidationInterceptorAcceptsPassingValue(t *testing.T) {
	v, err := script.NewTagValidationInterceptor(50, "Pressure", "gte=0,lte=60")
	require.NoError(t, err)

	tire := car.NewTire(30)
	wctx := &types.WriteContext{Subject: tire, Property: "Pressure", Current: 30.0, New: 32.0}

	called := false
	err = v.Write(wctx, func() error {
		called = true
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestTagValidationInterceptorRejectsFailingValue(t *testing.T) {
	v, err := script.NewTagValidationInterceptor(50, "Pressure", "gte=0,lte=60")
	require.NoError(t, err)

	tire := car.NewTire(30)
	wctx := &types.WriteContext{Subject: tire, Property: "Pressure", Current: 30.0, New: 999.0}

	called := false
	err = v.Write(wctx, func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)

	var rerr *types.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, types.ValidationFailed, rerr.Kind)
}

func TestTagValidationInterceptorIgnoresOtherProperties(t *testing.T) {
	v, err := script.NewTagValidationInterceptor(50, "Pressure", "lte=0")
	require.NoError(t, err)

	tire := car.NewTire(30)
	wctx := &types.WriteContext{Subject: tire, Property: "OtherProperty"}

	called := false
	err = v.Write(wctx, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called, "a validator scoped to one property must not intercept writes to another")
}

func TestNewTagValidationInterceptorRejectsEmptyTag(t *testing.T) {
	_, err := script.NewTagValidationInterceptor(50, "Pressure", "")
	require.Error(t, err)
}

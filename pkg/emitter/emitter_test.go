package emitter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type kind string

const (
	kindA kind = "a"
	kindB kind = "b"
)

func recorder(log *[]string, name string) Handler[int] {
	return func(int) { *log = append(*log, name) }
}

func TestEmit_RunsHandlersInRegistrationOrder(t *testing.T) {
	d := New[kind, int](nil, nil)
	var calls []string

	d.Register(kindA, recorder(&calls, "h1"))
	d.Register(kindB, recorder(&calls, "other"))
	d.Register(kindA, recorder(&calls, "h2"))
	d.Register(kindA, recorder(&calls, "h3"))

	require.NoError(t, d.Emit(kindA, 1))
	assert.Equal(t, []string{"h1", "h2", "h3"}, calls)
}

func TestEmit_PassesPayload(t *testing.T) {
	d := New[kind, int](nil, nil)
	var got []int
	d.Register(kindA, func(p int) { got = append(got, p) })

	_ = d.Emit(kindA, 42)
	_ = d.Emit(kindB, 7)

	assert.Equal(t, []int{42}, got)
}

func TestUnregister_RemovesOnlyThatRegistration(t *testing.T) {
	d := New[kind, int](nil, nil)
	var calls []string

	d.Register(kindA, recorder(&calls, "h1"))
	r2 := d.Register(kindA, recorder(&calls, "h2"))
	d.Register(kindA, recorder(&calls, "h3"))

	d.Unregister(kindA, r2)
	d.Unregister(kindA, r2) // already gone
	d.Unregister(kindB, 999)

	_ = d.Emit(kindA, 0)
	assert.Equal(t, []string{"h1", "h3"}, calls)
	assert.Equal(t, 2, d.Count(kindA))
}

func TestUnregister_WrongKindIsNoop(t *testing.T) {
	d := New[kind, int](nil, nil)
	var calls []string
	r := d.Register(kindA, recorder(&calls, "h1"))

	d.Unregister(kindB, r)

	_ = d.Emit(kindA, 0)
	assert.Equal(t, []string{"h1"}, calls)
}

func TestRegister_GuardRejectsInvalidArguments(t *testing.T) {
	d := New[kind, int](func(k kind) bool { return k == kindA }, nil)

	assert.Zero(t, d.Register("", func(int) {}))
	assert.Zero(t, d.Register(kindB, func(int) {}))
	assert.Zero(t, d.Register(kindA, nil))
	assert.Equal(t, 0, d.Count(kindA))
	assert.Equal(t, 0, d.Count(kindB))
}

func TestEmit_PanickingHandlerIsIsolated(t *testing.T) {
	d := New[kind, int](nil, nil)
	var calls []string

	d.Register(kindA, recorder(&calls, "h1"))
	bad := d.Register(kindA, func(int) { panic("boom") })
	d.Register(kindA, recorder(&calls, "h3"))

	err := d.Emit(kindA, 0)
	require.Error(t, err)
	assert.Equal(t, []string{"h1", "h3"}, calls)

	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	var pe *PanicError
	require.True(t, errors.As(errs[0], &pe))
	assert.Equal(t, bad, pe.Registration)
	assert.Equal(t, "boom", pe.Value)
}

func TestRegisterDuringEmit_DoesNotAffectInFlightEmit(t *testing.T) {
	d := New[kind, int](nil, nil)
	var calls []string

	d.Register(kindA, func(int) {
		calls = append(calls, "h1")
		d.Register(kindA, recorder(&calls, "late"))
	})

	_ = d.Emit(kindA, 0)
	assert.Equal(t, []string{"h1"}, calls)

	calls = nil
	_ = d.Emit(kindA, 0)
	assert.Equal(t, []string{"h1", "late"}, calls)
}

func TestClear_RemovesEverything(t *testing.T) {
	d := New[kind, int](nil, nil)
	var calls []string
	d.Register(kindA, recorder(&calls, "h1"))
	d.Register(kindB, recorder(&calls, "h2"))

	d.Clear()

	_ = d.Emit(kindA, 0)
	_ = d.Emit(kindB, 0)
	assert.Empty(t, calls)
}

package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(0, nil)
	var order []string
	m.Register("store", func(context.Context) error { order = append(order, "store"); return nil })
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })
	m.Register("skipped", nil)

	require.NoError(t, m.Shutdown(context.Background()))
	require.Equal(t, []string{"http", "store"}, order)
}

func TestShutdownJoinsErrorsAndContinues(t *testing.T) {
	m := New(0, nil)
	errStore := errors.New("store busy")
	errCache := errors.New("cache gone")
	ran := false
	m.Register("first", func(context.Context) error { ran = true; return nil })
	m.Register("store", func(context.Context) error { return errStore })
	m.Register("cache", func(context.Context) error { return errCache })

	err := m.Shutdown(context.Background())
	require.ErrorIs(t, err, errStore)
	require.ErrorIs(t, err, errCache)
	require.True(t, ran)
}

package futures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture_Complete(t *testing.T) {
	f := NewFuture[string]()
	require.False(t, f.Done())

	require.True(t, f.Complete("value"))
	require.True(t, f.Done())
	require.NoError(t, f.Err())

	got, err := f.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, "value", got)

	// Single assignment: later resolutions are rejected.
	require.False(t, f.Complete("other"))
	require.False(t, f.Fail(errors.New("late")))

	got, err = f.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, "value", got)
}

func TestFuture_Fail(t *testing.T) {
	boom := errors.New("boom")
	f := NewFuture[int]()

	require.True(t, f.Fail(boom))
	require.True(t, f.Done())
	require.ErrorIs(t, f.Err(), boom)

	_, err := f.Result(context.Background())
	require.ErrorIs(t, err, boom)

	require.False(t, f.Complete(42))
	require.False(t, f.Fail(errors.New("again")))
}

func TestFuture_WaitCancelled(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, f.Wait(ctx), context.Canceled)
	_, err := f.Result(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFuture_WaitUnblocksOnComplete(t *testing.T) {
	f := NewFuture[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Complete(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, f.Wait(ctx))
	got, err := f.Result(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, got)
}

package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedsync/pkg/retry"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestWrapWithRetry_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	var attempts []int

	f := retry.WrapWithRetry(func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	}, func(err error, attempt int) bool {
		attempts = append(attempts, attempt)
		return errors.Is(err, errBoom)
	}, time.Millisecond)

	require.NoError(t, f(t.Context()))
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, attempts)
}

func TestWrapWithRetry_StopsWhenRejected(t *testing.T) {
	t.Parallel()

	fatal := errors.New("fatal")
	calls := 0

	f := retry.WrapWithRetry(func(context.Context) error {
		calls++
		if calls == 2 {
			return fatal
		}
		return errBoom
	}, func(err error, _ int) bool {
		return !errors.Is(err, fatal)
	}, time.Millisecond)

	require.ErrorIs(t, f(t.Context()), fatal)
	require.Equal(t, 2, calls)
}

func TestWrapWithRetry_CancelledContextIsNotAnError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	calls := 0
	f := retry.WrapWithRetry(func(context.Context) error {
		calls++
		cancel()
		return errBoom
	}, func(error, int) bool { return true }, time.Hour)

	require.NoError(t, f(ctx))
	require.Equal(t, 1, calls)
}

func TestWrapWithRetry_WaitsForDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	f := retry.WrapWithRetry(func(context.Context) error {
		calls++
		return errBoom
	}, func(error, int) bool { return true }, time.Hour)

	require.NoError(t, f(ctx))
	require.Equal(t, 1, calls)
}

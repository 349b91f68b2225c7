package pinning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FairForge/multidb/internal/deprecation"
)

func TestGuard_Wrap(t *testing.T) {
	check := UsePrimary.Wrap(func(ctx context.Context) error {
		assert.True(t, IsPinned(ctx))
		return nil
	})

	t.Run("from unpinned", func(t *testing.T) {
		ctx := NewContext(context.Background())
		require.NoError(t, check(ctx))
		assert.False(t, IsPinned(ctx))
	})

	t.Run("from pinned", func(t *testing.T) {
		ctx := NewContext(context.Background())
		Pin(ctx, ReasonMarker)
		require.NoError(t, check(ctx))
		assert.True(t, IsPinned(ctx))
		assert.Equal(t, ReasonMarker, PinReason(ctx))
	})
}

func TestGuard_Enter(t *testing.T) {
	ctx := NewContext(context.Background())

	func() {
		ctx, exit := UsePrimary.Enter(ctx)
		defer exit()
		assert.True(t, IsPinned(ctx))
		assert.Equal(t, 1, FromContext(ctx).Depth())
	}()

	assert.False(t, IsPinned(ctx))
	assert.Equal(t, 0, FromContext(ctx).Depth())

	t.Run("exit is idempotent", func(t *testing.T) {
		Pin(ctx, ReasonMarker)
		_, outer := UseReplica.Enter(ctx)
		_, inner := UsePrimary.Enter(ctx)
		inner()
		inner()
		assert.False(t, IsPinned(ctx), "second inner exit popped the outer frame")
		outer()
		assert.True(t, IsPinned(ctx))
		Unpin(ctx)
	})

	t.Run("creates state when missing", func(t *testing.T) {
		scoped, exit := UsePrimary.Enter(context.Background())
		assert.True(t, IsPinned(scoped))
		exit()
		assert.False(t, IsPinned(scoped))
	})
}

func TestGuard_Nesting(t *testing.T) {
	guards := []Guard{UsePrimary, UseReplica, UsePrimary, UsePrimary, UseReplica}

	for _, start := range []Reason{ReasonNone, ReasonMarker, ReasonWrite} {
		t.Run(start.String(), func(t *testing.T) {
			ctx := NewContext(context.Background())
			if start != ReasonNone {
				Pin(ctx, start)
			}
			before := PinReason(ctx)
			wasPinned := IsPinned(ctx)

			var nest func(ctx context.Context, i int) error
			nest = func(ctx context.Context, i int) error {
				if i == len(guards) {
					MarkWritten(ctx)
					return nil
				}
				return guards[i].Do(ctx, func(ctx context.Context) error {
					assert.Equal(t, guards[i].Pinned(), IsPinned(ctx), "depth %d", i)
					if err := nest(ctx, i+1); err != nil {
						return err
					}
					if i < len(guards)-1 {
						assert.Equal(t, guards[i].Pinned(), IsPinned(ctx), "depth %d after inner exit", i)
					}
					return nil
				})
			}

			require.NoError(t, nest(ctx, 0))
			assert.Equal(t, wasPinned, IsPinned(ctx))
			assert.Equal(t, before, PinReason(ctx))
			assert.Equal(t, 0, FromContext(ctx).Depth())
			assert.True(t, Written(ctx), "written flag lost by guard restoration")
		})
	}
}

func TestGuard_ErrorPropagates(t *testing.T) {
	ctx := NewContext(context.Background())
	errBoom := errors.New("boom")

	err := UsePrimary.Do(ctx, func(ctx context.Context) error {
		return UsePrimary.Do(ctx, func(ctx context.Context) error {
			assert.True(t, IsPinned(ctx))
			return errBoom
		})
	})

	assert.ErrorIs(t, err, errBoom)
	assert.False(t, IsPinned(ctx))
	assert.Equal(t, 0, FromContext(ctx).Depth())
}

func TestGuard_PanicRestores(t *testing.T) {
	ctx := NewContext(context.Background())

	assert.PanicsWithValue(t, "boom", func() {
		_ = UsePrimary.Do(ctx, func(ctx context.Context) error {
			_ = UseReplica.Do(ctx, func(ctx context.Context) error {
				panic("boom")
			})
			return nil
		})
	})

	assert.False(t, IsPinned(ctx))
	assert.Equal(t, 0, FromContext(ctx).Depth())
}

func TestGuard_Call(t *testing.T) {
	ctx := NewContext(context.Background())

	got, err := Call(ctx, UsePrimary, func(ctx context.Context) (string, error) {
		if IsPinned(ctx) {
			return "primary", nil
		}
		return "replica", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "primary", got)
	assert.False(t, IsPinned(ctx))
}

func TestUseMaster_Deprecated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	deprecation.Reset()
	deprecation.SetLogger(zap.New(core))
	defer deprecation.SetLogger(nil)

	assert.Equal(t, UsePrimary, UseMaster())
	assert.Equal(t, UsePrimary, UseMaster())

	assert.Equal(t, 1, logs.FilterMessage("UseMaster is deprecated, use UsePrimary").Len())
}

package credential

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProvider_ReadsFreshValue(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "first")
	p := NewEnvProvider("TEST_GEMINI_KEY")

	key, err := p.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", key)

	t.Setenv("TEST_GEMINI_KEY", "second")
	key, err = p.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", key)
}

func TestEnvProvider_Missing(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "  ")
	p := NewEnvProvider("TEST_GEMINI_KEY")

	_, err := p.APIKey(context.Background())
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestAlwaysReady(t *testing.T) {
	var s Selector = AlwaysReady{}

	ok, err := s.HasSelectedKey(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, s.OpenSelectKey(context.Background()))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	t.Run("empty store has no key", func(t *testing.T) {
		ok, err := s.HasSelectedKey(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.APIKey(ctx)
		assert.ErrorIs(t, err, ErrNoKey)
	})

	t.Run("set key", func(t *testing.T) {
		require.NoError(t, s.SetKey(ctx, " abc "))

		ok, err := s.HasSelectedKey(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		key, err := s.APIKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc", key)
	})

	t.Run("empty key clears", func(t *testing.T) {
		require.NoError(t, s.SetKey(ctx, ""))

		ok, err := s.HasSelectedKey(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("open select is recorded", func(t *testing.T) {
		require.NoError(t, s.OpenSelectKey(ctx))
		require.NoError(t, s.OpenSelectKey(ctx))
		assert.Equal(t, 2, s.opens)
	})
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.SetKey(ctx, "key")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.APIKey(ctx)
		}()
	}
	wg.Wait()

	key, err := s.APIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "key", key)
}

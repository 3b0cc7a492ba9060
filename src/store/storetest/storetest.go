// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/base-buddies/src/store"
)

// Common exercises two clients a and b that share one storage area.
func Common(t *testing.T, a, b store.Interface) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := "storetest-" + a.Origin()
	require.NotEqual(t, a.Origin(), b.Origin())

	_, err := a.Get(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	var (
		mu      sync.Mutex
		seenByA []store.Change
		seenByB []store.Change
	)
	require.NoError(t, a.Watch(ctx, func(c store.Change) {
		mu.Lock()
		defer mu.Unlock()
		if c.Key == key {
			seenByA = append(seenByA, c)
		}
	}))
	require.NoError(t, b.Watch(ctx, func(c store.Change) {
		mu.Lock()
		defer mu.Unlock()
		if c.Key == key {
			seenByB = append(seenByB, c)
		}
	}))

	require.NoError(t, a.Set(ctx, key, []byte("hello")))

	got, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seenByB) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, a.Origin(), seenByB[0].Origin)
	assert.Equal(t, []byte("hello"), seenByB[0].Value)
	mu.Unlock()

	require.NoError(t, b.Delete(ctx, key))
	_, err = a.Get(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, b.Delete(ctx, key), store.ErrNotFound)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seenByA) == 1 && seenByA[0].Deleted
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seenByB, 1, "a client must not see its own delete")
	assert.Len(t, seenByA, 1, "a client must not see its own write")
}

package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/base-buddies/src/store/memory"
)

func TestEnsureParam(t *testing.T) {
	assert.Equal(t, "u@tcp(h)/db?parseTime=true", ensureParam("u@tcp(h)/db", "parseTime", "true"))
	assert.Equal(t, "u@tcp(h)/db?a=1&parseTime=true", ensureParam("u@tcp(h)/db?a=1", "parseTime", "true"))
	assert.Equal(t, "u@tcp(h)/db?parseTime=false", ensureParam("u@tcp(h)/db?parseTime=false", "parseTime", "true"))
}

func TestSettingsCache(t *testing.T) {
	ReplaceSettings(map[string]string{"symbol": "BASE"})
	defer ReplaceSettings(nil)
	assert.Equal(t, "BASE", GetSetting("symbol"))
	assert.Empty(t, GetSetting("missing"))
}

func TestStoreNoncesSingleUse(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	n := StoreNonces{Store: memory.New().Client(), Now: func() time.Time { return now }}

	require.NoError(t, n.Put(ctx, "0xABC", "n1"))
	got, err := n.Take(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "n1", got)

	_, err = n.Take(ctx, "0xabc")
	assert.ErrorIs(t, err, ErrNoNonce)
}

func TestStoreNoncesExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	n := StoreNonces{Store: memory.New().Client(), Now: func() time.Time { return now }}

	require.NoError(t, n.Put(ctx, "0xabc", "n1"))
	now = now.Add(NonceTTL + time.Second)
	_, err := n.Take(ctx, "0xabc")
	assert.ErrorIs(t, err, ErrNoNonce)
}

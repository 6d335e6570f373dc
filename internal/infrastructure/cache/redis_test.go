package cache

import (
	"context"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
)

func sampleConfig() *entities.FeeConfig {
	return &entities.FeeConfig{
		Rate:          1,
		Scale:         entities.FeeScale,
		Treasury:      common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Dev:           common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Owner:         common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		Version:       3,
		SchemaVersion: entities.FeeConfigSchemaVersion,
	}
}

func TestInMemoryConfigStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryConfigStore()

	cfg, err := store.LoadFeeConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	want := sampleConfig()
	require.NoError(t, store.SaveFeeConfig(ctx, want))

	got, err := store.LoadFeeConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// the stored copy is detached from the caller's value
	want.Rate = 50
	got, err = store.LoadFeeConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Rate)
}

func TestRedisConfigStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client, err := NewRedisClient(addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	key := "zapper:test:fee_config"
	defer client.Del(ctx, key)

	store := NewRedisConfigStore(client, key)
	cfg, err := store.LoadFeeConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	want := sampleConfig()
	require.NoError(t, store.SaveFeeConfig(ctx, want))

	got, err := store.LoadFeeConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

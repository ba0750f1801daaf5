package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/config"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Store = config.StoreMemory

	store, err := OpenStore(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, config.StoreMemory, store.Kind)
	assert.NoError(t, store.Ping(context.Background()))
	assert.Nil(t, store.PoolStats())
	assert.NotNil(t, store.Idempotency)

	engine := store.Engine(cfg, nil)
	p, err := engine.CreateProduct(context.Background(), ledger.NewProduct{Name: "Tea", Price: types.MustMoney("3")})
	require.NoError(t, err)

	// Mutations are audited through the store.
	log := store.Memory.AuditLog()
	require.Len(t, log, 1)
	assert.Equal(t, p.ID, log[0].EntityID)
	assert.Equal(t, ledger.AuditCreate, log[0].Action)
}

func TestOpenStore_UnknownKind(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Store = "sqlite"

	_, err := OpenStore(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestRunMaintenance_MemoryReturnsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Store = config.StoreMemory
	store, err := OpenStore(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunMaintenance(ctx, cfg)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunMaintenance did not stop")
	}
}

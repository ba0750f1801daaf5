// Package app assembles the ledger store, engine and their infrastructure
// from configuration. Both the server and ledgerctl start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/core/idempotency"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/pkg/logger"
)

// Store is an opened ledger store with everything built on top of it.
type Store struct {
	Kind        string
	Repo        ledger.Repository
	Tx          tx.Manager
	Auditor     ledger.Auditor
	Idempotency idempotency.Store

	// Postgres only.
	Pool  *postgres.Pool
	Audit *postgres.AuditService

	// Memory only.
	Memory *memory.Store
}

// OpenStore connects the configured ledger store. With AutoMigrate set the
// postgres schema is applied before returning.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Store, error) {
	switch cfg.Database.Store {
	case config.StoreMemory:
		mem := memory.New()
		log.Warn("using the in-memory ledger store, data is lost on exit")
		return &Store{
			Kind:        config.StoreMemory,
			Repo:        mem,
			Tx:          mem,
			Auditor:     mem,
			Idempotency: memory.NewIdempotencyStore(cfg.Idempotency.TTL),
			Memory:      mem,
		}, nil

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database.PoolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		log.Infow("database connection established",
			"max_conns", cfg.Database.MaxConns,
			"application_name", cfg.Database.ApplicationName,
		)

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("database schema is up to date")
		}

		txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.Database.StatementTimeout)
		audit, err := postgres.NewAuditService(txm)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Kind:        config.StorePostgres,
			Repo:        ledger_repo.New(txm),
			Tx:          txm,
			Auditor:     audit,
			Idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
			Pool:        pool,
			Audit:       audit,
		}, nil
	}
	return nil, fmt.Errorf("unknown ledger store %q", cfg.Database.Store)
}

// Engine builds the ledger engine over the store.
func (s *Store) Engine(cfg *config.Config, pub ledger.Publisher) *ledger.Engine {
	return ledger.NewEngine(s.Repo, s.Tx, pub,
		ledger.WithAuditor(s.Auditor),
		ledger.WithOperationTimeout(cfg.Ledger.OperationTimeout),
	)
}

// Ping checks the store connection. The memory store is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// PoolStats reports connection pool statistics, or nil for the memory store.
func (s *Store) PoolStats() any {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Stats()
}

// RunMaintenance logs pool statistics and purges expired idempotency keys
// until ctx is done. It is a no-op for the memory store.
func (s *Store) RunMaintenance(ctx context.Context, cfg *config.Config) {
	if s.Pool == nil {
		<-ctx.Done()
		return
	}
	if cfg.Database.StatsInterval > 0 {
		go s.Pool.LogStats(ctx, cfg.Database.StatsInterval)
	}
	store, ok := s.Idempotency.(*postgres.IdempotencyStore)
	if !ok || !cfg.Idempotency.Enabled || cfg.Idempotency.CleanupInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(cfg.Idempotency.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupExpired(ctx)
			if err != nil {
				logger.Warn(ctx, "idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "expired idempotency keys removed", "count", n)
			}
		}
	}
}

// Close releases the store's connections.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

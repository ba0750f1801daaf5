package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

func product(name string) *ledger.Product {
	now := time.Now().UTC()
	return &ledger.Product{
		ID:        id.New(),
		Name:      name,
		Price:     types.MustMoney("2.50"),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_RollbackDiscardsWork(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := product("Bread")

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.InsertProduct(ctx, p))
		_, err := s.AdjustOverallStock(ctx, p.ID, 10)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetProduct(ctx, p.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestStore_CommitAndNestedTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := product("Bread")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.InsertProduct(ctx, p); err != nil {
			return err
		}
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			got, err := s.AdjustOverallStock(ctx, p.ID, 7)
			if err != nil {
				return err
			}
			assert.Equal(t, 2, got.Version)
			return nil
		})
	})
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.OverallStock)
}

func TestStore_WriteOutsideTransaction(t *testing.T) {
	s := New()
	err := s.InsertProduct(context.Background(), product("Bread"))
	require.Error(t, err)
	assert.False(t, apperror.IsAppError(err))
}

func TestStore_NameUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.InsertProduct(ctx, product("Bread")); err != nil {
			return err
		}
		return s.InsertProduct(ctx, product("BREAD"))
	})
	assert.Equal(t, apperror.KindDuplicateName, apperror.KindOf(err))
}

func TestStore_NegativeOverallStockRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := product("Bread")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.InsertProduct(ctx, p); err != nil {
			return err
		}
		_, err := s.AdjustOverallStock(ctx, p.ID, -1)
		return err
	})
	assert.Equal(t, apperror.KindInvalidAmount, apperror.KindOf(err))
}

func TestStore_FailNextCommit(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailNextCommit(errors.New("disk full"))

	p := product("Bread")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.InsertProduct(ctx, p)
	})
	require.Error(t, err)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.InsertProduct(ctx, p)
	})
	require.NoError(t, err)
}

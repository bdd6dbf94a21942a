package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(stock int) *Store {
	s := NewStore()
	s.PutProduct(domain.Product{
		ID:        "p1",
		Name:      "Carrots",
		Price:     decimal.RequireFromString("1.25"),
		Stock:     stock,
		Available: true,
	})
	return s
}

func TestWithTx_CommitsProductAndCartTogether(t *testing.T) {
	s := seed(10)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx domain.InventoryTx) error {
		p, err := tx.GetProductForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		p.Stock -= 3
		if err := tx.SaveProduct(ctx, p); err != nil {
			return err
		}
		cart, err := tx.Carts().Load(ctx, "tok")
		if err != nil {
			return err
		}
		item := domain.NewLineItem(p)
		item.Quantity = 3
		cart.Put(item)
		return tx.Carts().Save(ctx, "tok", cart)
	})
	require.NoError(t, err)

	p, _ := s.Product("p1")
	assert.Equal(t, 7, p.Stock)

	cart, err := s.Carts().Load(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 3, cart.TotalQuantity())
	assert.Equal(t, 1, s.Commits())
}

func TestWithTx_ErrorDiscardsWrites(t *testing.T) {
	s := seed(10)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx domain.InventoryTx) error {
		p, _ := tx.GetProductForUpdate(ctx, "p1")
		p.Stock = 0
		_ = tx.SaveProduct(ctx, p)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := s.Product("p1")
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, 0, s.Commits())
}

func TestWithTx_FailedCommitIsTransactionFailure(t *testing.T) {
	s := seed(10)
	ctx := context.Background()
	s.FailNextCommit(errors.New("deadlock detected"))

	err := s.WithTx(ctx, func(tx domain.InventoryTx) error {
		p, _ := tx.GetProductForUpdate(ctx, "p1")
		p.Stock = 1
		return tx.SaveProduct(ctx, p)
	})
	assert.Equal(t, domain.ETXFAILED, domain.ErrorCode(err))

	p, _ := s.Product("p1")
	assert.Equal(t, 10, p.Stock)

	// The failure is one-shot.
	err = s.WithTx(ctx, func(tx domain.InventoryTx) error { return nil })
	assert.NoError(t, err)
}

func TestGetProductForUpdate_NotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx domain.InventoryTx) error {
		_, err := tx.GetProductForUpdate(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestSaveProduct_RequiresLock(t *testing.T) {
	s := seed(1)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx domain.InventoryTx) error {
		return tx.SaveProduct(ctx, &domain.Product{ID: "p1", Stock: 99})
	})
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestRowLock_SerializesReadModifyWrite(t *testing.T) {
	s := seed(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx domain.InventoryTx) error {
				p, err := tx.GetProductForUpdate(ctx, "p1")
				if err != nil {
					return err
				}
				p.Stock--
				return tx.SaveProduct(ctx, p)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, _ := s.Product("p1")
	assert.Equal(t, 950, p.Stock)
}

func TestCarts_LazyEmptyAndDeleteAbsent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	cart, err := s.Carts().Load(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	assert.NoError(t, s.Carts().Delete(ctx, "nobody"))
}

func TestTxCarts_DeleteVisibleWithinTx(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	cart := domain.NewCart()
	cart.Put(domain.LineItem{ProductID: "p1", Quantity: 2})
	require.NoError(t, s.Carts().Save(ctx, "tok", cart))

	err := s.WithTx(ctx, func(tx domain.InventoryTx) error {
		if err := tx.Carts().Delete(ctx, "tok"); err != nil {
			return err
		}
		got, err := tx.Carts().Load(ctx, "tok")
		if err != nil {
			return err
		}
		assert.True(t, got.IsEmpty())
		return nil
	})
	require.NoError(t, err)

	got, _ := s.Carts().Load(ctx, "tok")
	assert.True(t, got.IsEmpty())
}

func TestBulkGetProducts_SkipsMissing(t *testing.T) {
	s := seed(5)

	got, err := s.BulkGetProducts(context.Background(), []string{"p1", "gone"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "Carrots", got["p1"].Name)
}

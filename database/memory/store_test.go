package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"shop-svc/database"
	"shop-svc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestProductRepository_DecrementStock(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository()
	product := &models.Product{Name: "Mug", Price: 10, Stock: 5}
	require.NoError(t, repo.Create(ctx, product))

	applied, err := repo.DecrementStock(ctx, product.ID, 3)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.DecrementStock(ctx, product.ID, 3)
	require.NoError(t, err)
	assert.False(t, applied, "stock 2 must not cover 3")

	applied, err = repo.DecrementStock(ctx, primitive.NewObjectID(), 1)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestProductRepository_DecrementStock_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository()
	product := &models.Product{Name: "Mug", Price: 10, Stock: 50}
	require.NoError(t, repo.Create(ctx, product))

	var wg sync.WaitGroup
	var applied atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.DecrementStock(ctx, product.ID, 1)
			assert.NoError(t, err)
			if ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(50), applied.Load())
	assert.Equal(t, 0, got.Stock)
}

func TestProductRepository_UpdateKeepsUnpatchedStock(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository()
	product := &models.Product{Name: "Mug", Price: 10, Stock: 5}
	require.NoError(t, repo.Create(ctx, product))

	// The caller read stock 5 before this decrement; the patch must not restore it.
	applied, err := repo.DecrementStock(ctx, product.ID, 3)
	require.NoError(t, err)
	require.True(t, applied)

	name := "Big Mug"
	updated, err := repo.Update(ctx, product.ID, models.UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", updated.Name)
	assert.Equal(t, 2, updated.Stock)
	assert.Equal(t, 10.0, updated.Price)

	stock := 7
	updated, err = repo.Update(ctx, product.ID, models.UpdateProductRequest{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Stock)
	assert.Equal(t, "Big Mug", updated.Name)

	_, err = repo.Update(ctx, primitive.NewObjectID(), models.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestProductRepository_IncrementStock_NotFound(t *testing.T) {
	err := NewProductRepository().IncrementStock(context.Background(), primitive.NewObjectID(), 1)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	require.NoError(t, repo.Create(ctx, &models.User{Name: "A", Email: "a@example.com"}))
	err := repo.Create(ctx, &models.User{Name: "B", Email: " A@Example.com"})
	assert.ErrorIs(t, err, database.ErrDuplicateKey)

	got, err := repo.FindByEmail(ctx, "A@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
}

func TestOrderRepository_FindAndUpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	owner := primitive.NewObjectID()

	mine := &models.Order{User: owner, Status: models.OrderStatusPending}
	other := &models.Order{User: primitive.NewObjectID(), Status: models.OrderStatusPending}
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, other))

	all, err := repo.Find(ctx, database.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := repo.Find(ctx, database.OrderFilter{UserID: &owner})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	before, after, err := repo.UpdateStatus(ctx, mine.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, before.Status)
	assert.Equal(t, models.OrderStatusShipped, after.Status)

	stored, err := repo.FindByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, stored.Status)
	assert.Equal(t, after.UpdatedAt, stored.UpdatedAt)

	_, _, err = repo.UpdateStatus(ctx, primitive.NewObjectID(), models.OrderStatusShipped)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestOrderRepository_MarkRestocked(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	order := &models.Order{User: primitive.NewObjectID(), Status: models.OrderStatusPending}
	require.NoError(t, repo.Create(ctx, order))

	first, err := repo.MarkRestocked(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkRestocked(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, second)

	missing, err := repo.MarkRestocked(ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.False(t, missing)
}

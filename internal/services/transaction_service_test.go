package service

import (
	"context"
	"math"
	"testing"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionService_ListAndStats(t *testing.T) {
	ctx := context.Background()
	store, escrow, buyer, seller := newEscrowFixture(t)
	svc := NewTransactionService(store)

	first := createDeal(t, escrow, buyer, seller, "100")
	createDeal(t, escrow, buyer, seller, "50")
	_, err := escrow.ConfirmDelivery(ctx, first.ID, buyer.ID, true, "")
	require.NoError(t, err)

	page, err := svc.List(ctx, buyer.ID, ListTransactionsQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 2, TotalItems: 2, ItemsPerPage: 1}, page.Pagination)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, seller.Username, page.Transactions[0].Seller.Username)

	page, err = svc.List(ctx, buyer.ID, ListTransactionsQuery{Role: models.RoleSeller})
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.Equal(t, defaultPageSize, page.Pagination.ItemsPerPage)

	page, err = svc.List(ctx, buyer.ID, ListTransactionsQuery{Status: models.StatusCompleted, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, first.ID, page.Transactions[0].ID)

	stats, err := svc.Stats(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Purchases.Total)
	assert.Equal(t, 1, stats.Purchases.Completed)
	assert.Equal(t, 1, stats.Purchases.Active)
	assert.True(t, stats.Purchases.TotalSpent.Equal(dec("100")))

	stats, err = svc.Stats(ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, stats.Sales.TotalEarned.Equal(dec("98")))
}

func TestTransactionService_ListHugePage(t *testing.T) {
	ctx := context.Background()
	store, escrow, buyer, seller := newEscrowFixture(t)
	createDeal(t, escrow, buyer, seller, "100")
	svc := NewTransactionService(store)

	page, err := svc.List(ctx, buyer.ID, ListTransactionsQuery{Page: math.MaxInt, Limit: maxPageSize})
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.Equal(t, maxPage, page.Pagination.CurrentPage)
	assert.Equal(t, 1, page.Pagination.TotalItems)
}

func TestTransactionService_SearchUsers(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := newEscrowFixture(t)
	seedUser(t, store, "amara", models.UserTypeUser, "0")
	seedUser(t, store, "amadu", models.UserTypeRider, "0")
	svc := NewTransactionService(store)

	_, err := svc.SearchUsers(ctx, "a", true, 0)
	assert.ErrorIs(t, err, pkgerrors.ErrSearchTooShort)

	users, err := svc.SearchUsers(ctx, "AMA", true, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"ama", "amara"}, names)

	users, err = svc.SearchUsers(ctx, "ama", false, 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	"github.com/honeynil/SureSend/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var phoneSeq atomic.Int64

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedUser creates an active account with a wallet holding balance.
func seedUser(t *testing.T, store *memory.Store, username string, typ models.UserType, balance string) *models.User {
	t.Helper()
	ctx := context.Background()

	u := &models.User{
		Username:     username,
		PhoneNumber:  fmt.Sprintf("+23324%07d", phoneSeq.Add(1)),
		PasswordHash: "x",
		FullName:     "Test " + username,
		UserType:     typ,
	}
	require.NoError(t, store.Users().Create(ctx, u))
	w := &models.Wallet{UserID: u.ID, Balance: decimal.Zero}
	require.NoError(t, store.Wallets().Create(ctx, w))

	if b := dec(balance); b.IsPositive() {
		err := store.WithinTx(ctx, func(tx repository.Store) error {
			wallet, err := lockWallet(ctx, tx, u.ID)
			if err != nil {
				return err
			}
			_, err = credit(ctx, tx, wallet, b, "Opening balance", "SEED_"+u.ID)
			return err
		})
		require.NoError(t, err)
	}
	return u
}

func balanceOf(t *testing.T, store repository.Store, userID string) decimal.Decimal {
	t.Helper()
	w, err := store.Wallets().GetOverview(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

// requireLedgerChain checks that every wallet entry continues from the
// previous balance and that the wallet ends on the last balanceAfter.
func requireLedgerChain(t *testing.T, store repository.Store, userID string) {
	t.Helper()
	ctx := context.Background()
	hist, _, err := store.Wallets().ListTransactions(ctx, userID, models.WalletTransactionFilter{Limit: 1000})
	require.NoError(t, err)

	running := decimal.Zero
	for i := len(hist) - 1; i >= 0; i-- {
		e := hist[i]
		require.True(t, e.BalanceBefore.Equal(running), "entry %s starts at %s, want %s", e.Reference, e.BalanceBefore, running)
		want := e.BalanceBefore.Add(e.Amount)
		if e.Type == models.EntryDebit {
			want = e.BalanceBefore.Sub(e.Amount)
		}
		require.True(t, e.BalanceAfter.Equal(want), "entry %s ends at %s, want %s", e.Reference, e.BalanceAfter, want)
		running = e.BalanceAfter
	}
	require.True(t, balanceOf(t, store, userID).Equal(running))
}

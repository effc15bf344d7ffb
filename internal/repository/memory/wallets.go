package memory

import (
	"context"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
)

type walletRepo struct{ s *Store }

func (r *walletRepo) Create(_ context.Context, wallet *models.Wallet) error {
	return r.s.write(func(txn *memdb.Txn) error {
		existing, err := first[models.Wallet](txn, tableWallets, "user_id", wallet.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.ErrUserAlreadyExists
		}
		now := time.Now().UTC()
		wallet.ID = newID()
		if wallet.Currency == "" {
			wallet.Currency = models.DefaultCurrency
		}
		wallet.CreatedAt, wallet.UpdatedAt = now, now
		row := *wallet
		return txn.Insert(tableWallets, &row)
	})
}

func (r *walletRepo) GetOverview(_ context.Context, userID string) (*models.WalletOverview, error) {
	var out models.WalletOverview
	err := r.s.read(func(txn *memdb.Txn) error {
		w, err := first[models.Wallet](txn, tableWallets, "user_id", userID)
		if err != nil {
			return err
		}
		if w == nil {
			return pkgerrors.ErrWalletNotFound
		}
		out = models.WalletOverview{Wallet: *w}
		u, err := first[models.User](txn, tableUsers, "id", userID)
		if err != nil {
			return err
		}
		if u != nil {
			out.Username, out.FullName = u.Username, u.FullName
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByUserIDForUpdate needs no row lock here: write transactions are
// already serialized by memdb.
func (r *walletRepo) GetByUserIDForUpdate(_ context.Context, userID string) (*models.Wallet, error) {
	var out models.Wallet
	err := r.s.read(func(txn *memdb.Txn) error {
		w, err := first[models.Wallet](txn, tableWallets, "user_id", userID)
		if err != nil {
			return err
		}
		if w == nil {
			return pkgerrors.ErrWalletNotFound
		}
		out = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *walletRepo) UpdateBalance(_ context.Context, walletID string, balance decimal.Decimal) error {
	return r.s.write(func(txn *memdb.Txn) error {
		w, err := first[models.Wallet](txn, tableWallets, "id", walletID)
		if err != nil {
			return err
		}
		if w == nil {
			return pkgerrors.ErrWalletNotFound
		}
		row := *w
		row.Balance = balance
		row.UpdatedAt = time.Now().UTC()
		return txn.Insert(tableWallets, &row)
	})
}

func (r *walletRepo) AddTransaction(_ context.Context, entry *models.WalletTransaction) error {
	return r.s.write(func(txn *memdb.Txn) error {
		same, err := all[ledgerRow](txn, tableLedger, "reference", entry.Reference)
		if err != nil {
			return err
		}
		for _, e := range same {
			if e.WalletID == entry.WalletID && e.Type == entry.Type {
				return pkgerrors.ErrInvalidReference
			}
		}
		entry.ID = newID()
		entry.CreatedAt = time.Now().UTC()
		return txn.Insert(tableLedger, &ledgerRow{WalletTransaction: *entry, ordered: r.s.stamp()})
	})
}

func (r *walletRepo) ListTransactions(_ context.Context, userID string, filter models.WalletTransactionFilter) ([]models.WalletTransaction, int, error) {
	var matched []models.WalletTransaction
	err := r.s.read(func(txn *memdb.Txn) error {
		w, err := first[models.Wallet](txn, tableWallets, "user_id", userID)
		if err != nil || w == nil {
			return err
		}
		rows, err := all[ledgerRow](txn, tableLedger, "wallet_id", w.ID)
		if err != nil {
			return err
		}
		newestFirst(rows)
		for _, row := range rows {
			e := row.WalletTransaction
			switch {
			case filter.Type != "" && e.Type != filter.Type:
			case filter.StartDate != nil && e.CreatedAt.Before(*filter.StartDate):
			case filter.EndDate != nil && e.CreatedAt.After(*filter.EndDate):
			default:
				matched = append(matched, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	out := append([]models.WalletTransaction{}, page(matched, filter.Limit, filter.Offset)...)
	return out, len(matched), nil
}

func (r *walletRepo) ReferenceExists(_ context.Context, reference string) (bool, error) {
	var exists bool
	err := r.s.read(func(txn *memdb.Txn) error {
		e, err := first[ledgerRow](txn, tableLedger, "reference", reference)
		exists = e != nil
		return err
	})
	return exists, err
}

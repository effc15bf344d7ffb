package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
)

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	if tx == nil {
		return pkgerrors.ErrNilTransaction
	}
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %w", pkgerrors.ErrInvalidInput)
	}
	return r.s.write(func(txn *memdb.Txn) error {
		dup, err := first[transactionRow](txn, tableTransactions, "ref", tx.TransactionRef)
		if err != nil {
			return err
		}
		if dup != nil {
			return fmt.Errorf("duplicate transaction ref %s", tx.TransactionRef)
		}
		tx.ID = newID()
		tx.CreatedAt = time.Now().UTC()
		return txn.Insert(tableTransactions, &transactionRow{Transaction: *tx, ordered: r.s.stamp()})
	})
}

func getTransaction(txn *memdb.Txn, id string) (*transactionRow, error) {
	row, err := first[transactionRow](txn, tableTransactions, "id", id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	return row, nil
}

func (r *transactionRepo) GetForUpdate(_ context.Context, id string) (*models.Transaction, error) {
	var out models.Transaction
	err := r.s.read(func(txn *memdb.Txn) error {
		row, err := getTransaction(txn, id)
		if err != nil {
			return err
		}
		out = row.Transaction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *transactionRepo) modify(id string, fn func(t *models.Transaction)) error {
	return r.s.write(func(txn *memdb.Txn) error {
		row, err := getTransaction(txn, id)
		if err != nil {
			return err
		}
		updated := *row
		fn(&updated.Transaction)
		return txn.Insert(tableTransactions, &updated)
	})
}

func (r *transactionRepo) UpdateStatus(_ context.Context, id string, status models.StatusType, completedAt *time.Time) error {
	return r.modify(id, func(t *models.Transaction) {
		t.Status = status
		if completedAt != nil {
			at := *completedAt
			t.CompletedAt = &at
		}
	})
}

func (r *transactionRepo) SetRider(_ context.Context, id, riderID string) error {
	return r.modify(id, func(t *models.Transaction) {
		rider := riderID
		t.RiderID = &rider
	})
}

func (r *transactionRepo) CreateEscrowAccount(_ context.Context, account *models.EscrowAccount) error {
	return r.s.write(func(txn *memdb.Txn) error {
		if _, err := getTransaction(txn, account.TransactionID); err != nil {
			return err
		}
		old, err := first[models.EscrowAccount](txn, tableEscrowAccounts, "transaction_id", account.TransactionID)
		if err != nil {
			return err
		}
		if old != nil {
			if err := txn.Delete(tableEscrowAccounts, old); err != nil {
				return err
			}
		}
		account.ID = newID()
		account.HeldAt = time.Now().UTC()
		row := *account
		return txn.Insert(tableEscrowAccounts, &row)
	})
}

func (r *transactionRepo) SettleEscrow(_ context.Context, transactionID string, status models.EscrowStatus, at time.Time, notes string) error {
	return r.s.write(func(txn *memdb.Txn) error {
		e, err := first[models.EscrowAccount](txn, tableEscrowAccounts, "transaction_id", transactionID)
		if err != nil {
			return err
		}
		if e == nil {
			return pkgerrors.ErrTransactionNotFound
		}
		row := *e
		switch status {
		case models.EscrowReleased:
			row.ReleasedAt = &at
		case models.EscrowRefunded:
			row.RefundedAt = &at
		default:
			return fmt.Errorf("cannot settle escrow as %q: %w", status, pkgerrors.ErrInvalidTransition)
		}
		row.Status = status
		row.Notes = &notes
		return txn.Insert(tableEscrowAccounts, &row)
	})
}

func (r *transactionRepo) CreateDispute(_ context.Context, dispute *models.Dispute) error {
	return r.s.write(func(txn *memdb.Txn) error {
		dispute.ID = newID()
		dispute.CreatedAt = time.Now().UTC()
		return txn.Insert(tableDisputes, &disputeRow{Dispute: *dispute, ordered: r.s.stamp()})
	})
}

func listDisputes(txn *memdb.Txn, transactionID string) ([]models.Dispute, error) {
	rows, err := all[disputeRow](txn, tableDisputes, "transaction_id", transactionID)
	if err != nil {
		return nil, err
	}
	newestFirst(rows)
	out := []models.Dispute{}
	for _, row := range rows {
		out = append(out, row.Dispute)
	}
	return out, nil
}

func (r *transactionRepo) ListDisputes(_ context.Context, transactionID string) ([]models.Dispute, error) {
	var out []models.Dispute
	err := r.s.read(func(txn *memdb.Txn) error {
		var err error
		out, err = listDisputes(txn, transactionID)
		return err
	})
	return out, err
}

func (r *transactionRepo) AddLog(_ context.Context, entry *models.TransactionLog) error {
	return r.s.write(func(txn *memdb.Txn) error {
		entry.ID = newID()
		entry.CreatedAt = time.Now().UTC()
		return txn.Insert(tableLogs, &logRow{TransactionLog: *entry, ordered: r.s.stamp()})
	})
}

func lookupUser(txn *memdb.Txn, id string) (models.User, error) {
	u, err := first[models.User](txn, tableUsers, "id", id)
	if err != nil || u == nil {
		return models.User{}, err
	}
	return *u, nil
}

func publicUser(txn *memdb.Txn, id string, withPhone bool) (models.PublicUser, error) {
	u, err := lookupUser(txn, id)
	if err != nil {
		return models.PublicUser{}, err
	}
	p := models.PublicUser{ID: id, Username: u.Username, FullName: u.FullName}
	if withPhone {
		phone := u.PhoneNumber
		p.PhoneNumber = &phone
	}
	return p, nil
}

func (r *transactionRepo) GetDetails(_ context.Context, id, participantID string) (*models.EscrowDetails, error) {
	var out models.EscrowDetails
	err := r.s.read(func(txn *memdb.Txn) error {
		row, err := getTransaction(txn, id)
		if err != nil {
			return err
		}
		t := row.Transaction
		if !t.IsParticipant(participantID) {
			return pkgerrors.ErrTransactionNotFound
		}
		out = models.EscrowDetails{Transaction: t}
		if out.Buyer, err = publicUser(txn, t.BuyerID, true); err != nil {
			return err
		}
		if out.Seller, err = publicUser(txn, t.SellerID, true); err != nil {
			return err
		}

		e, err := first[models.EscrowAccount](txn, tableEscrowAccounts, "transaction_id", id)
		if err != nil {
			return err
		}
		if e != nil {
			held := e.HeldAt
			out.EscrowStatus = e.Status
			out.HeldAt = &held
			out.ReleasedAt = e.ReleasedAt
			out.RefundedAt = e.RefundedAt
		}
		if t.RiderID != nil {
			rider, err := publicUser(txn, *t.RiderID, true)
			if err != nil {
				return err
			}
			out.Rider = &rider
		}
		if out.Disputes, err = listDisputes(txn, id); err != nil {
			return err
		}

		logs, err := all[logRow](txn, tableLogs, "transaction_id", id)
		if err != nil {
			return err
		}
		newestFirst(logs)
		out.Logs = []models.TransactionLog{}
		for _, lr := range logs {
			l := lr.TransactionLog
			u, err := lookupUser(txn, l.CreatedBy)
			if err != nil {
				return err
			}
			l.Username, l.FullName = u.Username, u.FullName
			out.Logs = append(out.Logs, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func matchesRole(t models.Transaction, userID string, role models.ParticipantRole) bool {
	switch role {
	case models.RoleBuyer:
		return t.BuyerID == userID
	case models.RoleSeller:
		return t.SellerID == userID
	case models.RoleRider:
		return t.RiderID != nil && *t.RiderID == userID
	default:
		return t.IsParticipant(userID)
	}
}

func allTransactions(txn *memdb.Txn) ([]*transactionRow, error) {
	rows, err := all[transactionRow](txn, tableTransactions, "id")
	if err != nil {
		return nil, err
	}
	newestFirst(rows)
	return rows, nil
}

func (r *transactionRepo) List(_ context.Context, userID string, filter models.TransactionFilter) ([]models.TransactionSummary, int, error) {
	var matched []models.TransactionSummary
	err := r.s.read(func(txn *memdb.Txn) error {
		rows, err := allTransactions(txn)
		if err != nil {
			return err
		}
		for _, row := range rows {
			t := row.Transaction
			if !matchesRole(t, userID, filter.Role) ||
				(filter.Status != "" && t.Status != filter.Status) ||
				(filter.Type != "" && t.Type != filter.Type) {
				continue
			}
			s := models.TransactionSummary{Transaction: t}
			if s.Buyer, err = publicUser(txn, t.BuyerID, false); err != nil {
				return err
			}
			if s.Seller, err = publicUser(txn, t.SellerID, false); err != nil {
				return err
			}
			if t.RiderID != nil {
				rider, err := publicUser(txn, *t.RiderID, false)
				if err != nil {
					return err
				}
				s.Rider = &rider
			}
			matched = append(matched, s)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	out := append([]models.TransactionSummary{}, page(matched, filter.Limit, filter.Offset)...)
	return out, len(matched), nil
}

func (r *transactionRepo) Stats(_ context.Context, userID string) (*models.TransactionStats, error) {
	var s models.TransactionStats
	s.Purchases.TotalSpent = decimal.Zero
	s.Sales.TotalEarned = decimal.Zero
	err := r.s.read(func(txn *memdb.Txn) error {
		rows, err := allTransactions(txn)
		if err != nil {
			return err
		}
		for _, row := range rows {
			t := row.Transaction
			if t.BuyerID == userID {
				s.Purchases.Total++
				switch t.Status {
				case models.StatusCompleted:
					s.Purchases.Completed++
					s.Purchases.TotalSpent = s.Purchases.TotalSpent.Add(t.Amount)
				case models.StatusInEscrow:
					s.Purchases.Active++
				}
			}
			if t.SellerID == userID {
				s.Sales.Total++
				switch t.Status {
				case models.StatusCompleted:
					s.Sales.Completed++
					s.Sales.TotalEarned = s.Sales.TotalEarned.Add(t.PayoutAmount())
				case models.StatusInEscrow:
					s.Sales.Active++
				}
			}
			if t.RiderID != nil && *t.RiderID == userID {
				s.Deliveries.Total++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *transactionRepo) CountDeals(_ context.Context, userID string) (models.DealCounts, error) {
	var c models.DealCounts
	err := r.s.read(func(txn *memdb.Txn) error {
		rows, err := allTransactions(txn)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.BuyerID != userID && row.SellerID != userID {
				continue
			}
			c.Total++
			if row.Status == models.StatusCompleted {
				c.Completed++
			}
		}
		return nil
	})
	return c, err
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/honeynil/SureSend/internal/repository"
)

// Store is an in-memory implementation of repository.Store on go-memdb.
// Write transactions are serialized and reads run against immutable
// snapshots, so readers never observe partial writes.
type Store struct {
	db  *memdb.MemDB
	txn *memdb.Txn
	seq *atomic.Uint64
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(fmt.Sprintf("memory: invalid schema: %v", err))
	}
	return &Store{db: db, seq: new(atomic.Uint64)}
}

// read runs fn on the open transaction, or on a fresh snapshot.
func (s *Store) read(fn func(txn *memdb.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fn(txn)
}

// write runs fn on the open transaction, or in its own write transaction
// that commits when fn succeeds.
func (s *Store) write(fn func(txn *memdb.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

func (s *Store) Wallets() repository.WalletRepository { return &walletRepo{s} }

func (s *Store) Transactions() repository.TransactionRepository { return &transactionRepo{s} }

func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }

func (s *Store) OTPs() repository.OTPRepository { return &otpRepo{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.txn != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := fn(&Store{db: s.db, txn: txn, seq: s.seq}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func newID() string { return uuid.NewString() }

// ordered gives rows an insertion sequence for newest-first listings.
type ordered struct {
	Seq uint64
}

func (o ordered) order() uint64 { return o.Seq }

func (s *Store) stamp() ordered { return ordered{Seq: s.seq.Add(1)} }

func newestFirst[T interface{ order() uint64 }](rows []T) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].order() > rows[j].order() })
}

func first[T any](txn *memdb.Txn, table, index string, args ...interface{}) (*T, error) {
	raw, err := txn.First(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: lookup %s by %s: %w", table, index, err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*T), nil
}

func all[T any](txn *memdb.Txn, table, index string, args ...interface{}) ([]*T, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: scan %s by %s: %w", table, index, err)
	}
	var out []*T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*T))
	}
	return out, nil
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

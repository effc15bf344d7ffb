package repository

import "context"

// Store groups the repositories behind one connection or transaction.
type Store interface {
	Users() UserRepository
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Notifications() NotificationRepository
	OTPs() OTPRepository

	// WithinTx runs fn against a store bound to a single database
	// transaction. The transaction commits when fn returns nil and rolls
	// back otherwise. Calling WithinTx on a transactional store joins the
	// outer transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

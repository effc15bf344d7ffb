package memory

import (
	"github.com/hashicorp/go-memdb"
	"github.com/honeynil/SureSend/internal/models"
)

const (
	tableUsers          = "users"
	tableKYCDocuments   = "kyc_documents"
	tableWallets        = "wallets"
	tableLedger         = "wallet_transactions"
	tableTransactions   = "transactions"
	tableEscrowAccounts = "escrow_accounts"
	tableDisputes       = "disputes"
	tableLogs           = "transaction_logs"
	tableNotifications  = "notifications"
	tableOTPs           = "otp_verifications"
)

// Rows that are listed newest first carry an insertion sequence.
type (
	kycRow struct {
		models.KYCDocument
		ordered
	}
	ledgerRow struct {
		models.WalletTransaction
		ordered
	}
	transactionRow struct {
		models.Transaction
		ordered
	}
	disputeRow struct {
		models.Dispute
		ordered
	}
	logRow struct {
		models.TransactionLog
		ordered
	}
	notificationRow struct {
		models.Notification
		ordered
	}
	otpRow struct {
		models.OTPVerification
		ordered
	}
)

// Uniqueness on secondary indexes is checked by the repositories before
// insert; memdb only enforces it on "id".
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableUsers:          table(tableUsers, field("username", "Username"), field("phone", "PhoneNumber")),
		tableKYCDocuments:   table(tableKYCDocuments, field("user_id", "UserID")),
		tableWallets:        table(tableWallets, field("user_id", "UserID")),
		tableLedger:         table(tableLedger, field("wallet_id", "WalletID"), field("reference", "Reference")),
		tableTransactions:   table(tableTransactions, field("ref", "TransactionRef")),
		tableEscrowAccounts: table(tableEscrowAccounts, field("transaction_id", "TransactionID")),
		tableDisputes:       table(tableDisputes, field("transaction_id", "TransactionID")),
		tableLogs:           table(tableLogs, field("transaction_id", "TransactionID")),
		tableNotifications:  table(tableNotifications, field("user_id", "UserID")),
		tableOTPs:           table(tableOTPs, field("phone", "PhoneNumber")),
	},
}

func table(name string, indexes ...*memdb.IndexSchema) *memdb.TableSchema {
	t := &memdb.TableSchema{
		Name: name,
		Indexes: map[string]*memdb.IndexSchema{
			"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
		},
	}
	for _, idx := range indexes {
		t.Indexes[idx.Name] = idx
	}
	return t
}

func field(name, structField string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:         name,
		AllowMissing: true,
		Indexer:      &memdb.StringFieldIndex{Field: structField},
	}
}

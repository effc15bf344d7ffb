package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "GHS"

type Wallet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// WalletOverview is a wallet joined with its owner's display fields.
type WalletOverview struct {
	Wallet
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type EntryType string

const (
	EntryCredit EntryType = "credit"
	EntryDebit  EntryType = "debit"
)

// WalletTransaction is an immutable ledger entry.
type WalletTransaction struct {
	ID            string          `json:"id"`
	WalletID      string          `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	Type          EntryType       `json:"type"`
	Description   string          `json:"description"`
	Reference     string          `json:"reference"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// WalletTransactionFilter narrows the ledger history. Zero values mean "any".
type WalletTransactionFilter struct {
	Type      EntryType
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type FundingMethod string

const (
	FundingPaystack    FundingMethod = "paystack"
	FundingMobileMoney FundingMethod = "mobile_money"
)

type WithdrawalMethod string

const (
	WithdrawBankTransfer WithdrawalMethod = "bank_transfer"
	WithdrawMobileMoney  WithdrawalMethod = "mobile_money"
)

type AccountDetails struct {
	AccountNumber string `json:"accountNumber,omitempty"`
	BankName      string `json:"bankName,omitempty"`
	AccountName   string `json:"accountName"`
	MobileNumber  string `json:"mobileNumber,omitempty"`
	Network       string `json:"network,omitempty"`
}

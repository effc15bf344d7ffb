package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an escrow deal between a buyer and a seller.
type Transaction struct {
	ID             string          `json:"id"`
	TransactionRef string          `json:"transactionRef"`
	BuyerID        string          `json:"buyerId"`
	SellerID       string          `json:"sellerId"`
	RiderID        *string         `json:"riderId"`
	Amount         decimal.Decimal `json:"amount"`
	Commission     decimal.Decimal `json:"commission"`
	Status         StatusType      `json:"status"`
	Type           TransactionType `json:"type"`
	Description    string          `json:"description"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	CreatedAt      time.Time       `json:"createdAt"`
	CompletedAt    *time.Time      `json:"completedAt"`
}

// PayoutAmount is what the seller receives on release.
func (t *Transaction) PayoutAmount() decimal.Decimal {
	return t.Amount.Sub(t.Commission)
}

// IsParticipant reports whether userID is the buyer, seller or rider.
func (t *Transaction) IsParticipant(userID string) bool {
	return t.BuyerID == userID || t.SellerID == userID || (t.RiderID != nil && *t.RiderID == userID)
}

type TransactionType string

const TypeEscrow TransactionType = "escrow"

type StatusType string

const (
	StatusInEscrow  StatusType = "in_escrow"
	StatusCompleted StatusType = "completed"
	StatusDisputed  StatusType = "disputed"
	StatusCancelled StatusType = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s StatusType) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentWallet PaymentMethod = "wallet"
	PaymentMomo   PaymentMethod = "momo"
	PaymentCard   PaymentMethod = "card"
)

type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

type EscrowAccount struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        EscrowStatus    `json:"status"`
	HeldAt        time.Time       `json:"heldAt"`
	ReleasedAt    *time.Time      `json:"releasedAt"`
	RefundedAt    *time.Time      `json:"refundedAt"`
	Notes         *string         `json:"notes"`
}

type DisputeStatus string

const DisputeOpen DisputeStatus = "open"

type Dispute struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transactionId"`
	RaisedBy      string        `json:"raisedBy"`
	Reason        string        `json:"reason"`
	Status        DisputeStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type LogAction string

const (
	LogCreated       LogAction = "created"
	LogCompleted     LogAction = "completed"
	LogDisputed      LogAction = "disputed"
	LogCancelled     LogAction = "cancelled"
	LogRiderAssigned LogAction = "rider_assigned"
)

type TransactionLog struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Action        LogAction `json:"action"`
	Description   string    `json:"description"`
	CreatedBy     string    `json:"createdBy"`
	Username      string    `json:"username,omitempty"`
	FullName      string    `json:"fullName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EscrowDetails is the participant view of a deal.
type EscrowDetails struct {
	Transaction
	EscrowStatus EscrowStatus     `json:"escrowStatus"`
	HeldAt       *time.Time       `json:"heldAt"`
	ReleasedAt   *time.Time       `json:"releasedAt"`
	RefundedAt   *time.Time       `json:"refundedAt"`
	Buyer        PublicUser       `json:"buyer"`
	Seller       PublicUser       `json:"seller"`
	Rider        *PublicUser      `json:"rider"`
	Disputes     []Dispute        `json:"disputes"`
	Logs         []TransactionLog `json:"logs"`
}

// TransactionSummary is one row of the deal listing.
type TransactionSummary struct {
	Transaction
	Buyer  PublicUser  `json:"buyer"`
	Seller PublicUser  `json:"seller"`
	Rider  *PublicUser `json:"rider"`
}

type ParticipantRole string

const (
	RoleAny    ParticipantRole = ""
	RoleBuyer  ParticipantRole = "buyer"
	RoleSeller ParticipantRole = "seller"
	RoleRider  ParticipantRole = "rider"
)

type TransactionFilter struct {
	Role   ParticipantRole
	Status StatusType
	Type   TransactionType
	Limit  int
	Offset int
}

type TransactionStats struct {
	Purchases struct {
		Total      int             `json:"total"`
		Completed  int             `json:"completed"`
		Active     int             `json:"active"`
		TotalSpent decimal.Decimal `json:"totalSpent"`
	} `json:"purchases"`
	Sales struct {
		Total       int             `json:"total"`
		Completed   int             `json:"completed"`
		Active      int             `json:"active"`
		TotalEarned decimal.Decimal `json:"totalEarned"`
	} `json:"sales"`
	Deliveries struct {
		Total int `json:"total"`
	} `json:"deliveries"`
}

// DealCounts backs the profile summary.
type DealCounts struct {
	Total     int `json:"totalTransactions"`
	Completed int `json:"completedTransactions"`
}

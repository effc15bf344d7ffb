package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/honeynil/SureSend/internal/infrastructure/kafka"
	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/infrastructure/payment"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WalletService interface {
	GetWallet(ctx context.Context, userID string) (*models.WalletOverview, error)
	GetTransactions(ctx context.Context, userID string, filter models.WalletTransactionFilter) (*WalletHistory, error)
	FundWallet(ctx context.Context, userID string, amount decimal.Decimal, method models.FundingMethod) (*FundingResult, error)
	HandlePaystackWebhook(ctx context.Context, payload []byte, signature string) error
	Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawalResult, error)
	Transfer(ctx context.Context, in TransferInput) (*TransferResult, error)
}

type WalletHistory struct {
	Transactions []models.WalletTransaction
	Total        int
	Limit        int
	Offset       int
	HasMore      bool
}

type FundingResult struct {
	Reference     string
	Amount        decimal.Decimal
	PaymentMethod models.FundingMethod
	PaymentURL    string
}

type WithdrawInput struct {
	UserID         string
	Amount         decimal.Decimal
	Method         models.WithdrawalMethod
	AccountDetails models.AccountDetails
}

type WithdrawalResult struct {
	Reference  string
	Amount     decimal.Decimal
	Method     models.WithdrawalMethod
	Status     string
	NewBalance decimal.Decimal
}

type TransferInput struct {
	SenderID          string
	RecipientUsername string
	Amount            decimal.Decimal
	Description       string
}

type TransferResult struct {
	Reference  string
	Amount     decimal.Decimal
	Recipient  string
	NewBalance decimal.Decimal
}

const WithdrawalPending = "pending"

type walletService struct {
	store   repository.Store
	gateway payment.Gateway
	events  *kafka.Publisher
	now     func() time.Time
}

func NewWalletService(store repository.Store, gateway payment.Gateway, events *kafka.Publisher) *walletService {
	return &walletService{store: store, gateway: gateway, events: events, now: time.Now}
}

func (s *walletService) GetWallet(ctx context.Context, userID string) (*models.WalletOverview, error) {
	ctx, span := tracer.Start(ctx, "GetWallet")
	defer span.End()

	w, err := s.store.Wallets().GetOverview(ctx, userID)
	if err != nil {
		return nil, spanFail(span, err, "get wallet failed")
	}
	return w, nil
}

func (s *walletService) GetTransactions(ctx context.Context, userID string, filter models.WalletTransactionFilter) (*WalletHistory, error) {
	ctx, span := tracer.Start(ctx, "GetWalletTransactions")
	defer span.End()

	filter.Limit = clampLimit(filter.Limit, defaultPageSize)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	switch filter.Type {
	case "", models.EntryCredit, models.EntryDebit:
	default:
		// unknown types are ignored rather than rejected
		filter.Type = ""
	}

	entries, total, err := s.store.Wallets().ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, spanFail(span, err, "list ledger failed")
	}
	return &WalletHistory{
		Transactions: entries,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
		HasMore:      filter.Offset+len(entries) < total,
	}, nil
}

func (s *walletService) FundWallet(ctx context.Context, userID string, amount decimal.Decimal, method models.FundingMethod) (*FundingResult, error) {
	ctx, span := tracer.Start(ctx, "FundWallet", trace.WithAttributes(attribute.String("method", string(method))))
	defer span.End()

	if amount.LessThan(decimal.NewFromInt(10)) {
		return nil, spanFail(span, pkgerrors.NewValidationError("amount", "Minimum deposit is GHS 10.00"), "amount too small")
	}
	if amount.GreaterThan(decimal.NewFromInt(10000)) {
		return nil, spanFail(span, pkgerrors.NewValidationError("amount", "Maximum deposit is GHS 10,000.00"), "amount too large")
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, spanFail(span, err, "user lookup failed")
	}

	req := payment.InitRequest{
		Reference: models.NewFundingRef(user.ID, s.now()),
		Amount:    amount.Round(2),
		Method:    method,
		Phone:     user.PhoneNumber,
	}
	if user.Email != nil {
		req.Email = *user.Email
	}
	checkout, err := s.gateway.Initialize(ctx, req)
	if err != nil {
		observability.WithContext(ctx).Error("failed to initialize payment", "user_id", userID, "error", err)
		return nil, spanFail(span, err, "payment init failed")
	}

	observability.WithContext(ctx).Info("wallet funding initialized", "user_id", userID, "reference", checkout.Reference, "amount", req.Amount)
	return &FundingResult{
		Reference:     checkout.Reference,
		Amount:        req.Amount,
		PaymentMethod: method,
		PaymentURL:    checkout.AuthorizationURL,
	}, nil
}

// HandlePaystackWebhook credits the wallet named in a successful charge.
// Redelivered events for an already credited reference are acknowledged
// without crediting again.
func (s *walletService) HandlePaystackWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := tracer.Start(ctx, "HandlePaystackWebhook")
	defer span.End()

	evt, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		observability.WithContext(ctx).Warn("rejected payment webhook", "error", err)
		return spanFail(span, err, "webhook verification failed")
	}
	if evt.Event != payment.EventChargeSuccess {
		observability.WithContext(ctx).Info("ignoring payment webhook", "event", evt.Event)
		return nil
	}

	ref := evt.Data.Reference
	span.SetAttributes(attribute.String("reference", ref))
	userID, ok := models.ParseFundingRef(ref)
	if !ok {
		return spanFail(span, fmt.Errorf("%w: %s", pkgerrors.ErrInvalidReference, ref), "bad reference")
	}
	amount := evt.MajorAmount()
	if !amount.IsPositive() {
		return spanFail(span, fmt.Errorf("%w: non-positive charge amount", pkgerrors.ErrInvalidInput), "bad amount")
	}

	var (
		entry     *models.WalletTransaction
		duplicate bool
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		seen, err := tx.Wallets().ReferenceExists(ctx, ref)
		if err != nil {
			return err
		}
		if seen {
			duplicate = true
			return nil
		}
		wallet, err := lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		entry, err = credit(ctx, tx, wallet, amount, "Wallet funded via Paystack", ref)
		return err
	})
	if stderrors.Is(err, pkgerrors.ErrInvalidReference) {
		// a concurrent delivery won the unique index
		duplicate, err = true, nil
	}
	if err != nil {
		observability.WithContext(ctx).Error("failed to credit wallet from webhook", "reference", ref, "error", err)
		return spanFail(span, err, "credit failed")
	}
	if duplicate {
		observability.WithContext(ctx).Info("duplicate payment webhook ignored", "reference", ref)
		return nil
	}

	recordMovements(movement{entry, "funding"})
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventWalletFunded, userID, map[string]any{
		"reference":    ref,
		"amount":       amount.String(),
		"balanceAfter": entry.BalanceAfter.String(),
	}))
	observability.WithContext(ctx).Info("wallet funded", "user_id", userID, "reference", ref, "amount", amount)
	return nil
}

func (s *walletService) Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawalResult, error) {
	ctx, span := tracer.Start(ctx, "Withdraw", trace.WithAttributes(attribute.String("method", string(in.Method))))
	defer span.End()

	amount := in.Amount.Round(2)
	if amount.LessThan(decimal.NewFromInt(50)) {
		return nil, spanFail(span, pkgerrors.NewValidationError("amount", "Minimum withdrawal is GHS 50.00"), "amount too small")
	}

	ref := models.NewLedgerRef("WD", s.now())
	var entry *models.WalletTransaction
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		wallet, err := lockWallet(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		entry, err = debit(ctx, tx, wallet, amount, fmt.Sprintf("Withdrawal via %s", in.Method), ref)
		return err
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to withdraw", "user_id", in.UserID, "amount", amount, "error", err)
		return nil, spanFail(span, err, "withdraw failed")
	}

	recordMovements(movement{entry, "withdrawal"})
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventWalletWithdrawn, in.UserID, map[string]any{
		"reference":   ref,
		"amount":      amount.String(),
		"method":      in.Method,
		"accountName": in.AccountDetails.AccountName,
	}))
	observability.WithContext(ctx).Info("withdrawal requested", "user_id", in.UserID, "reference", ref, "amount", amount)

	return &WithdrawalResult{
		Reference:  ref,
		Amount:     amount,
		Method:     in.Method,
		Status:     WithdrawalPending,
		NewBalance: entry.BalanceAfter,
	}, nil
}

func (s *walletService) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	ctx, span := tracer.Start(ctx, "Transfer", trace.WithAttributes(attribute.String("sender_id", in.SenderID)))
	defer span.End()

	amount := in.Amount.Round(2)
	if amount.LessThan(decimal.NewFromInt(1)) {
		return nil, spanFail(span, pkgerrors.NewValidationError("amount", "Minimum transfer is GHS 1.00"), "amount too small")
	}

	ref := models.NewLedgerRef("TXF", s.now())
	var (
		recipient *models.User
		debitRow  *models.WalletTransaction
		creditRow *models.WalletTransaction
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		recipient, err = tx.Users().GetActiveByUsername(ctx, in.RecipientUsername)
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return pkgerrors.ErrRecipientNotFound
		}
		if err != nil {
			return err
		}
		if recipient.ID == in.SenderID {
			return pkgerrors.ErrSelfTransfer
		}
		sender, err := tx.Users().GetByID(ctx, in.SenderID)
		if err != nil {
			return err
		}

		// lock in user id order so opposite transfers cannot deadlock
		wallets := make(map[string]*models.Wallet, 2)
		first, second := in.SenderID, recipient.ID
		if second < first {
			first, second = second, first
		}
		for _, id := range []string{first, second} {
			if wallets[id], err = lockWallet(ctx, tx, id); err != nil {
				return err
			}
		}

		debitRow, err = debit(ctx, tx, wallets[in.SenderID], amount,
			orDefault(in.Description, "Transfer to @"+recipient.Username), ref)
		if err != nil {
			return err
		}
		creditRow, err = credit(ctx, tx, wallets[recipient.ID], amount,
			orDefault(in.Description, "Transfer from @"+sender.Username), ref)
		if err != nil {
			return err
		}
		return notify(ctx, tx, recipient.ID, "Money Received",
			fmt.Sprintf("You received GHS %s from @%s", money(amount), sender.Username),
			models.NotificationTransaction)
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to transfer", "sender_id", in.SenderID, "recipient", in.RecipientUsername, "error", err)
		return nil, spanFail(span, err, "transfer failed")
	}

	recordMovements(movement{debitRow, "transfer"}, movement{creditRow, "transfer"})
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventWalletTransfer, in.SenderID, map[string]any{
		"reference":   ref,
		"amount":      amount.String(),
		"recipientId": recipient.ID,
	}))
	observability.WithContext(ctx).Info("transfer completed", "sender_id", in.SenderID, "recipient_id", recipient.ID, "reference", ref, "amount", amount)

	return &TransferResult{
		Reference:  ref,
		Amount:     amount,
		Recipient:  recipient.Username,
		NewBalance: debitRow.BalanceAfter,
	}, nil
}

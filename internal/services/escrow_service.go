package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/honeynil/SureSend/internal/infrastructure/kafka"
	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type EscrowService interface {
	CreateEscrow(ctx context.Context, in CreateEscrowInput) (*models.Transaction, error)
	GetEscrowDetails(ctx context.Context, transactionID, requesterID string) (*models.EscrowDetails, error)
	ConfirmDelivery(ctx context.Context, transactionID, buyerID string, confirmed bool, notes string) (*models.Transaction, error)
	RaiseDispute(ctx context.Context, transactionID, userID, reason string) (*models.Dispute, error)
	CancelTransaction(ctx context.Context, transactionID, buyerID, reason string) (*models.Transaction, error)
	AssignRider(ctx context.Context, transactionID, userID, riderID string) (*models.Transaction, error)
}

type CreateEscrowInput struct {
	BuyerID       string
	SellerID      string
	Amount        decimal.Decimal
	Description   string
	PaymentMethod models.PaymentMethod
	RiderID       string
}

type escrowService struct {
	store          repository.Store
	events         *kafka.Publisher
	commissionRate decimal.Decimal
	now            func() time.Time
}

func NewEscrowService(store repository.Store, events *kafka.Publisher, commissionRate decimal.Decimal) *escrowService {
	return &escrowService{
		store:          store,
		events:         events,
		commissionRate: commissionRate,
		now:            time.Now,
	}
}

// Commission is the platform fee kept on release, rounded to cents.
func Commission(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

func (s *escrowService) CreateEscrow(ctx context.Context, in CreateEscrowInput) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "CreateEscrow", trace.WithAttributes(
		attribute.String("buyer_id", in.BuyerID),
		attribute.String("payment_method", string(in.PaymentMethod)),
	))
	defer span.End()

	if in.BuyerID == in.SellerID {
		return nil, spanFail(span, pkgerrors.ErrSelfTransaction, "self transaction")
	}
	if !in.Amount.IsPositive() {
		return nil, spanFail(span, pkgerrors.NewValidationError("amount", "Amount must be greater than 0"), "invalid amount")
	}
	switch in.PaymentMethod {
	case models.PaymentWallet, models.PaymentMomo, models.PaymentCard:
	default:
		return nil, spanFail(span, pkgerrors.NewValidationError("paymentMethod", "Payment method must be wallet, momo, or card"), "invalid payment method")
	}

	now := s.now().UTC()
	deal := &models.Transaction{
		TransactionRef: models.NewEscrowRef(now),
		BuyerID:        in.BuyerID,
		SellerID:       in.SellerID,
		Amount:         in.Amount,
		Commission:     Commission(in.Amount, s.commissionRate),
		Status:         models.StatusInEscrow,
		Type:           models.TypeEscrow,
		Description:    in.Description,
		PaymentMethod:  in.PaymentMethod,
	}
	if in.RiderID != "" {
		rider := in.RiderID
		deal.RiderID = &rider
	}

	var moves []movement
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		seller, err := tx.Users().GetByID(ctx, in.SellerID)
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return pkgerrors.ErrSellerNotFound
		}
		if err != nil {
			return err
		}
		if !seller.IsActive || seller.UserType != models.UserTypeUser {
			return pkgerrors.ErrNotSeller
		}
		if deal.RiderID != nil {
			if err := checkRider(ctx, tx, *deal.RiderID); err != nil {
				return err
			}
		}

		if in.PaymentMethod == models.PaymentWallet {
			wallet, err := lockWallet(ctx, tx, in.BuyerID)
			if err != nil {
				return err
			}
			entry, err := debit(ctx, tx, wallet, in.Amount, "Escrow payment", deal.TransactionRef)
			if err != nil {
				return err
			}
			moves = append(moves, movement{entry, "escrow_payment"})
		}

		if err := tx.Transactions().Create(ctx, deal); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		account := &models.EscrowAccount{TransactionID: deal.ID, Amount: deal.Amount, Status: models.EscrowHeld}
		if err := tx.Transactions().CreateEscrowAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to hold escrow: %w", err)
		}
		if err := addLog(ctx, tx, deal.ID, models.LogCreated, "Escrow transaction created", in.BuyerID); err != nil {
			return err
		}

		if err := notify(ctx, tx, deal.SellerID, "New Escrow Payment",
			fmt.Sprintf("You have received an escrow payment of GHS %s for: %s", money(deal.Amount), deal.Description),
			models.NotificationTransaction); err != nil {
			return err
		}
		if deal.RiderID != nil {
			return notify(ctx, tx, *deal.RiderID, "New Delivery",
				fmt.Sprintf("You have been assigned a delivery for transaction %s", deal.TransactionRef),
				models.NotificationDelivery)
		}
		return nil
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to create escrow", "buyer_id", in.BuyerID, "seller_id", in.SellerID, "error", err)
		return nil, spanFail(span, err, "create escrow failed")
	}

	recordMovements(moves...)
	observability.EscrowTransitions.WithLabelValues("created").Inc()
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventEscrowCreated, deal.ID, map[string]any{
		"transactionRef": deal.TransactionRef,
		"buyerId":        deal.BuyerID,
		"sellerId":       deal.SellerID,
		"amount":         deal.Amount.String(),
		"commission":     deal.Commission.String(),
		"paymentMethod":  deal.PaymentMethod,
	}))

	observability.WithContext(ctx).Info("escrow transaction created", "transaction_id", deal.ID, "ref", deal.TransactionRef, "buyer_id", deal.BuyerID)
	return deal, nil
}

func (s *escrowService) GetEscrowDetails(ctx context.Context, transactionID, requesterID string) (*models.EscrowDetails, error) {
	ctx, span := tracer.Start(ctx, "GetEscrowDetails", trace.WithAttributes(attribute.String("transaction_id", transactionID)))
	defer span.End()

	details, err := s.store.Transactions().GetDetails(ctx, transactionID, requesterID)
	if err != nil {
		return nil, spanFail(span, err, "get details failed")
	}
	return details, nil
}

func (s *escrowService) ConfirmDelivery(ctx context.Context, transactionID, buyerID string, confirmed bool, notes string) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "ConfirmDelivery", trace.WithAttributes(
		attribute.String("transaction_id", transactionID),
		attribute.Bool("confirmed", confirmed),
	))
	defer span.End()

	var (
		deal  *models.Transaction
		moves []movement
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		deal, err = loadDeal(ctx, tx, transactionID, func(t *models.Transaction) bool { return t.BuyerID == buyerID })
		if err != nil {
			return err
		}
		if err := requireStatus(deal, models.StatusInEscrow); err != nil {
			return err
		}
		now := s.now().UTC()

		if !confirmed {
			deal.Status = models.StatusDisputed
			if err := tx.Transactions().UpdateStatus(ctx, deal.ID, deal.Status, nil); err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
			dispute := &models.Dispute{
				TransactionID: deal.ID,
				RaisedBy:      buyerID,
				Reason:        orDefault(notes, "Delivery rejected by buyer"),
				Status:        models.DisputeOpen,
			}
			if err := tx.Transactions().CreateDispute(ctx, dispute); err != nil {
				return fmt.Errorf("failed to open dispute: %w", err)
			}
			if err := addLog(ctx, tx, deal.ID, models.LogDisputed, withDetail("Delivery rejected", notes), buyerID); err != nil {
				return err
			}
			return notify(ctx, tx, deal.SellerID, "Delivery Rejected",
				"The buyer has rejected the delivery. A dispute has been raised.", models.NotificationTransaction)
		}

		payout := deal.PayoutAmount()
		if payout.IsPositive() {
			wallet, err := lockWallet(ctx, tx, deal.SellerID)
			if err != nil {
				return err
			}
			entry, err := credit(ctx, tx, wallet, payout, "Escrow payment received", deal.TransactionRef)
			if err != nil {
				return err
			}
			moves = append(moves, movement{entry, "escrow_release"})
		}

		deal.Status = models.StatusCompleted
		deal.CompletedAt = &now
		if err := tx.Transactions().UpdateStatus(ctx, deal.ID, deal.Status, &now); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if err := tx.Transactions().SettleEscrow(ctx, deal.ID, models.EscrowReleased, now, orDefault(notes, "Delivery confirmed by buyer")); err != nil {
			return fmt.Errorf("failed to release escrow: %w", err)
		}
		if err := addLog(ctx, tx, deal.ID, models.LogCompleted, withDetail("Delivery confirmed. Funds released to seller", notes), buyerID); err != nil {
			return err
		}
		if err := notify(ctx, tx, deal.SellerID, "Payment Released",
			fmt.Sprintf("Delivery confirmed! GHS %s has been credited to your wallet.", money(payout)),
			models.NotificationTransaction); err != nil {
			return err
		}
		if deal.RiderID != nil {
			return notify(ctx, tx, *deal.RiderID, "Delivery Completed",
				"Delivery has been confirmed by the buyer.", models.NotificationDelivery)
		}
		return nil
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to confirm delivery", "transaction_id", transactionID, "buyer_id", buyerID, "error", err)
		return nil, spanFail(span, err, "confirm delivery failed")
	}

	recordMovements(moves...)
	if confirmed {
		observability.EscrowTransitions.WithLabelValues("completed").Inc()
		s.events.Publish(ctx, kafka.NewEvent(kafka.EventEscrowCompleted, deal.ID, map[string]any{
			"transactionRef": deal.TransactionRef,
			"sellerId":       deal.SellerID,
			"payout":         deal.PayoutAmount().String(),
			"commission":     deal.Commission.String(),
		}))
	} else {
		observability.EscrowTransitions.WithLabelValues("rejected").Inc()
		s.events.Publish(ctx, kafka.NewEvent(kafka.EventEscrowDisputed, deal.ID, map[string]any{
			"transactionRef": deal.TransactionRef,
			"raisedBy":       buyerID,
			"rejected":       true,
		}))
	}

	observability.WithContext(ctx).Info("delivery processed", "transaction_id", deal.ID, "confirmed", confirmed)
	return deal, nil
}

func (s *escrowService) RaiseDispute(ctx context.Context, transactionID, userID, reason string) (*models.Dispute, error) {
	ctx, span := tracer.Start(ctx, "RaiseDispute", trace.WithAttributes(attribute.String("transaction_id", transactionID)))
	defer span.End()

	var (
		deal    *models.Transaction
		dispute *models.Dispute
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		deal, err = loadDeal(ctx, tx, transactionID, func(t *models.Transaction) bool {
			return t.BuyerID == userID || t.SellerID == userID
		})
		if err != nil {
			return err
		}
		if deal.Status.Terminal() {
			return fmt.Errorf("%w: cannot dispute a %s transaction", pkgerrors.ErrInvalidTransition, deal.Status)
		}

		deal.Status = models.StatusDisputed
		if err := tx.Transactions().UpdateStatus(ctx, deal.ID, deal.Status, nil); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		dispute = &models.Dispute{TransactionID: deal.ID, RaisedBy: userID, Reason: reason, Status: models.DisputeOpen}
		if err := tx.Transactions().CreateDispute(ctx, dispute); err != nil {
			return fmt.Errorf("failed to open dispute: %w", err)
		}
		if err := addLog(ctx, tx, deal.ID, models.LogDisputed, withDetail("Dispute raised", reason), userID); err != nil {
			return err
		}

		other := deal.SellerID
		if userID == deal.SellerID {
			other = deal.BuyerID
		}
		return notify(ctx, tx, other, "Dispute Raised",
			fmt.Sprintf("A dispute has been raised on transaction %s", deal.TransactionRef),
			models.NotificationDispute)
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to raise dispute", "transaction_id", transactionID, "user_id", userID, "error", err)
		return nil, spanFail(span, err, "raise dispute failed")
	}

	observability.EscrowTransitions.WithLabelValues("disputed").Inc()
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventEscrowDisputed, deal.ID, map[string]any{
		"transactionRef": deal.TransactionRef,
		"raisedBy":       userID,
		"disputeId":      dispute.ID,
	}))

	observability.WithContext(ctx).Info("dispute raised", "transaction_id", deal.ID, "user_id", userID)
	return dispute, nil
}

func (s *escrowService) CancelTransaction(ctx context.Context, transactionID, buyerID, reason string) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "CancelTransaction", trace.WithAttributes(attribute.String("transaction_id", transactionID)))
	defer span.End()

	var (
		deal  *models.Transaction
		moves []movement
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		deal, err = loadDeal(ctx, tx, transactionID, func(t *models.Transaction) bool { return t.BuyerID == buyerID })
		if err != nil {
			return err
		}
		if err := requireStatus(deal, models.StatusInEscrow); err != nil {
			return err
		}
		now := s.now().UTC()

		if deal.PaymentMethod == models.PaymentWallet {
			wallet, err := lockWallet(ctx, tx, buyerID)
			if err != nil {
				return err
			}
			entry, err := credit(ctx, tx, wallet, deal.Amount, "Refund from cancelled transaction", deal.TransactionRef)
			if err != nil {
				return err
			}
			moves = append(moves, movement{entry, "escrow_refund"})
		}

		deal.Status = models.StatusCancelled
		deal.CompletedAt = &now
		if err := tx.Transactions().UpdateStatus(ctx, deal.ID, deal.Status, &now); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if err := tx.Transactions().SettleEscrow(ctx, deal.ID, models.EscrowRefunded, now, orDefault(reason, "Cancelled by buyer")); err != nil {
			return fmt.Errorf("failed to refund escrow: %w", err)
		}
		if err := addLog(ctx, tx, deal.ID, models.LogCancelled, withDetail("Transaction cancelled", reason), buyerID); err != nil {
			return err
		}
		return notify(ctx, tx, deal.SellerID, "Transaction Cancelled",
			fmt.Sprintf("Transaction %s has been cancelled by the buyer.", deal.TransactionRef),
			models.NotificationTransaction)
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to cancel transaction", "transaction_id", transactionID, "buyer_id", buyerID, "error", err)
		return nil, spanFail(span, err, "cancel failed")
	}

	recordMovements(moves...)
	observability.EscrowTransitions.WithLabelValues("cancelled").Inc()
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventEscrowCancelled, deal.ID, map[string]any{
		"transactionRef": deal.TransactionRef,
		"refunded":       len(moves) > 0,
		"amount":         deal.Amount.String(),
	}))

	observability.WithContext(ctx).Info("transaction cancelled", "transaction_id", deal.ID, "buyer_id", buyerID)
	return deal, nil
}

func (s *escrowService) AssignRider(ctx context.Context, transactionID, userID, riderID string) (*models.Transaction, error) {
	ctx, span := tracer.Start(ctx, "AssignRider", trace.WithAttributes(attribute.String("transaction_id", transactionID)))
	defer span.End()

	var deal *models.Transaction
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		deal, err = loadDeal(ctx, tx, transactionID, func(t *models.Transaction) bool {
			return t.BuyerID == userID || t.SellerID == userID
		})
		if err != nil {
			return err
		}
		if err := requireStatus(deal, models.StatusInEscrow); err != nil {
			return err
		}
		if deal.RiderID != nil {
			return pkgerrors.ErrRiderAlreadyAssigned
		}
		if err := checkRider(ctx, tx, riderID); err != nil {
			return err
		}

		if err := tx.Transactions().SetRider(ctx, deal.ID, riderID); err != nil {
			return fmt.Errorf("failed to assign rider: %w", err)
		}
		deal.RiderID = &riderID
		if err := addLog(ctx, tx, deal.ID, models.LogRiderAssigned, "Rider assigned to delivery", userID); err != nil {
			return err
		}
		return notify(ctx, tx, riderID, "New Delivery",
			fmt.Sprintf("You have been assigned a delivery for transaction %s", deal.TransactionRef),
			models.NotificationDelivery)
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to assign rider", "transaction_id", transactionID, "rider_id", riderID, "error", err)
		return nil, spanFail(span, err, "assign rider failed")
	}

	observability.EscrowTransitions.WithLabelValues("rider_assigned").Inc()
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventEscrowRiderAssigned, deal.ID, map[string]any{
		"transactionRef": deal.TransactionRef,
		"riderId":        riderID,
	}))
	return deal, nil
}

// loadDeal locks the deal. Callers rejected by allow get ErrTransactionNotFound.
func loadDeal(ctx context.Context, tx repository.Store, id string, allow func(*models.Transaction) bool) (*models.Transaction, error) {
	deal, err := tx.Transactions().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allow(deal) {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	return deal, nil
}

func requireStatus(deal *models.Transaction, want models.StatusType) error {
	if deal.Status != want {
		return fmt.Errorf("%w: transaction is %s", pkgerrors.ErrInvalidTransition, deal.Status)
	}
	return nil
}

func checkRider(ctx context.Context, tx repository.Store, riderID string) error {
	rider, err := tx.Users().GetByID(ctx, riderID)
	if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		return pkgerrors.ErrRiderNotFound
	}
	if err != nil {
		return err
	}
	if !rider.IsActive || rider.UserType != models.UserTypeRider {
		return pkgerrors.ErrNotRider
	}
	return nil
}

func addLog(ctx context.Context, tx repository.Store, transactionID string, action models.LogAction, description, actor string) error {
	entry := &models.TransactionLog{TransactionID: transactionID, Action: action, Description: description, CreatedBy: actor}
	if err := tx.Transactions().AddLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to log %s: %w", action, err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const transactionColumns = `t.id, t.transaction_ref, t.buyer_id, t.seller_id, t.rider_id, t.amount, t.commission,
	t.status, t.type, t.description, t.payment_method, t.created_at, t.completed_at`

func transactionDest(t *models.Transaction) []any {
	return []any{&t.ID, &t.TransactionRef, &t.BuyerID, &t.SellerID, &t.RiderID, &t.Amount, &t.Commission,
		&t.Status, &t.Type, &t.Description, &t.PaymentMethod, &t.CreatedAt, &t.CompletedAt}
}

type TransactionRepository struct {
	q DBTX
}

func NewTransactionRepository(q DBTX) *TransactionRepository {
	return &TransactionRepository{q: q}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) (err error) {
	ctx, done := track(ctx, "CreateTransaction")
	defer done(&err)

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return err
	}
	if !tx.Amount.IsPositive() {
		err = fmt.Errorf("amount must be positive: %w", pkgerrors.ErrInvalidInput)
		slog.Error("amount must be positive", "method", "Create", "amount", tx.Amount, "error", err)
		return err
	}

	query := `INSERT INTO transactions
			(transaction_ref, buyer_id, seller_id, rider_id, amount, commission, status, type, description, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	err = r.q.QueryRowContext(ctx, query,
		tx.TransactionRef, tx.BuyerID, tx.SellerID, tx.RiderID, tx.Amount, tx.Commission,
		tx.Status, tx.Type, tx.Description, tx.PaymentMethod,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		slog.Error("failed to create transaction", "method", "Create", "buyer_id", tx.BuyerID, "seller_id", tx.SellerID, "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	slog.Info("transaction created", "method", "Create", "id", tx.ID, "ref", tx.TransactionRef, "buyer_id", tx.BuyerID, "seller_id", tx.SellerID)
	return nil
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, id string) (tx *models.Transaction, err error) {
	ctx, done := track(ctx, "LockTransaction", attribute.String("transaction_id", id))
	defer done(&err)

	if !isUUID(id) {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	var t models.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.id = $1 FOR UPDATE`
	err = r.q.QueryRowContext(ctx, query, id).Scan(transactionDest(&t)...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		slog.Error("failed to get transaction", "method", "GetForUpdate", "transaction_id", id, "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

func (r *TransactionRepository) execOne(ctx context.Context, method, query string, args ...any) (err error) {
	ctx, done := track(ctx, method)
	defer done(&err)

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to update transaction", "method", method, "error", err)
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status models.StatusType, completedAt *time.Time) error {
	return r.execOne(ctx, "UpdateTransactionStatus",
		`UPDATE transactions SET status = $2, completed_at = COALESCE($3, completed_at), updated_at = NOW() WHERE id = $1`,
		id, status, completedAt)
}

func (r *TransactionRepository) SetRider(ctx context.Context, id, riderID string) error {
	return r.execOne(ctx, "SetTransactionRider",
		`UPDATE transactions SET rider_id = $2, updated_at = NOW() WHERE id = $1`, id, riderID)
}

func (r *TransactionRepository) CreateEscrowAccount(ctx context.Context, account *models.EscrowAccount) (err error) {
	ctx, done := track(ctx, "CreateEscrowAccount")
	defer done(&err)

	query := `INSERT INTO escrow_accounts (transaction_id, amount, status) VALUES ($1, $2, $3)
		RETURNING id, held_at`
	err = r.q.QueryRowContext(ctx, query, account.TransactionID, account.Amount, account.Status).
		Scan(&account.ID, &account.HeldAt)
	if err != nil {
		slog.Error("failed to create escrow account", "method", "CreateEscrowAccount", "transaction_id", account.TransactionID, "error", err)
		return fmt.Errorf("failed to create escrow account: %w", err)
	}
	return nil
}

// SettleEscrow moves the held funds to released or refunded and stamps the
// matching timestamp.
func (r *TransactionRepository) SettleEscrow(ctx context.Context, transactionID string, status models.EscrowStatus, at time.Time, notes string) error {
	var query string
	switch status {
	case models.EscrowReleased:
		query = `UPDATE escrow_accounts SET status = $2, released_at = $3, notes = $4 WHERE transaction_id = $1`
	case models.EscrowRefunded:
		query = `UPDATE escrow_accounts SET status = $2, refunded_at = $3, notes = $4 WHERE transaction_id = $1`
	default:
		return fmt.Errorf("cannot settle escrow as %q: %w", status, pkgerrors.ErrInvalidTransition)
	}
	return r.execOne(ctx, "SettleEscrow", query, transactionID, status, at, notes)
}

func (r *TransactionRepository) CreateDispute(ctx context.Context, dispute *models.Dispute) (err error) {
	ctx, done := track(ctx, "CreateDispute")
	defer done(&err)

	query := `INSERT INTO disputes (transaction_id, raised_by, reason, status) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err = r.q.QueryRowContext(ctx, query, dispute.TransactionID, dispute.RaisedBy, dispute.Reason, dispute.Status).
		Scan(&dispute.ID, &dispute.CreatedAt)
	if err != nil {
		slog.Error("failed to create dispute", "method", "CreateDispute", "transaction_id", dispute.TransactionID, "error", err)
		return fmt.Errorf("failed to create dispute: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListDisputes(ctx context.Context, transactionID string) (disputes []models.Dispute, err error) {
	ctx, done := track(ctx, "ListDisputes")
	defer done(&err)

	query := `SELECT id, transaction_id, raised_by, reason, status, created_at
		FROM disputes WHERE transaction_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	defer rows.Close()

	disputes = []models.Dispute{}
	for rows.Next() {
		var d models.Dispute
		if err = rows.Scan(&d.ID, &d.TransactionID, &d.RaisedBy, &d.Reason, &d.Status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispute: %w", err)
		}
		disputes = append(disputes, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate disputes: %w", err)
	}
	return disputes, nil
}

func (r *TransactionRepository) AddLog(ctx context.Context, entry *models.TransactionLog) (err error) {
	ctx, done := track(ctx, "AddTransactionLog", attribute.String("action", string(entry.Action)))
	defer done(&err)

	query := `INSERT INTO transaction_logs (transaction_id, action, description, created_by) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err = r.q.QueryRowContext(ctx, query, entry.TransactionID, entry.Action, entry.Description, entry.CreatedBy).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		slog.Error("failed to add transaction log", "method", "AddLog", "transaction_id", entry.TransactionID, "error", err)
		return fmt.Errorf("failed to add transaction log: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetDetails(ctx context.Context, id, participantID string) (d *models.EscrowDetails, err error) {
	ctx, done := track(ctx, "GetEscrowDetails", attribute.String("transaction_id", id))
	defer done(&err)

	if !isUUID(id) {
		return nil, pkgerrors.ErrTransactionNotFound
	}

	query := `SELECT ` + transactionColumns + `,
			e.status, e.held_at, e.released_at, e.refunded_at,
			b.username, b.full_name, b.phone_number,
			s.username, s.full_name, s.phone_number,
			r.username, r.full_name, r.phone_number
		FROM transactions t
		LEFT JOIN escrow_accounts e ON e.transaction_id = t.id
		JOIN users b ON b.id = t.buyer_id
		JOIN users s ON s.id = t.seller_id
		LEFT JOIN users r ON r.id = t.rider_id
		WHERE t.id = $1 AND (t.buyer_id = $2 OR t.seller_id = $2 OR t.rider_id = $2)`

	var details models.EscrowDetails
	var escrowStatus, riderName, riderFull, riderPhone sql.NullString
	var heldAt sql.NullTime
	var buyerPhone, sellerPhone string
	dest := append(transactionDest(&details.Transaction),
		&escrowStatus, &heldAt, &details.ReleasedAt, &details.RefundedAt,
		&details.Buyer.Username, &details.Buyer.FullName, &buyerPhone,
		&details.Seller.Username, &details.Seller.FullName, &sellerPhone,
		&riderName, &riderFull, &riderPhone,
	)
	err = r.q.QueryRowContext(ctx, query, id, participantID).Scan(dest...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		slog.Error("failed to get escrow details", "method", "GetDetails", "transaction_id", id, "error", err)
		return nil, fmt.Errorf("failed to get escrow details: %w", err)
	}

	details.EscrowStatus = models.EscrowStatus(escrowStatus.String)
	if heldAt.Valid {
		details.HeldAt = &heldAt.Time
	}
	details.Buyer.ID = details.BuyerID
	details.Buyer.PhoneNumber = &buyerPhone
	details.Seller.ID = details.SellerID
	details.Seller.PhoneNumber = &sellerPhone
	if details.RiderID != nil && riderName.Valid {
		details.Rider = &models.PublicUser{
			ID:          *details.RiderID,
			Username:    riderName.String,
			FullName:    riderFull.String,
			PhoneNumber: &riderPhone.String,
		}
	}

	if details.Disputes, err = r.ListDisputes(ctx, id); err != nil {
		return nil, err
	}
	if details.Logs, err = r.listLogs(ctx, id); err != nil {
		return nil, err
	}
	return &details, nil
}

func (r *TransactionRepository) listLogs(ctx context.Context, transactionID string) (logs []models.TransactionLog, err error) {
	query := `SELECT l.id, l.transaction_id, l.action, l.description, l.created_by, u.username, u.full_name, l.created_at
		FROM transaction_logs l
		JOIN users u ON u.id = l.created_by
		WHERE l.transaction_id = $1
		ORDER BY l.created_at DESC`
	rows, err := r.q.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction logs: %w", err)
	}
	defer rows.Close()

	logs = []models.TransactionLog{}
	for rows.Next() {
		var l models.TransactionLog
		if err = rows.Scan(&l.ID, &l.TransactionID, &l.Action, &l.Description, &l.CreatedBy, &l.Username, &l.FullName, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction log: %w", err)
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction logs: %w", err)
	}
	return logs, nil
}

const participantFilter = `CASE $2::text
		WHEN 'buyer' THEN t.buyer_id = $1
		WHEN 'seller' THEN t.seller_id = $1
		WHEN 'rider' THEN t.rider_id = $1
		ELSE (t.buyer_id = $1 OR t.seller_id = $1 OR t.rider_id = $1)
	END
	AND ($3::text IS NULL OR t.status = $3)
	AND ($4::text IS NULL OR t.type = $4)`

func (r *TransactionRepository) List(ctx context.Context, userID string, filter models.TransactionFilter) (items []models.TransactionSummary, total int, err error) {
	ctx, done := track(ctx, "ListTransactions", attribute.String("user_id", userID))
	defer done(&err)

	args := []any{userID, string(filter.Role), nullString(string(filter.Status)), nullString(string(filter.Type))}

	if err = r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t WHERE `+participantFilter, args...).Scan(&total); err != nil {
		slog.Error("failed to count transactions", "method", "List", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + `,
			b.username, b.full_name, s.username, s.full_name, r.username, r.full_name
		FROM transactions t
		LEFT JOIN users b ON b.id = t.buyer_id
		LEFT JOIN users s ON s.id = t.seller_id
		LEFT JOIN users r ON r.id = t.rider_id
		WHERE ` + participantFilter + `
		ORDER BY t.created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := r.q.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		slog.Error("failed to list transactions", "method", "List", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	items = []models.TransactionSummary{}
	for rows.Next() {
		var s models.TransactionSummary
		var riderName, riderFN sql.NullString
		dest := append(transactionDest(&s.Transaction),
			&s.Buyer.Username, &s.Buyer.FullName, &s.Seller.Username, &s.Seller.FullName, &riderName, &riderFN)
		if err = rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		s.Buyer.ID = s.BuyerID
		s.Seller.ID = s.SellerID
		if s.RiderID != nil {
			s.Rider = &models.PublicUser{ID: *s.RiderID, Username: riderName.String, FullName: riderFN.String}
		}
		items = append(items, s)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return items, total, nil
}

func (r *TransactionRepository) Stats(ctx context.Context, userID string) (stats *models.TransactionStats, err error) {
	ctx, done := track(ctx, "TransactionStats", attribute.String("user_id", userID))
	defer done(&err)

	query := `SELECT
			COUNT(*) FILTER (WHERE buyer_id = $1),
			COUNT(*) FILTER (WHERE status = 'completed' AND buyer_id = $1),
			COUNT(*) FILTER (WHERE status = 'in_escrow' AND buyer_id = $1),
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND buyer_id = $1), 0),
			COUNT(*) FILTER (WHERE seller_id = $1),
			COUNT(*) FILTER (WHERE status = 'completed' AND seller_id = $1),
			COUNT(*) FILTER (WHERE status = 'in_escrow' AND seller_id = $1),
			COALESCE(SUM(amount - commission) FILTER (WHERE status = 'completed' AND seller_id = $1), 0),
			COUNT(*) FILTER (WHERE rider_id = $1)
		FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1 OR rider_id = $1`
	var s models.TransactionStats
	err = r.q.QueryRowContext(ctx, query, userID).Scan(
		&s.Purchases.Total, &s.Purchases.Completed, &s.Purchases.Active, &s.Purchases.TotalSpent,
		&s.Sales.Total, &s.Sales.Completed, &s.Sales.Active, &s.Sales.TotalEarned,
		&s.Deliveries.Total,
	)
	if err != nil {
		slog.Error("failed to get transaction stats", "method", "Stats", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get transaction stats: %w", err)
	}
	return &s, nil
}

func (r *TransactionRepository) CountDeals(ctx context.Context, userID string) (counts models.DealCounts, err error) {
	ctx, done := track(ctx, "CountDeals", attribute.String("user_id", userID))
	defer done(&err)

	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1`
	if err = r.q.QueryRowContext(ctx, query, userID).Scan(&counts.Total, &counts.Completed); err != nil {
		return counts, fmt.Errorf("failed to count deals: %w", err)
	}
	return counts, nil
}

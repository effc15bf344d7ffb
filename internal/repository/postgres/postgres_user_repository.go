package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const userColumns = `id, username, phone_number, password_hash, full_name, user_type, email,
	is_verified, is_active, kyc_status, profile_image_url, created_at, last_login_at`

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PhoneNumber, &u.PasswordHash, &u.FullName, &u.UserType, &u.Email,
		&u.IsVerified, &u.IsActive, &u.KYCStatus, &u.ProfileImageURL, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type UserRepository struct {
	q DBTX
}

func NewUserRepository(q DBTX) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := track(ctx, "CreateUser")
	defer done(&err)

	if user == nil {
		err = pkgerrors.ErrNilUser
		slog.Error("failed to create user", "method", "Create", "error", err)
		return err
	}

	query := `INSERT INTO users (username, phone_number, password_hash, full_name, user_type, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_verified, is_active, kyc_status, created_at`
	err = r.q.QueryRowContext(ctx, query,
		user.Username, user.PhoneNumber, user.PasswordHash, user.FullName, user.UserType, user.Email,
	).Scan(&user.ID, &user.IsVerified, &user.IsActive, &user.KYCStatus, &user.CreatedAt)
	if isUniqueViolation(err) {
		err = pkgerrors.ErrUserAlreadyExists
		return err
	}
	if err != nil {
		slog.Error("failed to create user", "method", "Create", "username", user.Username, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "method", "Create", "user_id", user.ID, "username", user.Username)
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, method, where string, arg any) (user *models.User, err error) {
	ctx, done := track(ctx, method)
	defer done(&err)

	user, err = scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		slog.Error("failed to get user", "method", method, "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "GetUserByID", `id = $1`, id)
}

func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return r.getOne(ctx, "GetUserByIdentifier", `username = $1 OR phone_number = $1`, identifier)
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getOne(ctx, "GetUserByPhone", `phone_number = $1`, phone)
}

func (r *UserRepository) GetActiveByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "GetActiveUserByUsername", `username = $1 AND is_active = true`, username)
}

func (r *UserRepository) ExistsByUsernameOrPhone(ctx context.Context, username, phone string) (exists bool, err error) {
	ctx, done := track(ctx, "UserExists")
	defer done(&err)

	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR phone_number = $2)`
	if err = r.q.QueryRowContext(ctx, query, username, phone).Scan(&exists); err != nil {
		slog.Error("failed to check user existence", "method", "ExistsByUsernameOrPhone", "error", err)
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) exec(ctx context.Context, method, query string, args ...any) (err error) {
	ctx, done := track(ctx, method)
	defer done(&err)

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to update user", "method", method, "error", err)
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	return r.exec(ctx, "MarkUserVerified", `UPDATE users SET is_verified = true, updated_at = NOW() WHERE id = $1`, id)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "TouchLastLogin", `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
}

// UpdateProfile applies the non-nil fields of upd. An empty email is stored
// as NULL.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (user *models.User, err error) {
	ctx, done := track(ctx, "UpdateProfile", attribute.String("user_id", id))
	defer done(&err)

	if upd.FullName == nil && upd.Email == nil {
		return nil, pkgerrors.ErrNoFieldsToUpdate
	}

	var fullName, email any
	if upd.FullName != nil {
		fullName = *upd.FullName
	}
	if upd.Email != nil {
		email = *upd.Email
	}

	query := `UPDATE users SET
			full_name = COALESCE($2::text, full_name),
			email = CASE WHEN $3::text IS NULL THEN email ELSE NULLIF($3::text, '') END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err = scanUser(r.q.QueryRowContext(ctx, query, id, fullName, email))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		slog.Error("failed to update profile", "method", "UpdateProfile", "user_id", id, "error", err)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Info("profile updated", "method", "UpdateProfile", "user_id", id)
	return user, nil
}

func (r *UserRepository) Search(ctx context.Context, term string, excludeRiders bool, limit int) (users []models.UserSearchResult, err error) {
	ctx, done := track(ctx, "SearchUsers")
	defer done(&err)

	query := `SELECT id, username, full_name, user_type, is_verified, kyc_status
		FROM users
		WHERE is_active = true
			AND (username ILIKE $1 ESCAPE '\' OR full_name ILIKE $1 ESCAPE '\')
			AND (NOT $2::boolean OR user_type = 'user')
		ORDER BY username
		LIMIT $3`
	rows, err := r.q.QueryContext(ctx, query, "%"+likeEscaper.Replace(term)+"%", excludeRiders, limit)
	if err != nil {
		slog.Error("failed to search users", "method", "Search", "error", err)
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users = []models.UserSearchResult{}
	for rows.Next() {
		var u models.UserSearchResult
		if err = rows.Scan(&u.ID, &u.Username, &u.FullName, &u.UserType, &u.IsVerified, &u.KYCStatus); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) CreateKYCDocument(ctx context.Context, doc *models.KYCDocument) (err error) {
	ctx, done := track(ctx, "CreateKYCDocument")
	defer done(&err)

	query := `INSERT INTO kyc_documents (user_id, document_type, document_url, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, status, uploaded_at`
	err = r.q.QueryRowContext(ctx, query, doc.UserID, doc.DocumentType, doc.DocumentURL).
		Scan(&doc.ID, &doc.Status, &doc.UploadedAt)
	if err != nil {
		slog.Error("failed to create kyc document", "method", "CreateKYCDocument", "user_id", doc.UserID, "error", err)
		return fmt.Errorf("failed to create kyc document: %w", err)
	}

	slog.Info("kyc document submitted", "user_id", doc.UserID, "document_type", doc.DocumentType)
	return nil
}

func (r *UserRepository) ListKYCDocuments(ctx context.Context, userID string) (docs []models.KYCDocument, err error) {
	ctx, done := track(ctx, "ListKYCDocuments")
	defer done(&err)

	query := `SELECT id, user_id, document_type, document_url, status, rejection_reason, uploaded_at, verified_at
		FROM kyc_documents
		WHERE user_id = $1
		ORDER BY uploaded_at DESC`
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list kyc documents", "method", "ListKYCDocuments", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list kyc documents: %w", err)
	}
	defer rows.Close()

	docs = []models.KYCDocument{}
	for rows.Next() {
		var d models.KYCDocument
		if err = rows.Scan(&d.ID, &d.UserID, &d.DocumentType, &d.DocumentURL, &d.Status, &d.RejectionReason, &d.UploadedAt, &d.VerifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan kyc document: %w", err)
		}
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kyc documents: %w", err)
	}
	return docs, nil
}

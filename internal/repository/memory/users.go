package memory

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
)

type userRepo struct{ s *Store }

func userTaken(txn *memdb.Txn, username, phone string) (bool, error) {
	u, err := first[models.User](txn, tableUsers, "username", username)
	if err != nil || u != nil {
		return u != nil, err
	}
	u, err = first[models.User](txn, tableUsers, "phone", phone)
	return u != nil, err
}

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.ErrNilUser
	}
	return r.s.write(func(txn *memdb.Txn) error {
		taken, err := userTaken(txn, user.Username, user.PhoneNumber)
		if err != nil {
			return err
		}
		if taken {
			return pkgerrors.ErrUserAlreadyExists
		}
		user.ID = newID()
		user.IsActive = true
		user.KYCStatus = models.KYCPending
		user.CreatedAt = time.Now().UTC()
		row := *user
		return txn.Insert(tableUsers, &row)
	})
}

func (r *userRepo) get(index, value string) (*models.User, error) {
	var out models.User
	err := r.s.read(func(txn *memdb.Txn) error {
		u, err := first[models.User](txn, tableUsers, index, value)
		if err != nil {
			return err
		}
		if u == nil {
			return pkgerrors.ErrUserNotFound
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.get("id", id)
}

func (r *userRepo) GetByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	u, err := r.get("username", identifier)
	if err == pkgerrors.ErrUserNotFound {
		return r.get("phone", identifier)
	}
	return u, err
}

func (r *userRepo) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.get("phone", phone)
}

func (r *userRepo) GetActiveByUsername(_ context.Context, username string) (*models.User, error) {
	u, err := r.get("username", username)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, pkgerrors.ErrUserNotFound
	}
	return u, nil
}

func (r *userRepo) ExistsByUsernameOrPhone(_ context.Context, username, phone string) (bool, error) {
	var taken bool
	err := r.s.read(func(txn *memdb.Txn) error {
		var err error
		taken, err = userTaken(txn, username, phone)
		return err
	})
	return taken, err
}

func (r *userRepo) update(id string, fn func(u *models.User)) (*models.User, error) {
	var out models.User
	err := r.s.write(func(txn *memdb.Txn) error {
		u, err := first[models.User](txn, tableUsers, "id", id)
		if err != nil {
			return err
		}
		if u == nil {
			return pkgerrors.ErrUserNotFound
		}
		out = *u
		fn(&out)
		row := out
		return txn.Insert(tableUsers, &row)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) MarkVerified(_ context.Context, id string) error {
	_, err := r.update(id, func(u *models.User) { u.IsVerified = true })
	return err
}

func (r *userRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	_, err := r.update(id, func(u *models.User) { u.LastLoginAt = &at })
	return err
}

func (r *userRepo) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.FullName == nil && upd.Email == nil {
		return nil, pkgerrors.ErrNoFieldsToUpdate
	}
	return r.update(id, func(u *models.User) {
		if upd.FullName != nil {
			u.FullName = *upd.FullName
		}
		if upd.Email != nil {
			if *upd.Email == "" {
				u.Email = nil
			} else {
				email := *upd.Email
				u.Email = &email
			}
		}
	})
}

func (r *userRepo) Search(_ context.Context, term string, excludeRiders bool, limit int) ([]models.UserSearchResult, error) {
	needle := strings.ToLower(term)
	out := []models.UserSearchResult{}
	err := r.s.read(func(txn *memdb.Txn) error {
		users, err := all[models.User](txn, tableUsers, "id")
		if err != nil {
			return err
		}
		for _, u := range users {
			if !u.IsActive || (excludeRiders && u.UserType != models.UserTypeUser) {
				continue
			}
			if !strings.Contains(strings.ToLower(u.Username), needle) && !strings.Contains(strings.ToLower(u.FullName), needle) {
				continue
			}
			out = append(out, models.UserSearchResult{
				ID:         u.ID,
				Username:   u.Username,
				FullName:   u.FullName,
				UserType:   u.UserType,
				IsVerified: u.IsVerified,
				KYCStatus:  u.KYCStatus,
			})
		}
		return nil
	})
	sortBy(out, func(a, b models.UserSearchResult) bool { return a.Username < b.Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *userRepo) CreateKYCDocument(_ context.Context, doc *models.KYCDocument) error {
	return r.s.write(func(txn *memdb.Txn) error {
		u, err := first[models.User](txn, tableUsers, "id", doc.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return pkgerrors.ErrUserNotFound
		}
		doc.ID = newID()
		doc.Status = models.KYCPending
		doc.UploadedAt = time.Now().UTC()
		return txn.Insert(tableKYCDocuments, &kycRow{KYCDocument: *doc, ordered: r.s.stamp()})
	})
}

func (r *userRepo) ListKYCDocuments(_ context.Context, userID string) ([]models.KYCDocument, error) {
	out := []models.KYCDocument{}
	err := r.s.read(func(txn *memdb.Txn) error {
		rows, err := all[kycRow](txn, tableKYCDocuments, "user_id", userID)
		if err != nil {
			return err
		}
		newestFirst(rows)
		for _, row := range rows {
			out = append(out, row.KYCDocument)
		}
		return nil
	})
	return out, err
}

// SetUserActive toggles the account flag. There is no API for it; it exists
// for fixtures.
func (s *Store) SetUserActive(id string, active bool) error {
	_, err := (&userRepo{s}).update(id, func(u *models.User) { u.IsActive = active })
	return err
}

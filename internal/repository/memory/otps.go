package memory

import (
	"context"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
)

type otpRepo struct{ s *Store }

func (r *otpRepo) Create(_ context.Context, otp *models.OTPVerification) error {
	return r.s.write(func(txn *memdb.Txn) error {
		otp.ID = newID()
		otp.CreatedAt = time.Now().UTC()
		return txn.Insert(tableOTPs, &otpRow{OTPVerification: *otp, ordered: r.s.stamp()})
	})
}

func (r *otpRepo) GetLatestPending(_ context.Context, phone string, purpose models.OTPPurpose) (*models.OTPVerification, error) {
	var out models.OTPVerification
	err := r.s.read(func(txn *memdb.Txn) error {
		rows, err := all[otpRow](txn, tableOTPs, "phone", phone)
		if err != nil {
			return err
		}
		newestFirst(rows)
		for _, row := range rows {
			if row.Purpose == purpose && !row.Verified {
				out = row.OTPVerification
				return nil
			}
		}
		return pkgerrors.ErrOTPNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// modify applies fn to a copy of the code and stores it when fn succeeds.
func (r *otpRepo) modify(id string, fn func(o *models.OTPVerification) error) error {
	return r.s.write(func(txn *memdb.Txn) error {
		row, err := first[otpRow](txn, tableOTPs, "id", id)
		if err != nil {
			return err
		}
		if row == nil {
			return pkgerrors.ErrOTPNotFound
		}
		updated := *row
		if err := fn(&updated.OTPVerification); err != nil {
			return err
		}
		return txn.Insert(tableOTPs, &updated)
	})
}

func (r *otpRepo) ConsumeAttempt(_ context.Context, id string, maxAttempts int) (int, error) {
	var attempts int
	err := r.modify(id, func(o *models.OTPVerification) error {
		if o.Verified || o.Attempts >= maxAttempts {
			return pkgerrors.ErrOTPAttemptsExceeded
		}
		o.Attempts++
		attempts = o.Attempts
		return nil
	})
	return attempts, err
}

func (r *otpRepo) MarkVerified(_ context.Context, id string, at time.Time) error {
	return r.modify(id, func(o *models.OTPVerification) error {
		if o.Verified {
			return pkgerrors.ErrOTPNotFound
		}
		o.Verified = true
		o.VerifiedAt = &at
		return nil
	})
}

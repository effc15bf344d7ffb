package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("username or phone number already exists")
	ErrUserInactive         = errors.New("account is deactivated, please contact support")
	ErrInsufficientFunds    = errors.New("insufficient wallet balance")
	ErrNilUser              = errors.New("user is nil")
	ErrNilTransaction       = errors.New("transaction is nil")
	ErrTransactionNotFound  = errors.New("transaction not found or access denied")
	ErrInvalidTransition    = errors.New("transaction is not in a valid state for this operation")
	ErrSelfTransaction      = errors.New("cannot create transaction with yourself")
	ErrSelfTransfer         = errors.New("cannot transfer to yourself")
	ErrSellerNotFound       = errors.New("seller not found")
	ErrRiderNotFound        = errors.New("rider not found")
	ErrNotSeller            = errors.New("user is not a seller")
	ErrNotRider             = errors.New("user is not a rider")
	ErrRiderAlreadyAssigned = errors.New("a rider is already assigned to this transaction")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrPhoneNotRegistered   = errors.New("phone number not registered")
	ErrOTPNotFound          = errors.New("no OTP found, please request a new one")
	ErrOTPExpired           = errors.New("OTP has expired, please request a new one")
	ErrOTPInvalid           = errors.New("invalid OTP code")
	ErrOTPAttemptsExceeded  = errors.New("too many failed attempts, please request a new OTP")
	ErrOTPThrottled         = errors.New("an OTP was sent recently, please wait before requesting another")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrForbidden            = errors.New("you do not have permission to access this resource")
	ErrRateLimited          = errors.New("too many requests from this IP, please try again later")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidReference     = errors.New("invalid payment reference")
	ErrNoFieldsToUpdate     = errors.New("no fields to update")
	ErrSearchTooShort       = errors.New("search query must be at least 2 characters")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternal             = errors.New("internal error")
)

// ValidationError carries field-level messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Messages returns the field messages in a stable order.
func (e *ValidationError) Messages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.Fields[k])
	}
	return out
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

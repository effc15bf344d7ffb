package validation

import (
	"testing"

	"github.com/honeynil/SureSend/internal/models"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	var verr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func validRegister() RegisterRequest {
	return RegisterRequest{
		Username:    "kwame_1",
		PhoneNumber: "+233201234567",
		Password:    "Secret#123",
		FullName:    "Kwame Mensah",
		UserType:    models.UserTypeUser,
	}
}

func TestRegisterRequest(t *testing.T) {
	v := New()

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.Struct(validRegister()))

		req := validRegister()
		req.PhoneNumber = "0201234567"
		req.Email = "kwame@example.com"
		assert.NoError(t, v.Struct(req))
	})

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		field  string
		msg    string
	}{
		{"bad username chars", func(r *RegisterRequest) { r.Username = "kwame!" }, "username", "Username must only contain letters, numbers, and underscores"},
		{"short username", func(r *RegisterRequest) { r.Username = "kw" }, "username", "Username must be at least 3 characters long"},
		{"bad phone", func(r *RegisterRequest) { r.PhoneNumber = "+234201234567" }, "phoneNumber", phoneFormat},
		{"weak password", func(r *RegisterRequest) { r.Password = "password123" }, "password", "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"},
		{"short password", func(r *RegisterRequest) { r.Password = "Ab#1" }, "password", "Password must be at least 8 characters long"},
		{"bad user type", func(r *RegisterRequest) { r.UserType = "admin" }, "userType", "User type must be either user or rider"},
		{"bad email", func(r *RegisterRequest) { r.Email = "nope" }, "email", "Please provide a valid email address"},
		{"missing name", func(r *RegisterRequest) { r.FullName = "" }, "fullName", "Full name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegister()
			tt.mutate(&req)
			fields := fieldErrors(t, v.Struct(req))
			assert.Equal(t, tt.msg, fields[tt.field])
		})
	}
}

func TestVerifyOTPRequest(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(VerifyOTPRequest{PhoneNumber: "0201234567", OTPCode: "123456", Purpose: models.OTPLogin}))

	fields := fieldErrors(t, v.Struct(VerifyOTPRequest{PhoneNumber: "0201234567", OTPCode: "12345a", Purpose: "signup"}))
	assert.Equal(t, "OTP must contain only numbers", fields["otpCode"])
	assert.Equal(t, "Invalid OTP purpose", fields["purpose"])
}

func TestCreateEscrowRequest(t *testing.T) {
	v := New()
	base := CreateEscrowRequest{
		SellerID:      "5b8f3b8e-2b1d-4c55-9d5b-2f0f7f0a9c11",
		Amount:        decimal.RequireFromString("100.50"),
		Description:   "Phone case",
		PaymentMethod: models.PaymentWallet,
	}
	assert.NoError(t, v.Struct(base))

	req := base
	req.Amount = decimal.RequireFromString("10.005")
	assert.Equal(t, "Amount must have at most 2 decimal places", fieldErrors(t, v.Struct(req))["amount"])

	req = base
	req.Amount = decimal.RequireFromString("-1")
	assert.Equal(t, "Amount must be greater than 0", fieldErrors(t, v.Struct(req))["amount"])

	req = base
	req.SellerID = "seller"
	req.RiderID = "rider"
	fields := fieldErrors(t, v.Struct(req))
	assert.Equal(t, "Invalid seller ID format", fields["sellerId"])
	assert.Equal(t, "Invalid rider ID format", fields["riderId"])
}

func TestConfirmAndCancelRequests(t *testing.T) {
	v := New()
	no := false

	assert.NoError(t, v.Struct(ConfirmDeliveryRequest{Confirmed: &no}))
	assert.Equal(t, "Confirmation status is required", fieldErrors(t, v.Struct(ConfirmDeliveryRequest{}))["confirmed"])

	assert.NoError(t, v.Struct(CancelTransactionRequest{}))
	assert.Equal(t, "Cancellation reason must be at least 5 characters",
		fieldErrors(t, v.Struct(CancelTransactionRequest{Reason: "no"}))["reason"])
}

func TestUpdateProfileRequest(t *testing.T) {
	v := New()
	empty := ""
	short := "A"

	assert.NoError(t, v.Struct(UpdateProfileRequest{}))
	assert.NoError(t, v.Struct(UpdateProfileRequest{Email: &empty}))
	assert.Equal(t, "Full name must be at least 2 characters long",
		fieldErrors(t, v.Struct(UpdateProfileRequest{FullName: &short}))["fullName"])
}

func TestFundWalletRequest(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(FundWalletRequest{Amount: decimal.NewFromInt(10), PaymentMethod: models.FundingPaystack}))
	assert.Equal(t, "Minimum deposit is GHS 10.00",
		fieldErrors(t, v.Struct(FundWalletRequest{Amount: decimal.NewFromInt(9), PaymentMethod: models.FundingPaystack}))["amount"])
	assert.Equal(t, "Maximum deposit is GHS 10,000.00",
		fieldErrors(t, v.Struct(FundWalletRequest{Amount: decimal.NewFromInt(10001), PaymentMethod: models.FundingPaystack}))["amount"])
}

func TestWithdrawRequest(t *testing.T) {
	v := New()

	t.Run("bank transfer", func(t *testing.T) {
		req := WithdrawRequest{
			Amount:           decimal.NewFromInt(50),
			WithdrawalMethod: models.WithdrawBankTransfer,
			AccountDetails:   &models.AccountDetails{AccountName: "Ama Owusu", AccountNumber: "0012345678", BankName: "GCB"},
		}
		assert.NoError(t, v.Struct(req))

		req.AccountDetails = &models.AccountDetails{AccountName: "Ama Owusu"}
		fields := fieldErrors(t, v.Struct(req))
		assert.Equal(t, "Account number is required for bank transfers", fields["accountDetails.accountNumber"])
		assert.Equal(t, "Bank name is required for bank transfers", fields["accountDetails.bankName"])
	})

	t.Run("mobile money", func(t *testing.T) {
		req := WithdrawRequest{
			Amount:           decimal.NewFromInt(75),
			WithdrawalMethod: models.WithdrawMobileMoney,
			AccountDetails:   &models.AccountDetails{AccountName: "Ama Owusu", MobileNumber: "0241234567", Network: "mtn"},
		}
		assert.NoError(t, v.Struct(req))

		req.AccountDetails.Network = "glo"
		assert.Equal(t, "Network must be mtn, vodafone, or airteltigo",
			fieldErrors(t, v.Struct(req))["accountDetails.network"])
	})

	t.Run("missing details and low amount", func(t *testing.T) {
		fields := fieldErrors(t, v.Struct(WithdrawRequest{Amount: decimal.NewFromInt(20), WithdrawalMethod: models.WithdrawMobileMoney}))
		assert.Equal(t, "Minimum withdrawal is GHS 50.00", fields["amount"])
		assert.Equal(t, "Account details are required", fields["accountDetails"])
	})
}

func TestTransferRequest(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(TransferRequest{RecipientUsername: "ama_o", Amount: decimal.NewFromInt(1)}))

	fields := fieldErrors(t, v.Struct(TransferRequest{RecipientUsername: "a b", Amount: decimal.RequireFromString("0.5")}))
	assert.Equal(t, "Minimum transfer is GHS 1.00", fields["amount"])
	assert.Contains(t, fields, "recipientUsername")
}

func TestValidationError_Messages(t *testing.T) {
	err := New().Struct(LoginRequest{})
	var verr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Username or phone number is required", "Password is required"}, verr.Messages())
}

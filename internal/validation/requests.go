package validation

import (
	"github.com/go-playground/validator/v10"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Username    string          `json:"username" validate:"required,username,min=3,max=30"`
	PhoneNumber string          `json:"phoneNumber" validate:"required,ghphone"`
	Password    string          `json:"password" validate:"required,min=8,password"`
	FullName    string          `json:"fullName" validate:"required,min=2,max=100"`
	UserType    models.UserType `json:"userType" validate:"required,oneof=user rider"`
	Email       string          `json:"email" validate:"emailorempty"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type VerifyOTPRequest struct {
	PhoneNumber string            `json:"phoneNumber" validate:"required,ghphone"`
	OTPCode     string            `json:"otpCode" validate:"required,len=6,numeric"`
	Purpose     models.OTPPurpose `json:"purpose" validate:"required,oneof=registration login transaction password_reset"`
}

type ResendOTPRequest struct {
	PhoneNumber string            `json:"phoneNumber" validate:"required,ghphone"`
	Purpose     models.OTPPurpose `json:"purpose" validate:"required,oneof=registration login transaction password_reset"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"fullName" validate:"omitnil,min=2,max=100"`
	Email    *string `json:"email" validate:"omitnil,emailorempty"`
}

type SubmitKYCRequest struct {
	DocumentType models.KYCDocumentType `json:"documentType" validate:"required,oneof=id_card selfie passport drivers_license"`
	DocumentURL  string                 `json:"documentUrl" validate:"required"`
}

type CreateEscrowRequest struct {
	SellerID      string               `json:"sellerId" validate:"required,uuid"`
	Amount        decimal.Decimal      `json:"amount" validate:"required,gt=0,dp2"`
	Description   string               `json:"description" validate:"required,min=5,max=500"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" validate:"required,oneof=wallet momo card"`
	RiderID       string               `json:"riderId" validate:"omitempty,uuid"`
}

type ConfirmDeliveryRequest struct {
	Confirmed *bool  `json:"confirmed" validate:"required"`
	Notes     string `json:"notes" validate:"max=500"`
}

type RaiseDisputeRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=1000"`
}

type CancelTransactionRequest struct {
	Reason string `json:"reason" validate:"omitempty,min=5,max=500"`
}

type AssignRiderRequest struct {
	RiderID string `json:"riderId" validate:"required,uuid"`
}

type FundWalletRequest struct {
	Amount        decimal.Decimal      `json:"amount" validate:"required,gt=0,gte=10,lte=10000"`
	PaymentMethod models.FundingMethod `json:"paymentMethod" validate:"required,oneof=paystack mobile_money"`
}

type WithdrawRequest struct {
	Amount           decimal.Decimal         `json:"amount" validate:"required,gt=0,gte=50"`
	WithdrawalMethod models.WithdrawalMethod `json:"withdrawalMethod" validate:"required,oneof=bank_transfer mobile_money"`
	AccountDetails   *models.AccountDetails  `json:"accountDetails" validate:"required"`
}

type TransferRequest struct {
	RecipientUsername string          `json:"recipientUsername" validate:"required,min=3,max=30,username"`
	Amount            decimal.Decimal `json:"amount" validate:"required,gt=0,gte=1"`
	Description       string          `json:"description" validate:"max=200"`
}

var mobileNetworks = map[string]bool{"mtn": true, "vodafone": true, "airteltigo": true}

// withdrawAccountRules enforces the account fields each withdrawal method needs.
func withdrawAccountRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(WithdrawRequest)
	acc := req.AccountDetails
	if acc == nil {
		return
	}

	if acc.AccountName == "" {
		sl.ReportError(acc.AccountName, "accountDetails.accountName", "AccountName", "required", "")
	}
	switch req.WithdrawalMethod {
	case models.WithdrawBankTransfer:
		if acc.AccountNumber == "" {
			sl.ReportError(acc.AccountNumber, "accountDetails.accountNumber", "AccountNumber", "required", "")
		}
		if acc.BankName == "" {
			sl.ReportError(acc.BankName, "accountDetails.bankName", "BankName", "required", "")
		}
	case models.WithdrawMobileMoney:
		if acc.MobileNumber == "" {
			sl.ReportError(acc.MobileNumber, "accountDetails.mobileNumber", "MobileNumber", "required", "")
		}
		if acc.Network == "" {
			sl.ReportError(acc.Network, "accountDetails.network", "Network", "required", "")
		}
	}
	if acc.Network != "" && !mobileNetworks[acc.Network] {
		sl.ReportError(acc.Network, "accountDetails.network", "Network", "oneof", "mtn vodafone airteltigo")
	}
}

const phoneFormat = "Phone number must be in format +233XXXXXXXXX or 0XXXXXXXXX"

// messages maps "<Struct>.<field>.<tag>" to the client-facing text.
var messages = map[string]string{
	"RegisterRequest.username.required":    "Username is required",
	"RegisterRequest.username.username":    "Username must only contain letters, numbers, and underscores",
	"RegisterRequest.username.min":         "Username must be at least 3 characters long",
	"RegisterRequest.username.max":         "Username must not exceed 30 characters",
	"RegisterRequest.phoneNumber.required": "Phone number is required",
	"RegisterRequest.phoneNumber.ghphone":  phoneFormat,
	"RegisterRequest.password.required":    "Password is required",
	"RegisterRequest.password.min":         "Password must be at least 8 characters long",
	"RegisterRequest.password.password":    "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character",
	"RegisterRequest.fullName.required":    "Full name is required",
	"RegisterRequest.fullName.min":         "Full name must be at least 2 characters long",
	"RegisterRequest.fullName.max":         "Full name must not exceed 100 characters",
	"RegisterRequest.userType.required":    "User type is required",
	"RegisterRequest.userType.oneof":       "User type must be either user or rider",
	"RegisterRequest.email.emailorempty":   "Please provide a valid email address",

	"LoginRequest.identifier.required": "Username or phone number is required",
	"LoginRequest.password.required":   "Password is required",

	"VerifyOTPRequest.phoneNumber.required": "Phone number is required",
	"VerifyOTPRequest.phoneNumber.ghphone":  phoneFormat,
	"VerifyOTPRequest.otpCode.required":     "OTP code is required",
	"VerifyOTPRequest.otpCode.len":          "OTP must be 6 digits",
	"VerifyOTPRequest.otpCode.numeric":      "OTP must contain only numbers",
	"VerifyOTPRequest.purpose.required":     "OTP purpose is required",
	"VerifyOTPRequest.purpose.oneof":        "Invalid OTP purpose",

	"ResendOTPRequest.phoneNumber.required": "Phone number is required",
	"ResendOTPRequest.phoneNumber.ghphone":  phoneFormat,
	"ResendOTPRequest.purpose.required":     "OTP purpose is required",
	"ResendOTPRequest.purpose.oneof":        "Invalid OTP purpose",

	"RefreshRequest.refreshToken.required": "Refresh token is required",

	"UpdateProfileRequest.fullName.min":          "Full name must be at least 2 characters long",
	"UpdateProfileRequest.fullName.max":          "Full name must not exceed 100 characters",
	"UpdateProfileRequest.email.emailorempty":    "Please provide a valid email address",
	"SubmitKYCRequest.documentType.required":     "Document type and URL are required",
	"SubmitKYCRequest.documentType.oneof":        "Invalid document type",
	"SubmitKYCRequest.documentUrl.required":      "Document type and URL are required",
	"CreateEscrowRequest.sellerId.required":      "Seller ID is required",
	"CreateEscrowRequest.sellerId.uuid":          "Invalid seller ID format",
	"CreateEscrowRequest.amount.required":        "Amount is required",
	"CreateEscrowRequest.amount.gt":              "Amount must be greater than 0",
	"CreateEscrowRequest.amount.dp2":             "Amount must have at most 2 decimal places",
	"CreateEscrowRequest.description.required":   "Description is required",
	"CreateEscrowRequest.description.min":        "Description must be at least 5 characters",
	"CreateEscrowRequest.description.max":        "Description must not exceed 500 characters",
	"CreateEscrowRequest.paymentMethod.required": "Payment method is required",
	"CreateEscrowRequest.paymentMethod.oneof":    "Payment method must be wallet, momo, or card",
	"CreateEscrowRequest.riderId.uuid":           "Invalid rider ID format",

	"ConfirmDeliveryRequest.confirmed.required": "Confirmation status is required",
	"ConfirmDeliveryRequest.notes.max":          "Notes must not exceed 500 characters",
	"RaiseDisputeRequest.reason.required":       "Dispute reason is required",
	"RaiseDisputeRequest.reason.min":            "Dispute reason must be at least 10 characters",
	"RaiseDisputeRequest.reason.max":            "Dispute reason must not exceed 1000 characters",
	"CancelTransactionRequest.reason.min":       "Cancellation reason must be at least 5 characters",
	"CancelTransactionRequest.reason.max":       "Cancellation reason must not exceed 500 characters",
	"AssignRiderRequest.riderId.required":       "Rider ID is required",
	"AssignRiderRequest.riderId.uuid":           "Invalid rider ID format",

	"FundWalletRequest.amount.required":        "Amount is required",
	"FundWalletRequest.amount.gt":              "Amount must be positive",
	"FundWalletRequest.amount.gte":             "Minimum deposit is GHS 10.00",
	"FundWalletRequest.amount.lte":             "Maximum deposit is GHS 10,000.00",
	"FundWalletRequest.paymentMethod.required": "Payment method is required",
	"FundWalletRequest.paymentMethod.oneof":    "Payment method must be paystack or mobile_money",

	"WithdrawRequest.amount.required":                       "Amount is required",
	"WithdrawRequest.amount.gt":                             "Amount must be positive",
	"WithdrawRequest.amount.gte":                            "Minimum withdrawal is GHS 50.00",
	"WithdrawRequest.withdrawalMethod.required":             "Withdrawal method is required",
	"WithdrawRequest.withdrawalMethod.oneof":                "Withdrawal method must be bank_transfer or mobile_money",
	"WithdrawRequest.accountDetails.required":               "Account details are required",
	"WithdrawRequest.accountDetails.accountName.required":   "Account name is required",
	"WithdrawRequest.accountDetails.accountNumber.required": "Account number is required for bank transfers",
	"WithdrawRequest.accountDetails.bankName.required":      "Bank name is required for bank transfers",
	"WithdrawRequest.accountDetails.mobileNumber.required":  "Mobile number is required for mobile money",
	"WithdrawRequest.accountDetails.network.required":       "Network is required for mobile money",
	"WithdrawRequest.accountDetails.network.oneof":          "Network must be mtn, vodafone, or airteltigo",

	"TransferRequest.recipientUsername.required": "Recipient username is required",
	"TransferRequest.recipientUsername.username": "Username must contain only letters, numbers, and underscores",
	"TransferRequest.recipientUsername.min":      "Username must be at least 3 characters",
	"TransferRequest.recipientUsername.max":      "Username must not exceed 30 characters",
	"TransferRequest.amount.required":            "Amount is required",
	"TransferRequest.amount.gt":                  "Amount must be positive",
	"TransferRequest.amount.gte":                 "Minimum transfer is GHS 1.00",
	"TransferRequest.description.max":            "Description must not exceed 200 characters",
}

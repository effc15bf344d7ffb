package models

import "time"

type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeRider UserType = "rider"
)

type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

type User struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	PhoneNumber     string     `json:"phoneNumber"`
	PasswordHash    string     `json:"-"`
	FullName        string     `json:"fullName"`
	UserType        UserType   `json:"userType"`
	Email           *string    `json:"email"`
	IsVerified      bool       `json:"isVerified"`
	IsActive        bool       `json:"isActive"`
	KYCStatus       KYCStatus  `json:"kycStatus"`
	ProfileImageURL *string    `json:"profileImage"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastLoginAt     *time.Time `json:"lastLoginAt"`
}

// PublicUser is what other participants of a deal get to see.
type PublicUser struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	FullName    string  `json:"fullName"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

// UserSearchResult is one row of the counterparty search.
type UserSearchResult struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullName"`
	UserType   UserType  `json:"userType"`
	IsVerified bool      `json:"isVerified"`
	KYCStatus  KYCStatus `json:"kycStatus"`
}

// ProfileUpdate holds optional profile changes. An empty Email clears it.
type ProfileUpdate struct {
	FullName *string
	Email    *string
}

type KYCDocumentType string

const (
	KYCIDCard         KYCDocumentType = "id_card"
	KYCSelfie         KYCDocumentType = "selfie"
	KYCPassport       KYCDocumentType = "passport"
	KYCDriversLicense KYCDocumentType = "drivers_license"
)

type KYCDocument struct {
	ID              string          `json:"id"`
	UserID          string          `json:"-"`
	DocumentType    KYCDocumentType `json:"documentType"`
	DocumentURL     string          `json:"documentUrl"`
	Status          KYCStatus       `json:"status"`
	RejectionReason *string         `json:"rejectionReason"`
	UploadedAt      time.Time       `json:"uploadedAt"`
	VerifiedAt      *time.Time      `json:"verifiedAt"`
}

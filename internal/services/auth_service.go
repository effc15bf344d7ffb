package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"math/big"
	"time"

	"github.com/honeynil/SureSend/internal/infrastructure/auth"
	"github.com/honeynil/SureSend/internal/infrastructure/kafka"
	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/infrastructure/redis"
	"github.com/honeynil/SureSend/internal/infrastructure/sms"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const resendCooldown = 60 * time.Second

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (*models.User, error)
	VerifyOTP(ctx context.Context, phone, code string, purpose models.OTPPurpose) (*AuthResult, error)
	ResendOTP(ctx context.Context, phone string, purpose models.OTPPurpose) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, principal *models.Principal, refreshToken string) error
}

type RegisterInput struct {
	Username    string
	PhoneNumber string
	Password    string
	FullName    string
	UserType    models.UserType
	Email       string
}

type AuthResult struct {
	Tokens        *models.TokenPair
	User          *models.User
	WalletBalance decimal.Decimal
}

type authService struct {
	store      repository.Store
	tokens     *auth.TokenService
	cache      redis.RedisClient
	sms        sms.Sender
	events     *kafka.Publisher
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(
	store repository.Store,
	tokens *auth.TokenService,
	cache redis.RedisClient,
	sender sms.Sender,
	events *kafka.Publisher,
) *authService {
	return &authService{
		store:      store,
		tokens:     tokens,
		cache:      cache,
		sms:        sender,
		events:     events,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "Register", trace.WithAttributes(attribute.String("username", in.Username)))
	defer span.End()

	exists, err := s.store.Users().ExistsByUsernameOrPhone(ctx, in.Username, in.PhoneNumber)
	if err != nil {
		observability.WithContext(ctx).Error("failed to check user existence", "username", in.Username, "error", err)
		return nil, spanFail(span, err, "user check failed")
	}
	if exists {
		observability.WithContext(ctx).Warn("username or phone already registered", "username", in.Username)
		return nil, spanFail(span, pkgerrors.ErrUserAlreadyExists, "user exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		observability.WithContext(ctx).Error("failed to hash password", "username", in.Username, "error", err)
		return nil, spanFail(span, fmt.Errorf("failed to hash password: %w", err), "password hashing failed")
	}

	user := &models.User{
		Username:     in.Username,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		UserType:     in.UserType,
	}
	if in.Email != "" {
		email := in.Email
		user.Email = &email
	}

	var otp *models.OTPVerification
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		wallet := &models.Wallet{UserID: user.ID, Balance: decimal.Zero, Currency: models.DefaultCurrency}
		if err := tx.Wallets().Create(ctx, wallet); err != nil {
			return fmt.Errorf("failed to create wallet: %w", err)
		}
		otp, err = s.newOTP(ctx, tx, user.PhoneNumber, models.OTPRegistration)
		return err
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to register user", "username", in.Username, "error", err)
		return nil, spanFail(span, err, "registration failed")
	}

	s.sendOTP(ctx, otp)
	s.events.Publish(ctx, kafka.NewEvent(kafka.EventUserRegistered, user.ID, map[string]any{
		"username": user.Username,
		"userType": user.UserType,
	}))

	observability.WithContext(ctx).Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *authService) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.store.Users().GetByIdentifier(ctx, identifier)
	if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		return nil, spanFail(span, pkgerrors.ErrInvalidCredentials, "unknown user")
	}
	if err != nil {
		return nil, spanFail(span, err, "user lookup failed")
	}
	if !user.IsActive {
		observability.WithContext(ctx).Warn("login attempt on inactive account", "user_id", user.ID)
		return nil, spanFail(span, pkgerrors.ErrUserInactive, "inactive user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		observability.WithContext(ctx).Warn("invalid password", "user_id", user.ID)
		return nil, spanFail(span, pkgerrors.ErrInvalidCredentials, "invalid password")
	}

	otp, err := s.newOTP(ctx, s.store, user.PhoneNumber, models.OTPLogin)
	if err != nil {
		return nil, spanFail(span, err, "otp creation failed")
	}
	s.sendOTP(ctx, otp)

	observability.WithContext(ctx).Info("login otp sent", "user_id", user.ID)
	return user, nil
}

func (s *authService) VerifyOTP(ctx context.Context, phone, code string, purpose models.OTPPurpose) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "VerifyOTP", trace.WithAttributes(attribute.String("purpose", string(purpose))))
	defer span.End()

	otp, err := s.store.OTPs().GetLatestPending(ctx, phone, purpose)
	if err != nil {
		return nil, spanFail(span, err, "otp lookup failed")
	}
	now := s.now().UTC()
	if otp.Expired(now) {
		return nil, spanFail(span, pkgerrors.ErrOTPExpired, "otp expired")
	}
	if _, err := s.store.OTPs().ConsumeAttempt(ctx, otp.ID, models.OTPMaxAttempts); err != nil {
		return nil, spanFail(span, err, "attempt rejected")
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		return nil, spanFail(span, pkgerrors.ErrOTPInvalid, "otp mismatch")
	}

	var user *models.User
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		if err = tx.OTPs().MarkVerified(ctx, otp.ID, now); err != nil {
			return err
		}
		user, err = tx.Users().GetByPhone(ctx, phone)
		if err != nil {
			return err
		}
		if purpose == models.OTPRegistration && !user.IsVerified {
			if err := tx.Users().MarkVerified(ctx, user.ID); err != nil {
				return err
			}
			user.IsVerified = true
		}
		if err := tx.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
			return err
		}
		user.LastLoginAt = &now
		return nil
	})
	if err != nil {
		observability.WithContext(ctx).Error("failed to complete otp verification", "purpose", purpose, "error", err)
		return nil, spanFail(span, err, "verification failed")
	}

	balance := decimal.Zero
	if w, err := s.store.Wallets().GetOverview(ctx, user.ID); err == nil {
		balance = w.Balance
	} else if !stderrors.Is(err, pkgerrors.ErrWalletNotFound) {
		return nil, spanFail(span, err, "wallet lookup failed")
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		observability.WithContext(ctx).Error("failed to issue tokens", "user_id", user.ID, "error", err)
		return nil, spanFail(span, err, "token issue failed")
	}

	span.SetStatus(codes.Ok, "")
	observability.WithContext(ctx).Info("otp verified", "user_id", user.ID, "purpose", purpose)
	return &AuthResult{Tokens: tokens, User: user, WalletBalance: balance}, nil
}

func (s *authService) ResendOTP(ctx context.Context, phone string, purpose models.OTPPurpose) error {
	ctx, span := tracer.Start(ctx, "ResendOTP", trace.WithAttributes(attribute.String("purpose", string(purpose))))
	defer span.End()

	if _, err := s.store.Users().GetByPhone(ctx, phone); err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return spanFail(span, pkgerrors.ErrPhoneNotRegistered, "phone not registered")
		}
		return spanFail(span, err, "user lookup failed")
	}

	key := fmt.Sprintf("otp:resend:%s:%s", phone, purpose)
	ok, err := s.cache.SetNX(ctx, key, "1", resendCooldown)
	if err != nil {
		observability.WithContext(ctx).Error("failed to apply otp resend throttle", "error", err)
	} else if !ok {
		return spanFail(span, pkgerrors.ErrOTPThrottled, "otp throttled")
	}

	otp, err := s.newOTP(ctx, s.store, phone, purpose)
	if err != nil {
		return spanFail(span, err, "otp creation failed")
	}
	s.sendOTP(ctx, otp)

	observability.WithContext(ctx).Info("otp resent", "phone", sms.Mask(phone), "purpose", purpose)
	return nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "Refresh")
	defer span.End()

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, spanFail(span, err, "invalid refresh token")
	}
	revoked, err := auth.IsRevoked(ctx, s.cache, claims.TokenID)
	if err != nil {
		return nil, spanFail(span, err, "revocation check failed")
	}
	if revoked {
		return nil, spanFail(span, pkgerrors.ErrInvalidToken, "refresh token revoked")
	}

	user, err := s.store.Users().GetByID(ctx, claims.UserID)
	if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		return nil, spanFail(span, pkgerrors.ErrInvalidToken, "user gone")
	}
	if err != nil {
		return nil, spanFail(span, err, "user lookup failed")
	}
	if !user.IsActive {
		return nil, spanFail(span, pkgerrors.ErrUserInactive, "inactive user")
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, spanFail(span, err, "token issue failed")
	}
	// refresh tokens are single use
	if err := auth.Revoke(ctx, s.cache, claims); err != nil {
		observability.WithContext(ctx).Error("failed to revoke used refresh token", "user_id", user.ID, "error", err)
	}
	return pair, nil
}

// Logout revokes the access token of principal and, when given and owned by
// the same user, the refresh token.
func (s *authService) Logout(ctx context.Context, principal *models.Principal, refreshToken string) error {
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()

	if err := auth.Revoke(ctx, s.cache, principal); err != nil {
		observability.WithContext(ctx).Error("failed to revoke access token", "user_id", principal.UserID, "error", err)
		return spanFail(span, err, "revoke failed")
	}
	if refreshToken != "" {
		if claims, err := s.tokens.ParseRefresh(refreshToken); err == nil && claims.UserID == principal.UserID {
			if err := auth.Revoke(ctx, s.cache, claims); err != nil {
				observability.WithContext(ctx).Error("failed to revoke refresh token", "user_id", principal.UserID, "error", err)
			}
		}
	}

	observability.WithContext(ctx).Info("user logged out", "user_id", principal.UserID)
	return nil
}

func (s *authService) newOTP(ctx context.Context, store repository.Store, phone string, purpose models.OTPPurpose) (*models.OTPVerification, error) {
	code, err := generateOTP(models.OTPLength)
	if err != nil {
		return nil, err
	}
	otp := &models.OTPVerification{
		PhoneNumber: phone,
		Code:        code,
		Purpose:     purpose,
		ExpiresAt:   s.now().UTC().Add(models.OTPTTL),
	}
	if err := store.OTPs().Create(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}
	return otp, nil
}

// sendOTP never fails the caller; the user can ask for a resend.
func (s *authService) sendOTP(ctx context.Context, otp *models.OTPVerification) {
	msg := fmt.Sprintf("Your SureSend %s code is %s. It expires in %d minutes.",
		otp.Purpose, otp.Code, int(models.OTPTTL.Minutes()))
	if err := s.sms.Send(ctx, otp.PhoneNumber, msg); err != nil {
		observability.WithContext(ctx).Error("failed to send otp", "phone", sms.Mask(otp.PhoneNumber), "purpose", otp.Purpose, "error", err)
	}
}

func generateOTP(length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

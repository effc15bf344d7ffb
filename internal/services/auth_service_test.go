package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/honeynil/SureSend/internal/infrastructure/auth"
	"github.com/honeynil/SureSend/internal/infrastructure/redis"
	redismocks "github.com/honeynil/SureSend/internal/infrastructure/redis/mocks"
	smsmocks "github.com/honeynil/SureSend/internal/infrastructure/sms/mocks"
	"github.com/honeynil/SureSend/internal/models"
	"github.com/honeynil/SureSend/internal/repository/memory"
	pkgerrors "github.com/honeynil/SureSend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func newCache(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := redis.NewClient(context.Background(), srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

const testPhone = "+233241234567"

type authFixture struct {
	store  *memory.Store
	cache  *redis.Client
	sms    *smsmocks.MockSender
	tokens *auth.TokenService
	svc    *authService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	f := &authFixture{
		store:  memory.NewStore(),
		cache:  newCache(t),
		sms:    smsmocks.NewMockSender(ctrl),
		tokens: tokens,
	}
	f.svc = NewAuthService(f.store, tokens, f.cache, f.sms, nil)
	f.svc.bcryptCost = bcrypt.MinCost
	return f
}

func (f *authFixture) register(t *testing.T) *models.User {
	t.Helper()
	f.sms.EXPECT().Send(gomock.Any(), testPhone, gomock.Any()).Return(nil)
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username:    "kwame",
		PhoneNumber: testPhone,
		Password:    "Secret123!",
		FullName:    "Kwame Mensah",
		UserType:    models.UserTypeUser,
	})
	require.NoError(t, err)
	return user
}

func (f *authFixture) pendingCode(t *testing.T, purpose models.OTPPurpose) string {
	t.Helper()
	otp, err := f.store.OTPs().GetLatestPending(context.Background(), testPhone, purpose)
	require.NoError(t, err)
	return otp.Code
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestAuthService_RegisterAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := f.register(t)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "Secret123!", user.PasswordHash)

	wallet, err := f.store.Wallets().GetOverview(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
	assert.Equal(t, models.DefaultCurrency, wallet.Currency)

	code := f.pendingCode(t, models.OTPRegistration)
	assert.Regexp(t, `^\d{6}$`, code)

	res, err := f.svc.VerifyOTP(ctx, testPhone, code, models.OTPRegistration)
	require.NoError(t, err)
	assert.True(t, res.User.IsVerified)
	assert.NotNil(t, res.User.LastLoginAt)
	assert.True(t, res.WalletBalance.IsZero())

	p, err := f.tokens.ParseAccess(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)

	stored, err := f.store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)

	// a used code cannot be replayed
	_, err = f.svc.VerifyOTP(ctx, testPhone, code, models.OTPRegistration)
	assert.ErrorIs(t, err, pkgerrors.ErrOTPNotFound)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "kwame", PhoneNumber: "+233200000000", Password: "Secret123!", FullName: "Other", UserType: models.UserTypeUser,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrUserAlreadyExists)
}

func TestAuthService_SMSFailureDoesNotFailRegistration(t *testing.T) {
	f := newAuthFixture(t)
	f.sms.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("sms gateway down"))

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "ama", PhoneNumber: testPhone, Password: "Secret123!", FullName: "Ama Owusu", UserType: models.UserTypeUser,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
}

func TestAuthService_OTPLockout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t)
	code := f.pendingCode(t, models.OTPRegistration)

	for i := 0; i < models.OTPMaxAttempts; i++ {
		_, err := f.svc.VerifyOTP(ctx, testPhone, wrongCode(code), models.OTPRegistration)
		assert.ErrorIs(t, err, pkgerrors.ErrOTPInvalid)
	}

	// the right code no longer helps
	_, err := f.svc.VerifyOTP(ctx, testPhone, code, models.OTPRegistration)
	assert.ErrorIs(t, err, pkgerrors.ErrOTPAttemptsExceeded)

	otp, err := f.store.OTPs().GetLatestPending(ctx, testPhone, models.OTPRegistration)
	require.NoError(t, err)
	assert.Equal(t, models.OTPMaxAttempts, otp.Attempts)
}

func TestAuthService_OTPExpired(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	code := f.pendingCode(t, models.OTPRegistration)

	f.svc.now = func() time.Time { return time.Now().Add(models.OTPTTL + time.Minute) }
	_, err := f.svc.VerifyOTP(context.Background(), testPhone, code, models.OTPRegistration)
	assert.ErrorIs(t, err, pkgerrors.ErrOTPExpired)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := f.register(t)

	_, err := f.svc.Login(ctx, "nobody", "Secret123!")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "kwame", "Wrong123!")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)

	f.sms.EXPECT().Send(gomock.Any(), testPhone, gomock.Any()).Return(nil)
	got, err := f.svc.Login(ctx, testPhone, "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	res, err := f.svc.VerifyOTP(ctx, testPhone, f.pendingCode(t, models.OTPLogin), models.OTPLogin)
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)

	require.NoError(t, f.store.SetUserActive(user.ID, false))
	_, err = f.svc.Login(ctx, "kwame", "Secret123!")
	assert.ErrorIs(t, err, pkgerrors.ErrUserInactive)
}

func TestAuthService_ResendOTP(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t)
	first := f.pendingCode(t, models.OTPRegistration)

	err := f.svc.ResendOTP(ctx, "+233209999999", models.OTPRegistration)
	assert.ErrorIs(t, err, pkgerrors.ErrPhoneNotRegistered)

	f.sms.EXPECT().Send(gomock.Any(), testPhone, gomock.Any()).Return(nil)
	require.NoError(t, f.svc.ResendOTP(ctx, testPhone, models.OTPRegistration))

	err = f.svc.ResendOTP(ctx, testPhone, models.OTPRegistration)
	assert.ErrorIs(t, err, pkgerrors.ErrOTPThrottled)

	latest := f.pendingCode(t, models.OTPRegistration)
	if latest != first {
		_, err = f.svc.VerifyOTP(ctx, testPhone, first, models.OTPRegistration)
		assert.ErrorIs(t, err, pkgerrors.ErrOTPInvalid)
	}
}

func TestAuthService_ResendOTPCacheDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := redismocks.NewMockRedisClient(ctrl)
	f := newAuthFixture(t)
	f.svc.cache = cache
	f.register(t)

	cache.EXPECT().SetNX(gomock.Any(), gomock.Any(), "1", resendCooldown).Return(false, errors.New("connection refused"))
	f.sms.EXPECT().Send(gomock.Any(), testPhone, gomock.Any()).Return(nil)

	assert.NoError(t, f.svc.ResendOTP(context.Background(), testPhone, models.OTPRegistration))
}

func TestAuthService_RefreshRotatesTokens(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t)
	res, err := f.svc.VerifyOTP(ctx, testPhone, f.pendingCode(t, models.OTPRegistration), models.OTPRegistration)
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.AccessToken, pair.AccessToken)

	_, err = f.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)

	_, err = f.svc.Refresh(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t)
	res, err := f.svc.VerifyOTP(ctx, testPhone, f.pendingCode(t, models.OTPRegistration), models.OTPRegistration)
	require.NoError(t, err)

	principal, err := f.tokens.ParseAccess(res.Tokens.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, principal, res.Tokens.RefreshToken))

	revoked, err := auth.IsRevoked(ctx, f.cache, principal.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = f.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidToken)
}

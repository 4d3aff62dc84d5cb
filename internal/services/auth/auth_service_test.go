package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/security/audit"
	"github.com/referralhub/backend/internal/session"
	"github.com/referralhub/backend/internal/testutil"
	"github.com/referralhub/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, cfg config.AuthConfig) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &models.Admin{}, &audit.AuditLog{})
	svc := NewService(
		db,
		utils.NewTokenIssuer("test-secret", time.Hour),
		session.NewMemoryRevocationStore(),
		audit.NewLogger(db),
		cfg,
		config.GoogleConfig{ClientID: "client", ClientSecret: "secret"},
		nil,
	)
	return svc, db
}

func createAdmin(t *testing.T, db *gorm.DB, email, password string) *models.Admin {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)

	admin := models.Admin{Email: email, Name: "Ops", PasswordHash: hash}
	require.NoError(t, db.Create(&admin).Error)
	return &admin
}

func TestRegisterFirstAdmin(t *testing.T) {
	svc, db := newTestService(t, config.AuthConfig{})
	ctx := context.Background()

	sess, err := svc.Register(ctx, "Ops", " Ops@Example.com ", "letters4andnumbers")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", sess.Admin.Email)
	assert.NotEmpty(t, sess.Token.AccessToken)

	var count int64
	require.NoError(t, db.Model(&models.Admin{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Signup closes once an admin exists
	_, err = svc.Register(ctx, "Second", "second@example.com", "letters4andnumbers")
	assert.True(t, errors.Is(err, errutil.ErrForbidden))
}

func TestRegisterValidation(t *testing.T) {
	svc, db := newTestService(t, config.AuthConfig{AllowSignup: true})
	ctx := context.Background()
	createAdmin(t, db, "ops@example.com", "letters4andnumbers")

	_, err := svc.Register(ctx, "Weak", "weak@example.com", "short")
	assert.True(t, errors.Is(err, errutil.ErrInvalidArgument))

	_, err = svc.Register(ctx, "Dup", "OPS@example.com", "letters4andnumbers")
	assert.True(t, errors.Is(err, errutil.ErrAlreadyProcessed))

	_, err = svc.Register(ctx, "New", "new@example.com", "letters4andnumbers")
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	svc, db := newTestService(t, config.AuthConfig{})
	ctx := context.Background()
	admin := createAdmin(t, db, "ops@example.com", "letters4andnumbers")

	_, err := svc.Login(ctx, "ops@example.com", "wrong-password1", "")
	assert.True(t, errors.Is(err, errutil.ErrUnauthorized))

	_, err = svc.Login(ctx, "nobody@example.com", "letters4andnumbers", "")
	assert.True(t, errors.Is(err, errutil.ErrUnauthorized))

	sess, err := svc.Login(ctx, "OPS@example.com", "letters4andnumbers", "")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, sess.Admin.ID)

	var stored models.Admin
	require.NoError(t, db.First(&stored, "id = ?", admin.ID).Error)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginLockout(t *testing.T) {
	svc, db := newTestService(t, config.AuthConfig{
		LoginMaxAttempts: 2,
		LoginWindow:      time.Minute,
		LoginLockout:     time.Hour,
	})
	ctx := context.Background()
	createAdmin(t, db, "ops@example.com", "letters4andnumbers")

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "ops@example.com", "wrong-password1", "")
		assert.True(t, errors.Is(err, errutil.ErrUnauthorized))
	}

	_, err := svc.Login(ctx, "ops@example.com", "letters4andnumbers", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many failed login attempts")
}

func TestAuthenticateAndLogout(t *testing.T) {
	svc, db := newTestService(t, config.AuthConfig{})
	ctx := context.Background()
	createAdmin(t, db, "ops@example.com", "letters4andnumbers")

	sess, err := svc.Login(ctx, "ops@example.com", "letters4andnumbers", "")
	require.NoError(t, err)

	claims, err := svc.Authenticate(ctx, sess.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.Admin.ID, claims.AdminID)

	require.NoError(t, svc.Logout(ctx, claims))

	_, err = svc.Authenticate(ctx, sess.Token.AccessToken)
	assert.True(t, errors.Is(err, errutil.ErrUnauthorized))

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.True(t, errors.Is(err, errutil.ErrUnauthorized))
}

func TestTOTPFlow(t *testing.T) {
	svc, db := newTestService(t, config.AuthConfig{TOTPIssuer: "ReferralHub"})
	ctx := context.Background()
	admin := createAdmin(t, db, "ops@example.com", "letters4andnumbers")

	err := svc.EnableTOTP(ctx, admin.ID, "123456")
	assert.True(t, errors.Is(err, errutil.ErrInvalidState))

	key, err := svc.SetupTOTP(ctx, admin.ID)
	require.NoError(t, err)
	assert.Contains(t, key.URL, "ReferralHub")

	err = svc.EnableTOTP(ctx, admin.ID, "000000x")
	assert.True(t, errors.Is(err, errutil.ErrInvalidArgument))

	code, err := totp.GenerateCode(key.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.EnableTOTP(ctx, admin.ID, code))

	var logs []audit.AuditLog
	require.NoError(t, db.Where("action = ?", audit.ActionEnableTOTP).Find(&logs).Error)
	assert.Len(t, logs, 1)

	_, err = svc.SetupTOTP(ctx, admin.ID)
	assert.True(t, errors.Is(err, errutil.ErrAlreadyProcessed))

	// Password alone is no longer enough
	_, err = svc.Login(ctx, "ops@example.com", "letters4andnumbers", "")
	assert.True(t, errors.Is(err, errutil.ErrUnauthorized))

	code, err = totp.GenerateCode(key.Secret, time.Now())
	require.NoError(t, err)
	_, err = svc.Login(ctx, "ops@example.com", "letters4andnumbers", code)
	assert.NoError(t, err)
}

func TestGoogleLogin(t *testing.T) {
	svc, db := newTestService(t, config.AuthConfig{})
	ctx := context.Background()
	admin := createAdmin(t, db, "ops@example.com", "letters4andnumbers")

	profile := &GoogleUserInfo{ID: "google-123", Email: "ops@example.com", VerifiedEmail: true}
	svc.exchangeGoogleCode = func(ctx context.Context, code, redirectURI string) (*GoogleUserInfo, error) {
		if code != "good-code" {
			return nil, errors.New("bad code")
		}
		return profile, nil
	}

	_, err := svc.GoogleLogin(ctx, "bad-code", "http://localhost/callback")
	assert.True(t, errors.Is(err, errutil.ErrUnauthorized))

	sess, err := svc.GoogleLogin(ctx, "good-code", "http://localhost/callback")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, sess.Admin.ID)

	var stored models.Admin
	require.NoError(t, db.First(&stored, "id = ?", admin.ID).Error)
	require.NotNil(t, stored.GoogleSubject)
	assert.Equal(t, "google-123", *stored.GoogleSubject)

	profile.VerifiedEmail = false
	_, err = svc.GoogleLogin(ctx, "good-code", "http://localhost/callback")
	assert.True(t, errors.Is(err, errutil.ErrUnauthorized))

	profile.VerifiedEmail = true
	profile.ID = "google-999"
	profile.Email = "stranger@example.com"
	_, err = svc.GoogleLogin(ctx, "good-code", "http://localhost/callback")
	assert.True(t, errors.Is(err, errutil.ErrForbidden))
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/security"
	"github.com/referralhub/backend/internal/security/audit"
	"github.com/referralhub/backend/internal/session"
	"github.com/referralhub/backend/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUserInfo holds the user information returned from Google
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// AuditRecorder appends audit rows through the given transaction
type AuditRecorder interface {
	Record(tx *gorm.DB, entry audit.Entry) (*audit.AuditLog, error)
}

// Session is an authenticated admin with the token that proves it
type Session struct {
	Admin *models.Admin `json:"admin"`
	Token utils.Token   `json:"token"`
}

// Service authenticates dashboard admins
type Service struct {
	db          *gorm.DB
	tokens      *utils.TokenIssuer
	revocations session.RevocationStore
	audit       AuditRecorder
	guard       *security.LoginGuard
	cfg         config.AuthConfig
	google      config.GoogleConfig
	log         *zap.Logger
	now         func() time.Time

	// exchangeGoogleCode swaps an authorization code for the Google profile
	exchangeGoogleCode func(ctx context.Context, code, redirectURI string) (*GoogleUserInfo, error)
}

// NewService creates an auth service
func NewService(db *gorm.DB, tokens *utils.TokenIssuer, revocations session.RevocationStore, recorder AuditRecorder, cfg config.AuthConfig, googleCfg config.GoogleConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{
		db:          db,
		tokens:      tokens,
		revocations: revocations,
		audit:       recorder,
		guard: security.NewLoginGuard(security.LoginGuardConfig{
			MaxAttempts: cfg.LoginMaxAttempts,
			Window:      cfg.LoginWindow,
			Lockout:     cfg.LoginLockout,
		}),
		cfg: cfg,
		google:      googleCfg,
		log:         log.Named("auth"),
		now:         time.Now,
	}
	s.exchangeGoogleCode = s.fetchGoogleProfile
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks an admin's password and, when enabled, their TOTP code
func (s *Service) Login(ctx context.Context, email, password, totpCode string) (*Session, error) {
	email = normalizeEmail(email)

	if blocked, until := s.guard.Blocked(email); blocked {
		s.log.Warn("login locked out", zap.String("email", email), zap.Time("until", until))
		return nil, errutil.Unauthorized("too many failed login attempts, try again later")
	}

	var admin models.Admin
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.guard.RecordFailure(email)
			return nil, errutil.Unauthorized("invalid email or password")
		}
		return nil, errutil.Internal("failed to load admin", err)
	}

	if admin.PasswordHash == "" || !utils.CheckPasswordHash(password, admin.PasswordHash) {
		s.guard.RecordFailure(email)
		return nil, errutil.Unauthorized("invalid email or password")
	}

	if admin.TOTPEnabled {
		if totpCode == "" {
			return nil, errutil.Unauthorized("totp code required")
		}
		if admin.TOTPSecret == nil || !utils.ValidateTOTP(*admin.TOTPSecret, totpCode) {
			s.guard.RecordFailure(email)
			return nil, errutil.Unauthorized("invalid totp code")
		}
	}

	s.guard.Reset(email)
	return s.startSession(ctx, &admin)
}

// Register creates an admin account. Signup is open only while no admin
// exists, unless explicitly allowed.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	if err := security.AdminPasswordPolicy().Validate(password, email); err != nil {
		return nil, errutil.InvalidArgument("%s", err.Error())
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; err != nil {
		return nil, errutil.Internal("failed to count admins", err)
	}
	if count > 0 && !s.cfg.AllowSignup {
		return nil, errutil.Forbidden("admin signup is disabled")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, errutil.Internal("failed to check admin email", err)
	}
	if existing > 0 {
		return nil, errutil.AlreadyProcessed("an admin with this email already exists")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, errutil.Internal("failed to hash password", err)
	}

	admin := models.Admin{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return nil, errutil.Internal("failed to create admin", err)
	}

	s.log.Info("admin registered", zap.String("admin_id", admin.ID.String()))
	return s.startSession(ctx, &admin)
}

// GoogleLogin signs in an existing admin with a Google authorization code.
// The Google account's verified email must match an admin.
func (s *Service) GoogleLogin(ctx context.Context, code, redirectURI string) (*Session, error) {
	if s.google.ClientID == "" || s.google.ClientSecret == "" {
		return nil, errutil.InvalidArgument("google login is not configured")
	}

	info, err := s.exchangeGoogleCode(ctx, code, redirectURI)
	if err != nil {
		return nil, errutil.Wrap(errutil.KindUnauthorized, "google authentication failed", err)
	}

	if !info.VerifiedEmail {
		return nil, errutil.Unauthorized("email not verified with google")
	}

	var admin models.Admin
	err = s.db.WithContext(ctx).
		Where("google_subject = ?", info.ID).
		Or("email = ?", normalizeEmail(info.Email)).
		First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.Forbidden("no admin account for %s", info.Email)
		}
		return nil, errutil.Internal("failed to load admin", err)
	}

	if admin.GoogleSubject == nil {
		if err := s.db.WithContext(ctx).Model(&admin).Update("google_subject", info.ID).Error; err != nil {
			return nil, errutil.Internal("failed to link google account", err)
		}
		admin.GoogleSubject = &info.ID
	} else if *admin.GoogleSubject != info.ID {
		return nil, errutil.Forbidden("admin is linked to a different google account")
	}

	return s.startSession(ctx, &admin)
}

func (s *Service) fetchGoogleProfile(ctx context.Context, code, redirectURI string) (*GoogleUserInfo, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     s.google.ClientID,
		ClientSecret: s.google.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	resp, err := oauth2Config.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

func (s *Service) startSession(ctx context.Context, admin *models.Admin) (*Session, error) {
	token, _, err := s.tokens.GenerateToken(admin.ID, admin.Email)
	if err != nil {
		return nil, errutil.Internal("failed to issue token", err)
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(admin).Update("last_login_at", now).Error; err != nil {
		s.log.Warn("failed to record login time", zap.Error(err))
	} else {
		admin.LastLoginAt = &now
	}

	return &Session{Admin: admin, Token: token}, nil
}

// Authenticate validates a session token and rejects revoked ones
func (s *Service) Authenticate(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, errutil.Unauthorized("invalid or expired token")
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.Id)
	if err != nil {
		return nil, errutil.Internal("failed to check session", err)
	}
	if revoked {
		return nil, errutil.Unauthorized("session has been logged out")
	}

	return claims, nil
}

// Logout revokes the session token until its natural expiry
func (s *Service) Logout(ctx context.Context, claims *utils.Claims) error {
	if err := s.revocations.Revoke(ctx, claims.Id, time.Unix(claims.ExpiresAt, 0)); err != nil {
		return errutil.Internal("failed to revoke session", err)
	}
	return nil
}

// GetAdmin loads an admin by ID
func (s *Service) GetAdmin(ctx context.Context, adminID uuid.UUID) (*models.Admin, error) {
	var admin models.Admin
	if err := s.db.WithContext(ctx).First(&admin, "id = ?", adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("admin %s not found", adminID)
		}
		return nil, errutil.Internal("failed to load admin", err)
	}
	return &admin, nil
}

// SetupTOTP generates a fresh TOTP secret for the admin. It takes effect
// once confirmed with EnableTOTP.
func (s *Service) SetupTOTP(ctx context.Context, adminID uuid.UUID) (*utils.MFAKey, error) {
	admin, err := s.GetAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.TOTPEnabled {
		return nil, errutil.AlreadyProcessed("totp is already enabled")
	}

	key, err := utils.GenerateTOTPKey(s.cfg.TOTPIssuer, admin.Email)
	if err != nil {
		return nil, errutil.Internal("failed to generate totp key", err)
	}

	if err := s.db.WithContext(ctx).Model(admin).Update("totp_secret", key.Secret).Error; err != nil {
		return nil, errutil.Internal("failed to store totp secret", err)
	}

	return key, nil
}

// EnableTOTP turns on the second factor after the admin proves they hold
// the secret
func (s *Service) EnableTOTP(ctx context.Context, adminID uuid.UUID, code string) error {
	admin, err := s.GetAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if admin.TOTPEnabled {
		return errutil.AlreadyProcessed("totp is already enabled")
	}
	if admin.TOTPSecret == nil {
		return errutil.InvalidState("totp setup has not been started")
	}
	if !utils.ValidateTOTP(*admin.TOTPSecret, code) {
		return errutil.InvalidArgument("invalid totp code")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(admin).Update("totp_enabled", true).Error; err != nil {
			return errutil.Internal("failed to enable totp", err)
		}
		if _, err := s.audit.Record(tx, audit.Entry{
			AdminID:    &admin.ID,
			Action:     audit.ActionEnableTOTP,
			EntityID:   admin.ID,
			EntityType: audit.EntityAdmin,
			Details:    "Enabled two-factor authentication",
		}); err != nil {
			return errutil.Internal("failed to write audit log", err)
		}
		return nil
	})
}

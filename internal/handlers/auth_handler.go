package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/middleware"
	"github.com/referralhub/backend/internal/services/auth"
)

// SessionCookie describes the cookie that carries the admin session
type SessionCookie struct {
	Name   string
	Secure bool
}

// AuthHandler handles authentication related requests
type AuthHandler struct {
	auth   *auth.Service
	cookie SessionCookie
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, cookie SessionCookie) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie}
}

// RegisterRequest represents the request body for admin signup
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code"` // only required once TOTP is enabled
}

// GoogleLoginRequest carries the authorization code from the Google consent screen
type GoogleLoginRequest struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri" binding:"required,url"`
}

// TOTPVerifyRequest represents the request to confirm a TOTP code
type TOTPVerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *AuthHandler) setSession(c *gin.Context, session *auth.Session) {
	maxAge := int(time.Until(session.Token.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, session.Token.AccessToken, maxAge, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, session)
}

// Login handles password login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSession(c, session)
}

// Register handles admin signup
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSession(c, session)
}

// GoogleLogin handles the OAuth code exchange
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.auth.GoogleLogin(c.Request.Context(), req.Code, req.RedirectURI)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSession(c, session)
}

// Logout revokes the current session and clears the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		respondError(c, errutil.Unauthorized("not authenticated"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated admin
func (h *AuthHandler) Me(c *gin.Context) {
	adminID, ok := middleware.AdminID(c)
	if !ok {
		respondError(c, errutil.Unauthorized("not authenticated"))
		return
	}

	admin, err := h.auth.GetAdmin(c.Request.Context(), adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, admin)
}

// SetupTOTP generates a TOTP secret for the admin
func (h *AuthHandler) SetupTOTP(c *gin.Context) {
	adminID, _ := middleware.AdminID(c)

	key, err := h.auth.SetupTOTP(c.Request.Context(), adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secret":      key.Secret,
		"qr_code_url": key.URL,
	})
}

// EnableTOTP confirms the TOTP secret and turns on the second factor
func (h *AuthHandler) EnableTOTP(c *gin.Context) {
	var req TOTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	adminID, _ := middleware.AdminID(c)
	if err := h.auth.EnableTOTP(c.Request.Context(), adminID, req.Code); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Two-factor authentication enabled"})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/services/certificate"
	"gorm.io/gorm"
)

// CertificateHandler handles certificate listing and resends
type CertificateHandler struct {
	db           *gorm.DB
	certificates *certificate.Service
}

// NewCertificateHandler creates a new certificate handler
func NewCertificateHandler(db *gorm.DB, certificates *certificate.Service) *CertificateHandler {
	return &CertificateHandler{db: db, certificates: certificates}
}

// List returns a page of certificates
func (h *CertificateHandler) List(c *gin.Context) {
	p := getPagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Certificate{})
	if userID := c.Query("user_id"); userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			respondError(c, errutil.InvalidArgument("invalid user_id"))
			return
		}
		query = query.Where("user_id = ?", id)
	}
	if code := c.Query("access_code"); code != "" {
		query = query.Where("access_code = ?", code)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, errutil.Internal("failed to count certificates", err))
		return
	}

	var certificates []models.Certificate
	if err := query.Preload("User").
		Order("issued_at DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Find(&certificates).Error; err != nil {
		respondError(c, errutil.Internal("failed to list certificates", err))
		return
	}

	respondPage(c, p, certificates, total)
}

// Resend queues and runs a new delivery of a certificate
func (h *CertificateHandler) Resend(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.certificates.Resend(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

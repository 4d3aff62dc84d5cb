package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/services/workflow"
	"gorm.io/gorm"
)

// RedeemHandler handles redeem requests and payouts
type RedeemHandler struct {
	db     *gorm.DB
	engine *workflow.Engine
}

// NewRedeemHandler creates a new redeem handler
func NewRedeemHandler(db *gorm.DB, engine *workflow.Engine) *RedeemHandler {
	return &RedeemHandler{db: db, engine: engine}
}

// CreateRedeemRequest files a redeem request on behalf of a user
type CreateRedeemRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Amount int64     `json:"amount" binding:"required"`
}

// ProcessRedeemRequest applies an operator action to a redeem request
type ProcessRedeemRequest struct {
	Action        workflow.Action `json:"action" binding:"required"`
	TransactionID string          `json:"transaction_id" binding:"max=100"`
	AdminNote     string          `json:"admin_note"`
}

// List returns a page of redeem requests
func (h *RedeemHandler) List(c *gin.Context) {
	p := getPagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.RedeemRequest{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if userID := c.Query("user_id"); userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			respondError(c, errutil.InvalidArgument("invalid user_id"))
			return
		}
		query = query.Where("user_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, errutil.Internal("failed to count redeem requests", err))
		return
	}

	var requests []models.RedeemRequest
	if err := query.Preload("User").
		Order("created_at DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Find(&requests).Error; err != nil {
		respondError(c, errutil.Internal("failed to list redeem requests", err))
		return
	}

	respondPage(c, p, requests, total)
}

// Create files a redeem request and debits the user's points
func (h *RedeemHandler) Create(c *gin.Context) {
	var req CreateRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	request, err := h.engine.RequestRedeem(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// Process approves, rejects or completes a redeem request
func (h *RedeemHandler) Process(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req ProcessRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.engine.ProcessRedeemRequest(c.Request.Context(), actor(c), id, req.Action, req.TransactionID, req.AdminNote)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListPayouts returns a page of payouts
func (h *RedeemHandler) ListPayouts(c *gin.Context) {
	p := getPagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Payout{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, errutil.Internal("failed to count payouts", err))
		return
	}

	var payouts []models.Payout
	if err := query.Preload("RedeemRequest").Preload("RedeemRequest.User").
		Order("created_at DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Find(&payouts).Error; err != nil {
		respondError(c, errutil.Internal("failed to list payouts", err))
		return
	}

	respondPage(c, p, payouts, total)
}

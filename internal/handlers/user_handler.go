package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/referralhub/backend/internal/services/users"
)

// UserHandler handles program user, referral and analytics requests
type UserHandler struct {
	users *users.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *users.Service) *UserHandler {
	return &UserHandler{users: userService}
}

// List returns a page of users
func (h *UserHandler) List(c *gin.Context) {
	p := getPagination(c)

	list, total, err := h.users.List(c.Request.Context(), users.Filter{
		Search: c.Query("search"),
		Limit:  p.PageSize,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, p, list, total)
}

// Get returns a user with their referrer and recent activity
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Referrals returns a page of referred users with their referrers
func (h *UserHandler) Referrals(c *gin.Context) {
	p := getPagination(c)

	referrals, total, err := h.users.ListReferrals(c.Request.Context(), p.PageSize, p.Offset())
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, p, referrals, total)
}

// Summary returns the dashboard totals
func (h *UserHandler) Summary(c *gin.Context) {
	summary, err := h.users.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/middleware"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageResponse wraps a page of results
type PageResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

type pagination struct {
	Page     int
	PageSize int
}

func (p pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// getPagination reads page and page_size query parameters
func getPagination(c *gin.Context) pagination {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pagination{Page: page, PageSize: pageSize}
}

func respondPage(c *gin.Context, p pagination, data interface{}, total int64) {
	c.JSON(http.StatusOK, PageResponse{Data: data, Total: total, Page: p.Page, PageSize: p.PageSize})
}

// respondError writes err in the API error shape. Internal errors are logged
// with their cause and returned without it.
func respondError(c *gin.Context, err error) {
	status, body := errutil.Response(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, errutil.InvalidArgument("invalid request: %s", err.Error()))
}

// paramID parses a UUID path parameter
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, errutil.InvalidArgument("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the authenticated admin for audit records
func actor(c *gin.Context) *uuid.UUID {
	id, ok := middleware.AdminID(c)
	if !ok {
		return nil
	}
	return &id
}

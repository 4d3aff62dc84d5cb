package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func contextFor(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func TestGetPagination(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		pageSize int
		offset   int
	}{
		{"", 1, defaultPageSize, 0},
		{"?page=3&page_size=10", 3, 10, 20},
		{"?page=0&page_size=-5", 1, defaultPageSize, 0},
		{"?page=abc&page_size=1000", 1, maxPageSize, 0},
	}

	for _, tt := range tests {
		c, _ := contextFor("/items" + tt.query)
		p := getPagination(c)
		assert.Equal(t, tt.page, p.Page, tt.query)
		assert.Equal(t, tt.pageSize, p.PageSize, tt.query)
		assert.Equal(t, tt.offset, p.Offset(), tt.query)
	}
}

func TestRespondError(t *testing.T) {
	c, w := contextFor("/items")
	respondError(c, errutil.AlreadyProcessed("payout already completed"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":{"code":"ALREADY_PROCESSED","message":"payout already completed"}}`, w.Body.String())
	assert.True(t, c.IsAborted())

	c, w = contextFor("/items")
	respondError(c, errutil.Internal("failed to load", errors.New("connection refused")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestParamID(t *testing.T) {
	c, w := contextFor("/items/bad")
	c.Params = gin.Params{{Key: "id", Value: "bad"}}

	_, ok := paramID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

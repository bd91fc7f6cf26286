package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/interfaces/http/dto"
)

type validatedRequest struct {
	SourceStore string `json:"sourceStore" binding:"required,store"`
	Direction   string `json:"direction" binding:"omitempty,direction"`
	Operation   string `json:"operation" binding:"omitempty,sync_operation"`
	Limit       int    `json:"limit" binding:"omitempty,min=1,max=250"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req validatedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator_CustomTags(t *testing.T) {
	router := newValidationRouter()

	w := postJSON(router, `{"sourceStore":"storeA","direction":"storeB_to_storeA","operation":"delete","limit":10}`)
	assert.Equal(t, http.StatusOK, w.Code)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown store", `{"sourceStore":"storeC"}`, "sourceStore"},
		{"same store direction", `{"sourceStore":"storeA","direction":"storeA_to_storeA"}`, "direction"},
		{"bad operation", `{"sourceStore":"storeA","operation":"inventory_update"}`, "operation"},
		{"limit over max", `{"sourceStore":"storeA","limit":500}`, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			require.Len(t, resp.Error.Details, 1)
			assert.Equal(t, tt.field, resp.Error.Details[0].Field)
		})
	}
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	w := postJSON(newValidationRouter(), `{"sourceStore":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Error.Details)
	assert.NotEqual(t, "Request validation failed", resp.Error.Message)
}

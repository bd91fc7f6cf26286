package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	syncapp "github.com/storesync/backend/internal/application/catalogsync"
	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/interfaces/http/dto"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

// SyncOperator is the part of the sync service behind the operator API
type SyncOperator interface {
	SyncProduct(ctx context.Context, req syncapp.SyncProductRequest) (*syncapp.SyncResult, error)
	SyncInventory(ctx context.Context, req syncapp.SyncInventoryRequest) (*syncapp.SyncResult, error)
	BulkSync(ctx context.Context, source, target catalogsync.Store, opts syncapp.BulkOptions) (*syncapp.BulkResult, error)
	ForceResync(ctx context.Context, syncID string, direction catalogsync.Direction) (*syncapp.SyncResult, error)
	GetStatus(ctx context.Context, syncID string) (*syncapp.RecordSummary, error)
	ListRecords(ctx context.Context, q syncapp.ListRecordsQuery) (shared.Paginated[syncapp.RecordSummary], error)
	ListLogs(ctx context.Context, q syncapp.ListLogsQuery) ([]syncapp.LogSummary, error)
}

// SyncHandler serves the manual trigger and query API under /api/v1/sync
type SyncHandler struct {
	BaseHandler
	service SyncOperator
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service SyncOperator) *SyncHandler {
	return &SyncHandler{service: service}
}

// PlatformID is a platform resource id. Clients send it as a JSON string or
// number; both decode to the decimal string.
type PlatformID string

// UnmarshalJSON implements json.Unmarshaler
func (id *PlatformID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PlatformID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = PlatformID(n.String())
	return nil
}

// SyncProductRequest is the body of POST /product
type SyncProductRequest struct {
	SourceStore string     `json:"sourceStore" binding:"required,store"`
	ProductID   PlatformID `json:"productId" binding:"required"`
	Operation   string     `json:"operation" binding:"omitempty,sync_operation"`
}

// SyncInventoryRequest is the body of POST /inventory
type SyncInventoryRequest struct {
	SourceStore     string     `json:"sourceStore" binding:"required,store"`
	InventoryItemID PlatformID `json:"inventoryItemId" binding:"required"`
	LocationID      PlatformID `json:"locationId"`
	Quantity        *int       `json:"quantity" binding:"required"`
}

// BulkSyncRequest is the body of POST /bulk
type BulkSyncRequest struct {
	SourceStore string `json:"sourceStore" binding:"required,store"`
	// TargetStore defaults to the other store
	TargetStore  string `json:"targetStore" binding:"omitempty,store,nefield=SourceStore"`
	Limit        int    `json:"limit" binding:"omitempty,min=1,max=250"`
	SkipExisting *bool  `json:"skipExisting"`
}

// ForceResyncRequest is the body of POST /force-resync
type ForceResyncRequest struct {
	SyncID    string `json:"syncId" binding:"required"`
	Direction string `json:"direction" binding:"required,direction"`
}

// ListRecordsRequest is the query of GET /products
type ListRecordsRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=250"`
	State    string `form:"state" binding:"omitempty,oneof=created inventory_synced"`
}

// ListLogsRequest is the query of GET /logs
type ListLogsRequest struct {
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Operation string `form:"operation" binding:"omitempty,oneof=create update delete inventory_update"`
	Status    string `form:"status" binding:"omitempty,oneof=success failed skipped"`
	SyncID    string `form:"sync_id"`
}

// SyncProduct fetches a product from the source store and propagates it
// POST /api/v1/sync/product
func (h *SyncHandler) SyncProduct(c *gin.Context) {
	var req SyncProductRequest
	if !h.bind(c, c.ShouldBindJSON, &req) {
		return
	}

	result, err := h.service.SyncProduct(c.Request.Context(), syncapp.SyncProductRequest{
		SourceStore: catalogsync.Store(req.SourceStore),
		ProductID:   string(req.ProductID),
		Operation:   catalogsync.Operation(req.Operation),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncInventory propagates one inventory level
// POST /api/v1/sync/inventory
func (h *SyncHandler) SyncInventory(c *gin.Context) {
	var req SyncInventoryRequest
	if !h.bind(c, c.ShouldBindJSON, &req) {
		return
	}

	result, err := h.service.SyncInventory(c.Request.Context(), syncapp.SyncInventoryRequest{
		SourceStore:     catalogsync.Store(req.SourceStore),
		InventoryItemID: string(req.InventoryItemID),
		LocationID:      string(req.LocationID),
		Quantity:        *req.Quantity,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// BulkSync copies products from one store to the other
// POST /api/v1/sync/bulk
func (h *SyncHandler) BulkSync(c *gin.Context) {
	var req BulkSyncRequest
	if !h.bind(c, c.ShouldBindJSON, &req) {
		return
	}

	source := catalogsync.Store(req.SourceStore)
	target := source.Other()
	if req.TargetStore != "" {
		target = catalogsync.Store(req.TargetStore)
	}
	opts := syncapp.BulkOptions{Limit: req.Limit, SkipExisting: true}
	if req.SkipExisting != nil {
		opts.SkipExisting = *req.SkipExisting
	}

	result, err := h.service.BulkSync(c.Request.Context(), source, target, opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ForceResync re-pushes a linked product in the given direction
// POST /api/v1/sync/force-resync
func (h *SyncHandler) ForceResync(c *gin.Context) {
	var req ForceResyncRequest
	if !h.bind(c, c.ShouldBindJSON, &req) {
		return
	}

	direction, err := catalogsync.ParseDirection(req.Direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := h.service.ForceResync(c.Request.Context(), req.SyncID, direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetStatus returns one sync record with its variant mappings
// GET /api/v1/sync/status/:syncId
func (h *SyncHandler) GetStatus(c *gin.Context) {
	syncID := strings.TrimSpace(c.Param("syncId"))
	if syncID == "" {
		h.BadRequest(c, "syncId is required")
		return
	}

	summary, err := h.service.GetStatus(c.Request.Context(), syncID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ListProducts pages through sync records
// GET /api/v1/sync/products
func (h *SyncHandler) ListProducts(c *gin.Context) {
	var req ListRecordsRequest
	if !h.bind(c, c.ShouldBindQuery, &req) {
		return
	}

	page, err := h.service.ListRecords(c.Request.Context(), syncapp.ListRecordsQuery{
		Page:     req.Page,
		PageSize: req.PageSize,
		State:    catalogsync.SyncState(req.State),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListLogs returns recent sync log entries, newest first
// GET /api/v1/sync/logs
func (h *SyncHandler) ListLogs(c *gin.Context) {
	var req ListLogsRequest
	if !h.bind(c, c.ShouldBindQuery, &req) {
		return
	}

	logs, err := h.service.ListLogs(c.Request.Context(), syncapp.ListLogsQuery{
		Limit:     req.Limit,
		Operation: catalogsync.Operation(req.Operation),
		Status:    catalogsync.LogStatus(req.Status),
		SyncID:    req.SyncID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, logs)
}

// bind decodes into obj and writes a 400 on failure
func (h *SyncHandler) bind(c *gin.Context, bindFn func(any) error, obj any) bool {
	err := bindFn(obj)
	if err == nil {
		return true
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		middleware.HandleValidationError(c, err)
		return false
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
	return false
}

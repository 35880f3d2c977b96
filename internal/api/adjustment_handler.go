// Package api 提供库存调整相关的HTTP API处理器实现。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/middleware"
	"github.com/MorseWayne/stock_ledger/internal/resp"
	"github.com/MorseWayne/stock_ledger/internal/service"
)

// AdjustmentHandler 库存调整相关的HTTP处理器
type AdjustmentHandler struct {
	adjustmentService service.AdjustmentService
	logger            *zap.Logger
}

// NewAdjustmentHandler 创建调整处理器实例
func NewAdjustmentHandler(adjustmentService service.AdjustmentService, logger *zap.Logger) *AdjustmentHandler {
	return &AdjustmentHandler{
		adjustmentService: adjustmentService,
		logger:            logger,
	}
}

// CreateAdjustment 创建调整单
// POST /api/v1/adjustments
func (h *AdjustmentHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	var req domain.CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if err := h.validateCreateAdjustmentRequest(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	adjustment, err := h.adjustmentService.CreateAdjustment(r.Context(), tc, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create adjustment", reqID)
		return
	}

	resp.OK(w, adjustment, reqID, "")
}

// GetAdjustment 查询调整单
// GET /api/v1/adjustments/{id}
func (h *AdjustmentHandler) GetAdjustment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	id, ok := h.adjustmentIDFromPath(w, r, reqID)
	if !ok {
		return
	}

	adjustment, err := h.adjustmentService.GetAdjustment(r.Context(), tc, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get adjustment", reqID)
		return
	}

	resp.OK(w, adjustment, reqID, "")
}

// ApproveAdjustment 审批调整单
// POST /api/v1/adjustments/{id}/approve
func (h *AdjustmentHandler) ApproveAdjustment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	id, ok := h.adjustmentIDFromPath(w, r, reqID)
	if !ok {
		return
	}

	adjustment, err := h.adjustmentService.ApproveAdjustment(r.Context(), tc, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "approve adjustment", reqID)
		return
	}

	resp.OK(w, adjustment, reqID, "")
}

// DeleteAdjustment 删除未审批的调整单
// DELETE /api/v1/adjustments/{id}
func (h *AdjustmentHandler) DeleteAdjustment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	id, ok := h.adjustmentIDFromPath(w, r, reqID)
	if !ok {
		return
	}

	if err := h.adjustmentService.DeleteAdjustment(r.Context(), tc, id); err != nil {
		writeServiceError(w, h.logger, err, "delete adjustment", reqID)
		return
	}

	resp.OK(w, map[string]interface{}{"deleted": true}, reqID, "")
}

// GetAdjustmentSummary 按调整类型聚合的统计
// GET /api/v1/adjustments/summary?from=&to=
func (h *AdjustmentHandler) GetAdjustmentSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	req := &domain.AdjustmentSummaryRequest{}
	query := r.URL.Query()
	if fromStr := query.Get("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid from time, expect RFC3339", reqID, "")
			return
		}
		req.From = &from
	}
	if toStr := query.Get("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid to time, expect RFC3339", reqID, "")
			return
		}
		req.To = &to
	}

	rows, err := h.adjustmentService.GetAdjustmentSummary(r.Context(), tc, req)
	if err != nil {
		writeServiceError(w, h.logger, err, "get adjustment summary", reqID)
		return
	}

	resp.OK(w, rows, reqID, "")
}

// ListBatches 查询商品在某库位的批次
// GET /api/v1/batches?product_id=&location_id=
func (h *AdjustmentHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product_id", reqID, "")
		return
	}
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid location_id", reqID, "")
		return
	}

	batches, err := h.adjustmentService.ListBatches(r.Context(), tc, productID, locationID)
	if err != nil {
		writeServiceError(w, h.logger, err, "list batches", reqID)
		return
	}

	resp.OK(w, batches, reqID, "")
}

// adjustmentIDFromPath 从URL路径中提取调整单ID
// 路径形如 /api/v1/adjustments/{id} 或 /api/v1/adjustments/{id}/approve
func (h *AdjustmentHandler) adjustmentIDFromPath(w http.ResponseWriter, r *http.Request, reqID string) (int64, bool) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid adjustment ID", reqID, "")
		return 0, false
	}

	id, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil || id <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid adjustment ID", reqID, "")
		return 0, false
	}
	return id, true
}

// validateCreateAdjustmentRequest 校验创建调整单请求
func (h *AdjustmentHandler) validateCreateAdjustmentRequest(req *domain.CreateAdjustmentRequest) error {
	if req.ProductID <= 0 {
		return errors.New("product_id is required")
	}
	if req.LocationID <= 0 {
		return errors.New("location_id is required")
	}
	if !req.Type.Valid() {
		return errors.New("invalid adjustment type")
	}
	if req.QuantityAfter < 0 {
		return errors.New("quantity_after must be non-negative")
	}
	if req.BatchID != nil && *req.BatchID <= 0 {
		return errors.New("invalid batch_id")
	}
	return nil
}

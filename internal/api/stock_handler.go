// Package api 提供HTTP API处理器实现。
// API层负责处理HTTP请求/响应，进行数据验证和格式转换。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/middleware"
	"github.com/MorseWayne/stock_ledger/internal/resp"
	"github.com/MorseWayne/stock_ledger/internal/service"
)

// StockHandler 库存相关的HTTP处理器
type StockHandler struct {
	stockService service.StockService
	logger       *zap.Logger
}

// NewStockHandler 创建库存处理器实例
func NewStockHandler(stockService service.StockService, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		stockService: stockService,
		logger:       logger,
	}
}

// writeServiceError 将服务层错误映射为统一的HTTP错误响应
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action, reqID string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
	case errors.Is(err, service.ErrTenantRequired), errors.Is(err, service.ErrCrossTenant):
		resp.Error(w, http.StatusForbidden, resp.CodeForbidden, "access denied", reqID, "")
	case errors.Is(err, service.ErrNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "resource not found", reqID, "")
	case errors.Is(err, service.ErrInsufficientStock):
		resp.Error(w, http.StatusConflict, resp.CodeConflict, "insufficient stock", reqID, "")
	case errors.Is(err, service.ErrConflict):
		resp.Error(w, http.StatusConflict, resp.CodeConflict, "conflicting operation", reqID, "")
	default:
		logger.Error(action+" failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, action+" failed", reqID, "")
	}
}

// requireTenant 从请求上下文取出租户信息，没有则写401响应
func requireTenant(w http.ResponseWriter, r *http.Request, reqID string) *domain.TenantContext {
	tc := middleware.TenantFromContext(r.Context())
	if tc == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return nil
	}
	return tc
}

// UpdateStock 执行一次库存变更
// POST /api/v1/stock/update
func (h *StockHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	var req domain.UpdateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if err := h.validateUpdateStockRequest(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	result, err := h.stockService.UpdateStock(r.Context(), tc, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "update stock", reqID)
		return
	}

	resp.OK(w, result, reqID, "")
}

// ReserveStock 预留可用库存
// POST /api/v1/stock/reserve
func (h *StockHandler) ReserveStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	var req domain.ReserveStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if req.ProductID <= 0 || req.LocationID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "product_id and location_id are required", reqID, "")
		return
	}
	if req.Quantity <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "quantity must be positive", reqID, "")
		return
	}
	if !req.ReservedFor.Valid() {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid reserved_for_type", reqID, "")
		return
	}

	reservation, err := h.stockService.ReserveStock(r.Context(), tc, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "reserve stock", reqID)
		return
	}

	resp.OK(w, reservation, reqID, "")
}

// ReleaseReservation 释放预留库存
// POST /api/v1/stock/release
func (h *StockHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	var req domain.ReleaseReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if req.ProductID <= 0 || req.LocationID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "product_id and location_id are required", reqID, "")
		return
	}
	if !req.ReservedFor.Valid() {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid reserved_for_type", reqID, "")
		return
	}

	released, err := h.stockService.ReleaseReservation(r.Context(), tc, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "release reservation", reqID)
		return
	}

	resp.OK(w, map[string]interface{}{"released_quantity": released}, reqID, "")
}

// GetStockLevel 查询单个库存行
// GET /api/v1/stock/level?product_id=&variant_id=&location_id=
func (h *StockHandler) GetStockLevel(w http.ResponseWriter, r *http.Request) {
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

	var variantID *int64
	if v := r.URL.Query().Get("variant_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid variant_id", reqID, "")
			return
		}
		variantID = &id
	}

	level, err := h.stockService.GetStockLevel(r.Context(), tc, productID, variantID, locationID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get stock level", reqID)
		return
	}

	resp.OK(w, level, reqID, "")
}

// ListStockLevels 按条件分页查询库存行
// GET /api/v1/stock/levels?page=&page_size=&product_id=&location_id=&low_stock=
func (h *StockHandler) ListStockLevels(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	req := &domain.StockLevelListRequest{
		Page:     1,
		PageSize: 20,
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			req.Page = page
		}
	}
	if pageSizeStr := query.Get("page_size"); pageSizeStr != "" {
		if pageSize, err := strconv.Atoi(pageSizeStr); err == nil && pageSize > 0 && pageSize <= 100 {
			req.PageSize = pageSize
		}
	}
	if productIDStr := query.Get("product_id"); productIDStr != "" {
		if productID, err := strconv.ParseInt(productIDStr, 10, 64); err == nil {
			req.ProductID = &productID
		}
	}
	if locationIDStr := query.Get("location_id"); locationIDStr != "" {
		if locationID, err := strconv.ParseInt(locationIDStr, 10, 64); err == nil {
			req.LocationID = &locationID
		}
	}
	if lowStockStr := query.Get("low_stock"); lowStockStr != "" {
		if lowStock, err := strconv.ParseBool(lowStockStr); err == nil {
			req.LowStock = &lowStock
		}
	}

	result, err := h.stockService.ListStockLevels(r.Context(), tc, req)
	if err != nil {
		writeServiceError(w, h.logger, err, "list stock levels", reqID)
		return
	}

	resp.OK(w, result, reqID, "")
}

// CheckReorderPoints 查询商品到达补货点的库存行
// GET /api/v1/stock/reorder-check?product_id=
func (h *StockHandler) CheckReorderPoints(w http.ResponseWriter, r *http.Request) {
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

	levels, err := h.stockService.CheckReorderPoints(r.Context(), tc, productID)
	if err != nil {
		writeServiceError(w, h.logger, err, "check reorder points", reqID)
		return
	}

	resp.OK(w, map[string]interface{}{
		"product_id":  productID,
		"reorder_due": levels,
		"alert_count": len(levels),
	}, reqID, "")
}

// ListMovements 查询商品的移动历史
// GET /api/v1/stock/movements?product_id=&limit=
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	productID, limit, ok := h.parseHistoryQuery(w, r, reqID)
	if !ok {
		return
	}

	movements, err := h.stockService.ListMovements(r.Context(), tc, productID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list movements", reqID)
		return
	}

	resp.OK(w, movements, reqID, "")
}

// ListTransactions 查询商品的账目流水
// GET /api/v1/stock/transactions?product_id=&limit=
func (h *StockHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	tc := requireTenant(w, r, reqID)
	if tc == nil {
		return
	}

	productID, limit, ok := h.parseHistoryQuery(w, r, reqID)
	if !ok {
		return
	}

	transactions, err := h.stockService.ListTransactions(r.Context(), tc, productID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "list transactions", reqID)
		return
	}

	resp.OK(w, transactions, reqID, "")
}

// parseHistoryQuery 解析历史查询的公共参数
func (h *StockHandler) parseHistoryQuery(w http.ResponseWriter, r *http.Request, reqID string) (productID int64, limit int, ok bool) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product_id", reqID, "")
		return 0, 0, false
	}

	limit = 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return productID, limit, true
}

// validateUpdateStockRequest 校验库存变更请求
func (h *StockHandler) validateUpdateStockRequest(req *domain.UpdateStockRequest) error {
	if req.ProductID <= 0 {
		return errors.New("product_id is required")
	}
	if req.LocationID <= 0 {
		return errors.New("location_id is required")
	}
	if req.QuantityChange == 0 {
		return errors.New("quantity_change must be non-zero")
	}
	if !req.MovementType.Valid() {
		return errors.New("invalid movement_type")
	}
	return nil
}

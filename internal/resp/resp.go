// Package resp 提供统一的HTTP响应格式和辅助函数。
// 所有API响应使用同一个信封结构，便于客户端统一处理。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务响应码定义
const (
	CodeOK            = 0
	CodeInvalidParam  = 40001
	CodeUnauthorized  = 40101
	CodeForbidden     = 40301
	CodeNotFound      = 40401
	CodeConflict      = 40901
	CodeTimeout       = 50401
	CodeInternalError = 50001
)

// Body 统一响应信封
type Body struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// OK 写入成功响应
func OK(w http.ResponseWriter, data interface{}, requestID, traceID string) {
	write(w, http.StatusOK, &Body{
		Code:      CodeOK,
		Message:   "ok",
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// Error 写入错误响应
func Error(w http.ResponseWriter, status, code int, message, requestID, traceID string) {
	write(w, status, &Body{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// HTTPStatusFromCode 业务码到HTTP状态码的映射
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, body *Body) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeSessionNotFound   ErrorCode = "3001"
	CodeChapterNotFound   ErrorCode = "3002"
	CodeCharacterNotFound ErrorCode = "3003"
	CodeFileNotFound      ErrorCode = "3004"

	// 业务错误 (4xxx)
	CodeGenerationFailed    ErrorCode = "4001"
	CodeValidationFailed    ErrorCode = "4002"
	CodeLLMCallFailed       ErrorCode = "4005"
	CodeGenerationExhausted ErrorCode = "4007"
	CodeQuotaExceeded       ErrorCode = "4008"
	CodeEmptyResponse       ErrorCode = "4009"
	CodeLLMTimeout          ErrorCode = "4010"
	CodeCanceled            ErrorCode = "4011"

	// 外部服务错误 (5xxx)
	CodeCacheError       ErrorCode = "5002"
	CodeStorageError     ErrorCode = "5004"
	CodeLLMProviderError ErrorCode = "5005"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息（返回副本，预定义错误不会被修改）
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 添加底层错误（返回副本）
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf 创建带格式化消息的应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound, CodeSessionNotFound, CodeChapterNotFound, CodeCharacterNotFound, CodeFileNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests, CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeLLMCallFailed, CodeEmptyResponse, CodeLLMProviderError, CodeGenerationExhausted:
		return http.StatusBadGateway
	case CodeLLMTimeout:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrSessionNotFound   = New(CodeSessionNotFound, "session not found")
	ErrChapterNotFound   = New(CodeChapterNotFound, "chapter not found")
	ErrCharacterNotFound = New(CodeCharacterNotFound, "character not found")

	ErrGenerationFailed    = New(CodeGenerationFailed, "chapter generation failed")
	ErrGenerationExhausted = New(CodeGenerationExhausted, "attempt budget exhausted")
	ErrLLMCallFailed       = New(CodeLLMCallFailed, "LLM call failed")
	ErrQuotaExceeded       = New(CodeQuotaExceeded, "LLM quota exceeded")
	ErrEmptyResponse       = New(CodeEmptyResponse, "LLM returned empty response")
	ErrLLMTimeout          = New(CodeLLMTimeout, "LLM call timed out")
	ErrCanceled            = New(CodeCanceled, "operation canceled")
)

// Validation 创建用户输入校验错误
func Validation(format string, args ...any) *AppError {
	return Newf(CodeInvalidParam, format, args...)
}

// IO 包装文件系统错误
func IO(err error, format string, args ...any) *AppError {
	return Wrap(err, CodeStorageError, fmt.Sprintf(format, args...))
}

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 返回错误链上第一个 AppError 的错误码
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsValidation 用户输入错误（不重试）
func IsValidation(err error) bool {
	return CodeOf(err) == CodeInvalidParam
}

// IsNotFound 资源不存在
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeSessionNotFound, CodeChapterNotFound, CodeCharacterNotFound, CodeFileNotFound:
		return true
	}
	return false
}

// IsIO 文件系统错误（不重试）
func IsIO(err error) bool {
	return CodeOf(err) == CodeStorageError
}

// IsGeneration 模型调用失败（传输错误、限流、空响应、超时），可由重试控制器重试
func IsGeneration(err error) bool {
	switch CodeOf(err) {
	case CodeLLMCallFailed, CodeQuotaExceeded, CodeEmptyResponse, CodeLLMTimeout, CodeLLMProviderError:
		return true
	}
	return false
}

// IsQuotaExceeded 限流/配额错误
func IsQuotaExceeded(err error) bool {
	return CodeOf(err) == CodeQuotaExceeded
}

// IsExhausted 重试预算耗尽且没有任何可用输出
func IsExhausted(err error) bool {
	return CodeOf(err) == CodeGenerationExhausted
}

// IsCanceled 调用方取消
func IsCanceled(err error) bool {
	return CodeOf(err) == CodeCanceled
}

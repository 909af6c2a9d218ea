package core

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），通过 errors.As 穿透 %w 包装
//
// 使用场景：
//   - 预处理错误：SCHEMA_MISMATCH（缺少原始列 / 列签名不一致）
//   - 模型错误：INVALID_OUTPUT（预测条数与行数不符）
//   - 存储错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string   // 错误代码（如 "SCHEMA_MISMATCH", "NOT_FOUND"）
	Message string   // 错误消息
	Module  string   // 模块名称（如 "feature", "model", "store"）
	Columns []string // 与错误相关的列（SCHEMA_MISMATCH 时为缺失列）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误链中是否有 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// NewSchemaMismatch 创建列签名不匹配错误，columns 为缺失或多余的列。
func NewSchemaMismatch(module string, columns []string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    ErrorCodeSchemaMismatch,
		Message: fmt.Sprintf("%s: schema mismatch, missing columns [%s]", module, strings.Join(columns, ", ")),
		Columns: append([]string(nil), columns...),
	}
}

// 错误代码常量
const (
	ErrorCodeSchemaMismatch = "SCHEMA_MISMATCH" // 列签名不匹配
	ErrorCodeNotFound       = "NOT_FOUND"       // 资源不存在
	ErrorCodeNotSupported   = "NOT_SUPPORTED"   // 操作不支持
	ErrorCodeUnavailable    = "UNAVAILABLE"     // 服务不可用
	ErrorCodeInvalidInput   = "INVALID_INPUT"   // 输入无效
	ErrorCodeInvalidOutput  = "INVALID_OUTPUT"  // 模型输出无效
)

// 模块名称常量
const (
	ModuleFrame       = "frame"       // 表格结构
	ModuleFeature     = "feature"     // 预处理
	ModuleModel       = "model"       // 委托模型
	ModulePostprocess = "postprocess" // 后处理
	ModulePackaging   = "packaging"   // 打包/加载
	ModuleStore       = "store"       // 存储模块
	ModuleService     = "service"     // 远程模型服务
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsSchemaMismatch 检查错误是否为 SCHEMA_MISMATCH
func IsSchemaMismatch(err error) bool { return hasCode(err, ErrorCodeSchemaMismatch) }

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

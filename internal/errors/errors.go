// Package errors 定义 ProofFlow 统一的错误码体系。各业务包在 init 中注册
// 自己的错误码，后台处理边界据此决定日志级别、是否重试以及是否告警。
package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Code 是跨模块共享的机器可读错误码，HTTP 层直接输出到响应体。
type Code string

// Severity 决定告警级别与审计日志的 level。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// 通用错误码，领域错误码由各自的包注册。
const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeTimeout               Code = "TIMEOUT"
	CodeUnavailable           Code = "UNAVAILABLE"
	CodeRateLimited           Code = "RATE_LIMITED"
)

// Attributes 是错误码在注册表中的默认属性，可被单个错误实例覆盖。
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical, Alert: true},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
		CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
		CodeConflict:              {Message: "resource conflict", Severity: SeverityWarning},
		CodeInitializationFailure: {Message: "component not initialized", Severity: SeverityCritical, Alert: true},
		CodeStorageFailure:        {Message: "storage backend failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeTimeout:               {Message: "operation timed out", Severity: SeverityWarning, Retryable: true, Alert: true},
		CodeUnavailable:           {Message: "upstream unavailable", Severity: SeverityWarning, Retryable: true},
		CodeRateLimited:           {Message: "rate limit exceeded", Severity: SeverityInfo, Retryable: true},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述，重复注册会覆盖。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 查询注册表，未知错误码退回 UNKNOWN。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Registered 返回当前已注册的全部错误码，按字典序排列。
func Registered() []Code {
	registryMu.RLock()
	defer registryMu.RUnlock()
	codes := make([]Code, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Error 是系统内统一的错误类型。可选字段为 nil 时回落到注册表中的默认值。
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
	alert     *bool
	severity  *Severity
}

// Option 在构造时调整单个错误实例。
type Option func(*Error)

// WithMetadata 附加额外信息，例如 proof_id 或 attempts。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable 覆盖错误码的重试设置。
func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.retryable = &retryable }
}

// WithAlert 覆盖错误码的告警设置。
func WithAlert(alert bool) Option {
	return func(e *Error) { e.alert = &alert }
}

// WithSeverity 覆盖错误码的严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) { e.severity = &sev }
}

// New 创建一个新的错误实例，message 为空时使用注册表中的描述。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 保留 cause 以便 errors.Is/As 继续沿链匹配；message 为空时使用注册表文案。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 按错误码比较，使得包级哨兵值可以配合 errors.Is 使用。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if e == nil || !ok || t == nil {
		return false
	}
	return e.code == t.code
}

// LogValue 让 slog 以分组形式输出错误码与附加信息。
func (e *Error) LogValue() slog.Value {
	if e == nil {
		return slog.StringValue("")
	}
	attrs := []slog.Attr{
		slog.String("code", string(e.code)),
		slog.String("message", e.Error()),
	}
	for _, k := range sortedKeys(e.metadata) {
		attrs = append(attrs, slog.String(k, e.metadata[k]))
	}
	return slog.GroupValue(attrs...)
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回不含原因链的错误信息。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息的副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Retryable 优先使用实例覆盖值，其次是错误码默认值。
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return AttributesOf(e.code).Retryable
}

func (e *Error) ShouldAlert() bool {
	if e == nil {
		return false
	}
	if e.alert != nil {
		return *e.alert
	}
	return AttributesOf(e.code).Alert
}

func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	return AttributesOf(e.code).Severity
}

// From 返回错误链上最外层的统一错误。
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回最外层统一错误的错误码。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// HasCode 判断最外层统一错误是否为指定错误码。
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// MetadataOf 合并错误链上所有统一错误的附加信息，外层优先。
func MetadataOf(err error) map[string]string {
	merged := map[string]string{}
	for err != nil {
		if e, ok := err.(*Error); ok {
			for k, v := range e.metadata {
				if _, exists := merged[k]; !exists {
					merged[k] = v
				}
			}
		}
		err = stdErrors.Unwrap(err)
	}
	return merged
}

// RetryableError 判断任意 error 是否可重试，非统一错误视为不可重试。
func RetryableError(err error) bool {
	e, ok := From(err)
	return ok && e.Retryable()
}

// ShouldAlert 依据最外层统一错误判断是否需要通知。
func ShouldAlert(err error) bool {
	e, ok := From(err)
	return ok && e.ShouldAlert()
}

// SeverityOf 对非统一错误返回 UNKNOWN 的默认级别。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

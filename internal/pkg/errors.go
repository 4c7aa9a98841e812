package pkg

import (
	"errors"
	"fmt"
)

// Kind 业务错误类型，由接入层映射为状态码
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyExists
	KindSelfReference
	KindForbidden
	KindInvalidState
	KindStoreUnavailable
	KindInvalid
	KindUnauthorized
)

var kindNames = map[Kind]string{
	KindInternal:         "internal",
	KindNotFound:         "not_found",
	KindAlreadyExists:    "already_exists",
	KindSelfReference:    "self_reference",
	KindForbidden:        "forbidden",
	KindInvalidState:     "invalid_state",
	KindStoreUnavailable: "store_unavailable",
	KindInvalid:          "invalid",
	KindUnauthorized:     "unauthorized",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }
func Conflict(msg string) *Error { return &Error{Kind: KindAlreadyExists, Msg: msg} }
func SelfRef(msg string) *Error { return &Error{Kind: KindSelfReference, Msg: msg} }
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Msg: msg} }
func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Msg: msg} }
func Invalid(msg string) *Error { return &Error{Kind: KindInvalid, Msg: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Msg: msg} }

// Unavailable 次要存储或外部依赖不可用
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Msg: msg, Err: err}
}

// Internal 主存储等内部错误
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf 取出错误类型，非业务错误视为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否为指定类型
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

package internal

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeRemoteUnavailable      Code = "remote_unavailable"
	CodeUnknownShare           Code = "unknown_share"
	CodeInvalidConfiguration   Code = "invalid_configuration"
	CodeUnsupportedOperation   Code = "unsupported_operation"
	CodeInvalidEntity          Code = "invalid_entity"
	CodeFolderNotFound         Code = "folder_not_found"
	CodeEventNotFound          Code = "event_not_found"
	CodeForeignIdentifier      Code = "foreign_identifier"
	CodeConcurrentModification Code = "concurrent_modification"
	CodeAccountNotFound        Code = "account_not_found"
	CodeAccountWillBeRemoved   Code = "account_will_be_removed"
	CodeInternal               Code = "internal"
)

// Error is a classified failure. Two errors are considered the same by
// errors.Is when their codes match.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrRemoteUnavailable      = &Error{Code: CodeRemoteUnavailable, Msg: "remote calendar is not available"}
	ErrUnknownShare           = &Error{Code: CodeUnknownShare, Msg: "share does not exist anymore"}
	ErrInvalidConfiguration   = &Error{Code: CodeInvalidConfiguration, Msg: "invalid account configuration"}
	ErrUnsupportedOperation   = &Error{Code: CodeUnsupportedOperation, Msg: "operation not supported"}
	ErrInvalidEntity          = &Error{Code: CodeInvalidEntity, Msg: "invalid calendar user"}
	ErrFolderNotFound         = &Error{Code: CodeFolderNotFound, Msg: "folder not found"}
	ErrEventNotFound          = &Error{Code: CodeEventNotFound, Msg: "event not found"}
	ErrForeignIdentifier      = &Error{Code: CodeForeignIdentifier, Msg: "identifier belongs to another account"}
	ErrConcurrentModification = &Error{Code: CodeConcurrentModification, Msg: "account was modified concurrently"}
	ErrAccountNotFound        = &Error{Code: CodeAccountNotFound, Msg: "account not found"}
	ErrAccountWillBeRemoved   = &Error{Code: CodeAccountWillBeRemoved, Msg: "account will be removed"}
)

// Errorf returns an error with the given code. The message is formatted with
// fmt.Errorf, so %w keeps the cause reachable.
func Errorf(code Code, format string, a ...any) error {
	cause := fmt.Errorf(format, a...)
	return &Error{Code: code, Msg: cause.Error(), Err: errors.Unwrap(cause)}
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

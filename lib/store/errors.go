package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/ixKV/lib/db"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new store error with a formatted message.
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// IsCode reports whether err (or an error it wraps) is a *Error with the given code.
func IsCode(err error, code RetCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// CodeOf returns the code of a *Error in the chain of err.
// Errors of other types are reported as RetCInternalError, nil as RetCSuccess.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return RetCInternalError
}

// FromDBError translates an error of a db.RecordDB into a store error.
func FromDBError(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, db.ErrIndexExists):
		return NewError(RetCIndexAlreadyExists, err.Error())
	case errors.Is(err, db.ErrIndexNotFound):
		return NewError(RetCIndexNotFound, err.Error())
	case errors.Is(err, db.ErrIndexNotReadable):
		return NewError(RetCIndexNotReadable, err.Error())
	case errors.Is(err, db.ErrInvalidIndex):
		return NewError(RetCParameterError, err.Error())
	default:
		return NewError(RetCInternalError, err.Error())
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCIndexAlreadyExists                  // 4: An index with the same name or definition exists.
	RetCIndexNotFound                       // 5: The index does not exist.
	RetCIndexNotReadable                    // 6: The index exists but is still building.
	RetCRecordNotFound                      // 7: The record does not exist.
	RetCParameterError                      // 8: Invalid request parameters.
	RetCTimeout                             // 9: The operation timed out.
	RetCCursorNotFound                      // 10: The query cursor does not exist (closed or expired).
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCIndexAlreadyExists:
		return "IndexAlreadyExists"
	case RetCIndexNotFound:
		return "IndexNotFound"
	case RetCIndexNotReadable:
		return "IndexNotReadable"
	case RetCRecordNotFound:
		return "RecordNotFound"
	case RetCParameterError:
		return "ParameterError"
	case RetCTimeout:
		return "Timeout"
	case RetCCursorNotFound:
		return "CursorNotFound"
	default:
		return "Unknown"
	}
}

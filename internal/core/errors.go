package core

import (
	"errors"
	"fmt"

	"github.com/ridethebus/bus-server/internal/store"
)

// ErrorCode is the stable wire identifier for a rejected transition.
// None of these are fatal; every one maps to a status:"error" response
// on the requesting connection.
type ErrorCode string

const (
	CodeInvalidInput        ErrorCode = "invalid_input"
	CodeRoomNotFound        ErrorCode = "room_not_found"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeRoomFull            ErrorCode = "room_full"
	CodeForbidden           ErrorCode = "forbidden"
	CodePlayerNotFound      ErrorCode = "player_not_found"
	CodeGenerationExhausted ErrorCode = "generation_exhausted"
	CodeRateLimited         ErrorCode = "rate_limited"
	CodeStoreUnavailable    ErrorCode = "store_unavailable"
	CodeInternal            ErrorCode = "internal"
)

// Error is a client-visible rejection with a human-readable message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf maps any error to its wire code. Store I/O failures surface as
// store_unavailable; anything unrecognized is internal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, store.ErrUnavailable) {
		return CodeStoreUnavailable
	}
	return CodeInternal
}

func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

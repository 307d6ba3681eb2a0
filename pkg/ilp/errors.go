// Copyright 2026 ILPnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ilp

import (
	"errors"
	"fmt"

	"github.com/ilpnet/connector/pkg/ilp/oer"
)

// ErrorCode is the three character ILP error code. The first character
// denotes the class: F final, T temporary, R relative.
type ErrorCode string

// ILP error codes.
const (
	CodeBadRequest            ErrorCode = "F00"
	CodeInvalidPacket         ErrorCode = "F01"
	CodeUnreachable           ErrorCode = "F02"
	CodeInvalidAmount         ErrorCode = "F03"
	CodeInsufficientDstAmount ErrorCode = "F04"
	CodeWrongCondition        ErrorCode = "F05"
	CodeUnexpectedPayment     ErrorCode = "F06"
	CodeCannotReceive         ErrorCode = "F07"
	CodeAmountTooLarge        ErrorCode = "F08"
	CodeApplicationError      ErrorCode = "F99"

	CodeInternalError         ErrorCode = "T00"
	CodePeerUnreachable       ErrorCode = "T01"
	CodePeerBusy              ErrorCode = "T02"
	CodeConnectorBusy         ErrorCode = "T03"
	CodeInsufficientLiquidity ErrorCode = "T04"
	CodeRateLimited           ErrorCode = "T05"
	CodeTemporaryApplication  ErrorCode = "T99"

	CodeTransferTimedOut      ErrorCode = "R00"
	CodeInsufficientSrcAmount ErrorCode = "R01"
	CodeInsufficientTimeout   ErrorCode = "R02"
	CodeRelativeApplication   ErrorCode = "R99"
)

// Error is an error that maps to an ILP Reject. Pipeline stages return it to
// reject a packet with a specific code.
type Error struct {
	Code    ErrorCode
	Message string
	// TriggeredBy is the address of the node that produced the error. It is
	// filled in at the error handler boundary if empty.
	TriggeredBy string
	Data        []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Reject converts e into a Reject packet. triggeredBy is used if e carries no
// address itself.
func (e *Error) Reject(triggeredBy string) *Reject {
	if e.TriggeredBy != "" {
		triggeredBy = e.TriggeredBy
	}
	return &Reject{
		Code:        e.Code,
		TriggeredBy: triggeredBy,
		Message:     e.Message,
		Data:        e.Data,
	}
}

// Is matches errors with the same code, so that errors.Is(err,
// &Error{Code: CodeRateLimited}) holds for every rate limiting error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// CodeOf returns the ILP error code carried by err, or the empty code.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BadRequestError is a generic final error.
func BadRequestError(format string, args ...any) *Error {
	return newError(CodeBadRequest, format, args...)
}

// InvalidPacketError signals a malformed or unexpected packet.
func InvalidPacketError(format string, args ...any) *Error {
	return newError(CodeInvalidPacket, format, args...)
}

// UnreachableError signals that no route exists for the destination.
func UnreachableError(format string, args ...any) *Error {
	return newError(CodeUnreachable, format, args...)
}

// WrongConditionError signals a fulfillment that does not match the
// condition.
func WrongConditionError(format string, args ...any) *Error {
	return newError(CodeWrongCondition, format, args...)
}

// AmountTooLargeError signals a packet above the configured maximum. The
// reject data carries the received and maximum amounts.
func AmountTooLargeError(received, maximum uint64) *Error {
	var w oer.Writer
	w.WriteUint64(received)
	w.WriteUint64(maximum)
	e := newError(CodeAmountTooLarge,
		"packet size too large. maxAmount=%d actualAmount=%d", maximum, received)
	e.Data = w.Bytes()
	return e
}

// InternalError is a generic temporary error.
func InternalError(format string, args ...any) *Error {
	return newError(CodeInternalError, format, args...)
}

// PeerUnreachableError signals that the next hop could not be reached.
func PeerUnreachableError(format string, args ...any) *Error {
	return newError(CodePeerUnreachable, format, args...)
}

// InsufficientLiquidityError signals that a balance or throughput limit was
// hit.
func InsufficientLiquidityError(format string, args ...any) *Error {
	return newError(CodeInsufficientLiquidity, format, args...)
}

// RateLimitedError signals that the peer sends packets too fast.
func RateLimitedError(format string, args ...any) *Error {
	return newError(CodeRateLimited, format, args...)
}

// TransferTimedOutError signals that the packet expired in flight.
func TransferTimedOutError(format string, args ...any) *Error {
	return newError(CodeTransferTimedOut, format, args...)
}

// InsufficientTimeoutError signals that the packet expires too soon to be
// forwarded.
func InsufficientTimeoutError(format string, args ...any) *Error {
	return newError(CodeInsufficientTimeout, format, args...)
}

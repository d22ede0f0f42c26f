/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"errors"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

// Type is command error type.
type Type int32

const (
	// ValidationError is error type for command validation errors.
	ValidationError Type = iota

	// ExecuteError is error type for command execution failure.
	ExecuteError Type = iota

	// NotFoundError is error type for commands naming a record that does not exist.
	NotFoundError Type = iota
)

// Code is the error code of command errors.
type Code int32

const (
	// UnknownStatus default error code for unknown errors.
	UnknownStatus Code = iota
)

// Group is the error groups.
// Note: recommended to use [0-9]*000 pattern for any new entries
// Example: 2000, 3000, 4000 ...... 25000.
type Group int32

const (
	// Common error group for general command errors.
	Common Group = 1000

	// IssueCredential error group for issue credential command errors.
	IssueCredential = 8000

	// PresentProof error group for present proof command errors.
	PresentProof = 9000

	// Outofband error group for outofband command errors.
	Outofband = 11000
)

// Error is the  interface for representing an command error condition, with the nil value representing no error.
type Error interface {
	error
	// Code returns error code for this command error.
	Code() Code
	// Type returns error type for this command error.
	Type() Type
}

// NewValidationError returns new command validation error.
func NewValidationError(code Code, err error) Error {
	return &commandError{err, code, ValidationError}
}

// NewExecuteError returns new command execute error.
func NewExecuteError(code Code, err error) Error {
	return &commandError{err, code, ExecuteError}
}

// NewNotFoundError returns new command not found error.
func NewNotFoundError(code Code, err error) Error {
	return &commandError{err, code, NotFoundError}
}

// NewProtocolError classifies an error returned by a protocol service. Rejected input and illegal
// transitions are validation errors, unknown records are not found errors.
func NewProtocolError(code Code, err error) Error {
	var (
		validationErr *exchange.ValidationError
		stateErr      *exchange.StateError
	)

	switch {
	case errors.Is(err, exchange.ErrNotFound):
		return NewNotFoundError(code, err)
	case errors.As(err, &validationErr), errors.As(err, &stateErr):
		return NewValidationError(code, err)
	default:
		return NewExecuteError(code, err)
	}
}

// commandError implements basic command Error.
type commandError struct {
	error
	code    Code
	errType Type
}

func (c *commandError) Code() Code {
	return c.code
}

func (c *commandError) Type() Type {
	return c.errType
}

func (c *commandError) Unwrap() error {
	return c.error
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// ErrDuplicateMessage is returned when an inbound message was already applied to its record.
var ErrDuplicateMessage = errors.New("message already received")

// StateError is returned when an action is not permitted from the current state of a record.
// Err is set when the action is refused for another reason than the state table.
type StateError struct {
	Action    Action
	Role      Role
	Current   State
	Permitted []State
	Err       error
}

func (e *StateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("action %s is not permitted for role %s in state %s: %v",
			e.Action, e.Role, stateName(e.Current), e.Err)
	}

	permitted := make([]string, 0, len(e.Permitted))

	for _, s := range e.Permitted {
		permitted = append(permitted, stateName(s))
	}

	return fmt.Sprintf("action %s is not permitted for role %s in state %s, permitted states: [%s]",
		e.Action, e.Role, stateName(e.Current), strings.Join(permitted, ", "))
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func stateName(s State) string {
	if s == "" {
		return "none"
	}

	return string(s)
}

// ValidationError is returned for malformed thread linkage, duplicate receipts and invalid content.
type ValidationError struct {
	Msg string
	Err error
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Msg, e.Err)
	}

	return "validation: " + e.Msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FormatError wraps a format plugin failure.
type FormatError struct {
	Format string
	Stage  Stage
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format %s (%s): %v", e.Format, e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when no record matches the given id or thread.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Kind, e.Key)
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// wrapFormatError keeps validation errors raised by a plugin as they are.
func wrapFormatError(format string, stage Stage, err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}

	return &FormatError{Format: format, Stage: stage, Err: err}
}

// abandons reports whether an inbound failure moves the record to the abandoned state.
func abandons(err error) bool {
	var (
		vErr *ValidationError
		fErr *FormatError
	)

	return errors.As(err, &vErr) || errors.As(err, &fErr)
}

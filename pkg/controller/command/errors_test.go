/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

func TestNewProtocolError(t *testing.T) {
	const code = Code(Outofband)

	tests := []struct {
		name string
		err  error
		typ  Type
	}{
		{
			name: "not found",
			err:  fmt.Errorf("get: %w", &exchange.NotFoundError{Kind: "record", Key: "1"}),
			typ:  NotFoundError,
		},
		{
			name: "validation",
			err:  exchange.NewValidationError("bad input"),
			typ:  ValidationError,
		},
		{
			name: "illegal transition",
			err:  &exchange.StateError{Action: "accept", Role: "holder", Current: exchange.StateDone},
			typ:  ValidationError,
		},
		{
			name: "anything else",
			err:  errors.New("storage down"),
			typ:  ExecuteError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmdErr := NewProtocolError(code, tc.err)
			require.Equal(t, tc.typ, cmdErr.Type())
			require.Equal(t, code, cmdErr.Code())
			require.ErrorIs(t, cmdErr, tc.err)
		})
	}
}

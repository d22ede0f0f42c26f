/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

func TestRecord_Move(t *testing.T) {
	t.Run("receiver", func(t *testing.T) {
		rec := &Record{Role: RoleReceiver, State: StateInitial}

		require.NoError(t, rec.move(actionAccept))
		require.Equal(t, StatePrepareResponse, rec.State)

		require.NoError(t, rec.move(actionReceiveReuseAccepted))
		require.Equal(t, StateDone, rec.State)
	})

	t.Run("single-use sender", func(t *testing.T) {
		rec := &Record{Role: RoleSender, State: StateAwaitResponse}

		require.NoError(t, rec.move(actionComplete))
		require.Equal(t, StateDone, rec.State)
	})

	t.Run("multi-use sender stays open", func(t *testing.T) {
		rec := &Record{Role: RoleSender, State: StateAwaitResponse, Reusable: true}

		require.NoError(t, rec.move(actionReceiveReuse))
		require.NoError(t, rec.move(actionComplete))
		require.Equal(t, StateAwaitResponse, rec.State)
	})

	t.Run("illegal moves", func(t *testing.T) {
		tests := []struct {
			rec    *Record
			action exchange.Action
		}{
			{&Record{Role: RoleReceiver, State: StatePrepareResponse}, actionAccept},
			{&Record{Role: RoleReceiver, State: StateDone}, actionComplete},
			{&Record{Role: RoleSender, State: StateDone}, actionReceiveReuse},
			{&Record{Role: RoleSender, State: StateAwaitResponse}, actionAccept},
			{&Record{Role: RoleReceiver, State: StateInitial}, actionReceiveReuse},
		}

		for _, tc := range tests {
			state := tc.rec.State

			err := tc.rec.move(tc.action)
			require.Error(t, err)

			var stateErr *exchange.StateError
			require.True(t, errors.As(err, &stateErr))
			require.Equal(t, tc.action, stateErr.Action)
			require.Equal(t, exchange.State(state), stateErr.Current)
			require.Equal(t, state, tc.rec.State)
		}
	})
}

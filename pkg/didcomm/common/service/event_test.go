/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPropertiesMap(t *testing.T) {
	var props EventProperties = PropertiesMap{"piid": "1"}

	require.Equal(t, map[string]interface{}{"piid": "1"}, props.All())
}

func TestMessage_NotifyAfterUnregister(t *testing.T) {
	var m Message

	first, second := make(chan StateMsg, 1), make(chan StateMsg, 1)

	require.ErrorIs(t, m.RegisterMsgEvent(nil), ErrNilChannel)
	require.NoError(t, m.RegisterMsgEvent(first))
	require.NoError(t, m.RegisterMsgEvent(second))

	m.Notify(StateMsg{ProtocolName: "issue-credential", StateID: "offer-sent", Type: PostState})
	require.Equal(t, "offer-sent", (<-first).StateID)
	require.Equal(t, "offer-sent", (<-second).StateID)

	require.NoError(t, m.UnregisterMsgEvent(first))
	require.Len(t, m.MsgEvents(), 1)

	m.Notify(StateMsg{ProtocolName: "issue-credential", StateID: "done", Type: PostState})
	require.Equal(t, "done", (<-second).StateID)
	require.Empty(t, first)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	mocks "github.com/hyperledger/aries-exchange-go/pkg/internal/gomocks/controller/webnotifier"
)

func TestNew(t *testing.T) {
	n := New("/ws", []string{"http://localhost:8080"})
	require.Len(t, n.notifiers, 2)

	handlers := n.GetRESTHandlers()
	require.Len(t, handlers, 1)
	require.Equal(t, "/ws", handlers[0].Path())
	require.Equal(t, http.MethodGet, handlers[0].Method())
}

func TestWebNotifier_Notify(t *testing.T) {
	t.Run("every notifier is called and the first error returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		first, second := errors.New("webhook down"), errors.New("socket closed")

		a := mocks.NewMockNotifier(ctrl)
		a.EXPECT().Notify("issue-credential_states", []byte(`{}`)).Return(first)

		b := mocks.NewMockNotifier(ctrl)
		b.EXPECT().Notify("issue-credential_states", []byte(`{}`)).Return(second)

		n := &WebNotifier{notifiers: []command.Notifier{a, b}}
		require.ErrorIs(t, n.Notify("issue-credential_states", []byte(`{}`)), first)
	})

	t.Run("unreachable webhook", func(t *testing.T) {
		n := New("/ws", []string{"http://localhost:1"})
		require.Error(t, n.Notify("issue-credential_states", []byte(`{}`)))
	})
}

func TestPrepareTopicMessage(t *testing.T) {
	src, err := PrepareTopicMessage("present-proof_actions", []byte(`{"piid":"1"}`))
	require.NoError(t, err)

	var msg topicMessage
	require.NoError(t, json.Unmarshal(src, &msg))
	require.NotEmpty(t, msg.ID)
	require.Equal(t, "present-proof_actions", msg.Topic)
	require.JSONEq(t, `{"piid":"1"}`, string(msg.Message))
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestConnectionsWS(t *testing.T) {
	const path = "/ws"

	n := NewWSNotifier(path)
	url := startWSListener(t, n) + path

	require.Empty(t, n.subscribers())

	t.Run("normal client lifecycle", func(t *testing.T) {
		conn := dial(t, url)
		validateConnCount(t, n, 1)

		require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
		validateConnCount(t, n, 0)
	})

	t.Run("abnormal client closure", func(t *testing.T) {
		conn := dial(t, url)
		validateConnCount(t, n, 1)

		require.NoError(t, conn.Close(websocket.StatusInternalError, "broken"))
		validateConnCount(t, n, 0)
	})

	t.Run("multiple clients", func(t *testing.T) {
		conn1 := dial(t, url)
		validateConnCount(t, n, 1)

		conn2 := dial(t, url)
		validateConnCount(t, n, 2)

		require.NoError(t, conn1.Close(websocket.StatusNormalClosure, "done"))
		validateConnCount(t, n, 1)

		require.NoError(t, conn2.Close(websocket.StatusNormalClosure, ""))
		validateConnCount(t, n, 0)
	})
}

func TestNotifyWS(t *testing.T) {
	const (
		path     = "/ws"
		expTopic = "issue-credential_states"
	)

	payloads := []string{
		`{"state_id":"offer-sent"}`, `{"state_id":"request-received"}`, `{"state_id":"credential-issued"}`,
	}

	n := NewWSNotifier(path)
	url := startWSListener(t, n) + path

	t.Run("rejects empty input", func(t *testing.T) {
		require.EqualError(t, n.Notify("", []byte(payloads[0])), emptyTopicErrMsg)
		require.EqualError(t, n.Notify(expTopic, nil), emptyMessageErrMsg)
	})

	t.Run("sequential notifications", func(t *testing.T) {
		conn := dial(t, url)
		validateConnCount(t, n, 1)

		for _, expPayload := range payloads {
			require.NoError(t, n.Notify(expTopic, []byte(expPayload)))
			requireTopicMessage(t, conn, expTopic, expPayload)
		}

		require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
		validateConnCount(t, n, 0)
	})

	t.Run("burst notifications", func(t *testing.T) {
		conn := dial(t, url)
		validateConnCount(t, n, 1)

		for _, expPayload := range payloads {
			require.NoError(t, n.Notify(expTopic, []byte(expPayload)))
		}

		for _, expPayload := range payloads {
			requireTopicMessage(t, conn, expTopic, expPayload)
		}

		require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
		validateConnCount(t, n, 0)
	})

	t.Run("close drops subscribers", func(t *testing.T) {
		dial(t, url)
		validateConnCount(t, n, 1)

		n.Close()
		validateConnCount(t, n, 0)
	})
}

func requireTopicMessage(t *testing.T, conn *websocket.Conn, expTopic, expPayload string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgType, payload, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, msgType)

	var topic topicMessage

	require.NoError(t, json.Unmarshal(payload, &topic))
	require.NotEmpty(t, topic.ID)
	require.Equal(t, expTopic, topic.Topic)
	require.JSONEq(t, expPayload, string(topic.Message))
}

func validateConnCount(t *testing.T, n *WSNotifier, expectedCount int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(n.subscribers()) == expectedCount
	}, time.Second, 20*time.Millisecond, "invalid connection count")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(context.Background(), url, nil) //nolint:bodyclose
	require.NoError(t, err)

	return conn
}

// startWSListener serves the notifier handlers and returns the ws:// base URL.
func startWSListener(t *testing.T, n *WSNotifier) string {
	t.Helper()

	router := mux.NewRouter()

	for _, handler := range n.GetRESTHandlers() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

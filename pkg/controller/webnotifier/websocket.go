/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/rest"
)

// WSNotifier pushes topic messages to every connected WebSocket subscriber.
type WSNotifier struct {
	conns     []*websocket.Conn
	connsLock sync.RWMutex
	handlers  []rest.Handler
}

// NewWSNotifier returns a notifier accepting subscribers on path.
func NewWSNotifier(path string) *WSNotifier {
	n := &WSNotifier{}

	n.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(path, http.MethodGet, n.handleWS),
	}

	return n
}

// Notify writes the topic message to every subscriber. The first write error is returned.
func (n *WSNotifier) Notify(topic string, message []byte) error {
	if topic == "" {
		return errors.New(emptyTopicErrMsg)
	}

	if len(message) == 0 {
		return errors.New(emptyMessageErrMsg)
	}

	topicMsg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return fmt.Errorf(failedToCreateErrMsg, err)
	}

	var allErrs error

	for _, conn := range n.subscribers() {
		allErrs = appendError(allErrs, notifyWS(context.Background(), conn, topicMsg))
	}

	return allErrs
}

// Close disconnects every subscriber.
func (n *WSNotifier) Close() {
	for _, conn := range n.subscribers() {
		if err := conn.Close(websocket.StatusGoingAway, "agent shutdown"); err != nil {
			logger.Debugf("closing websocket subscriber: %v", err)
		}
	}
}

func (n *WSNotifier) subscribers() []*websocket.Conn {
	n.connsLock.RLock()
	defer n.connsLock.RUnlock()

	conns := make([]*websocket.Conn, len(n.conns))
	copy(conns, n.conns)

	return conns
}

func notifyWS(parent context.Context, conn *websocket.Conn, message []byte) error {
	ctx, cancel := context.WithTimeout(parent, notificationSendTimeout)
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, message)
}

func (n *WSNotifier) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.Infof("failed to upgrade the websocket notification connection : %v", err)

		return
	}

	logger.Debugf("websocket subscriber connected")

	n.connsLock.Lock()
	n.conns = append(n.conns, conn)
	n.connsLock.Unlock()

	n.monitor(r.Context(), conn)
}

// monitor blocks until the subscriber goes away. Subscribers never send anything.
func (n *WSNotifier) monitor(ctx context.Context, conn *websocket.Conn) {
	_, _, err := conn.Reader(ctx)
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Infof("reading from websocket subscriber failed: %v", err)
	}

	if err = conn.Close(websocket.StatusPolicyViolation, "unexpected message"); err != nil {
		logger.Debugf("closing websocket subscriber failed: %v", err)
	}

	n.removeConn(conn)
}

func (n *WSNotifier) removeConn(conn *websocket.Conn) {
	n.connsLock.Lock()
	defer n.connsLock.Unlock()

	conns := n.conns[:0]

	for _, c := range n.conns {
		if c != conn {
			conns = append(conns, c)
		}
	}

	n.conns = conns

	logger.Debugf("websocket subscriber dropped")
}

// GetRESTHandlers returns the subscription endpoint.
func (n *WSNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}

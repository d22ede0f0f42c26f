/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

const (
	webSocketScheme = "ws"

	// replyWaitTime bounds how long the client waits for a return route reply on the socket.
	replyWaitTime = 2 * time.Second
)

var logger = log.New("aries-framework/ws")

// OutboundClient websocket outbound.
type OutboundClient struct {
	replyWait time.Duration
}

// NewOutbound creates a client for Outbound WS transport.
func NewOutbound() *OutboundClient {
	return &OutboundClient{replyWait: replyWaitTime}
}

// Send sends a2a data via WS. The first text frame received within the reply wait time is
// returned as the synchronous reply.
func (cs *OutboundClient) Send(ctx context.Context, data []byte, destination *service.Destination) ([]byte, error) {
	if destination == nil || destination.ServiceEndpoint == "" {
		return nil, errors.New("url is mandatory")
	}

	client, _, err := websocket.Dial(ctx, destination.ServiceEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket client : %w", err)
	}

	defer func() {
		err = client.Close(websocket.StatusNormalClosure, "closing the connection")
		if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			logger.Debugf("failed to close connection: %v", err)
		}
	}()

	err = client.Write(ctx, websocket.MessageText, data)
	if err != nil {
		return nil, fmt.Errorf("websocket write message : %w", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, cs.replyWait)
	defer cancel()

	messageType, message, err := client.Read(readCtx)
	if err != nil {
		// no reply on the socket
		return nil, nil
	}

	if messageType != websocket.MessageText {
		return nil, errors.New("message type is not text message")
	}

	return message, nil
}

// Accept checks for the url scheme.
func (cs *OutboundClient) Accept(url string) bool {
	return strings.HasPrefix(url, webSocketScheme)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

var logger = log.New("aries-framework/dispatcher/inbound")

// ErrNoHandler is returned when no protocol service accepts the message type.
var ErrNoHandler = errors.New("no message handlers found")

type provider interface {
	AllServices() []dispatcher.ProtocolService
	InboundMessenger() service.MessengerHandler
	ConnectionLookup() *connection.Lookup
}

type connectionLookup interface {
	GetConnectionRecordByKeys(myKey, theirKey string) (*connection.Record, error)
}

// MessageHandler handles inbound envelopes, processing then dispatching to a protocol service based on the
// message type.
type MessageHandler struct {
	services    []dispatcher.ProtocolService
	messenger   service.MessengerHandler
	connections connectionLookup
}

// NewInboundMessageHandler creates an inbound message handler, that processes inbound message Envelopes,
// and dispatches them to the appropriate ProtocolService.
func NewInboundMessageHandler(p provider) *MessageHandler {
	return &MessageHandler{
		services:    p.AllServices(),
		messenger:   p.InboundMessenger(),
		connections: p.ConnectionLookup(),
	}
}

// HandlerFunc returns the MessageHandler's transport.InboundMessageHandler function.
func (handler *MessageHandler) HandlerFunc() transport.InboundMessageHandler {
	return handler.HandleInboundEnvelope
}

// HandleInboundEnvelope handles an inbound envelope, dispatching it to the appropriate ProtocolService.
func (handler *MessageHandler) HandleInboundEnvelope(ctx context.Context, envelope *transport.Envelope,
	responder service.Responder) error {
	msg, err := service.ParseDIDCommMsgMap(envelope.Message)
	if err != nil {
		return err
	}

	var foundService dispatcher.ProtocolService

	// find the service which accepts the message type
	for _, svc := range handler.services {
		if svc.Accept(msg.Type()) {
			foundService = svc
			break
		}
	}

	if foundService == nil {
		return fmt.Errorf("%w for the message type: %s", ErrNoHandler, msg.Type())
	}

	ictx, err := handler.inboundContext(msg, envelope, responder)
	if err != nil {
		return fmt.Errorf("inbound message handler: %w", err)
	}

	return handler.tryToHandle(ctx, foundService, msg, ictx)
}

// HandleMessage dispatches a message that did not arrive over a transport, such as a request
// embedded in an out-of-band invitation.
func (handler *MessageHandler) HandleMessage(ctx context.Context, msg service.DIDCommMsgMap,
	ictx *service.InboundContext) error {
	for _, svc := range handler.services {
		if svc.Accept(msg.Type()) {
			return handler.tryToHandle(ctx, svc, msg, ictx)
		}
	}

	return fmt.Errorf("%w for the message type: %s", ErrNoHandler, msg.Type())
}

func (handler *MessageHandler) inboundContext(msg service.DIDCommMsgMap, envelope *transport.Envelope,
	responder service.Responder) (*service.InboundContext, error) {
	ictx := &service.InboundContext{SenderKey: envelope.SenderKey}

	if len(envelope.RecipientKeys) > 0 {
		ictx.RecipientKey = envelope.RecipientKeys[0]
	}

	conn, err := handler.connections.GetConnectionRecordByKeys(ictx.RecipientKey, ictx.SenderKey)

	switch {
	case err == nil:
		ictx.ConnectionID = conn.ConnectionID
		ictx.MyDID = conn.MyDID
		ictx.TheirDID = conn.TheirDID
	case errors.Is(err, connection.ErrNotFound):
		logger.Debugf("no connection for sender key %s, processing connection-less", ictx.SenderKey)
	default:
		return nil, fmt.Errorf("lookup connection: %w", err)
	}

	headers := struct {
		Service   *decorator.Service     `json:"~service,omitempty"`
		Transport *decorator.ReturnRoute `json:"~transport,omitempty"`
	}{}

	if err = msg.Decode(&headers); err != nil {
		return nil, fmt.Errorf("decode decorators: %w", err)
	}

	if headers.Service != nil {
		ictx.TheirService, err = service.NewDestination(headers.Service.ServiceEndpoint,
			headers.Service.RecipientKeys, headers.Service.RoutingKeys)
		if err != nil {
			return nil, fmt.Errorf("~service decorator: %w", err)
		}
	}

	if responder != nil && headers.Transport != nil &&
		(headers.Transport.Value == decorator.TransportReturnRouteAll ||
			headers.Transport.Value == decorator.TransportReturnRouteThread) {
		ictx.Responder = responder
	}

	return ictx, nil
}

func (handler *MessageHandler) tryToHandle(ctx context.Context, svc service.InboundHandler,
	msg service.DIDCommMsgMap, ictx *service.InboundContext) error {
	if err := handler.messenger.HandleInbound(msg, ictx); err != nil {
		return fmt.Errorf("messenger HandleInbound: %w", err)
	}

	_, err := svc.HandleInbound(ctx, msg, ictx)

	return err
}

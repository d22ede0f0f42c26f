/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import "context"

// InboundHandler is implemented by every protocol service that consumes inbound DIDComm messages.
// The returned string is the identifier of the record affected by the message.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg DIDCommMsg, ictx *InboundContext) (string, error)
}

// Handler provides protocol service handle api.
type Handler interface {
	InboundHandler
	// Accept returns true if the service accepts messages of the given type.
	Accept(msgType string) bool
	// Name of the protocol service.
	Name() string
}

// DIDComm defines service APIs.
type DIDComm interface {
	// service handler
	Handler

	// event service
	Event
}

// Responder writes a message back over the same transport the inbound message arrived on.
type Responder interface {
	Respond(ctx context.Context, msg DIDCommMsgMap) error
}

// InboundContext carries everything known about the session an inbound message arrived in.
type InboundContext struct {
	// ConnectionID is empty for connection-less messages.
	ConnectionID string
	MyDID        string
	TheirDID     string
	SenderKey    string
	RecipientKey string
	// TheirService is set when the message carries a ~service decorator.
	TheirService *Destination
	// Responder is set when the transport keeps the inbound session open (return route).
	Responder Responder
	// OutOfBandID is set when the message was embedded in an out-of-band invitation.
	OutOfBandID string
	// AutoAccept overrides the auto-accept policy of the protocol service handling the message.
	AutoAccept string
}

// IsConnectionless reports whether the message arrived without an established connection.
func (c *InboundContext) IsConnectionless() bool {
	return c == nil || c.ConnectionID == ""
}

// Target addresses an outbound message. Exactly one of Responder, ConnectionID or Destination is used,
// checked in that order.
type Target struct {
	ConnectionID string
	Destination  *Destination
	Responder    Responder
}

// TargetFromInbound returns the target answering the given inbound context.
func TargetFromInbound(ictx *InboundContext) *Target {
	if ictx == nil {
		return &Target{}
	}

	return &Target{
		ConnectionID: ictx.ConnectionID,
		Destination:  ictx.TheirService,
		Responder:    ictx.Responder,
	}
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"context"
	"encoding/json"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

// MediaTypePlaintextEnvelope is the content type of the envelopes exchanged by the transports.
// Message encryption is handled outside of the transports.
const MediaTypePlaintextEnvelope = "application/didcomm-plain-env+json"

// Envelope is the unit carried by every transport: the plaintext DIDComm message plus routing keys.
type Envelope struct {
	Message       json.RawMessage `json:"message"`
	SenderKey     string          `json:"sender_key,omitempty"`
	RecipientKeys []string        `json:"recipient_keys,omitempty"`
}

// OutboundTransport interface definition for transport layer
// This is the client side of the agent.
type OutboundTransport interface {
	// Send sends the envelope bytes to the destination. A non empty result is a synchronous reply
	// (return route) delivered as the transport response.
	Send(ctx context.Context, data []byte, destination *service.Destination) ([]byte, error)

	// Accept url.
	Accept(url string) bool
}

// InboundMessageHandler handles the inbound envelopes. The responder writes replies back on the
// inbound session when the sender asked for a return route.
type InboundMessageHandler func(ctx context.Context, envelope *Envelope, responder service.Responder) error

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import "context"

// The messenger package is responsible for the handling of communication between agents.
// It takes care of threading, timing, etc.
// Each message that we are going to send should be DIDCommMsgMap type.
// NOTE: The package modifies message data by JSON tag name according to aries-rfcs.
//       Fields like @id, ~thread , etc. are redundant and may be rewritten.

// Messenger provides methods for the communication.
type Messenger interface {
	// ReplyTo replies to the message by given msgID.
	// Keeps threadID and parent threadID of the original message.
	// Using this function means that communication will be on the same thread.
	ReplyTo(ctx context.Context, msgID string, msg DIDCommMsgMap, target *Target) error

	// Send sends the message as is. The thread of the message is kept if already set.
	Send(ctx context.Context, msg DIDCommMsgMap, target *Target) error
}

// MessengerHandler includes Messenger interface and Handle function to handle inbound messages.
type MessengerHandler interface {
	Messenger
	// HandleInbound handles all inbound messages
	HandleInbound(msg DIDCommMsgMap, ictx *InboundContext) error
}

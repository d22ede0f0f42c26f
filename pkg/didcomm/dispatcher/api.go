/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"context"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

// ProtocolService is a protocol service the inbound dispatcher routes messages to.
type ProtocolService interface {
	service.Handler
}

// Outbound interface.
type Outbound interface {
	// Send delivers the message from senderKey to the destination.
	Send(ctx context.Context, msg service.DIDCommMsgMap, senderKey string, des *service.Destination) error
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

// ErrNoHandshake is returned for invitations needing a connection when no Connector is configured.
var ErrNoHandshake = errors.New("no handshake protocol connector configured")

// router advertises the agent endpoint and key. Mediators are not supported.
type router struct {
	endpoint     string
	recipientKey string
}

func (r *router) NewRouting(_ context.Context, mediatorID string) (*outofband.Routing, error) {
	if mediatorID != "" {
		return nil, exchange.NewValidationError("routing through mediator %s is not supported", mediatorID)
	}

	return &outofband.Routing{Endpoint: r.endpoint, RecipientKey: r.recipientKey}, nil
}

type noHandshake struct{}

func (noHandshake) AcceptInvitation(context.Context, *outofband.Record, *outofband.ConnectOptions) (string, error) {
	return "", ErrNoHandshake
}

func (noHandshake) WaitReady(context.Context, string) (*connection.Record, error) {
	return nil, ErrNoHandshake
}

type inboundFunc func(ctx context.Context, msg service.DIDCommMsgMap, ictx *service.InboundContext) error

func (f inboundFunc) HandleMessage(ctx context.Context, msg service.DIDCommMsgMap, ictx *service.InboundContext) error {
	return f(ctx, msg, ictx)
}

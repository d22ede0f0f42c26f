/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"errors"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

// ErrSvcNotFound is returned when service not found.
var ErrSvcNotFound = errors.New("service not found")

// Provider supplies the agent configuration to services, clients and controllers.
type Provider struct {
	agent *Agent
}

// Service return protocol service.
func (p *Provider) Service(id string) (interface{}, error) {
	for _, v := range p.agent.services {
		if v.Name() == id {
			return v, nil
		}
	}

	return nil, ErrSvcNotFound
}

// AllServices returns a copy of the agent's list of ProtocolServices.
func (p *Provider) AllServices() []dispatcher.ProtocolService {
	ret := make([]dispatcher.ProtocolService, len(p.agent.services))
	copy(ret, p.agent.services)

	return ret
}

// ServiceEndpoint returns the endpoint counterparts reach the agent at.
func (p *Provider) ServiceEndpoint() string {
	return p.agent.serviceEndpoint
}

// StorageProvider return a storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.agent.storeProvider
}

// Messenger returns the messenger.
func (p *Provider) Messenger() service.Messenger {
	return p.agent.messenger
}

// InboundMessenger returns the messenger handling the threading of inbound messages.
func (p *Provider) InboundMessenger() service.MessengerHandler {
	return p.agent.messenger
}

// OutboundDispatcher returns an outbound dispatcher.
func (p *Provider) OutboundDispatcher() dispatcher.Outbound {
	return p.agent.outbound
}

// OutboundTransports returns the outbound transports.
func (p *Provider) OutboundTransports() []transport.OutboundTransport {
	return p.agent.outboundTransports
}

// TransportReturnRoute returns the return route asked of counterparts.
func (p *Provider) TransportReturnRoute() string {
	return p.agent.transportReturnRoute
}

// SenderKey returns the key of connection-less messages.
func (p *Provider) SenderKey() string {
	return p.agent.senderKey
}

// ConnectionLookup returns a connection.Lookup.
func (p *Provider) ConnectionLookup() *connection.Lookup {
	return p.agent.connections.Lookup
}

// Connections returns the connections the out-of-band service reuses.
func (p *Provider) Connections() outofband.ConnectionLookup {
	return p.agent.connections.Lookup
}

// Router returns the routing of new invitations.
func (p *Provider) Router() outofband.Router {
	return &router{endpoint: p.agent.serviceEndpoint, recipientKey: p.agent.senderKey}
}

// Connector returns the handshake protocol implementation.
func (p *Provider) Connector() outofband.Connector {
	return p.agent.connector
}

// InboundDispatcher delivers the requests embedded in invitations.
func (p *Provider) InboundDispatcher() outofband.InboundDispatcher {
	return inboundFunc(p.agent.handleMessage)
}

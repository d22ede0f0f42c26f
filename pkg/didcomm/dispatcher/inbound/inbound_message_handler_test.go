/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

type storageProvider struct {
	p storage.Provider
}

func (s *storageProvider) StorageProvider() storage.Provider { return s.p }

type mockProvider struct {
	services    []dispatcher.ProtocolService
	messenger   service.MessengerHandler
	connections *connection.Lookup
}

func (p *mockProvider) AllServices() []dispatcher.ProtocolService  { return p.services }
func (p *mockProvider) InboundMessenger() service.MessengerHandler { return p.messenger }
func (p *mockProvider) ConnectionLookup() *connection.Lookup       { return p.connections }

type mockService struct {
	prefix string
	err    error
	got    []*service.InboundContext
}

func (m *mockService) HandleInbound(_ context.Context, _ service.DIDCommMsg, ictx *service.InboundContext) (string, error) {
	m.got = append(m.got, ictx)
	return "", m.err
}

func (m *mockService) Accept(msgType string) bool { return strings.HasPrefix(msgType, m.prefix) }

func (m *mockService) Name() string { return m.prefix }

type mockMessenger struct {
	service.Messenger
	err error
}

func (m *mockMessenger) HandleInbound(service.DIDCommMsgMap, *service.InboundContext) error { return m.err }

func newHandler(t *testing.T, svc *mockService, msgr *mockMessenger) (*MessageHandler, *connection.Recorder) {
	t.Helper()

	recorder, err := connection.NewRecorder(&storageProvider{p: mem.NewProvider()})
	require.NoError(t, err)

	return NewInboundMessageHandler(&mockProvider{
		services:    []dispatcher.ProtocolService{svc},
		messenger:   msgr,
		connections: recorder.Lookup,
	}), recorder
}

func envelope(t *testing.T, msg string) *transport.Envelope {
	t.Helper()

	return &transport.Envelope{Message: json.RawMessage(msg), SenderKey: "their-key", RecipientKeys: []string{"my-key"}}
}

func TestMessageHandler_HandleInboundEnvelope(t *testing.T) {
	t.Run("connection resolved by keys", func(t *testing.T) {
		svc := &mockService{prefix: "https://didcomm.org/test/"}
		handler, recorder := newHandler(t, svc, &mockMessenger{})

		require.NoError(t, recorder.SaveConnectionRecord(&connection.Record{
			ConnectionID:    "conn-1",
			State:           connection.StateCompleted,
			MyKey:           "my-key",
			TheirKey:        "their-key",
			ServiceEndPoint: "http://example.com",
		}))

		err := handler.HandlerFunc()(context.Background(),
			envelope(t, `{"@id":"1","@type":"https://didcomm.org/test/1.0/ping"}`), nil)
		require.NoError(t, err)
		require.Len(t, svc.got, 1)
		require.Equal(t, "conn-1", svc.got[0].ConnectionID)
		require.False(t, svc.got[0].IsConnectionless())
	})

	t.Run("connection-less with service and return route", func(t *testing.T) {
		svc := &mockService{prefix: "https://didcomm.org/test/"}
		handler, _ := newHandler(t, svc, &mockMessenger{})

		responder := &struct{ service.Responder }{}

		err := handler.HandleInboundEnvelope(context.Background(), envelope(t, `{
			"@id":"1",
			"@type":"https://didcomm.org/test/1.0/ping",
			"~service":{"recipientKeys":["did:key:zabc"],"serviceEndpoint":"http://their.example.com"},
			"~transport":{"return_route":"all"}
		}`), responder)
		require.NoError(t, err)
		require.Len(t, svc.got, 1)
		require.True(t, svc.got[0].IsConnectionless())
		require.Equal(t, "http://their.example.com", svc.got[0].TheirService.ServiceEndpoint)
		require.Equal(t, responder, svc.got[0].Responder)
	})

	t.Run("no return route requested", func(t *testing.T) {
		svc := &mockService{prefix: "https://didcomm.org/test/"}
		handler, _ := newHandler(t, svc, &mockMessenger{})

		err := handler.HandleInboundEnvelope(context.Background(),
			envelope(t, `{"@id":"1","@type":"https://didcomm.org/test/1.0/ping"}`), &struct{ service.Responder }{})
		require.NoError(t, err)
		require.Nil(t, svc.got[0].Responder)
	})

	t.Run("invalid service decorator", func(t *testing.T) {
		handler, _ := newHandler(t, &mockService{prefix: "https://didcomm.org/test/"}, &mockMessenger{})

		err := handler.HandleInboundEnvelope(context.Background(), envelope(t,
			`{"@id":"1","@type":"https://didcomm.org/test/1.0/ping","~service":{"recipientKeys":[]}}`), nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "~service decorator")
	})

	t.Run("no handler", func(t *testing.T) {
		handler, _ := newHandler(t, &mockService{prefix: "https://didcomm.org/other/"}, &mockMessenger{})

		err := handler.HandleInboundEnvelope(context.Background(),
			envelope(t, `{"@id":"1","@type":"https://didcomm.org/test/1.0/ping"}`), nil)
		require.ErrorIs(t, err, ErrNoHandler)
	})

	t.Run("invalid message", func(t *testing.T) {
		handler, _ := newHandler(t, &mockService{}, &mockMessenger{})

		require.Error(t, handler.HandleInboundEnvelope(context.Background(), envelope(t, `[]`), nil))
	})

	t.Run("messenger and service errors", func(t *testing.T) {
		handler, _ := newHandler(t, &mockService{prefix: "https://didcomm.org/test/"},
			&mockMessenger{err: errors.New("messenger error")})

		err := handler.HandleInboundEnvelope(context.Background(),
			envelope(t, `{"@id":"1","@type":"https://didcomm.org/test/1.0/ping"}`), nil)
		require.EqualError(t, err, "messenger HandleInbound: messenger error")

		handler, _ = newHandler(t, &mockService{prefix: "https://didcomm.org/test/", err: errors.New("svc error")},
			&mockMessenger{})

		err = handler.HandleInboundEnvelope(context.Background(),
			envelope(t, `{"@id":"1","@type":"https://didcomm.org/test/1.0/ping"}`), nil)
		require.EqualError(t, err, "svc error")
	})
}

func TestMessageHandler_HandleMessage(t *testing.T) {
	svc := &mockService{prefix: "https://didcomm.org/test/"}
	handler, _ := newHandler(t, svc, &mockMessenger{})

	ictx := &service.InboundContext{OutOfBandID: "oob"}

	err := handler.HandleMessage(context.Background(),
		service.DIDCommMsgMap{"@id": "1", "@type": "https://didcomm.org/test/1.0/ping"}, ictx)
	require.NoError(t, err)
	require.Equal(t, ictx, svc.got[0])

	err = handler.HandleMessage(context.Background(), service.DIDCommMsgMap{"@id": "1", "@type": "other"}, ictx)
	require.ErrorIs(t, err, ErrNoHandler)
}

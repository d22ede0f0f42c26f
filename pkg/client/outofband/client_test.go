/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/golang/mock/gomock"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/outofband"
	mocks "github.com/hyperledger/aries-exchange-go/pkg/internal/gomocks/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

const endpoint = "https://alice.example.com"

type mockProvider struct {
	svc interface{}
	err error
}

func (p *mockProvider) ServiceEndpoint() string { return endpoint }

func (p *mockProvider) Service(string) (interface{}, error) { return p.svc, p.err }

type oobProvider struct {
	store       storage.Provider
	router      outofband.Router
	connections *connection.Recorder
	connector   outofband.Connector
	inbound     outofband.InboundDispatcher
}

func (p *oobProvider) StorageProvider() storage.Provider              { return p.store }
func (p *oobProvider) Messenger() service.Messenger                   { return nil }
func (p *oobProvider) Router() outofband.Router                       { return p.router }
func (p *oobProvider) Connections() outofband.ConnectionLookup        { return p.connections }
func (p *oobProvider) Connector() outofband.Connector                 { return p.connector }
func (p *oobProvider) InboundDispatcher() outofband.InboundDispatcher { return p.inbound }

type fixture struct {
	client    *Client
	connector *mocks.MockConnector
	inbound   *mocks.MockInboundDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	router := mocks.NewMockRouter(ctrl)
	router.EXPECT().NewRouting(gomock.Any(), gomock.Any()).
		Return(&outofband.Routing{Endpoint: endpoint, RecipientKey: base58.Encode(pub)}, nil).AnyTimes()

	p := &oobProvider{
		store:     mem.NewProvider(),
		router:    router,
		connector: mocks.NewMockConnector(ctrl),
		inbound:   mocks.NewMockInboundDispatcher(ctrl),
	}

	p.connections, err = connection.NewRecorder(p)
	require.NoError(t, err)

	svc, err := outofband.New(p)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, svc.Close())
	})

	c, err := New(&mockProvider{svc: svc})
	require.NoError(t, err)

	return &fixture{
		client:    c,
		connector: p.connector.(*mocks.MockConnector),
		inbound:   p.inbound.(*mocks.MockInboundDispatcher),
	}
}

func TestNew(t *testing.T) {
	t.Run("lookup fails", func(t *testing.T) {
		_, err := New(&mockProvider{err: errors.New("test")})
		require.EqualError(t, err, "failed to look up service out-of-band : test")
	})

	t.Run("wrong service", func(t *testing.T) {
		_, err := New(&mockProvider{svc: struct{}{}})
		require.EqualError(t, err, "failed to cast service out-of-band as a dependency")
	})
}

func TestCreateInvitation(t *testing.T) {
	f := newFixture(t)

	t.Run("defaults to didexchange", func(t *testing.T) {
		inv, err := f.client.CreateInvitation(context.Background(), WithLabel("alice"), WithGoal("connect", "p2p"))
		require.NoError(t, err)
		require.Equal(t, InvitationMsgType, inv.Type)
		require.Equal(t, "alice", inv.Label)
		require.Equal(t, "connect", inv.Goal)
		require.Equal(t, "p2p", inv.GoalCode)
		require.Equal(t, []string{outofband.DIDExchangeProtocol}, inv.Protocols)
		require.Len(t, inv.Services, 1)
	})

	t.Run("with a request and its id", func(t *testing.T) {
		id := NewInvitationID()

		inv, err := f.client.CreateInvitation(context.Background(), WithInvitationID(id),
			WithMessages(service.DIDCommMsgMap{
				"@id":   "request-1",
				"@type": "https://didcomm.org/present-proof/2.0/request-presentation",
			}))
		require.NoError(t, err)
		require.Equal(t, id, inv.ID)
		require.Empty(t, inv.Protocols)
		require.Len(t, inv.Requests, 1)
	})

	t.Run("url", func(t *testing.T) {
		invURL, inv, err := f.client.CreateInvitationURL(context.Background(), WithMultiUse())
		require.NoError(t, err)
		require.Contains(t, invURL, endpoint+"?oob=")

		parsed, _, err := outofband.ParseInvitationURL(invURL)
		require.NoError(t, err)
		require.Equal(t, inv.ID, parsed.ID)

		records, err := f.client.Records(&Query{InvitationID: inv.ID})
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.True(t, records[0].Reusable)
	})

	t.Run("connection-less url", func(t *testing.T) {
		invURL, err := f.client.CreateConnectionlessURL(context.Background(), service.DIDCommMsgMap{
			"@id":   "request-2",
			"@type": "https://didcomm.org/present-proof/2.0/request-presentation",
		})
		require.NoError(t, err)
		require.Contains(t, invURL, endpoint+"?d_m=")
	})

	t.Run("rejected by the service", func(t *testing.T) {
		_, err := f.client.CreateInvitation(context.Background(), WithHandshakeProtocols("https://didcomm.org/unknown/1.0"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to save outofband invitation")
	})
}

func TestAcceptInvitation(t *testing.T) {
	inviter := newFixture(t)
	invitee := newFixture(t)

	inv, err := inviter.client.CreateInvitation(context.Background())
	require.NoError(t, err)

	t.Run("manual accept, then continue", func(t *testing.T) {
		states := make(chan service.StateMsg, 10)
		require.NoError(t, invitee.client.RegisterMsgEvent(states))

		defer func() {
			require.NoError(t, invitee.client.UnregisterMsgEvent(states))
		}()

		connID, err := invitee.client.AcceptInvitation(context.Background(), inv, WithManualAccept())
		require.NoError(t, err)
		require.Empty(t, connID)

		var recordID string

		select {
		case msg := <-states:
			e, err := EventOf(msg)
			require.NoError(t, err)
			require.Equal(t, inv.ID, e.InvitationID())
			require.Empty(t, e.ConnectionID())

			recordID = e.RecordID()
		case <-time.After(time.Second):
			t.Fatal("no state message")
		}

		invitee.connector.EXPECT().AcceptInvitation(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *outofband.Record, opts *outofband.ConnectOptions) (string, error) {
				require.Equal(t, "bob", opts.Label)
				require.True(t, opts.AutoAccept)

				return "conn-1", nil
			})
		invitee.connector.EXPECT().WaitReady(gomock.Any(), "conn-1").
			Return(&connection.Record{ConnectionID: "conn-1", State: connection.StateCompleted}, nil)

		connID, err = invitee.client.ActionContinue(context.Background(), recordID,
			WithLabel("bob"), WithAutoAcceptConnection())
		require.NoError(t, err)
		require.Equal(t, "conn-1", connID)

		require.Eventually(t, func() bool {
			rec, err := invitee.client.Record(recordID)

			return err == nil && rec.State == outofband.StateDone
		}, 5*time.Second, 10*time.Millisecond)

		require.NoError(t, invitee.client.RemoveRecord(recordID))
	})

	t.Run("from url", func(t *testing.T) {
		invURL, _, err := inviter.client.CreateInvitationURL(context.Background())
		require.NoError(t, err)

		invitee.connector.EXPECT().AcceptInvitation(gomock.Any(), gomock.Any(), gomock.Any()).Return("conn-2", nil)
		invitee.connector.EXPECT().WaitReady(gomock.Any(), "conn-2").
			Return(&connection.Record{ConnectionID: "conn-2", State: connection.StateCompleted}, nil)

		connID, err := invitee.client.AcceptInvitationURL(context.Background(), invURL)
		require.NoError(t, err)
		require.Equal(t, "conn-2", connID)
	})

	t.Run("public did", func(t *testing.T) {
		invitee.connector.EXPECT().AcceptInvitation(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *outofband.Record, opts *outofband.ConnectOptions) (string, error) {
				require.Equal(t, outofband.ConnectionsProtocol, opts.Protocol)

				return "conn-3", nil
			})
		invitee.connector.EXPECT().WaitReady(gomock.Any(), "conn-3").
			Return(&connection.Record{ConnectionID: "conn-3", State: connection.StateCompleted}, nil)

		connID, err := invitee.client.ConnectToPublicDID(context.Background(), "did:example:inviter",
			WithHandshakeProtocols(outofband.ConnectionsProtocol))
		require.NoError(t, err)
		require.Equal(t, "conn-3", connID)
	})

	t.Run("bad url", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := invitee.client.AcceptInvitationURL(context.Background(), srv.URL+"/missing")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to accept invitation url")
	})
}

func TestEventOf(t *testing.T) {
	_, err := EventOf(service.StateMsg{ProtocolName: "other"})
	require.EqualError(t, err, "state message of protocol other")

	_, err = EventOf(service.StateMsg{ProtocolName: outofband.Name})
	require.EqualError(t, err, "state message has no properties")
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	protocol "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/outofband"
	mocknotifier "github.com/hyperledger/aries-exchange-go/pkg/internal/gomocks/controller/webnotifier"
	mocks "github.com/hyperledger/aries-exchange-go/pkg/internal/gomocks/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

const endpoint = "https://agent.example.com"

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	op, err := New(&servicesProvider{err: errors.New("not registered")}, mocknotifier.NewMockNotifier(ctrl))
	require.EqualError(t, err,
		"outofband command : cannot create a client: failed to look up service out-of-band : not registered")
	require.Nil(t, op)
}

func TestOperation_Invitation(t *testing.T) {
	inviter := newAgent(t)
	invitee := newAgent(t)

	code, body := serve(inviter.router, http.MethodPost, createInvitation, `{"label":"alice","multi_use":true}`)
	require.Equal(t, http.StatusOK, code, body)

	var created outofband.CreateInvitationResponse

	require.NoError(t, json.Unmarshal([]byte(body), &created))
	require.Equal(t, "alice", created.Invitation.Label)

	invitee.connector.EXPECT().AcceptInvitation(gomock.Any(), gomock.Any(), gomock.Any()).Return("conn-1", nil)
	invitee.connector.EXPECT().WaitReady(gomock.Any(), "conn-1").
		Return(&connection.Record{ConnectionID: "conn-1", State: connection.StateCompleted}, nil)

	code, body = serve(invitee.router, http.MethodPost, acceptInvitation,
		fmt.Sprintf(`{"invitation_url":%q,"my_label":"bob"}`, created.InvitationURL))
	require.Equal(t, http.StatusOK, code, body)
	require.JSONEq(t, `{"connection_id":"conn-1"}`, body)

	code, body = serve(invitee.router, http.MethodGet,
		records+"?role=receiver&invitation_id="+created.Invitation.ID, "")
	require.Equal(t, http.StatusOK, code, body)

	var found outofband.RecordsResponse

	require.NoError(t, json.Unmarshal([]byte(body), &found))
	require.Len(t, found.Records, 1)

	id := found.Records[0].ID

	code, body = serve(invitee.router, http.MethodGet, withID(record, id), "")
	require.Equal(t, http.StatusOK, code, body)
	require.Contains(t, body, created.Invitation.ID)

	code, _ = serve(invitee.router, http.MethodDelete, withID(record, id), "")
	require.Equal(t, http.StatusOK, code)

	code, _ = serve(invitee.router, http.MethodGet, withID(record, id), "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestOperation_Errors(t *testing.T) {
	a := newAgent(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{name: "invalid invitation args", method: http.MethodPost, path: createInvitation, body: "[", code: 400},
		{name: "no invitation", method: http.MethodPost, path: acceptInvitation, body: `{}`, code: 400},
		{name: "no did", method: http.MethodPost, path: connectPublicDID, body: `{}`, code: 400},
		{name: "no message", method: http.MethodPost, path: createConnectionlessInvitation, body: `{}`, code: 400},
		{name: "unknown record", method: http.MethodPost, path: withID(actionContinue, "unknown"), code: 404},
		{name: "invalid continue body", method: http.MethodPost, path: withID(actionContinue, "1"), body: "1", code: 400},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			code, body := serve(a.router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.code, code, body)
		})
	}
}

func TestOperation_ConnectionlessInvitation(t *testing.T) {
	a := newAgent(t)

	code, body := serve(a.router, http.MethodPost, createConnectionlessInvitation,
		`{"message":{"@id":"1","@type":"https://didcomm.org/present-proof/2.0/request-presentation"}}`)
	require.Equal(t, http.StatusOK, code, body)
	require.Contains(t, body, "d_m=")
}

type agent struct {
	router    *mux.Router
	connector *mocks.MockConnector
}

func newAgent(t *testing.T) *agent {
	t.Helper()

	ctrl := gomock.NewController(t)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	router := mocks.NewMockRouter(ctrl)
	router.EXPECT().NewRouting(gomock.Any(), gomock.Any()).
		Return(&protocol.Routing{Endpoint: endpoint, RecipientKey: base58.Encode(pub)}, nil).AnyTimes()

	p := &oobProvider{
		store:     mem.NewProvider(),
		router:    router,
		connector: mocks.NewMockConnector(ctrl),
		inbound:   mocks.NewMockInboundDispatcher(ctrl),
	}

	p.connections, err = connection.NewRecorder(p)
	require.NoError(t, err)

	svc, err := protocol.New(p)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, svc.Close())
	})

	notifier := mocknotifier.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	op, err := New(&servicesProvider{svc: svc}, notifier)
	require.NoError(t, err)
	require.Len(t, op.GetRESTHandlers(), 8)

	r := mux.NewRouter()

	for _, h := range op.GetRESTHandlers() {
		r.HandleFunc(h.Path(), h.Handle()).Methods(h.Method())
	}

	return &agent{router: r, connector: p.connector.(*mocks.MockConnector)}
}

func serve(router http.Handler, method, path, body string) (int, string) {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, reader))

	return rr.Code, rr.Body.String()
}

func withID(path, id string) string {
	return strings.Replace(path, "{id}", id, 1)
}

type servicesProvider struct {
	svc interface{}
	err error
}

func (p *servicesProvider) ServiceEndpoint() string { return endpoint }

func (p *servicesProvider) Service(string) (interface{}, error) {
	if p.err != nil {
		return nil, p.err
	}

	return p.svc, nil
}

type oobProvider struct {
	store       storage.Provider
	router      protocol.Router
	connections *connection.Recorder
	connector   protocol.Connector
	inbound     protocol.InboundDispatcher
}

func (p *oobProvider) StorageProvider() storage.Provider             { return p.store }
func (p *oobProvider) Messenger() service.Messenger                  { return nil }
func (p *oobProvider) Router() protocol.Router                       { return p.router }
func (p *oobProvider) Connections() protocol.ConnectionLookup        { return p.connections }
func (p *oobProvider) Connector() protocol.Connector                 { return p.connector }
func (p *oobProvider) InboundDispatcher() protocol.InboundDispatcher { return p.inbound }

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	protocol "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/presentproof/format/vcproof"
	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
	mocknotifier "github.com/hyperledger/aries-exchange-go/pkg/internal/gomocks/controller/webnotifier"
	"github.com/hyperledger/aries-exchange-go/pkg/store/credential"
)

const proofRequest = `{"vcproof":{"name":"age check","version":"1.0",
	"requested_predicates":{"age":{"name":"age","p_type":">=","p_value":21}}}}`

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("success", func(t *testing.T) {
		prover, _ := newRouters(t, ctrl)
		require.NotNil(t, prover)
	})

	t.Run("command fails", func(t *testing.T) {
		op, err := New(&servicesProvider{err: errors.New("not registered")}, mocknotifier.NewMockNotifier(ctrl))
		require.EqualError(t, err, "present proof command : cannot create a client: not registered")
		require.Nil(t, op)
	})
}

func TestOperation_PresentProof(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prover, verifier := newRouters(t, ctrl)

	code, body := serve(verifier, http.MethodPost, sendRequestPresentation,
		`{"connection_id":"conn-1","formats":`+proofRequest+`}`)
	require.Equal(t, http.StatusOK, code, body)

	proverRec := onlyRecord(t, prover, protocol.StateRequestReceived)

	code, body = serve(prover, http.MethodPost, withID(acceptRequestPresentation, proverRec.ID), `{"comment":"here"}`)
	require.Equal(t, http.StatusOK, code, body)

	verifierRec := onlyRecord(t, verifier, protocol.StatePresentationReceived)
	require.Equal(t, true, verifierRec.Metadata[vcproof.MetadataIsVerified])

	code, body = serve(verifier, http.MethodPost, withID(acceptPresentation, verifierRec.ID), "")
	require.Equal(t, http.StatusOK, code, body)

	onlyRecord(t, prover, protocol.StateDone)
	onlyRecord(t, verifier, protocol.StateDone)

	code, body = serve(verifier, http.MethodGet, withID(formatData, verifierRec.ID), "")
	require.Equal(t, http.StatusOK, code, body)

	var data presentproof.FormatDataResponse

	require.NoError(t, json.Unmarshal([]byte(body), &data))
	require.Contains(t, data.FormatData.Result, vcproof.Key)
}

func TestOperation_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prover, verifier := newRouters(t, ctrl)

	code, body := serve(verifier, http.MethodPost, sendRequestPresentation, `{"formats":`+proofRequest+`}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body, "empty connection ID")

	code, _ = serve(verifier, http.MethodPost, sendRequestPresentation, `{"connection_id":"conn-1","formats":`+proofRequest+`}`)
	require.Equal(t, http.StatusOK, code)

	proverRec := onlyRecord(t, prover, protocol.StateRequestReceived)

	code, body = serve(prover, http.MethodPost, withID(acceptPresentation, proverRec.ID), "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body, "not permitted")

	code, _ = serve(prover, http.MethodGet, withID(record, "unknown"), "")
	require.Equal(t, http.StatusNotFound, code)

	code, body = serve(prover, http.MethodPost, withID(declineRequestPresentation, proverRec.ID),
		`{"send_problem_report":true}`)
	require.Equal(t, http.StatusOK, code, body)
	require.Contains(t, body, string(exchange.StateDeclined))

	onlyRecord(t, verifier, exchange.StateAbandoned)

	code, _ = serve(prover, http.MethodDelete, withID(record, proverRec.ID), "")
	require.Equal(t, http.StatusOK, code)

	code, body = serve(prover, http.MethodGet, records, "")
	require.Equal(t, http.StatusOK, code)

	var rsp presentproof.RecordsResponse

	require.NoError(t, json.Unmarshal([]byte(body), &rsp))
	require.Empty(t, rsp.Records)
}

func TestOperation_CreateRequestForInvitation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, verifier := newRouters(t, ctrl)

	code, body := serve(verifier, http.MethodPost, createRequestForInvitation,
		`{"parent_thread_id":"invitation-1","formats":`+proofRequest+`}`)
	require.Equal(t, http.StatusOK, code, body)

	var rsp presentproof.InvitationMessageResponse

	require.NoError(t, json.Unmarshal([]byte(body), &rsp))
	require.Equal(t, protocol.RequestPresentationMsgTypeV2, rsp.Message.Type())
	require.Equal(t, "invitation-1", rsp.Message.ParentThreadID())
}

func onlyRecord(t *testing.T, router http.Handler, state exchange.State) *exchange.Record {
	t.Helper()

	code, body := serve(router, http.MethodGet, records, "")
	require.Equal(t, http.StatusOK, code, body)

	var rsp presentproof.RecordsResponse

	require.NoError(t, json.Unmarshal([]byte(body), &rsp))
	require.Len(t, rsp.Records, 1)
	require.Equal(t, state, rsp.Records[0].State)

	return rsp.Records[0]
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

// newRouters serves the operations of a prover holding a credential of a holder aged 30 and of a
// verifier connected to it.
func newRouters(t *testing.T, ctrl *gomock.Controller) (*mux.Router, *mux.Router) {
	t.Helper()

	p := &protocolProvider{store: mem.NewProvider(), out: &messenger{}}

	wallet, err := credential.New(p)
	require.NoError(t, err)

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := vc.NewSigner(key)
	require.NoError(t, err)

	c := &vc.Credential{
		Context: []string{vc.ContextURI},
		ID:      "urn:uuid:holder-credential",
		Types:   []string{vc.TypeVerifiableCredential},
		Subject: map[string]interface{}{"id": "did:example:prover", "age": "30"},
	}

	require.NoError(t, signer.Issue(c))
	require.NoError(t, wallet.Save("", c))

	proverSvc, err := protocol.New(p, []exchange.Format{vcproof.New(wallet, nil)})
	require.NoError(t, err)

	verifier, err := vc.NewVerifier()
	require.NoError(t, err)

	v := &protocolProvider{store: mem.NewProvider(), out: &messenger{}}

	verifierSvc, err := protocol.New(v, []exchange.Format{vcproof.New(nil, verifier)})
	require.NoError(t, err)

	p.out.peer = verifierSvc
	v.out.peer = proverSvc

	return newRouter(t, ctrl, proverSvc), newRouter(t, ctrl, verifierSvc)
}

func newRouter(t *testing.T, ctrl *gomock.Controller, svc *protocol.Service) *mux.Router {
	t.Helper()

	notifier := mocknotifier.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	op, err := New(&servicesProvider{svc: svc}, notifier)
	require.NoError(t, err)
	require.Len(t, op.GetRESTHandlers(), 15)

	router := mux.NewRouter()

	for _, h := range op.GetRESTHandlers() {
		router.HandleFunc(h.Path(), h.Handle()).Methods(h.Method())
	}

	return router
}

type servicesProvider struct {
	svc interface{}
	err error
}

func (p *servicesProvider) Service(string) (interface{}, error) {
	return p.svc, p.err
}

type protocolProvider struct {
	store storage.Provider
	out   *messenger
}

func (p *protocolProvider) StorageProvider() storage.Provider { return p.store }
func (p *protocolProvider) Messenger() service.Messenger      { return p.out }

// messenger delivers sent messages straight to the peer service.
type messenger struct {
	peer *protocol.Service
}

func (m *messenger) Send(ctx context.Context, msg service.DIDCommMsgMap, _ *service.Target) error {
	raw, err := msg.MarshalForWire()
	if err != nil {
		return err
	}

	parsed, err := service.ParseDIDCommMsgMap(raw)
	if err != nil {
		return err
	}

	_, err = m.peer.HandleInbound(ctx, parsed, &service.InboundContext{ConnectionID: "conn-1"})

	return err
}

func (m *messenger) ReplyTo(context.Context, string, service.DIDCommMsgMap, *service.Target) error {
	return errors.New("not supported")
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

const (
	holder Role = "holder"
	issuer Role = "issuer"

	testSpecV2   = "https://didcomm.org/test-credential/2.0/"
	testSpecV3   = "https://didcomm.org/test-credential/3.0/"
	attrsFormat  = "test/attrs@v1"
	testConnID   = "conn-1"
	attrsKey     = "attrs"
	processedKey = "processed"
)

func testProtocol() *Protocol {
	types := map[MessageKind]string{
		KindProposal:      "propose-credential",
		KindOffer:         "offer-credential",
		KindRequest:       "request-credential",
		KindResult:        "issue-credential",
		KindAck:           "ack",
		KindProblemReport: "problem-report",
	}

	return &Protocol{
		Name:  "test-credential",
		Roles: [2]Role{holder, issuer},
		Senders: map[Stage]Role{
			StageProposal: holder,
			StageOffer:    issuer,
			StageRequest:  holder,
			StageResult:   issuer,
		},
		Next: map[Stage]Stage{
			StageProposal: StageOffer,
			StageOffer:    StageRequest,
			StageRequest:  StageResult,
		},
		Counter: map[Stage]Stage{
			StageProposal: StageOffer,
			StageOffer:    StageProposal,
		},
		Transitions: []Transition{
			{ActionCreateProposal, holder, []State{"", StateOfferReceived}, StateProposalSent},
			{ActionReceiveProposal, issuer, []State{"", StateOfferSent}, StateProposalReceived},
			{ActionCreateOffer, issuer, []State{"", StateProposalReceived}, StateOfferSent},
			{ActionReceiveOffer, holder, []State{"", StateProposalSent}, StateOfferReceived},
			{ActionCreateRequest, holder, []State{"", StateOfferReceived}, StateRequestSent},
			{ActionReceiveRequest, issuer, []State{"", StateOfferSent}, StateRequestReceived},
			{ActionCreateResult, issuer, []State{StateRequestReceived}, StateResultSent},
			{ActionReceiveResult, holder, []State{StateRequestSent}, StateResultReceived},
			{ActionCreateAck, holder, []State{StateResultReceived}, StateDone},
			{ActionReceiveAck, issuer, []State{StateResultSent}, StateDone},
			{ActionDecline, holder, []State{StateOfferReceived}, StateDeclined},
			{ActionDecline, issuer, []State{StateProposalReceived}, StateDeclined},
		},
		Vocabularies: []Vocabulary{
			NewDecoratorVocabulary(VocabularyConfig{
				Version: "2.0",
				Spec:    testSpecV2,
				Types:   types,
				AttachFields: map[Stage]string{
					StageProposal: "filters~attach",
					StageOffer:    "offers~attach",
					StageRequest:  "requests~attach",
					StageResult:   "credentials~attach",
				},
				PreviewField: "credential_preview",
				PreviewType:  "credential-preview",
			}),
			NewBodyVocabulary(VocabularyConfig{
				Version:      "3.0",
				Spec:         testSpecV3,
				Types:        types,
				PreviewField: "credential_preview",
				PreviewType:  "credential-preview",
			}),
		},
	}
}

// testFormat carries a plain attribute map. Without parameters it repeats the last payload of the thread.
type testFormat struct {
	mu          sync.Mutex
	createErr   map[Stage]error
	processErr  map[Stage]error
	autoRespErr error
}

func (f *testFormat) Key() string {
	return attrsKey
}

func (f *testFormat) Supports(formatID string) bool {
	return formatID == attrsFormat
}

func (f *testFormat) Create(_ context.Context, req *CreateRequest) (*FormatAttachment, error) {
	f.mu.Lock()
	err := f.createErr[req.Stage]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var data []byte

	switch params := req.Params.(type) {
	case map[string]string:
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}

		data = raw
	case nil:
		if len(req.Record.FormatPayloads) == 0 {
			return nil, errors.New("nothing to derive the payload from")
		}

		data = req.Record.FormatPayloads[len(req.Record.FormatPayloads)-1].Attachment
	default:
		return nil, errors.New("unexpected params")
	}

	return &FormatAttachment{FormatID: attrsFormat, Data: data}, nil
}

func (f *testFormat) Process(_ context.Context, req *ProcessRequest) (*Processed, error) {
	f.mu.Lock()
	err := f.processErr[req.Stage]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var attrs map[string]string
	if err := json.Unmarshal(req.Attachment, &attrs); err != nil {
		return nil, err
	}

	return &Processed{Metadata: map[string]interface{}{processedKey: string(req.Stage)}}, nil
}

func (f *testFormat) ShouldAutoRespond(_ context.Context, req *AutoRespondRequest) (bool, error) {
	if f.autoRespErr != nil {
		return false, f.autoRespErr
	}

	if req.Ours == nil {
		return false, nil
	}

	var ours, incoming map[string]string

	if err := json.Unmarshal(req.Ours.Attachment, &ours); err != nil {
		return false, err
	}

	if err := json.Unmarshal(req.Incoming, &incoming); err != nil {
		return false, err
	}

	return reflect.DeepEqual(ours, incoming), nil
}

// loopback delivers outbound messages to the peer service through their JSON form.
type loopback struct {
	mu         sync.Mutex
	peer       *Service
	sent       []service.DIDCommMsgMap
	inboundErr []error
	sendErr    error
}

func (l *loopback) Send(ctx context.Context, msg service.DIDCommMsgMap, _ *service.Target) error {
	if l.sendErr != nil {
		return l.sendErr
	}

	raw, err := msg.MarshalForWire()
	if err != nil {
		return err
	}

	parsed, err := service.ParseDIDCommMsgMap(raw)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.sent = append(l.sent, parsed)
	peer := l.peer
	l.mu.Unlock()

	if peer == nil {
		return nil
	}

	if _, err = peer.HandleInbound(ctx, parsed, &service.InboundContext{ConnectionID: testConnID}); err != nil {
		l.mu.Lock()
		l.inboundErr = append(l.inboundErr, err)
		l.mu.Unlock()
	}

	return nil
}

func (l *loopback) ReplyTo(context.Context, string, service.DIDCommMsgMap, *service.Target) error {
	return errors.New("not supported")
}

func (l *loopback) messages() []service.DIDCommMsgMap {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]service.DIDCommMsgMap(nil), l.sent...)
}

func (l *loopback) inboundErrors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]error(nil), l.inboundErr...)
}

type testProvider struct {
	store     storage.Provider
	messenger service.Messenger
}

func (p *testProvider) StorageProvider() storage.Provider {
	return p.store
}

func (p *testProvider) Messenger() service.Messenger {
	return p.messenger
}

type party struct {
	svc    *Service
	out    *loopback
	format *testFormat
}

// newPair returns a holder and an issuer wired to each other.
func newPair(t *testing.T, holderOpts, issuerOpts []Option) (*party, *party) {
	t.Helper()

	h := newParty(t, holderOpts...)
	i := newParty(t, issuerOpts...)

	h.out.peer = i.svc
	i.out.peer = h.svc

	return h, i
}

func newParty(t *testing.T, opts ...Option) *party {
	t.Helper()

	out := &loopback{}
	format := &testFormat{}

	svc, err := New(&testProvider{store: mem.NewProvider(), messenger: out}, testProtocol(), []Format{format}, opts...)
	require.NoError(t, err)

	return &party{svc: svc, out: out, format: format}
}

func attrs(kv ...string) map[string]string {
	res := map[string]string{}

	for i := 0; i+1 < len(kv); i += 2 {
		res[kv[i]] = kv[i+1]
	}

	return res
}

func proposal(a map[string]string, preview ...PreviewAttribute) *StartParams {
	return &StartParams{
		Stage:        StageProposal,
		ConnectionID: testConnID,
		Preview:      preview,
		FormatParams: map[string]interface{}{attrsKey: a},
	}
}

func onlyRecord(t *testing.T, svc *Service) *Record {
	t.Helper()

	records, err := svc.FindAllByQuery(nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	return records[0]
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/presentproof/format/vcproof"
	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
	"github.com/hyperledger/aries-exchange-go/pkg/store/credential"
)

const (
	connID    = "conn-1"
	credDefID = "cred-def-1"
)

// messenger hands every message to the peer service as if it went over the wire.
type messenger struct {
	mu      sync.Mutex
	peer    *Service
	inbound service.InboundContext
	sent    []service.DIDCommMsgMap
	targets []*service.Target
}

func (m *messenger) Send(ctx context.Context, msg service.DIDCommMsgMap, target *service.Target) error {
	raw, err := msg.MarshalForWire()
	if err != nil {
		return err
	}

	parsed, err := service.ParseDIDCommMsgMap(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sent = append(m.sent, parsed)
	m.targets = append(m.targets, target)
	peer := m.peer
	ictx := m.inbound
	m.mu.Unlock()

	if peer == nil {
		return nil
	}

	_, err = peer.HandleInbound(ctx, parsed, &ictx)

	return err
}

func (m *messenger) ReplyTo(context.Context, string, service.DIDCommMsgMap, *service.Target) error {
	return errors.New("not supported")
}

func (m *messenger) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var types []string
	for _, msg := range m.sent {
		types = append(types, msg.Type())
	}

	return types
}

type provider struct {
	store     storage.Provider
	messenger service.Messenger
}

func (p *provider) StorageProvider() storage.Provider {
	return p.store
}

func (p *provider) Messenger() service.Messenger {
	return p.messenger
}

type agent struct {
	svc *Service
	out *messenger
}

// newAgents returns a prover holding a credential of Alice, aged 55, and a verifier talking over a
// connection.
func newAgents(t *testing.T, proverOpts, verifierOpts []exchange.Option) (*agent, *agent) {
	t.Helper()

	p := &provider{store: mem.NewProvider(), messenger: &messenger{}}

	wallet, err := credential.New(p)
	require.NoError(t, err)

	issue(t, wallet, map[string]interface{}{"id": "did:example:prover", "name": "Alice", "age": "55"})

	proverSvc, err := New(p, []exchange.Format{vcproof.New(wallet, nil)}, proverOpts...)
	require.NoError(t, err)

	verifier, err := vc.NewVerifier()
	require.NoError(t, err)

	v := &provider{store: mem.NewProvider(), messenger: &messenger{}}

	verifierSvc, err := New(v, []exchange.Format{vcproof.New(nil, verifier)}, verifierOpts...)
	require.NoError(t, err)

	prover := &agent{svc: proverSvc, out: p.messenger.(*messenger)}
	verifierAgent := &agent{svc: verifierSvc, out: v.messenger.(*messenger)}

	prover.out.peer = verifierSvc
	prover.out.inbound = service.InboundContext{ConnectionID: connID}
	verifierAgent.out.peer = proverSvc
	verifierAgent.out.inbound = service.InboundContext{ConnectionID: connID}

	return prover, verifierAgent
}

func issue(t *testing.T, wallet *credential.Store, subject map[string]interface{}) {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := vc.NewSigner(key)
	require.NoError(t, err)

	c := &vc.Credential{
		Context:                []string{vc.ContextURI},
		ID:                     "urn:uuid:alice-credential",
		Types:                  []string{vc.TypeVerifiableCredential},
		CredentialDefinitionID: credDefID,
		Subject:                subject,
	}

	require.NoError(t, signer.Issue(c))
	require.NoError(t, wallet.Save("", c))
}

func proofRequest() *vcproof.ProofRequest {
	return &vcproof.ProofRequest{
		Name:    "age check",
		Version: "1.0",
		RequestedAttributes: map[string]*vcproof.AttributeGroup{
			"name": {Name: "name", Restrictions: []vcproof.Restriction{{CredDefID: credDefID}}},
		},
		RequestedPredicates: map[string]*vcproof.PredicateGroup{
			"age": {Name: "age", PType: vcproof.PredicateGE, PValue: 50,
				Restrictions: []vcproof.Restriction{{CredDefID: credDefID}}},
		},
	}
}

func records(t *testing.T, a *agent) []*exchange.Record {
	t.Helper()

	all, err := a.svc.FindAllByQuery(nil)
	require.NoError(t, err)

	return all
}

func onlyRecord(t *testing.T, a *agent) *exchange.Record {
	t.Helper()

	all := records(t, a)
	require.Len(t, all, 1)

	return all[0]
}

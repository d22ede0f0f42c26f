/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

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
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/issuecredential/format/ldcred"
	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
	"github.com/hyperledger/aries-exchange-go/pkg/store/credential"
)

const (
	connID    = "conn-1"
	holderDID = "did:example:holder"
)

type messenger struct {
	mu   sync.Mutex
	peer *Service
	sent []service.DIDCommMsgMap
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

	m.mu.Lock()
	m.sent = append(m.sent, parsed)
	peer := m.peer
	m.mu.Unlock()

	if peer == nil {
		return nil
	}

	_, err = peer.HandleInbound(ctx, parsed, &service.InboundContext{ConnectionID: connID})

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
	svc         *Service
	out         *messenger
	credentials *credential.Store
}

func newAgents(t *testing.T, holderOpts, issuerOpts []exchange.Option) (*agent, *agent) {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := vc.NewSigner(key)
	require.NoError(t, err)

	verifier, err := vc.NewVerifier()
	require.NoError(t, err)

	h := newAgent(t, func(store *credential.Store) exchange.Format {
		return ldcred.New(nil, verifier, store, ldcred.WithHolderDID(holderDID))
	}, holderOpts...)

	i := newAgent(t, func(*credential.Store) exchange.Format {
		return ldcred.New(signer, nil, nil)
	}, issuerOpts...)

	h.out.peer = i.svc
	i.out.peer = h.svc

	return h, i
}

func newAgent(t *testing.T, format func(*credential.Store) exchange.Format, opts ...exchange.Option) *agent {
	t.Helper()

	p := &provider{store: mem.NewProvider(), messenger: &messenger{}}

	store, err := credential.New(p)
	require.NoError(t, err)

	svc, err := New(p, []exchange.Format{format(store)}, opts...)
	require.NoError(t, err)

	return &agent{svc: svc, out: p.messenger.(*messenger), credentials: store}
}

func detail() *ldcred.CredentialDetail {
	return &ldcred.CredentialDetail{
		CredentialDefinitionID: "cred-def-1",
		Attributes:             map[string]string{"name": "Alice", "age": "55"},
	}
}

func onlyRecord(t *testing.T, a *agent) *exchange.Record {
	t.Helper()

	records, err := a.svc.FindAllByQuery(nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	return records[0]
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agent assembles a DIDComm agent exchanging credentials and proofs: storage, transports,
// messenger, inbound dispatch and the issue-credential, present-proof and out-of-band services.
package agent

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/dispatcher/inbound"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/dispatcher/outbound"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/messenger"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/issuecredential/format/ldcred"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/presentproof/format/vcproof"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport"
	httptransport "github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport/ws"
	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
	"github.com/hyperledger/aries-exchange-go/pkg/store/credential"
)

const defaultEndpoint = "didcomm:transport/queue"

var logger = log.New("aries-framework/agent")

// Agent owns the services of one agent. Callers reach them through Context.
type Agent struct {
	storeProvider        storage.Provider
	serviceEndpoint      string
	outboundTransports   []transport.OutboundTransport
	transportReturnRoute string
	maxRetries           uint64
	retryPeriod          time.Duration
	autoAccept           exchange.AutoAccept
	maxNegotiation       int
	reuseTimeout         time.Duration
	connectionWait       time.Duration
	connector            outofband.Connector
	resolver             outofband.DIDServiceResolver
	httpClient           *http.Client
	key                  ed25519.PrivateKey
	holderDID            string
	vcOpts               []vc.Opt

	senderKey   string
	connections *connection.Recorder
	credentials *credential.Store
	outbound    *outbound.Dispatcher
	messenger   *messenger.Messenger
	inbound     *inbound.MessageHandler
	services    []dispatcher.ProtocolService
	oob         *outofband.Service
}

// Option configures the agent.
type Option func(a *Agent) error

// New creates the agent. Unset options fall back to an in-memory store, the HTTP and WebSocket
// outbound transports and a fresh Ed25519 key.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{}

	for _, option := range opts {
		if err := option(a); err != nil {
			return nil, fmt.Errorf("agent option: %w", err)
		}
	}

	if err := defaults(a); err != nil {
		return nil, fmt.Errorf("agent defaults: %w", err)
	}

	// order matters: the services need the messenger, the inbound handler needs the services
	if err := a.createStores(); err != nil {
		return nil, err
	}

	if err := a.createMessenger(); err != nil {
		return nil, err
	}

	if err := a.loadServices(); err != nil {
		return nil, err
	}

	ctx := a.Context()

	a.inbound = inbound.NewInboundMessageHandler(ctx)
	a.outbound.SetReplyHandler(a.inbound.HandlerFunc())

	logger.Infof("agent started: endpoint=%s senderKey=%s", a.serviceEndpoint, a.senderKey)

	return a, nil
}

func defaults(a *Agent) error {
	if a.storeProvider == nil {
		a.storeProvider = mem.NewProvider()
	}

	if a.serviceEndpoint == "" {
		a.serviceEndpoint = defaultEndpoint
	}

	if len(a.outboundTransports) == 0 {
		httpOutbound, err := httptransport.NewOutbound(httptransport.WithOutboundTimeout(30 * time.Second))
		if err != nil {
			return fmt.Errorf("http outbound transport: %w", err)
		}

		a.outboundTransports = []transport.OutboundTransport{httpOutbound, ws.NewOutbound()}
	}

	if a.key == nil {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate agent key: %w", err)
		}

		a.key = key
	}

	if a.connector == nil {
		a.connector = noHandshake{}
	}

	a.senderKey = base58.Encode(a.key.Public().(ed25519.PublicKey))

	return nil
}

func (a *Agent) createStores() error {
	var err error

	a.connections, err = connection.NewRecorder(a.Context())
	if err != nil {
		return fmt.Errorf("create connection recorder: %w", err)
	}

	a.credentials, err = credential.New(a.Context())
	if err != nil {
		return fmt.Errorf("create credential store: %w", err)
	}

	return nil
}

func (a *Agent) createMessenger() error {
	var opts []outbound.Option
	if a.maxRetries > 0 {
		opts = append(opts, outbound.WithRetry(a.maxRetries, a.retryPeriod))
	}

	a.outbound = outbound.NewOutbound(a.Context(), opts...)

	msgr, err := messenger.NewMessenger(a.Context())
	if err != nil {
		return fmt.Errorf("create messenger: %w", err)
	}

	a.messenger = msgr

	return nil
}

func (a *Agent) loadServices() error {
	signer, err := vc.NewSigner(a.key, a.vcOpts...)
	if err != nil {
		return fmt.Errorf("create credential signer: %w", err)
	}

	verifier, err := vc.NewVerifier(a.vcOpts...)
	if err != nil {
		return fmt.Errorf("create credential verifier: %w", err)
	}

	holderDID := a.holderDID
	if holderDID == "" {
		holderDID = signer.DID()
	}

	var exchangeOpts []exchange.Option

	if a.autoAccept != "" {
		exchangeOpts = append(exchangeOpts, exchange.WithAutoAccept(a.autoAccept))
	}

	if a.maxNegotiation > 0 {
		exchangeOpts = append(exchangeOpts, exchange.WithMaxNegotiationRounds(a.maxNegotiation))
	}

	ctx := a.Context()

	issueCredential, err := issuecredential.New(ctx,
		[]exchange.Format{ldcred.New(signer, verifier, a.credentials, ldcred.WithHolderDID(holderDID))},
		exchangeOpts...)
	if err != nil {
		return fmt.Errorf("create issue credential service: %w", err)
	}

	presentProof, err := presentproof.New(ctx,
		[]exchange.Format{vcproof.New(a.credentials, verifier)}, exchangeOpts...)
	if err != nil {
		return fmt.Errorf("create present proof service: %w", err)
	}

	var oobOpts []outofband.Opt

	if a.reuseTimeout > 0 {
		oobOpts = append(oobOpts, outofband.WithReuseTimeout(a.reuseTimeout))
	}

	if a.connectionWait > 0 {
		oobOpts = append(oobOpts, outofband.WithConnectionWaitTimeout(a.connectionWait))
	}

	if a.resolver != nil {
		oobOpts = append(oobOpts, outofband.WithDIDServiceResolver(a.resolver))
	}

	if a.httpClient != nil {
		oobOpts = append(oobOpts, outofband.WithHTTPClient(a.httpClient))
	}

	oob, err := outofband.New(ctx, oobOpts...)
	if err != nil {
		return fmt.Errorf("create out-of-band service: %w", err)
	}

	a.oob = oob
	a.services = []dispatcher.ProtocolService{issueCredential, presentProof, oob}

	return nil
}

// WithStoreProvider sets the storage provider of every store of the agent.
func WithStoreProvider(prov storage.Provider) Option {
	return func(a *Agent) error {
		a.storeProvider = prov
		return nil
	}
}

// WithServiceEndpoint sets the endpoint counterparts reach this agent at.
func WithServiceEndpoint(endpoint string) Option {
	return func(a *Agent) error {
		a.serviceEndpoint = endpoint
		return nil
	}
}

// WithOutboundTransports replaces the default outbound transports.
func WithOutboundTransports(outboundTransports ...transport.OutboundTransport) Option {
	return func(a *Agent) error {
		a.outboundTransports = append(a.outboundTransports, outboundTransports...)
		return nil
	}
}

// WithTransportReturnRoute asks counterparts to answer on the same transport session. Acceptable
// values are "none" and "all".
func WithTransportReturnRoute(transportReturnRoute string) Option {
	return func(a *Agent) error {
		if transportReturnRoute != decorator.TransportReturnRouteNone &&
			transportReturnRoute != decorator.TransportReturnRouteAll {
			return fmt.Errorf("invalid transport return route option : %s", transportReturnRoute)
		}

		a.transportReturnRoute = transportReturnRoute

		return nil
	}
}

// WithOutboundRetry sets how often and how fast failed sends are retried.
func WithOutboundRetry(maxRetries uint64, period time.Duration) Option {
	return func(a *Agent) error {
		a.maxRetries = maxRetries
		a.retryPeriod = period

		return nil
	}
}

// WithAutoAccept sets the default auto-accept policy of credential and proof exchanges.
func WithAutoAccept(policy exchange.AutoAccept) Option {
	return func(a *Agent) error {
		switch policy {
		case exchange.AutoAcceptNever, exchange.AutoAcceptContentApproved, exchange.AutoAcceptAlways:
			a.autoAccept = policy
			return nil
		default:
			return fmt.Errorf("invalid auto-accept policy : %s", policy)
		}
	}
}

// WithMaxNegotiationRounds bounds the counter-proposals of one exchange.
func WithMaxNegotiationRounds(n int) Option {
	return func(a *Agent) error {
		a.maxNegotiation = n
		return nil
	}
}

// WithReuseTimeout bounds the wait for a handshake-reuse-accepted message.
func WithReuseTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		a.reuseTimeout = d
		return nil
	}
}

// WithConnectionWaitTimeout bounds the wait for a new connection created from an invitation.
func WithConnectionWaitTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		a.connectionWait = d
		return nil
	}
}

// WithConnector sets the handshake protocol implementation creating connections from invitations.
func WithConnector(c outofband.Connector) Option {
	return func(a *Agent) error {
		a.connector = c
		return nil
	}
}

// WithDIDServiceResolver resolves the DID services of received invitations.
func WithDIDServiceResolver(r outofband.DIDServiceResolver) Option {
	return func(a *Agent) error {
		a.resolver = r
		return nil
	}
}

// WithHTTPClient sets the client fetching invitations behind short URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Agent) error {
		a.httpClient = c
		return nil
	}
}

// WithKey sets the Ed25519 key the agent sends messages and signs credentials with.
func WithKey(key ed25519.PrivateKey) Option {
	return func(a *Agent) error {
		if len(key) != ed25519.PrivateKeySize {
			return errors.New("invalid ed25519 private key")
		}

		a.key = key

		return nil
	}
}

// WithHolderDID sets the subject DID of the credentials this agent requests.
func WithHolderDID(did string) Option {
	return func(a *Agent) error {
		a.holderDID = did
		return nil
	}
}

// WithCredentialOptions configures credential signing and verification, e.g. the JSON-LD document loader.
func WithCredentialOptions(opts ...vc.Opt) Option {
	return func(a *Agent) error {
		a.vcOpts = append(a.vcOpts, opts...)
		return nil
	}
}

// Context returns the provider handing the agent services to clients and controllers.
func (a *Agent) Context() *Provider {
	return &Provider{agent: a}
}

// InboundHandler returns the HTTP handler of the DIDComm inbound endpoint.
func (a *Agent) InboundHandler() (http.Handler, error) {
	return httptransport.NewInboundHandler(a.inbound.HandlerFunc())
}

// SenderKey returns the base58 public key the agent sends with.
func (a *Agent) SenderKey() string {
	return a.senderKey
}

// Credentials returns the credentials held by the agent.
func (a *Agent) Credentials() *credential.Store {
	return a.credentials
}

// RecordConnection stores a connection established outside of the agent, for instance by a
// handshake protocol plugged with WithConnector, and closes the invitation it was created from.
func (a *Agent) RecordConnection(rec *connection.Record) error {
	if err := a.connections.SaveConnectionRecord(rec); err != nil {
		return err
	}

	if !rec.IsReady() {
		return nil
	}

	if err := a.oob.ConnectionCompleted(rec); err != nil && !errors.Is(err, exchange.ErrNotFound) {
		return fmt.Errorf("complete invitation of connection %s: %w", rec.ConnectionID, err)
	}

	return nil
}

// Close stops the services and closes the store.
func (a *Agent) Close() error {
	if a.oob != nil {
		if err := a.oob.Close(); err != nil {
			return fmt.Errorf("failed to close the out-of-band service: %w", err)
		}
	}

	if a.storeProvider != nil {
		if err := a.storeProvider.Close(); err != nil {
			return fmt.Errorf("failed to close the store: %w", err)
		}
	}

	return nil
}

// handleMessage lets the out-of-band service dispatch embedded requests before the inbound
// handler exists.
func (a *Agent) handleMessage(ctx context.Context, msg service.DIDCommMsgMap, ictx *service.InboundContext) error {
	if a.inbound == nil {
		return errors.New("agent is not started")
	}

	return a.inbound.HandleMessage(ctx, msg, ictx)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/internal/logutil"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

// Name of this protocol service.
const Name = "out-of-band"

const (
	defaultReuseTimeout          = 15 * time.Second
	defaultConnectionWaitTimeout = 20 * time.Second
	defaultCacheSize             = 100
	defaultCacheTTL              = 10 * time.Minute

	// properties of the state events
	recordIDPropKey      = "recordID"
	invitationIDPropKey  = "invitationID"
	rolePropKey          = "role"
	connectionIDPropKey  = "connectionID"
	reuseThreadIDPropKey = "reuseThreadID"
)

var logger = log.New("aries-framework/outofband/service")

// Routing is where counterparts reach this agent for one invitation.
type Routing struct {
	Endpoint     string
	RecipientKey string
	RoutingKeys  []string
}

// Router hands out routing for new invitations, through the given mediator when one is named.
type Router interface {
	NewRouting(ctx context.Context, mediatorID string) (*Routing, error)
}

// ConnectOptions configure a connection established from a received invitation.
type ConnectOptions struct {
	Protocol   string
	Label      string
	Alias      string
	AutoAccept bool
	MediatorID string
}

// Connector runs the handshake protocols. AcceptInvitation starts the handshake and returns the
// id of the new connection, WaitReady blocks until that connection completes.
type Connector interface {
	AcceptInvitation(ctx context.Context, rec *Record, opts *ConnectOptions) (string, error)
	WaitReady(ctx context.Context, connectionID string) (*connection.Record, error)
}

// ConnectionLookup reads connection records.
type ConnectionLookup interface {
	FindByInvitationDID(invitationDID string) ([]*connection.Record, error)
	GetConnectionRecord(connectionID string) (*connection.Record, error)
}

// InboundDispatcher delivers the requests embedded in invitations to their protocol services.
type InboundDispatcher interface {
	HandleMessage(ctx context.Context, msg service.DIDCommMsgMap, ictx *service.InboundContext) error
}

// DIDServiceResolver resolves the DIDComm service of a public DID.
type DIDServiceResolver interface {
	ResolveService(did string) (*service.Destination, error)
}

// Provider contains dependencies for the out-of-band service.
type Provider interface {
	StorageProvider() storage.Provider
	Messenger() service.Messenger
	Router() Router
	Connections() ConnectionLookup
	Connector() Connector
	InboundDispatcher() InboundDispatcher
}

type options struct {
	reuseTimeout          time.Duration
	connectionWaitTimeout time.Duration
	handshakeProtocols    []string
	resolver              DIDServiceResolver
	httpClient            *http.Client
}

// Opt configures the service.
type Opt func(*options)

// WithReuseTimeout bounds the wait for a handshake-reuse-accepted message.
func WithReuseTimeout(d time.Duration) Opt {
	return func(o *options) {
		o.reuseTimeout = d
	}
}

// WithConnectionWaitTimeout bounds the wait for a new connection before its embedded requests are dispatched.
func WithConnectionWaitTimeout(d time.Duration) Opt {
	return func(o *options) {
		o.connectionWaitTimeout = d
	}
}

// WithHandshakeProtocols sets the supported handshake protocols, in order of preference.
func WithHandshakeProtocols(protocols ...string) Opt {
	return func(o *options) {
		o.handshakeProtocols = protocols
	}
}

// WithDIDServiceResolver resolves the DID services of invitations.
func WithDIDServiceResolver(r DIDServiceResolver) Opt {
	return func(o *options) {
		o.resolver = r
	}
}

// WithHTTPClient sets the client fetching invitations behind short URLs.
func WithHTTPClient(c *http.Client) Opt {
	return func(o *options) {
		o.httpClient = c
	}
}

// Service implements the out-of-band protocol with connection reuse.
type Service struct {
	service.Message
	store       *recordStore
	messenger   service.Messenger
	router      Router
	connections ConnectionLookup
	connector   Connector
	inbound     InboundDispatcher
	urls        *shortURLResolver
	reuse       *reuseWaiters
	opts        options
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates the out-of-band service.
func New(p Provider, opts ...Opt) (*Service, error) {
	o := options{
		reuseTimeout:          defaultReuseTimeout,
		connectionWaitTimeout: defaultConnectionWaitTimeout,
		handshakeProtocols:    []string{DIDExchangeProtocol, ConnectionsProtocol},
		httpClient:            &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(&o)
	}

	store, err := newRecordStore(p.StorageProvider())
	if err != nil {
		return nil, fmt.Errorf("new out-of-band service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		store:       store,
		messenger:   p.Messenger(),
		router:      p.Router(),
		connections: p.Connections(),
		connector:   p.Connector(),
		inbound:     p.InboundDispatcher(),
		urls:        newShortURLResolver(o.httpClient, defaultCacheSize, defaultCacheTTL),
		reuse:       newReuseWaiters(),
		opts:        o,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Name is this service's name.
func (s *Service) Name() string {
	return Name
}

// Accept reports whether the service handles the message type.
func (s *Service) Accept(msgType string) bool {
	return msgType == HandshakeReuseMsgType || msgType == HandshakeReuseAcceptedMsgType
}

// Close releases every call waiting for a handshake reuse and stops waiting for new connections.
func (s *Service) Close() error {
	s.cancel()
	s.reuse.close()
	s.wg.Wait()

	return nil
}

// CreateOptions configure a created invitation.
type CreateOptions struct {
	// ID of the invitation, generated when empty.
	ID                   string
	Label                string
	Goal                 string
	GoalCode             string
	ImageURL             string
	Alias                string
	HandshakeProtocols   []string
	Messages             []service.DIDCommMsgMap
	Services             []interface{}
	Reusable             bool
	AutoAcceptConnection bool
	MediatorID           string
}

// CreateInvitation creates an invitation and its sender record.
func (s *Service) CreateInvitation(ctx context.Context, opts *CreateOptions) (*Record, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}

	if len(opts.HandshakeProtocols) == 0 && len(opts.Messages) == 0 {
		return nil, exchange.NewValidationError(
			"an invitation needs handshake protocols, request messages or both")
	}

	if opts.Reusable && len(opts.Messages) > 0 {
		return nil, exchange.NewValidationError("a multi-use invitation cannot carry request messages")
	}

	for _, p := range opts.HandshakeProtocols {
		if !slices.Contains(s.opts.handshakeProtocols, p) {
			return nil, exchange.NewValidationError("unsupported handshake protocol %s", p)
		}
	}

	inv := &Invitation{
		ID:        opts.ID,
		Type:      InvitationMsgType,
		Label:     opts.Label,
		Goal:      opts.Goal,
		GoalCode:  opts.GoalCode,
		ImageURL:  opts.ImageURL,
		Accept:    DIDCommProfiles,
		Services:  opts.Services,
		Protocols: opts.HandshakeProtocols,
	}

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}

	if len(inv.Services) == 0 {
		inline, err := s.inlineService(ctx, opts.MediatorID)
		if err != nil {
			return nil, err
		}

		inv.Services = []interface{}{inline}
	}

	for _, msg := range opts.Messages {
		if pthid := msg.ParentThreadID(); pthid != "" && pthid != inv.ID {
			return nil, exchange.NewValidationError("request %s has parent thread id %s, expected invitation %s",
				msg.ID(), pthid, inv.ID)
		}

		attachment, err := requestAttachment(msg)
		if err != nil {
			return nil, err
		}

		inv.Requests = append(inv.Requests, attachment)
	}

	rec, err := s.newRecord(RoleSender, StateAwaitResponse, inv, InvitationTypeOutOfBand)
	if err != nil {
		return nil, err
	}

	rec.Reusable = opts.Reusable
	rec.AutoAcceptConnection = opts.AutoAcceptConnection
	rec.MediatorID = opts.MediatorID
	rec.Alias = opts.Alias

	if err = s.store.save(rec); err != nil {
		return nil, err
	}

	logutil.LogDebug(logger, Name, "CreateInvitation", "invitation created",
		logutil.CreateKeyValueString("recordID", rec.ID),
		logutil.CreateKeyValueString("invitationID", inv.ID))

	s.notify(rec, nil, nil)

	return rec, nil
}

// CreateLegacyConnectionlessInvitation decorates the message with this agent's ~service and returns
// the `d_m` URL carrying it on the given domain, with the sender record tracking it.
func (s *Service) CreateLegacyConnectionlessInvitation(ctx context.Context, domain string,
	msg service.DIDCommMsgMap, mediatorID string) (string, *Record, error) {
	if msg.ID() == "" {
		msg.SetID(uuid.New().String())
	}

	routing, err := s.router.NewRouting(ctx, mediatorID)
	if err != nil {
		return "", nil, fmt.Errorf("routing for connection-less invitation: %w", err)
	}

	decorated := msg.Clone()
	decorated["~service"] = map[string]interface{}(service.NewDIDCommMsgMap(&decorator.Service{
		RecipientKeys:   []string{routing.RecipientKey},
		RoutingKeys:     routing.RoutingKeys,
		ServiceEndpoint: routing.Endpoint,
	}))

	inv, err := ConvertConnectionlessMessage(decorated)
	if err != nil {
		return "", nil, err
	}

	rec, err := s.newRecord(RoleSender, StateAwaitResponse, inv, InvitationTypeConnectionless)
	if err != nil {
		return "", nil, err
	}

	rec.MediatorID = mediatorID

	invURL, err := invitationURL(domain, connectionlessParam, decorated)
	if err != nil {
		return "", nil, err
	}

	if err = s.store.save(rec); err != nil {
		return "", nil, err
	}

	s.notify(rec, decorated, nil)

	return invURL, rec, nil
}

// InvitationURL encodes the invitation of the record on the given domain. Invitations received or
// created in the connections/1.0 shape keep it.
func InvitationURL(domain string, inv *Invitation, kind InvitationType) (string, error) {
	if kind == InvitationTypeConnection {
		legacy, err := ToLegacyInvitation(inv)
		if err != nil {
			return "", err
		}

		return invitationURL(domain, connectionParam, legacy)
	}

	return invitationURL(domain, oobParam, inv)
}

// ReceiveOptions configure a received invitation and its acceptance.
type ReceiveOptions struct {
	Label                string
	Alias                string
	ImageURL             string
	MediatorID           string
	AutoAcceptConnection bool
	// ReuseConnection reuses a ready connection with the inviter instead of creating a new one.
	ReuseConnection bool
	// ManualAccept leaves the record in the initial state, AcceptInvitation is called later.
	ManualAccept   bool
	InvitationType InvitationType
	// Implicit invitations are built from a public DID, they may be received more than once.
	Implicit bool
}

func (o *ReceiveOptions) accept() *AcceptOptions {
	return &AcceptOptions{
		Label:                o.Label,
		Alias:                o.Alias,
		MediatorID:           o.MediatorID,
		AutoAcceptConnection: o.AutoAcceptConnection,
		ReuseConnection:      o.ReuseConnection,
	}
}

// ReceiveInvitation stores a received invitation and accepts it unless asked otherwise. The id of
// the connection the invitation resolved to is returned, empty for connection-less invitations.
func (s *Service) ReceiveInvitation(ctx context.Context, inv *Invitation, opts *ReceiveOptions) (*Record, string, error) {
	if opts == nil {
		opts = &ReceiveOptions{}
	}

	if inv == nil {
		return nil, "", exchange.NewValidationError("no invitation")
	}

	if err := inv.validate(); err != nil {
		return nil, "", &exchange.ValidationError{Msg: "invalid invitation", Err: err}
	}

	kind := opts.InvitationType
	if kind == "" {
		kind = InvitationTypeOutOfBand
	}

	rec, err := s.newRecord(RoleReceiver, StateInitial, inv, kind)
	if err != nil {
		return nil, "", err
	}

	rec.Alias = opts.Alias
	rec.MediatorID = opts.MediatorID
	rec.AutoAcceptConnection = opts.AutoAcceptConnection
	rec.Implicit = opts.Implicit

	save := s.store.saveReceived
	if opts.Implicit {
		save = s.store.save
	}

	if err = save(rec); err != nil {
		return nil, "", err
	}

	s.notify(rec, nil, nil)

	if opts.ManualAccept {
		return rec, "", nil
	}

	return s.AcceptInvitation(ctx, rec.ID, opts.accept())
}

// ReceiveInvitationFromURL receives the invitation carried by the URL, fetching it for short URLs.
func (s *Service) ReceiveInvitationFromURL(ctx context.Context, invitationURL string,
	opts *ReceiveOptions) (*Record, string, error) {
	inv, kind, err := s.urls.resolve(ctx, invitationURL)
	if err != nil {
		return nil, "", &exchange.ValidationError{Msg: "invitation url", Err: err}
	}

	if opts == nil {
		opts = &ReceiveOptions{}
	}

	received := *opts
	received.InvitationType = kind

	return s.ReceiveInvitation(ctx, inv, &received)
}

// ReceiveImplicitInvitation receives an invitation made of the public DID of the inviter.
func (s *Service) ReceiveImplicitInvitation(ctx context.Context, did string, protocols []string,
	opts *ReceiveOptions) (*Record, string, error) {
	if did == "" {
		return nil, "", exchange.NewValidationError("implicit invitation needs a did")
	}

	if len(protocols) == 0 {
		protocols = s.opts.handshakeProtocols
	}

	if opts == nil {
		opts = &ReceiveOptions{}
	}

	received := *opts
	received.Implicit = true

	inv := &Invitation{
		ID:        did,
		Type:      InvitationMsgType,
		Label:     opts.Label,
		ImageURL:  opts.ImageURL,
		Services:  []interface{}{did},
		Protocols: protocols,
	}

	return s.ReceiveInvitation(ctx, inv, &received)
}

// AcceptOptions configure the acceptance of a received invitation.
type AcceptOptions struct {
	Label                string
	Alias                string
	MediatorID           string
	AutoAcceptConnection bool
	ReuseConnection      bool
}

// AcceptInvitation resolves a received invitation to a connection, reusing an existing one when
// asked, and dispatches the embedded requests. The id of that connection is returned.
func (s *Service) AcceptInvitation(ctx context.Context, recordID string, opts *AcceptOptions) (*Record, string, error) {
	if opts == nil {
		opts = &AcceptOptions{}
	}

	rec, err := s.store.update(recordID, func(rec *Record) error {
		return rec.move(actionAccept)
	})
	if err != nil {
		return nil, "", err
	}

	s.notify(rec, nil, nil)

	inv := rec.Invitation

	messages, err := inv.RequestMessages()
	if err != nil {
		return nil, "", &exchange.ValidationError{Msg: "invitation requests", Err: err}
	}

	var existing *connection.Record

	if opts.ReuseConnection {
		if existing, err = s.findExistingConnection(inv); err != nil {
			return nil, "", err
		}
	}

	if len(inv.Protocols) == 0 {
		if existing != nil {
			return s.dispatchOnConnection(ctx, rec, existing.ConnectionID, messages)
		}

		return s.dispatchConnectionless(ctx, rec, messages)
	}

	if existing != nil {
		if len(messages) > 0 {
			return s.dispatchOnConnection(ctx, rec, existing.ConnectionID, messages)
		}

		reused, err := s.handshakeReuse(ctx, rec, existing.ConnectionID)
		if err != nil {
			return nil, "", err
		}

		if reused != nil {
			return reused, existing.ConnectionID, nil
		}

		logutil.LogWarn(logger, Name, "AcceptInvitation", "handshake reuse failed, creating a new connection",
			logutil.CreateKeyValueString("recordID", rec.ID),
			logutil.CreateKeyValueString("connectionID", existing.ConnectionID))
	}

	return s.connect(ctx, rec, messages, opts)
}

func (s *Service) connect(ctx context.Context, rec *Record, messages []service.DIDCommMsgMap,
	opts *AcceptOptions) (*Record, string, error) {
	protocol := ""

	for _, p := range rec.Invitation.Protocols {
		if slices.Contains(s.opts.handshakeProtocols, p) {
			protocol = p

			break
		}
	}

	if protocol == "" {
		return nil, "", exchange.NewValidationError("none of the handshake protocols %v is supported",
			rec.Invitation.Protocols)
	}

	if s.ctx.Err() != nil {
		return nil, "", errors.New("out-of-band service is closed")
	}

	connID, err := s.connector.AcceptInvitation(ctx, rec, &ConnectOptions{
		Protocol:   protocol,
		Label:      opts.Label,
		Alias:      opts.Alias,
		AutoAccept: opts.AutoAcceptConnection,
		MediatorID: opts.MediatorID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("connect over %s: %w", protocol, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.completeWhenReady(rec.ID, connID, messages)
	}()

	return rec, connID, nil
}

// completeWhenReady waits for the new connection, dispatches the requests over it and closes the record.
func (s *Service) completeWhenReady(recordID, connID string, messages []service.DIDCommMsgMap) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.connectionWaitTimeout)
	defer cancel()

	if _, err := s.connector.WaitReady(ctx, connID); err != nil {
		logutil.LogError(logger, Name, "completeWhenReady", err.Error(),
			logutil.CreateKeyValueString("recordID", recordID),
			logutil.CreateKeyValueString("connectionID", connID))

		return
	}

	rec, err := s.store.get(recordID)
	if err != nil {
		logutil.LogError(logger, Name, "completeWhenReady", err.Error(),
			logutil.CreateKeyValueString("recordID", recordID))

		return
	}

	if _, _, err = s.dispatchOnConnection(ctx, rec, connID, messages); err != nil {
		logutil.LogError(logger, Name, "completeWhenReady", err.Error(),
			logutil.CreateKeyValueString("recordID", recordID),
			logutil.CreateKeyValueString("connectionID", connID))
	}
}

func (s *Service) dispatchOnConnection(ctx context.Context, rec *Record, connID string,
	messages []service.DIDCommMsgMap) (*Record, string, error) {
	err := s.dispatch(ctx, rec, messages, &service.InboundContext{ConnectionID: connID})
	if err != nil {
		return nil, "", err
	}

	done, err := s.complete(rec.ID, nil)
	if err != nil {
		return nil, "", err
	}

	return done, connID, nil
}

func (s *Service) dispatchConnectionless(ctx context.Context, rec *Record,
	messages []service.DIDCommMsgMap) (*Record, string, error) {
	dest, err := s.destination(rec.Invitation)
	if err != nil {
		return nil, "", err
	}

	if err = s.dispatch(ctx, rec, messages, &service.InboundContext{TheirService: dest}); err != nil {
		return nil, "", err
	}

	done, err := s.complete(rec.ID, nil)
	if err != nil {
		return nil, "", err
	}

	return done, "", nil
}

// dispatch hands every request to its protocol service, linked to the invitation thread.
func (s *Service) dispatch(ctx context.Context, rec *Record, messages []service.DIDCommMsgMap,
	ictx *service.InboundContext) error {
	for _, msg := range messages {
		if err := ensureParentThreadID(rec, msg); err != nil {
			return err
		}

		inbound := *ictx
		inbound.OutOfBandID = rec.Invitation.ID

		if err := s.inbound.HandleMessage(ctx, msg, &inbound); err != nil {
			return fmt.Errorf("dispatch request %s of invitation %s: %w", msg.ID(), rec.Invitation.ID, err)
		}
	}

	return nil
}

// ensureParentThreadID links the request to the invitation. Requests converted from legacy
// connection-less messages are left without parent thread.
func ensureParentThreadID(rec *Record, msg service.DIDCommMsgMap) error {
	pthid := msg.ParentThreadID()

	if pthid != "" && pthid != rec.Invitation.ID {
		return exchange.NewValidationError("request %s has parent thread id %s, expected invitation %s",
			msg.ID(), pthid, rec.Invitation.ID)
	}

	if pthid != "" || rec.InvitationType == InvitationTypeConnectionless {
		return nil
	}

	msg.SetThread("", rec.Invitation.ID)

	return nil
}

// handshakeReuse sends a handshake-reuse over the connection and waits for its acceptance. A nil
// record means the reuse failed and a new connection is needed.
func (s *Service) handshakeReuse(ctx context.Context, rec *Record, connID string) (*Record, error) {
	reuse := &HandshakeReuse{
		ID:   uuid.New().String(),
		Type: HandshakeReuseMsgType,
	}
	reuse.Thread = &decorator.Thread{ID: reuse.ID, PID: rec.Invitation.ID}

	w := s.reuse.add(reuse.ID, rec.ID, connID)

	if err := s.messenger.Send(ctx, service.NewDIDCommMsgMap(reuse), &service.Target{ConnectionID: connID}); err != nil {
		s.reuse.remove(reuse.ID)

		logutil.LogWarn(logger, Name, "handshakeReuse", err.Error(),
			logutil.CreateKeyValueString("recordID", rec.ID),
			logutil.CreateKeyValueString("connectionID", connID))

		return nil, nil
	}

	if err := s.reuse.wait(ctx, reuse.ID, w, s.opts.reuseTimeout); err != nil {
		return nil, nil // nolint: nilerr
	}

	return s.store.get(rec.ID)
}

// HandleInbound handles the handshake-reuse messages. The id of the affected record is returned.
func (s *Service) HandleInbound(ctx context.Context, msg service.DIDCommMsg,
	ictx *service.InboundContext) (string, error) {
	logger.Debugf("receive inbound message: %s", msg.Type())

	switch msg.Type() {
	case HandshakeReuseMsgType:
		return s.receiveReuse(ctx, msg, ictx)
	case HandshakeReuseAcceptedMsgType:
		return s.receiveReuseAccepted(msg, ictx)
	default:
		return "", fmt.Errorf("unsupported message type %s", msg.Type())
	}
}

func (s *Service) receiveReuse(ctx context.Context, msg service.DIDCommMsg,
	ictx *service.InboundContext) (string, error) {
	pthid := msg.ParentThreadID()
	if pthid == "" {
		return "", exchange.NewValidationError("handshake-reuse %s has no parent thread id", msg.ID())
	}

	thid, err := msg.ThreadID()
	if err != nil {
		return "", &exchange.ValidationError{Msg: "handshake-reuse thread", Err: err}
	}

	if ictx.IsConnectionless() {
		return "", exchange.NewValidationError("handshake-reuse %s did not arrive over a connection", msg.ID())
	}

	rec, err := s.FindByCreatedInvitationID(pthid)
	if err != nil {
		return "", err
	}

	if len(rec.Invitation.Requests) > 0 {
		return "", exchange.NewValidationError("invitation %s carries requests, its connection cannot be reused",
			pthid)
	}

	conn, err := s.connections.GetConnectionRecord(ictx.ConnectionID)
	if err != nil {
		return "", fmt.Errorf("handshake-reuse connection: %w", err)
	}

	if !conn.IsReady() {
		return "", exchange.NewValidationError("connection %s is not ready", conn.ConnectionID)
	}

	rec, err = s.store.update(rec.ID, func(r *Record) error {
		if err := r.move(actionReceiveReuse); err != nil {
			return err
		}

		r.ReuseConnectionID = conn.ConnectionID

		return nil
	})
	if err != nil {
		return "", err
	}

	s.notifyReuse(rec, msg, thid, conn.ConnectionID)

	accepted := &HandshakeReuseAccepted{
		ID:     uuid.New().String(),
		Type:   HandshakeReuseAcceptedMsgType,
		Thread: &decorator.Thread{ID: thid, PID: pthid},
	}

	if err = s.messenger.Send(ctx, service.NewDIDCommMsgMap(accepted), service.TargetFromInbound(ictx)); err != nil {
		return rec.ID, fmt.Errorf("send handshake-reuse-accepted: %w", err)
	}

	return rec.ID, nil
}

// receiveReuseAccepted releases the AcceptInvitation call waiting on the thread. A message for
// another record or over another connection fails the reuse.
func (s *Service) receiveReuseAccepted(msg service.DIDCommMsg, ictx *service.InboundContext) (string, error) {
	thid, err := msg.ThreadID()
	if err != nil {
		return "", &exchange.ValidationError{Msg: "handshake-reuse-accepted thread", Err: err}
	}

	w := s.reuse.get(thid)
	if w == nil {
		return "", &exchange.NotFoundError{Kind: "handshake reuse", Key: thid}
	}

	rec, err := s.store.get(w.oobID)
	if err != nil {
		w.resolve(false)

		return "", err
	}

	connID := ""
	if ictx != nil {
		connID = ictx.ConnectionID
	}

	if rec.Invitation.ID != msg.ParentThreadID() || w.connID != connID {
		logutil.LogWarn(logger, Name, "receiveReuseAccepted", "handshake-reuse-accepted does not match the reuse",
			logutil.CreateKeyValueString("recordID", rec.ID),
			logutil.CreateKeyValueString("connectionID", connID))

		w.resolve(false)

		return rec.ID, nil
	}

	rec, err = s.store.update(rec.ID, func(r *Record) error {
		if err := r.move(actionReceiveReuseAccepted); err != nil {
			return err
		}

		r.ReuseConnectionID = connID

		return nil
	})
	if err != nil {
		w.resolve(false)

		return "", err
	}

	s.notifyReuse(rec, msg, thid, connID)

	w.resolve(true)

	return rec.ID, nil
}

// ConnectionCompleted closes the sender record of the invitation the connection was created from.
// Multi-use invitations stay open.
func (s *Service) ConnectionCompleted(conn *connection.Record) error {
	var (
		rec *Record
		err error
	)

	switch {
	case conn.OutOfBandID != "":
		rec, err = s.store.get(conn.OutOfBandID)
	case conn.InvitationID != "":
		rec, err = s.FindByCreatedInvitationID(conn.InvitationID)
	default:
		return nil
	}

	if err != nil {
		return err
	}

	if rec.Role != RoleSender {
		return nil
	}

	_, err = s.complete(rec.ID, nil)

	return err
}

func (s *Service) complete(recordID string, msg service.DIDCommMsg) (*Record, error) {
	rec, err := s.store.update(recordID, func(r *Record) error {
		return r.move(actionComplete)
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, msg, nil)

	return rec, nil
}

// FindByReceivedInvitationID returns the receiver record of the invitation.
func (s *Service) FindByReceivedInvitationID(invitationID string) (*Record, error) {
	return s.findOne(&Query{Role: RoleReceiver, InvitationID: invitationID})
}

// FindByCreatedInvitationID returns the sender record of the invitation.
func (s *Service) FindByCreatedInvitationID(invitationID string) (*Record, error) {
	return s.findOne(&Query{Role: RoleSender, InvitationID: invitationID})
}

// FindCreatedByRecipientKey returns the sender record of the invitation advertising the key.
func (s *Service) FindCreatedByRecipientKey(recipientKey string) (*Record, error) {
	fp, err := keyFingerprint(recipientKey)
	if err != nil {
		return nil, &exchange.ValidationError{Msg: "recipient key", Err: err}
	}

	return s.findOne(&Query{Role: RoleSender, RecipientKeyFingerprint: fp})
}

// FindAllByQuery returns the records matching the query, every record for a nil query.
func (s *Service) FindAllByQuery(q *Query) ([]*Record, error) {
	return s.store.query(q)
}

// Get returns the record with the given id.
func (s *Service) Get(recordID string) (*Record, error) {
	return s.store.get(recordID)
}

// DeleteByID removes the record with the given id.
func (s *Service) DeleteByID(recordID string) error {
	return s.store.delete(recordID)
}

func (s *Service) findOne(q *Query) (*Record, error) {
	records, err := s.store.query(q)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &exchange.NotFoundError{
			Kind: "out-of-band record",
			Key:  fmt.Sprintf("%s invitation %s%s", q.Role, q.InvitationID, q.RecipientKeyFingerprint),
		}
	}

	return records[0], nil
}

func (s *Service) newRecord(role Role, state State, inv *Invitation, kind InvitationType) (*Record, error) {
	fingerprints, err := s.fingerprints(inv)
	if err != nil {
		return nil, err
	}

	return &Record{
		ID:                       uuid.New().String(),
		Role:                     role,
		State:                    state,
		Invitation:               inv,
		InvitationType:           kind,
		RecipientKeyFingerprints: fingerprints,
		ThreadID:                 inv.ThreadID(),
		CreatedAt:                time.Now().UTC(),
	}, nil
}

// fingerprints returns the fingerprints of the first recipient key of every service. DID services
// count only when a resolver is configured.
func (s *Service) fingerprints(inv *Invitation) ([]string, error) {
	keys, err := s.recipientKeys(inv)
	if err != nil {
		return nil, err
	}

	fingerprints := make([]string, 0, len(keys))

	for _, key := range keys {
		fp, err := keyFingerprint(key)
		if err != nil {
			return nil, &exchange.ValidationError{Msg: "invitation recipient key", Err: err}
		}

		if !slices.Contains(fingerprints, fp) {
			fingerprints = append(fingerprints, fp)
		}
	}

	return fingerprints, nil
}

func (s *Service) recipientKeys(inv *Invitation) ([]string, error) {
	inline, err := inv.InlineServices()
	if err != nil {
		return nil, &exchange.ValidationError{Msg: "invitation services", Err: err}
	}

	var keys []string

	for _, svc := range inline {
		if len(svc.RecipientKeys) > 0 {
			keys = append(keys, svc.RecipientKeys[0])
		}
	}

	if s.opts.resolver == nil {
		return keys, nil
	}

	for _, did := range inv.ServiceDIDs() {
		dest, err := s.opts.resolver.ResolveService(did)
		if err != nil {
			logger.Warnf("resolve service of %s: %v", did, err)

			continue
		}

		if len(dest.RecipientKeys) > 0 {
			keys = append(keys, dest.RecipientKeys[0])
		}
	}

	return keys, nil
}

// findExistingConnection returns a ready connection created from the invitation DID or from one of
// its inline service keys, nil when there is none.
func (s *Service) findExistingConnection(inv *Invitation) (*connection.Record, error) {
	candidates := inv.ServiceDIDs()

	inline, err := inv.InlineServices()
	if err != nil {
		return nil, &exchange.ValidationError{Msg: "invitation services", Err: err}
	}

	for _, svc := range inline {
		if len(svc.RecipientKeys) > 0 {
			candidates = append(candidates, service.ConvertAnyB58Keys(svc.RecipientKeys[:1])[0])
		}
	}

	for _, did := range candidates {
		records, err := s.connections.FindByInvitationDID(did)
		if err != nil && !errors.Is(err, connection.ErrNotFound) {
			return nil, fmt.Errorf("find connections of %s: %w", did, err)
		}

		for _, conn := range records {
			if conn.IsReady() {
				return conn, nil
			}
		}
	}

	return nil, nil
}

// destination returns where connection-less replies to the invitation go.
func (s *Service) destination(inv *Invitation) (*service.Destination, error) {
	inline, err := inv.InlineServices()
	if err != nil {
		return nil, &exchange.ValidationError{Msg: "invitation services", Err: err}
	}

	if len(inline) > 0 {
		dest, err := inline[0].Destination()
		if err != nil {
			return nil, &exchange.ValidationError{Msg: "invitation service", Err: err}
		}

		return dest, nil
	}

	dids := inv.ServiceDIDs()
	if len(dids) == 0 || s.opts.resolver == nil {
		return nil, exchange.NewValidationError("invitation %s has no service to reply to", inv.ID)
	}

	dest, err := s.opts.resolver.ResolveService(dids[0])
	if err != nil {
		return nil, fmt.Errorf("resolve service of %s: %w", dids[0], err)
	}

	return dest, nil
}

func (s *Service) inlineService(ctx context.Context, mediatorID string) (*InlineService, error) {
	routing, err := s.router.NewRouting(ctx, mediatorID)
	if err != nil {
		return nil, fmt.Errorf("routing for invitation: %w", err)
	}

	return &InlineService{
		ID:              "#inline-0",
		Type:            InlineServiceType,
		RecipientKeys:   service.ConvertAnyB58Keys([]string{routing.RecipientKey}),
		RoutingKeys:     service.ConvertAnyB58Keys(routing.RoutingKeys),
		ServiceEndpoint: routing.Endpoint,
	}, nil
}

func (s *Service) notify(rec *Record, msg service.DIDCommMsg, props service.PropertiesMap) {
	if props == nil {
		props = service.PropertiesMap{}
	}

	props[recordIDPropKey] = rec.ID
	props[invitationIDPropKey] = rec.Invitation.ID
	props[rolePropKey] = string(rec.Role)

	s.Notify(service.StateMsg{
		ProtocolName: Name,
		Type:         service.PostState,
		StateID:      string(rec.State),
		Msg:          msg,
		Properties:   props,
	})
}

func (s *Service) notifyReuse(rec *Record, msg service.DIDCommMsg, thid, connID string) {
	s.notify(rec, msg, service.PropertiesMap{
		connectionIDPropKey:  connID,
		reuseThreadIDPropKey: thid,
	})
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/outofband"
)

type (
	// Invitation is this protocol's `invitation` message.
	Invitation outofband.Invitation
	// Record tracks one invitation, sent or received.
	Record = outofband.Record
	// Query selects records.
	Query = outofband.Query
)

const (
	// InvitationMsgType is the '@type' for the invitation message.
	InvitationMsgType = outofband.InvitationMsgType
)

// Event is a container of out-of-band protocol-specific properties for StateMsgs.
type Event interface {
	// RecordID of the out-of-band record.
	RecordID() string
	// InvitationID of the invitation the record tracks.
	InvitationID() string
	// ConnectionID of a reused connection, empty otherwise.
	ConnectionID() string
}

type event struct {
	props map[string]interface{}
}

func (e *event) value(key string) string {
	s, _ := e.props[key].(string) // nolint: errcheck

	return s
}

func (e *event) RecordID() string     { return e.value("recordID") }
func (e *event) InvitationID() string { return e.value("invitationID") }
func (e *event) ConnectionID() string { return e.value("connectionID") }

// EventOf returns the out-of-band properties of a state message.
func EventOf(msg service.StateMsg) (Event, error) {
	if msg.ProtocolName != outofband.Name {
		return nil, fmt.Errorf("state message of protocol %s", msg.ProtocolName)
	}

	if msg.Properties == nil {
		return nil, errors.New("state message has no properties")
	}

	return &event{props: msg.Properties.All()}, nil
}

// MessageOption allow you to customize the way out-of-band messages are built and accepted.
type MessageOption func(*message)

type message struct {
	InvitationID       string
	Label              string
	Goal               string
	GoalCode           string
	ImageURL           string
	Alias              string
	RouterConnections  []string
	Services           []interface{}
	HandshakeProtocols []string
	Messages           []service.DIDCommMsgMap
	MultiUse           bool
	AutoAccept         bool
	ReuseConnection    bool
	ManualAccept       bool
}

func (m *message) RouterConnection() string {
	if len(m.RouterConnections) == 0 {
		return ""
	}

	return m.RouterConnections[0]
}

func newMessage(opts []MessageOption) *message {
	msg := &message{}

	for _, opt := range opts {
		opt(msg)
	}

	return msg
}

func (m *message) receiveOptions() *outofband.ReceiveOptions {
	return &outofband.ReceiveOptions{
		Label:                m.Label,
		Alias:                m.Alias,
		ImageURL:             m.ImageURL,
		MediatorID:           m.RouterConnection(),
		AutoAcceptConnection: m.AutoAccept,
		ReuseConnection:      m.ReuseConnection,
		ManualAccept:         m.ManualAccept,
	}
}

// OobService defines the outofband service.
type OobService interface {
	RegisterMsgEvent(ch chan<- service.StateMsg) error
	UnregisterMsgEvent(ch chan<- service.StateMsg) error
	CreateInvitation(ctx context.Context, opts *outofband.CreateOptions) (*outofband.Record, error)
	CreateLegacyConnectionlessInvitation(ctx context.Context, domain string, msg service.DIDCommMsgMap,
		mediatorID string) (string, *outofband.Record, error)
	ReceiveInvitation(ctx context.Context, inv *outofband.Invitation,
		opts *outofband.ReceiveOptions) (*outofband.Record, string, error)
	ReceiveInvitationFromURL(ctx context.Context, invitationURL string,
		opts *outofband.ReceiveOptions) (*outofband.Record, string, error)
	ReceiveImplicitInvitation(ctx context.Context, did string, protocols []string,
		opts *outofband.ReceiveOptions) (*outofband.Record, string, error)
	AcceptInvitation(ctx context.Context, recordID string,
		opts *outofband.AcceptOptions) (*outofband.Record, string, error)
	FindAllByQuery(q *outofband.Query) ([]*outofband.Record, error)
	Get(recordID string) (*outofband.Record, error)
	DeleteByID(recordID string) error
}

// Provider provides the dependencies for the client.
type Provider interface {
	ServiceEndpoint() string
	Service(id string) (interface{}, error)
}

// Client for the Out-Of-Band protocol:
// https://github.com/hyperledger/aries-rfcs/blob/master/features/0434-outofband/README.md
type Client struct {
	oobService OobService
	domain     string
}

// New returns a new Client for the Out-Of-Band protocol.
func New(p Provider) (*Client, error) {
	s, err := p.Service(outofband.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up service %s : %w", outofband.Name, err)
	}

	oobSvc, ok := s.(OobService)
	if !ok {
		return nil, fmt.Errorf("failed to cast service %s as a dependency", outofband.Name)
	}

	return &Client{
		oobService: oobSvc,
		domain:     p.ServiceEndpoint(),
	}, nil
}

// RegisterMsgEvent registers a channel for the out-of-band state messages.
func (c *Client) RegisterMsgEvent(ch chan<- service.StateMsg) error {
	return c.oobService.RegisterMsgEvent(ch)
}

// UnregisterMsgEvent unregisters a channel registered with RegisterMsgEvent.
func (c *Client) UnregisterMsgEvent(ch chan<- service.StateMsg) error {
	return c.oobService.UnregisterMsgEvent(ch)
}

// NewInvitationID returns an id for an invitation created later with WithInvitationID. Requests
// embedded in that invitation use it as their parent thread id.
func NewInvitationID() string {
	return uuid.New().String()
}

// CreateInvitation creates and saves an out-of-band invitation.
// Services are optional, a default inline service is assigned when none is given.
func (c *Client) CreateInvitation(ctx context.Context, opts ...MessageOption) (*Invitation, error) {
	rec, err := c.createInvitation(ctx, newMessage(opts))
	if err != nil {
		return nil, err
	}

	inv := Invitation(*rec.Invitation)

	return &inv, nil
}

// CreateInvitationURL creates an invitation and returns it encoded in a URL on the agent endpoint.
func (c *Client) CreateInvitationURL(ctx context.Context, opts ...MessageOption) (string, *Invitation, error) {
	inv, err := c.CreateInvitation(ctx, opts...)
	if err != nil {
		return "", nil, err
	}

	invURL, err := outofband.InvitationURL(c.domain, (*outofband.Invitation)(inv), outofband.InvitationTypeOutOfBand)
	if err != nil {
		return "", nil, fmt.Errorf("encode invitation : %w", err)
	}

	return invURL, inv, nil
}

// CreateConnectionlessURL returns a legacy `d_m` URL carrying the message with this agent's ~service.
func (c *Client) CreateConnectionlessURL(ctx context.Context, msg service.DIDCommMsgMap,
	opts ...MessageOption) (string, error) {
	m := newMessage(opts)

	invURL, _, err := c.oobService.CreateLegacyConnectionlessInvitation(ctx, c.domain, msg, m.RouterConnection())
	if err != nil {
		return "", fmt.Errorf("failed to create connection-less invitation : %w", err)
	}

	return invURL, nil
}

func (c *Client) createInvitation(ctx context.Context, m *message) (*outofband.Record, error) {
	protocols := m.HandshakeProtocols
	if len(protocols) == 0 && len(m.Messages) == 0 {
		protocols = []string{outofband.DIDExchangeProtocol}
	}

	rec, err := c.oobService.CreateInvitation(ctx, &outofband.CreateOptions{
		ID:                   m.InvitationID,
		Label:                m.Label,
		Goal:                 m.Goal,
		GoalCode:             m.GoalCode,
		ImageURL:             m.ImageURL,
		Alias:                m.Alias,
		HandshakeProtocols:   protocols,
		Messages:             m.Messages,
		Services:             m.Services,
		Reusable:             m.MultiUse,
		AutoAcceptConnection: m.AutoAccept,
		MediatorID:           m.RouterConnection(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save outofband invitation : %w", err)
	}

	return rec, nil
}

// AcceptInvitation from another agent and return the ID of the connection the invitation resolved to.
// The ID is empty for invitations answered without a connection.
func (c *Client) AcceptInvitation(ctx context.Context, i *Invitation, opts ...MessageOption) (string, error) {
	cast := outofband.Invitation(*i)

	_, connID, err := c.oobService.ReceiveInvitation(ctx, &cast, newMessage(opts).receiveOptions())
	if err != nil {
		return "", fmt.Errorf("out-of-band service failed to accept invitation : %w", err)
	}

	return connID, nil
}

// AcceptInvitationURL accepts the invitation carried by the URL.
func (c *Client) AcceptInvitationURL(ctx context.Context, invitationURL string, opts ...MessageOption) (string, error) {
	_, connID, err := c.oobService.ReceiveInvitationFromURL(ctx, invitationURL, newMessage(opts).receiveOptions())
	if err != nil {
		return "", fmt.Errorf("out-of-band service failed to accept invitation url : %w", err)
	}

	return connID, nil
}

// ConnectToPublicDID connects to the owner of the public DID without an invitation.
func (c *Client) ConnectToPublicDID(ctx context.Context, did string, opts ...MessageOption) (string, error) {
	m := newMessage(opts)

	_, connID, err := c.oobService.ReceiveImplicitInvitation(ctx, did, m.HandshakeProtocols, m.receiveOptions())
	if err != nil {
		return "", fmt.Errorf("out-of-band service failed to connect to %s : %w", did, err)
	}

	return connID, nil
}

// ActionContinue accepts an invitation received with WithManualAccept.
func (c *Client) ActionContinue(ctx context.Context, recordID string, opts ...MessageOption) (string, error) {
	m := newMessage(opts)

	_, connID, err := c.oobService.AcceptInvitation(ctx, recordID, &outofband.AcceptOptions{
		Label:                m.Label,
		Alias:                m.Alias,
		MediatorID:           m.RouterConnection(),
		AutoAcceptConnection: m.AutoAccept,
		ReuseConnection:      m.ReuseConnection,
	})
	if err != nil {
		return "", fmt.Errorf("out-of-band service failed to continue %s : %w", recordID, err)
	}

	return connID, nil
}

// Records returns the records matching the query, every record for a nil query.
func (c *Client) Records(q *Query) ([]*Record, error) {
	return c.oobService.FindAllByQuery(q)
}

// Record returns the record with the given id.
func (c *Client) Record(recordID string) (*Record, error) {
	return c.oobService.Get(recordID)
}

// RemoveRecord removes the record with the given id.
func (c *Client) RemoveRecord(recordID string) error {
	return c.oobService.DeleteByID(recordID)
}

// WithInvitationID sets the id of the invitation, see NewInvitationID.
func WithInvitationID(id string) MessageOption {
	return func(m *message) {
		m.InvitationID = id
	}
}

// WithLabel allows you to specify the label on the message.
func WithLabel(l string) MessageOption {
	return func(m *message) {
		m.Label = l
	}
}

// WithGoal allows you to specify the `goal` and `goalCode` for the message.
func WithGoal(goal, goalCode string) MessageOption {
	return func(m *message) {
		m.Goal = goal
		m.GoalCode = goalCode
	}
}

// WithImageURL sets the image shown with the invitation.
func WithImageURL(u string) MessageOption {
	return func(m *message) {
		m.ImageURL = u
	}
}

// WithAlias sets the local alias of the counterpart.
func WithAlias(alias string) MessageOption {
	return func(m *message) {
		m.Alias = alias
	}
}

// WithRouterConnections allows you to specify the router connections.
func WithRouterConnections(conn ...string) MessageOption {
	return func(m *message) {
		for _, c := range conn {
			// filters out empty connections
			if c != "" {
				m.RouterConnections = append(m.RouterConnections, c)
			}
		}
	}
}

// WithServices sets the services of the invitation: DIDs or inline services.
func WithServices(svcs ...interface{}) MessageOption {
	return func(m *message) {
		m.Services = svcs
	}
}

// WithHandshakeProtocols allows you to customize the handshake_protocols to include in the Invitation.
func WithHandshakeProtocols(proto ...string) MessageOption {
	return func(m *message) {
		m.HandshakeProtocols = proto
	}
}

// WithMessages embeds requests in the Invitation.
func WithMessages(msgs ...service.DIDCommMsgMap) MessageOption {
	return func(m *message) {
		m.Messages = msgs
	}
}

// WithMultiUse makes the invitation usable by more than one counterpart.
func WithMultiUse() MessageOption {
	return func(m *message) {
		m.MultiUse = true
	}
}

// WithAutoAcceptConnection accepts the resulting connection without a manual step.
func WithAutoAcceptConnection() MessageOption {
	return func(m *message) {
		m.AutoAccept = true
	}
}

// WithReuseConnection reuses a ready connection with the inviter when there is one.
func WithReuseConnection() MessageOption {
	return func(m *message) {
		m.ReuseConnection = true
	}
}

// WithManualAccept stores a received invitation without accepting it, see ActionContinue.
func WithManualAccept() MessageOption {
	return func(m *message) {
		m.ManualAccept = true
	}
}

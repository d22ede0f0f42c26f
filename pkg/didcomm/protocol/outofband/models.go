/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/kmscrypto/doc/util/fingerprint"
	"github.com/mitchellh/mapstructure"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
)

const (
	// PIURI is the out-of-band protocol identifier.
	PIURI = "https://didcomm.org/out-of-band/1.1"
	// InvitationMsgType is the '@type' for the invitation message.
	InvitationMsgType = PIURI + "/invitation"
	// HandshakeReuseMsgType is the '@type' for the reuse message.
	HandshakeReuseMsgType = PIURI + "/handshake-reuse"
	// HandshakeReuseAcceptedMsgType is the '@type' for the reuse-accepted message.
	HandshakeReuseAcceptedMsgType = PIURI + "/handshake-reuse-accepted"

	// LegacyInvitationMsgType is the '@type' of the connections/1.0 invitation.
	LegacyInvitationMsgType = "https://didcomm.org/connections/1.0/invitation"

	// DIDExchangeProtocol is the did-exchange handshake protocol.
	DIDExchangeProtocol = "https://didcomm.org/didexchange/1.1"
	// ConnectionsProtocol is the legacy connections handshake protocol.
	ConnectionsProtocol = "https://didcomm.org/connections/1.0"

	// InlineServiceType is the type of services embedded in invitations.
	InlineServiceType = "did-communication"

	didKeyPrefix = "did:key:"
)

// DIDCommProfiles are the media types advertised in the accept field of created invitations.
var DIDCommProfiles = []string{"didcomm/aip1", "didcomm/aip2;env=rfc19"}

// Invitation is this protocol's `invitation` message. Every entry of Services is either a DID
// string or an inline service (*InlineService, or its JSON form once parsed).
type Invitation struct {
	ID        string                  `json:"@id"`
	Type      string                  `json:"@type"`
	Label     string                  `json:"label,omitempty"`
	Goal      string                  `json:"goal,omitempty"`
	GoalCode  string                  `json:"goal_code,omitempty"`
	ImageURL  string                  `json:"imageUrl,omitempty"`
	Accept    []string                `json:"accept,omitempty"`
	Services  []interface{}           `json:"services"`
	Protocols []string                `json:"handshake_protocols,omitempty"`
	Requests  []*decorator.Attachment `json:"requests~attach,omitempty"`
	Thread    *decorator.Thread       `json:"~thread,omitempty"`
}

// InlineService is a DIDComm service block embedded in an invitation.
type InlineService struct {
	ID              string   `json:"id" mapstructure:"id"`
	Type            string   `json:"type" mapstructure:"type"`
	RecipientKeys   []string `json:"recipientKeys" mapstructure:"recipientKeys"`
	RoutingKeys     []string `json:"routingKeys,omitempty" mapstructure:"routingKeys"`
	ServiceEndpoint string   `json:"serviceEndpoint" mapstructure:"serviceEndpoint"`
}

// Destination returns where messages for the service go.
func (s *InlineService) Destination() (*service.Destination, error) {
	return service.NewDestination(s.ServiceEndpoint, s.RecipientKeys, s.RoutingKeys)
}

// HandshakeReuse asks the inviter to reuse an existing connection.
type HandshakeReuse struct {
	ID     string            `json:"@id"`
	Type   string            `json:"@type"`
	Thread *decorator.Thread `json:"~thread"`
}

// HandshakeReuseAccepted confirms the reuse of a connection.
type HandshakeReuseAccepted struct {
	ID     string            `json:"@id"`
	Type   string            `json:"@type"`
	Thread *decorator.Thread `json:"~thread"`
}

// LegacyInvitation is the connections/1.0 invitation. Either DID or the key and endpoint fields are set.
type LegacyInvitation struct {
	ID              string   `json:"@id"`
	Type            string   `json:"@type"`
	Label           string   `json:"label,omitempty"`
	DID             string   `json:"did,omitempty"`
	RecipientKeys   []string `json:"recipientKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
}

// ServiceDIDs returns the DID services of the invitation.
func (i *Invitation) ServiceDIDs() []string {
	var dids []string

	for _, s := range i.Services {
		if did, ok := s.(string); ok {
			dids = append(dids, did)
		}
	}

	return dids
}

// InlineServices returns the inline services of the invitation.
func (i *Invitation) InlineServices() ([]*InlineService, error) {
	var inline []*InlineService

	for _, s := range i.Services {
		switch svc := s.(type) {
		case string:
		case *InlineService:
			inline = append(inline, svc)
		case InlineService:
			inline = append(inline, &svc)
		case map[string]interface{}:
			decoded := &InlineService{}
			if err := mapstructure.Decode(svc, decoded); err != nil {
				return nil, fmt.Errorf("decode inline service: %w", err)
			}

			inline = append(inline, decoded)
		default:
			return nil, fmt.Errorf("unsupported invitation service %T", s)
		}
	}

	return inline, nil
}

// RequestMessages returns the messages attached to the invitation.
func (i *Invitation) RequestMessages() ([]service.DIDCommMsgMap, error) {
	msgs := make([]service.DIDCommMsgMap, 0, len(i.Requests))

	for _, a := range i.Requests {
		raw, err := a.Data.Fetch()
		if err != nil {
			return nil, fmt.Errorf("request attachment %s: %w", a.ID, err)
		}

		msg, err := service.ParseDIDCommMsgMap(raw)
		if err != nil {
			return nil, fmt.Errorf("request attachment %s: %w", a.ID, err)
		}

		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// ThreadID returns the thread of the invitation, its id unless set otherwise.
func (i *Invitation) ThreadID() string {
	if i.Thread != nil && i.Thread.ID != "" {
		return i.Thread.ID
	}

	return i.ID
}

func (i *Invitation) validate() error {
	if i.ID == "" {
		return errors.New("invitation id is mandatory")
	}

	if len(i.Protocols) == 0 && len(i.Requests) == 0 {
		return errors.New("one or both of handshake_protocols and requests~attach must be included in the invitation")
	}

	if len(i.Services) == 0 {
		return errors.New("invitation has no service")
	}

	_, err := i.InlineServices()

	return err
}

// requestAttachment embeds a message in an invitation, its ~service decorator is dropped as the
// invitation services replace it.
func requestAttachment(msg service.DIDCommMsgMap) (*decorator.Attachment, error) {
	clone := msg.Clone()
	delete(clone, "~service")

	data, err := decorator.NewJSONAttachmentData(clone)
	if err != nil {
		return nil, fmt.Errorf("attach request %s: %w", msg.ID(), err)
	}

	return &decorator.Attachment{
		ID:       uuid.New().String(),
		MimeType: "application/json",
		Data:     data,
	}, nil
}

// ConvertLegacyInvitation returns the out-of-band form of a connections/1.0 invitation.
func ConvertLegacyInvitation(legacy *LegacyInvitation) (*Invitation, error) {
	inv := &Invitation{
		ID:        legacy.ID,
		Type:      InvitationMsgType,
		Label:     legacy.Label,
		ImageURL:  legacy.ImageURL,
		Protocols: []string{ConnectionsProtocol},
	}

	switch {
	case legacy.DID != "":
		inv.Services = []interface{}{legacy.DID}
	case legacy.ServiceEndpoint != "" && len(legacy.RecipientKeys) > 0:
		inv.Services = []interface{}{&InlineService{
			ID:              "#inline",
			Type:            InlineServiceType,
			RecipientKeys:   service.ConvertAnyB58Keys(legacy.RecipientKeys),
			RoutingKeys:     service.ConvertAnyB58Keys(legacy.RoutingKeys),
			ServiceEndpoint: legacy.ServiceEndpoint,
		}}
	default:
		return nil, errors.New("legacy invitation needs a did or recipient keys and a service endpoint")
	}

	return inv, nil
}

// ToLegacyInvitation returns the connections/1.0 form of an invitation with a single service.
func ToLegacyInvitation(inv *Invitation) (*LegacyInvitation, error) {
	if len(inv.Services) != 1 {
		return nil, fmt.Errorf("a legacy invitation carries exactly one service, got %d", len(inv.Services))
	}

	legacy := &LegacyInvitation{
		ID:       inv.ID,
		Type:     LegacyInvitationMsgType,
		Label:    inv.Label,
		ImageURL: inv.ImageURL,
	}

	if dids := inv.ServiceDIDs(); len(dids) == 1 {
		legacy.DID = dids[0]

		return legacy, nil
	}

	inline, err := inv.InlineServices()
	if err != nil {
		return nil, err
	}

	legacy.RecipientKeys = inline[0].RecipientKeys
	legacy.RoutingKeys = inline[0].RoutingKeys
	legacy.ServiceEndpoint = inline[0].ServiceEndpoint

	return legacy, nil
}

// ConvertConnectionlessMessage wraps a legacy connection-less message, carrying its own ~service
// decorator, into an invitation.
func ConvertConnectionlessMessage(msg service.DIDCommMsgMap) (*Invitation, error) {
	if msg.ID() == "" || msg.Type() == "" {
		return nil, errors.New("connection-less message needs an id and a type")
	}

	headers := struct {
		Service *decorator.Service `json:"~service,omitempty"`
	}{}

	if err := msg.Decode(&headers); err != nil {
		return nil, fmt.Errorf("decode ~service: %w", err)
	}

	if headers.Service == nil {
		return nil, errors.New("connection-less message has no ~service decorator")
	}

	attachment, err := requestAttachment(msg)
	if err != nil {
		return nil, err
	}

	return &Invitation{
		ID:   msg.ID(),
		Type: InvitationMsgType,
		Services: []interface{}{&InlineService{
			ID:              "#inline",
			Type:            InlineServiceType,
			RecipientKeys:   service.ConvertAnyB58Keys(headers.Service.RecipientKeys),
			RoutingKeys:     service.ConvertAnyB58Keys(headers.Service.RoutingKeys),
			ServiceEndpoint: headers.Service.ServiceEndpoint,
		}},
		Requests: []*decorator.Attachment{attachment},
	}, nil
}

// keyFingerprint returns the multibase fingerprint of a did:key or raw base58 key.
func keyFingerprint(key string) (string, error) {
	converted := service.ConvertAnyB58Keys([]string{key})[0]

	if !strings.HasPrefix(converted, didKeyPrefix) {
		return "", fmt.Errorf("unsupported key format %s", key)
	}

	id := strings.TrimPrefix(converted, didKeyPrefix)
	if i := strings.Index(id, "#"); i >= 0 {
		id = id[:i]
	}

	if _, _, err := fingerprint.PubKeyFromFingerprint(id); err != nil {
		return "", fmt.Errorf("key fingerprint: %w", err)
	}

	return id, nil
}

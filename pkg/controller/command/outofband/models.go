/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"github.com/hyperledger/aries-exchange-go/pkg/client/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

// CreateInvitationArgs model
//
// This is used for creating an invitation.
//
type CreateInvitationArgs struct {
	// InvitationID is optional, requests embedded in the invitation must use it as their parent thread id.
	InvitationID       string                  `json:"invitation_id"`
	Label              string                  `json:"label"`
	Goal               string                  `json:"goal"`
	GoalCode           string                  `json:"goal_code"`
	ImageURL           string                  `json:"image_url"`
	Alias              string                  `json:"alias"`
	Service            []interface{}           `json:"service"`
	Protocols          []string                `json:"protocols"`
	Requests           []service.DIDCommMsgMap `json:"requests"`
	RouterConnectionID string                  `json:"router_connection_id"`
	MultiUse           bool                    `json:"multi_use"`
	AutoAccept         bool                    `json:"auto_accept_connection"`
}

// CreateInvitationResponse model
//
// Represents a CreateInvitation response message.
//
type CreateInvitationResponse struct {
	Invitation    *outofband.Invitation `json:"invitation"`
	InvitationURL string                `json:"invitation_url"`
}

// AcceptInvitationArgs model
//
// This is used for accepting an invitation, given either as JSON or as a URL.
//
type AcceptInvitationArgs struct {
	Invitation        *outofband.Invitation `json:"invitation"`
	InvitationURL     string                `json:"invitation_url"`
	MyLabel           string                `json:"my_label"`
	Alias             string                `json:"alias"`
	RouterConnections string                `json:"router_connections"`
	ReuseConnection   bool                  `json:"reuse_connection"`
	AutoAccept        bool                  `json:"auto_accept_connection"`
	// ManualAccept stores the invitation without accepting it, see ActionContinue.
	ManualAccept bool `json:"manual_accept"`
}

// ConnectionResponse model
//
// Represents the connection an accepted invitation resolved to. The ID is empty when no
// connection was established yet.
//
type ConnectionResponse struct {
	ConnectionID string `json:"connection_id"`
}

// ConnectPublicDIDArgs model
//
// This is used for connecting to the owner of a public DID without an invitation.
//
type ConnectPublicDIDArgs struct {
	DID               string   `json:"did"`
	MyLabel           string   `json:"my_label"`
	Protocols         []string `json:"protocols"`
	RouterConnections string   `json:"router_connections"`
	AutoAccept        bool     `json:"auto_accept_connection"`
}

// ActionContinueArgs model
//
// This is used to accept an invitation received with manual_accept.
//
type ActionContinueArgs struct {
	RecordID          string `json:"record_id"`
	Label             string `json:"label"`
	Alias             string `json:"alias"`
	RouterConnections string `json:"router_connections"`
	ReuseConnection   bool   `json:"reuse_connection"`
	AutoAccept        bool   `json:"auto_accept_connection"`
}

// CreateConnectionlessArgs model
//
// This is used for wrapping a message in a connection-less invitation URL.
//
type CreateConnectionlessArgs struct {
	Message           service.DIDCommMsgMap `json:"message"`
	RouterConnections string                `json:"router_connections"`
}

// CreateConnectionlessResponse model
//
// Represents a CreateConnectionlessInvitation response message.
//
type CreateConnectionlessResponse struct {
	InvitationURL string `json:"invitation_url"`
}

// RecordIDArgs model
//
// This is used for commands naming a single out-of-band record.
//
type RecordIDArgs struct {
	RecordID string `json:"record_id"`
}

// RecordResponse model
//
// Represents a single out-of-band record.
//
type RecordResponse struct {
	Record *outofband.Record `json:"record"`
}

// RecordsResponse model
//
// Represents the out-of-band records matching a query.
//
type RecordsResponse struct {
	Records []*outofband.Record `json:"records"`
}

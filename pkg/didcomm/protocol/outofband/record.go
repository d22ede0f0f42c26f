/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"time"

	"golang.org/x/exp/slices"
)

// Role of the agent in an out-of-band exchange.
type Role string

const (
	// RoleSender created the invitation.
	RoleSender Role = "sender"
	// RoleReceiver received the invitation.
	RoleReceiver Role = "receiver"
)

// State of an out-of-band record.
type State string

const (
	// StateInitial is the state of a received invitation not accepted yet.
	StateInitial State = "initial"
	// StateAwaitResponse is the state of a created invitation waiting for its receivers.
	StateAwaitResponse State = "await-response"
	// StatePrepareResponse is the state of a received invitation being accepted.
	StatePrepareResponse State = "prepare-response"
	// StateDone is the final state.
	StateDone State = "done"
)

// InvitationType tells the shape an invitation arrived in.
type InvitationType string

const (
	// InvitationTypeOutOfBand is a native out-of-band invitation.
	InvitationTypeOutOfBand InvitationType = "oob"
	// InvitationTypeConnection is a converted connections/1.0 invitation.
	InvitationTypeConnection InvitationType = "connection"
	// InvitationTypeConnectionless is a converted legacy connection-less message.
	InvitationTypeConnectionless InvitationType = "connectionless"
)

// Record tracks one invitation on either side of the exchange.
type Record struct {
	ID                       string         `json:"id"`
	Role                     Role           `json:"role"`
	State                    State          `json:"state"`
	Invitation               *Invitation    `json:"invitation"`
	InvitationType           InvitationType `json:"invitationType"`
	Reusable                 bool           `json:"reusable,omitempty"`
	ReuseConnectionID        string         `json:"reuseConnectionId,omitempty"`
	MediatorID               string         `json:"mediatorId,omitempty"`
	RecipientKeyFingerprints []string       `json:"recipientKeyFingerprints,omitempty"`
	AutoAcceptConnection     bool           `json:"autoAcceptConnection,omitempty"`
	Alias                    string         `json:"alias,omitempty"`
	ThreadID                 string         `json:"threadId"`
	Implicit                 bool           `json:"implicit,omitempty"`
	CreatedAt                time.Time      `json:"createdAt"`
	UpdatedAt                time.Time      `json:"updatedAt,omitempty"`
}

// Query selects out-of-band records, empty fields match everything.
type Query struct {
	Role                    Role   `json:"role,omitempty"`
	State                   State  `json:"state,omitempty"`
	InvitationID            string `json:"invitation_id,omitempty"`
	RecipientKeyFingerprint string `json:"recipient_key_fingerprint,omitempty"`
	ThreadID                string `json:"thread_id,omitempty"`
}

func (q *Query) matches(rec *Record) bool {
	if q.RecipientKeyFingerprint != "" && !slices.Contains(rec.RecipientKeyFingerprints, q.RecipientKeyFingerprint) {
		return false
	}

	return (q.Role == "" || q.Role == rec.Role) &&
		(q.State == "" || q.State == rec.State) &&
		(q.InvitationID == "" || rec.Invitation != nil && q.InvitationID == rec.Invitation.ID) &&
		(q.ThreadID == "" || q.ThreadID == rec.ThreadID)
}

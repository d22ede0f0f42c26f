/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"

const (
	// RoleHolder receives the credential.
	RoleHolder exchange.Role = "holder"
	// RoleIssuer issues the credential.
	RoleIssuer exchange.Role = "issuer"
)

// states of the issue-credential protocol.
const (
	StateProposalSent       = exchange.StateProposalSent
	StateProposalReceived   = exchange.StateProposalReceived
	StateOfferSent          = exchange.StateOfferSent
	StateOfferReceived      = exchange.StateOfferReceived
	StateRequestSent        = exchange.StateRequestSent
	StateRequestReceived    = exchange.StateRequestReceived
	StateCredentialIssued   = exchange.StateResultSent
	StateCredentialReceived = exchange.StateResultReceived
	StateDone               = exchange.StateDone
	StateDeclined           = exchange.StateDeclined
	StateAbandoned          = exchange.StateAbandoned
)

// transitions lists the legal moves of both roles. A holder may open with a proposal or a request,
// an issuer with an offer.
func transitions() []exchange.Transition {
	return []exchange.Transition{
		// holder
		{Action: exchange.ActionCreateProposal, Role: RoleHolder, From: []exchange.State{"", StateOfferReceived},
			To: StateProposalSent},
		{Action: exchange.ActionReceiveOffer, Role: RoleHolder, From: []exchange.State{"", StateProposalSent},
			To: StateOfferReceived},
		{Action: exchange.ActionCreateRequest, Role: RoleHolder, From: []exchange.State{"", StateOfferReceived},
			To: StateRequestSent},
		{Action: exchange.ActionReceiveResult, Role: RoleHolder, From: []exchange.State{StateRequestSent},
			To: StateCredentialReceived},
		{Action: exchange.ActionCreateAck, Role: RoleHolder, From: []exchange.State{StateCredentialReceived},
			To: StateDone},
		{Action: exchange.ActionDecline, Role: RoleHolder, From: []exchange.State{StateOfferReceived},
			To: StateDeclined},
		// issuer
		{Action: exchange.ActionReceiveProposal, Role: RoleIssuer, From: []exchange.State{"", StateOfferSent},
			To: StateProposalReceived},
		{Action: exchange.ActionCreateOffer, Role: RoleIssuer, From: []exchange.State{"", StateProposalReceived},
			To: StateOfferSent},
		{Action: exchange.ActionReceiveRequest, Role: RoleIssuer, From: []exchange.State{"", StateOfferSent},
			To: StateRequestReceived},
		{Action: exchange.ActionCreateResult, Role: RoleIssuer, From: []exchange.State{StateRequestReceived},
			To: StateCredentialIssued},
		{Action: exchange.ActionReceiveAck, Role: RoleIssuer, From: []exchange.State{StateCredentialIssued},
			To: StateDone},
		{Action: exchange.ActionDecline, Role: RoleIssuer,
			From: []exchange.State{StateProposalReceived, StateRequestReceived}, To: StateDeclined},
	}
}

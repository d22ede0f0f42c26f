/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"

const (
	// RoleProver presents the proof.
	RoleProver exchange.Role = "prover"
	// RoleVerifier requests and verifies the proof.
	RoleVerifier exchange.Role = "verifier"
)

// states of the present-proof protocol.
const (
	StateProposalSent         = exchange.StateProposalSent
	StateProposalReceived     = exchange.StateProposalReceived
	StateRequestSent          = exchange.StateRequestSent
	StateRequestReceived      = exchange.StateRequestReceived
	StatePresentationSent     = exchange.StateResultSent
	StatePresentationReceived = exchange.StateResultReceived
	StateDone                 = exchange.StateDone
	StateDeclined             = exchange.StateDeclined
	StateAbandoned            = exchange.StateAbandoned
)

// transitions lists the legal moves of both roles. A prover may open with a proposal, a verifier
// with a request.
func transitions() []exchange.Transition {
	return []exchange.Transition{
		// prover
		{Action: exchange.ActionCreateProposal, Role: RoleProver, From: []exchange.State{"", StateRequestReceived},
			To: StateProposalSent},
		{Action: exchange.ActionReceiveRequest, Role: RoleProver, From: []exchange.State{"", StateProposalSent},
			To: StateRequestReceived},
		{Action: exchange.ActionCreateResult, Role: RoleProver, From: []exchange.State{StateRequestReceived},
			To: StatePresentationSent},
		{Action: exchange.ActionReceiveAck, Role: RoleProver, From: []exchange.State{StatePresentationSent},
			To: StateDone},
		{Action: exchange.ActionDecline, Role: RoleProver, From: []exchange.State{StateRequestReceived},
			To: StateDeclined},
		// verifier
		{Action: exchange.ActionReceiveProposal, Role: RoleVerifier, From: []exchange.State{"", StateRequestSent},
			To: StateProposalReceived},
		{Action: exchange.ActionCreateRequest, Role: RoleVerifier, From: []exchange.State{"", StateProposalReceived},
			To: StateRequestSent},
		{Action: exchange.ActionReceiveResult, Role: RoleVerifier, From: []exchange.State{StateRequestSent},
			To: StatePresentationReceived},
		{Action: exchange.ActionCreateAck, Role: RoleVerifier, From: []exchange.State{StatePresentationReceived},
			To: StateDone},
		{Action: exchange.ActionDecline, Role: RoleVerifier, From: []exchange.State{StateProposalReceived},
			To: StateDeclined},
	}
}

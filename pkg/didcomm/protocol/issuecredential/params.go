/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

// ProposeCredentialParams holds the parameters for proposing a credential.
type ProposeCredentialParams struct {
	// ProtocolVersion is VersionV2 or VersionV3, empty selects VersionV2.
	ProtocolVersion   string
	ConnectionID      string
	ParentThreadID    string
	Comment           string
	GoalCode          string
	CredentialPreview []exchange.PreviewAttribute
	// Formats holds the parameters of every credential format taking part, keyed by format key.
	Formats    map[string]interface{}
	AutoAccept exchange.AutoAccept
}

// OfferCredentialParams holds the parameters for offering a credential.
type OfferCredentialParams struct {
	ProtocolVersion   string
	ConnectionID      string
	ParentThreadID    string
	Comment           string
	GoalCode          string
	CredentialPreview []exchange.PreviewAttribute
	Formats           map[string]interface{}
	AutoAccept        exchange.AutoAccept
}

func (p *OfferCredentialParams) startParams(connectionless bool) *exchange.StartParams {
	return &exchange.StartParams{
		Stage:           exchange.StageOffer,
		ProtocolVersion: p.ProtocolVersion,
		ConnectionID:    p.ConnectionID,
		Connectionless:  connectionless,
		ParentThreadID:  p.ParentThreadID,
		Comment:         p.Comment,
		GoalCode:        p.GoalCode,
		Preview:         p.CredentialPreview,
		FormatParams:    p.Formats,
		AutoAccept:      p.AutoAccept,
	}
}

// RequestCredentialParams holds the parameters for requesting a credential without an offer.
type RequestCredentialParams struct {
	ProtocolVersion string
	ConnectionID    string
	ParentThreadID  string
	Comment         string
	Formats         map[string]interface{}
	AutoAccept      exchange.AutoAccept
}

// AcceptParams holds the parameters answering a received message. A nil value or empty Formats
// derives the answer from the exchange so far.
type AcceptParams struct {
	Comment           string
	CredentialPreview []exchange.PreviewAttribute
	Formats           map[string]interface{}
}

func (p *AcceptParams) exchangeParams() *exchange.AcceptParams {
	if p == nil {
		return &exchange.AcceptParams{}
	}

	return &exchange.AcceptParams{
		Comment:      p.Comment,
		Preview:      p.CredentialPreview,
		FormatParams: p.Formats,
	}
}

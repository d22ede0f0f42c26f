/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

// ProposePresentationParams holds the parameters for proposing a presentation.
type ProposePresentationParams struct {
	// ProtocolVersion is VersionV2 or VersionV3, empty selects VersionV2.
	ProtocolVersion string
	ConnectionID    string
	ParentThreadID  string
	Comment         string
	GoalCode        string
	// Formats holds the parameters of every proof format taking part, keyed by format key.
	Formats    map[string]interface{}
	AutoAccept exchange.AutoAccept
}

// RequestPresentationParams holds the parameters for requesting a presentation.
type RequestPresentationParams struct {
	ProtocolVersion string
	ConnectionID    string
	ParentThreadID  string
	Comment         string
	GoalCode        string
	Formats         map[string]interface{}
	AutoAccept      exchange.AutoAccept
}

func (p *RequestPresentationParams) startParams(connectionless bool) *exchange.StartParams {
	return &exchange.StartParams{
		Stage:           exchange.StageRequest,
		ProtocolVersion: p.ProtocolVersion,
		ConnectionID:    p.ConnectionID,
		Connectionless:  connectionless,
		ParentThreadID:  p.ParentThreadID,
		Comment:         p.Comment,
		GoalCode:        p.GoalCode,
		FormatParams:    p.Formats,
		AutoAccept:      p.AutoAccept,
	}
}

// AcceptParams holds the parameters answering a received message. A nil value or empty Formats
// derives the answer from the exchange so far.
type AcceptParams struct {
	Comment string
	Formats map[string]interface{}
}

func (p *AcceptParams) exchangeParams() *exchange.AcceptParams {
	if p == nil {
		return &exchange.AcceptParams{}
	}

	return &exchange.AcceptParams{Comment: p.Comment, FormatParams: p.Formats}
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"encoding/json"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

// StartArgs model
//
// This is used for starting an exchange with a proposal, an offer or a request.
//
type StartArgs struct {
	// ConnectionID of the connection the first message is sent on.
	ConnectionID string `json:"connection_id"`
	// ProtocolVersion is "2.0" (default) or "3.0".
	ProtocolVersion string `json:"protocol_version,omitempty"`
	// ParentThreadID is the id of the out-of-band invitation the exchange belongs to, if any.
	ParentThreadID    string                      `json:"parent_thread_id,omitempty"`
	Comment           string                      `json:"comment,omitempty"`
	GoalCode          string                      `json:"goal_code,omitempty"`
	CredentialPreview []exchange.PreviewAttribute `json:"credential_preview,omitempty"`
	// Formats holds the parameters of every credential format, keyed by format key (e.g. "ldcred").
	Formats map[string]json.RawMessage `json:"formats"`
	// AutoAccept is "never", "contentApproved" or "always". Empty uses the agent default.
	AutoAccept string `json:"auto_accept,omitempty"`
}

// AcceptArgs model
//
// This is used for answering the last message received on a record.
//
type AcceptArgs struct {
	RecordID          string                      `json:"record_id"`
	Comment           string                      `json:"comment,omitempty"`
	CredentialPreview []exchange.PreviewAttribute `json:"credential_preview,omitempty"`
	Formats           map[string]json.RawMessage  `json:"formats,omitempty"`
}

// DeclineArgs model
//
// This is used for declining a proposal or an offer.
//
type DeclineArgs struct {
	RecordID          string `json:"record_id"`
	SendProblemReport bool   `json:"send_problem_report"`
}

// ProblemReportArgs model
//
// This is used for abandoning an exchange with a problem report.
//
type ProblemReportArgs struct {
	RecordID    string `json:"record_id"`
	Description string `json:"description"`
}

// RecordIDArgs model
//
// This is used for the operations naming a single record.
//
type RecordIDArgs struct {
	RecordID string `json:"record_id"`
}

// RecordResponse model
//
// Represents the record after an operation.
//
type RecordResponse struct {
	Record *exchange.Record `json:"record"`
}

// InvitationMessageResponse model
//
// Represents a connection-less offer to embed in an out-of-band invitation.
//
type InvitationMessageResponse struct {
	Record  *exchange.Record      `json:"record"`
	Message service.DIDCommMsgMap `json:"message"`
}

// RecordsResponse model
//
// Represents the records matching a query.
//
type RecordsResponse struct {
	Records []*exchange.Record `json:"records"`
}

// FormatDataResponse model
//
// Represents the latest format payloads of a record.
//
type FormatDataResponse struct {
	FormatData *exchange.FormatData `json:"format_data"`
}

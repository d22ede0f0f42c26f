/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/issuecredential"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

// issueCredentialStartRequest model
//
// This is used for the operations opening an exchange.
//
// swagger:parameters issueCredentialSendProposal issueCredentialSendOffer issueCredentialSendRequest issueCredentialCreateOfferForInvitation
type issueCredentialStartRequest struct { // nolint: unused,deadcode
	// in: body
	Args issuecredential.StartArgs
}

// issueCredentialAcceptRequest model
//
// This is used for the operations answering a received message.
//
// swagger:parameters issueCredentialAcceptProposal issueCredentialNegotiateProposal issueCredentialAcceptOffer issueCredentialNegotiateOffer issueCredentialAcceptRequest issueCredentialAcceptCredential
type issueCredentialAcceptRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Args issuecredential.AcceptArgs
}

// issueCredentialDeclineRequest model
//
// This is used for declining a proposal or an offer.
//
// swagger:parameters issueCredentialDeclineProposal issueCredentialDeclineOffer
type issueCredentialDeclineRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Args issuecredential.DeclineArgs
}

// issueCredentialProblemReportRequest model
//
// This is used for abandoning an exchange with a problem report.
//
// swagger:parameters issueCredentialSendProblemReport
type issueCredentialProblemReportRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Args issuecredential.ProblemReportArgs
}

// issueCredentialRecordIDRequest model
//
// This is used for the operations naming a record only.
//
// swagger:parameters issueCredentialRecord issueCredentialFormatData issueCredentialRemoveRecord
type issueCredentialRecordIDRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`
}

// issueCredentialRecordsRequest model
//
// This is used for querying records.
//
// swagger:parameters issueCredentialRecords
type issueCredentialRecordsRequest struct { // nolint: unused,deadcode
	// in: query
	exchange.Query
}

// issueCredentialRecordResponse model
//
// Represents the record of an exchange.
//
// swagger:response issueCredentialRecordResponse
type issueCredentialRecordResponse struct { // nolint: unused,deadcode
	// in: body
	Record *exchange.Record `json:"record"`
}

// issueCredentialInvitationMessageResponse model
//
// Represents an offer created for an invitation.
//
// swagger:response issueCredentialInvitationMessageResponse
type issueCredentialInvitationMessageResponse struct { // nolint: unused,deadcode
	// in: body
	Body struct {
		Record  *exchange.Record      `json:"record"`
		Message service.DIDCommMsgMap `json:"message"`
	}
}

// issueCredentialRecordsResponse model
//
// Represents the records matching a query.
//
// swagger:response issueCredentialRecordsResponse
type issueCredentialRecordsResponse struct { // nolint: unused,deadcode
	// in: body
	Records []*exchange.Record `json:"records"`
}

// issueCredentialFormatDataResponse model
//
// Represents the format payloads of a record.
//
// swagger:response issueCredentialFormatDataResponse
type issueCredentialFormatDataResponse struct { // nolint: unused,deadcode
	// in: body
	FormatData *exchange.FormatData `json:"format_data"`
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

// presentProofStartRequest model
//
// This is used for the operations opening an exchange.
//
// swagger:parameters presentProofSendProposePresentation presentProofSendRequestPresentation presentProofCreateRequestForInvitation
type presentProofStartRequest struct { // nolint: unused,deadcode
	// in: body
	Args presentproof.StartArgs
}

// presentProofAcceptRequest model
//
// This is used for the operations answering a received message.
//
// swagger:parameters presentProofAcceptProposePresentation presentProofNegotiateProposePresentation presentProofAcceptRequestPresentation presentProofNegotiateRequestPresentation presentProofAcceptPresentation
type presentProofAcceptRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Args presentproof.AcceptArgs
}

// presentProofDeclineRequest model
//
// This is used for declining a proposal or a request.
//
// swagger:parameters presentProofDeclineProposePresentation presentProofDeclineRequestPresentation
type presentProofDeclineRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Args presentproof.DeclineArgs
}

// presentProofProblemReportRequest model
//
// This is used for abandoning an exchange with a problem report.
//
// swagger:parameters presentProofSendProblemReport
type presentProofProblemReportRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Args presentproof.ProblemReportArgs
}

// presentProofRecordIDRequest model
//
// This is used for the operations naming a record only.
//
// swagger:parameters presentProofRecord presentProofFormatData presentProofRemoveRecord
type presentProofRecordIDRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`
}

// presentProofRecordsRequest model
//
// This is used for querying records.
//
// swagger:parameters presentProofRecords
type presentProofRecordsRequest struct { // nolint: unused,deadcode
	// in: query
	exchange.Query
}

// presentProofRecordResponse model
//
// Represents the record of an exchange.
//
// swagger:response presentProofRecordResponse
type presentProofRecordResponse struct { // nolint: unused,deadcode
	// in: body
	Record *exchange.Record `json:"record"`
}

// presentProofInvitationMessageResponse model
//
// Represents a request created for an invitation.
//
// swagger:response presentProofInvitationMessageResponse
type presentProofInvitationMessageResponse struct { // nolint: unused,deadcode
	// in: body
	Body struct {
		Record  *exchange.Record      `json:"record"`
		Message service.DIDCommMsgMap `json:"message"`
	}
}

// presentProofRecordsResponse model
//
// Represents the records matching a query.
//
// swagger:response presentProofRecordsResponse
type presentProofRecordsResponse struct { // nolint: unused,deadcode
	// in: body
	Records []*exchange.Record `json:"records"`
}

// presentProofFormatDataResponse model
//
// Represents the format payloads of a record.
//
// swagger:response presentProofFormatDataResponse
type presentProofFormatDataResponse struct { // nolint: unused,deadcode
	// in: body
	FormatData *exchange.FormatData `json:"format_data"`
}

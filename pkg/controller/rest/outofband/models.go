/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	client "github.com/hyperledger/aries-exchange-go/pkg/client/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/outofband"
)

// outofbandCreateInvitationRequest model
//
// This is used for operation to create an invitation.
//
// swagger:parameters outofbandCreateInvitation
type outofbandCreateInvitationRequest struct { // nolint: unused,deadcode
	// in: body
	Args outofband.CreateInvitationArgs
}

// outofbandCreateInvitationResponse model
//
// Represents a CreateInvitation response message.
//
// swagger:response outofbandCreateInvitationResponse
type outofbandCreateInvitationResponse struct { // nolint: unused,deadcode
	// in: body
	Response outofband.CreateInvitationResponse
}

// outofbandAcceptInvitationRequest model
//
// This is used for operation to accept an invitation.
//
// swagger:parameters outofbandAcceptInvitation
type outofbandAcceptInvitationRequest struct { // nolint: unused,deadcode
	// in: body
	Args outofband.AcceptInvitationArgs
}

// outofbandConnectPublicDIDRequest model
//
// This is used for operation to connect to a public DID.
//
// swagger:parameters outofbandConnectPublicDID
type outofbandConnectPublicDIDRequest struct { // nolint: unused,deadcode
	// in: body
	Args outofband.ConnectPublicDIDArgs
}

// outofbandConnectionResponse model
//
// Represents the connection an invitation resolved to.
//
// swagger:response outofbandConnectionResponse
type outofbandConnectionResponse struct { // nolint: unused,deadcode
	// in: body
	Response outofband.ConnectionResponse
}

// outofbandCreateConnectionlessRequest model
//
// This is used for operation to create a connection-less invitation.
//
// swagger:parameters outofbandCreateConnectionlessInvitation
type outofbandCreateConnectionlessRequest struct { // nolint: unused,deadcode
	// in: body
	Args outofband.CreateConnectionlessArgs
}

// outofbandCreateConnectionlessResponse model
//
// Represents a CreateConnectionlessInvitation response message.
//
// swagger:response outofbandCreateConnectionlessResponse
type outofbandCreateConnectionlessResponse struct { // nolint: unused,deadcode
	// in: body
	Response outofband.CreateConnectionlessResponse
}

// outofbandActionContinueRequest model
//
// This is used for operation to accept an invitation received with manual_accept.
//
// swagger:parameters outofbandActionContinue
type outofbandActionContinueRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`

	// in: body
	Args outofband.ActionContinueArgs
}

// outofbandRecordIDRequest model
//
// This is used for the operations naming a record only.
//
// swagger:parameters outofbandRecord outofbandRemoveRecord
type outofbandRecordIDRequest struct { // nolint: unused,deadcode
	// Record ID
	//
	// in: path
	// required: true
	ID string `json:"id"`
}

// outofbandRecordsRequest model
//
// This is used for querying records.
//
// swagger:parameters outofbandRecords
type outofbandRecordsRequest struct { // nolint: unused,deadcode
	// in: query
	client.Query
}

// outofbandRecordResponse model
//
// Represents an out-of-band record.
//
// swagger:response outofbandRecordResponse
type outofbandRecordResponse struct { // nolint: unused,deadcode
	// in: body
	Record *client.Record `json:"record"`
}

// outofbandRecordsResponse model
//
// Represents the out-of-band records matching a query.
//
// swagger:response outofbandRecordsResponse
type outofbandRecordsResponse struct { // nolint: unused,deadcode
	// in: body
	Records []*client.Record `json:"records"`
}

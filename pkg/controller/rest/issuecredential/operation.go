/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"fmt"
	"net/http"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/issuecredential"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/rest"
)

const (
	operationID              = "/issuecredential"
	sendProposal             = operationID + "/send-proposal"
	sendOffer                = operationID + "/send-offer"
	sendRequest              = operationID + "/send-request"
	createOfferForInvitation = operationID + "/create-offer-for-invitation"
	acceptProposal           = operationID + "/{id}/accept-proposal"
	negotiateProposal        = operationID + "/{id}/negotiate-proposal"
	declineProposal          = operationID + "/{id}/decline-proposal"
	acceptOffer              = operationID + "/{id}/accept-offer"
	negotiateOffer           = operationID + "/{id}/negotiate-offer"
	declineOffer             = operationID + "/{id}/decline-offer"
	acceptRequest            = operationID + "/{id}/accept-request"
	acceptCredential         = operationID + "/{id}/accept-credential"
	problemReport            = operationID + "/{id}/problem-report"
	records                  = operationID + "/records"
	record                   = records + "/{id}"
	formatData               = record + "/format-data"
)

// Operation is controller REST service controller for issue credential.
type Operation struct {
	command  *issuecredential.Command
	handlers []rest.Handler
}

// New returns new issue credential rest client protocol instance.
func New(ctx issuecredential.Provider, notifier command.Notifier) (*Operation, error) {
	cmd, err := issuecredential.New(ctx, notifier)
	if err != nil {
		return nil, fmt.Errorf("issue credential command : %w", err)
	}

	o := &Operation{command: cmd}
	o.registerHandler()

	return o, nil
}

// GetRESTHandlers get all controller API handler available for this protocol service.
func (c *Operation) GetRESTHandlers() []rest.Handler {
	return c.handlers
}

// registerHandler register handlers to be exposed from this protocol service as REST API endpoints.
func (c *Operation) registerHandler() {
	c.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(sendProposal, http.MethodPost, c.SendProposal),
		cmdutil.NewHTTPHandler(sendOffer, http.MethodPost, c.SendOffer),
		cmdutil.NewHTTPHandler(sendRequest, http.MethodPost, c.SendRequest),
		cmdutil.NewHTTPHandler(createOfferForInvitation, http.MethodPost, c.CreateOfferForInvitation),
		cmdutil.NewHTTPHandler(acceptProposal, http.MethodPost, c.AcceptProposal),
		cmdutil.NewHTTPHandler(negotiateProposal, http.MethodPost, c.NegotiateProposal),
		cmdutil.NewHTTPHandler(declineProposal, http.MethodPost, c.DeclineProposal),
		cmdutil.NewHTTPHandler(acceptOffer, http.MethodPost, c.AcceptOffer),
		cmdutil.NewHTTPHandler(negotiateOffer, http.MethodPost, c.NegotiateOffer),
		cmdutil.NewHTTPHandler(declineOffer, http.MethodPost, c.DeclineOffer),
		cmdutil.NewHTTPHandler(acceptRequest, http.MethodPost, c.AcceptRequest),
		cmdutil.NewHTTPHandler(acceptCredential, http.MethodPost, c.AcceptCredential),
		cmdutil.NewHTTPHandler(problemReport, http.MethodPost, c.SendProblemReport),
		cmdutil.NewHTTPHandler(records, http.MethodGet, c.Records),
		cmdutil.NewHTTPHandler(record, http.MethodGet, c.Record),
		cmdutil.NewHTTPHandler(formatData, http.MethodGet, c.FormatData),
		cmdutil.NewHTTPHandler(record, http.MethodDelete, c.RemoveRecord),
	}
}

// SendProposal swagger:route POST /issuecredential/send-proposal issue-credential issueCredentialSendProposal
//
// Sends a credential proposal.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) SendProposal(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.SendProposal, rw, req.Body)
}

// SendOffer swagger:route POST /issuecredential/send-offer issue-credential issueCredentialSendOffer
//
// Sends a credential offer.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) SendOffer(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.SendOffer, rw, req.Body)
}

// SendRequest swagger:route POST /issuecredential/send-request issue-credential issueCredentialSendRequest
//
// Sends a credential request.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) SendRequest(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.SendRequest, rw, req.Body)
}

// CreateOfferForInvitation swagger:route POST /issuecredential/create-offer-for-invitation issue-credential issueCredentialCreateOfferForInvitation
//
// Creates a credential offer to embed in an out-of-band invitation.
//
// Responses:
//    default: genericError
//        200: issueCredentialInvitationMessageResponse
func (c *Operation) CreateOfferForInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.CreateOfferForInvitation, rw, req.Body)
}

// AcceptProposal swagger:route POST /issuecredential/{id}/accept-proposal issue-credential issueCredentialAcceptProposal
//
// Accepts a proposal by sending an offer.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) AcceptProposal(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.AcceptProposal, rw, req)
}

// NegotiateProposal swagger:route POST /issuecredential/{id}/negotiate-proposal issue-credential issueCredentialNegotiateProposal
//
// Answers a proposal with a different offer.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) NegotiateProposal(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.NegotiateProposal, rw, req)
}

// DeclineProposal swagger:route POST /issuecredential/{id}/decline-proposal issue-credential issueCredentialDeclineProposal
//
// Declines a proposal.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) DeclineProposal(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.DeclineProposal, rw, req)
}

// AcceptOffer swagger:route POST /issuecredential/{id}/accept-offer issue-credential issueCredentialAcceptOffer
//
// Accepts an offer by sending a request.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) AcceptOffer(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.AcceptOffer, rw, req)
}

// NegotiateOffer swagger:route POST /issuecredential/{id}/negotiate-offer issue-credential issueCredentialNegotiateOffer
//
// Answers an offer with a counter proposal.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) NegotiateOffer(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.NegotiateOffer, rw, req)
}

// DeclineOffer swagger:route POST /issuecredential/{id}/decline-offer issue-credential issueCredentialDeclineOffer
//
// Declines an offer.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) DeclineOffer(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.DeclineOffer, rw, req)
}

// AcceptRequest swagger:route POST /issuecredential/{id}/accept-request issue-credential issueCredentialAcceptRequest
//
// Accepts a request by issuing the credential.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) AcceptRequest(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.AcceptRequest, rw, req)
}

// AcceptCredential swagger:route POST /issuecredential/{id}/accept-credential issue-credential issueCredentialAcceptCredential
//
// Acknowledges an issued credential.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) AcceptCredential(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.AcceptCredential, rw, req)
}

// SendProblemReport swagger:route POST /issuecredential/{id}/problem-report issue-credential issueCredentialSendProblemReport
//
// Abandons the exchange with a problem report.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) SendProblemReport(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.SendProblemReport, rw, req)
}

// Records swagger:route GET /issuecredential/records issue-credential issueCredentialRecords
//
// Returns the records matching the query parameters.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordsResponse
func (c *Operation) Records(rw http.ResponseWriter, req *http.Request) {
	rest.ExecuteWithQuery(c.command.Records, rw, req)
}

// Record swagger:route GET /issuecredential/records/{id} issue-credential issueCredentialRecord
//
// Returns a record.
//
// Responses:
//    default: genericError
//        200: issueCredentialRecordResponse
func (c *Operation) Record(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.Record, rw, req)
}

// FormatData swagger:route GET /issuecredential/records/{id}/format-data issue-credential issueCredentialFormatData
//
// Returns the format payloads of a record.
//
// Responses:
//    default: genericError
//        200: issueCredentialFormatDataResponse
func (c *Operation) FormatData(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.FormatData, rw, req)
}

// RemoveRecord swagger:route DELETE /issuecredential/records/{id} issue-credential issueCredentialRemoveRecord
//
// Removes a record.
//
// Responses:
//    default: genericError
func (c *Operation) RemoveRecord(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.RemoveRecord, rw, req)
}

func (c *Operation) onRecord(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	rest.ExecuteWithPathParams(exec, rw, req, issuecredential.InvalidRequestErrorCode,
		map[string]string{"record_id": "id"})
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"fmt"
	"net/http"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/rest"
)

const (
	operationID                  = "/presentproof"
	sendRequestPresentation      = operationID + "/send-request-presentation"
	sendProposePresentation      = operationID + "/send-propose-presentation"
	createRequestForInvitation   = operationID + "/create-request-for-invitation"
	acceptRequestPresentation    = operationID + "/{id}/accept-request-presentation"
	negotiateRequestPresentation = operationID + "/{id}/negotiate-request-presentation"
	declineRequestPresentation   = operationID + "/{id}/decline-request-presentation"
	acceptProposePresentation    = operationID + "/{id}/accept-propose-presentation"
	negotiateProposePresentation = operationID + "/{id}/negotiate-propose-presentation"
	declineProposePresentation   = operationID + "/{id}/decline-propose-presentation"
	acceptPresentation           = operationID + "/{id}/accept-presentation"
	problemReport                = operationID + "/{id}/problem-report"
	records                      = operationID + "/records"
	record                       = records + "/{id}"
	formatData                   = record + "/format-data"
)

// Operation is controller REST service controller for present proof.
type Operation struct {
	command  *presentproof.Command
	handlers []rest.Handler
}

// New returns new present proof rest client protocol instance.
func New(ctx presentproof.Provider, notifier command.Notifier) (*Operation, error) {
	cmd, err := presentproof.New(ctx, notifier)
	if err != nil {
		return nil, fmt.Errorf("present proof command : %w", err)
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
		cmdutil.NewHTTPHandler(sendRequestPresentation, http.MethodPost, c.SendRequestPresentation),
		cmdutil.NewHTTPHandler(sendProposePresentation, http.MethodPost, c.SendProposePresentation),
		cmdutil.NewHTTPHandler(createRequestForInvitation, http.MethodPost, c.CreateRequestForInvitation),
		cmdutil.NewHTTPHandler(acceptRequestPresentation, http.MethodPost, c.AcceptRequestPresentation),
		cmdutil.NewHTTPHandler(negotiateRequestPresentation, http.MethodPost, c.NegotiateRequestPresentation),
		cmdutil.NewHTTPHandler(declineRequestPresentation, http.MethodPost, c.DeclineRequestPresentation),
		cmdutil.NewHTTPHandler(acceptProposePresentation, http.MethodPost, c.AcceptProposePresentation),
		cmdutil.NewHTTPHandler(negotiateProposePresentation, http.MethodPost, c.NegotiateProposePresentation),
		cmdutil.NewHTTPHandler(declineProposePresentation, http.MethodPost, c.DeclineProposePresentation),
		cmdutil.NewHTTPHandler(acceptPresentation, http.MethodPost, c.AcceptPresentation),
		cmdutil.NewHTTPHandler(problemReport, http.MethodPost, c.SendProblemReport),
		cmdutil.NewHTTPHandler(records, http.MethodGet, c.Records),
		cmdutil.NewHTTPHandler(record, http.MethodGet, c.Record),
		cmdutil.NewHTTPHandler(formatData, http.MethodGet, c.FormatData),
		cmdutil.NewHTTPHandler(record, http.MethodDelete, c.RemoveRecord),
	}
}

// SendRequestPresentation swagger:route POST /presentproof/send-request-presentation present-proof presentProofSendRequestPresentation
//
// Sends a request presentation.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) SendRequestPresentation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.SendRequestPresentation, rw, req.Body)
}

// SendProposePresentation swagger:route POST /presentproof/send-propose-presentation present-proof presentProofSendProposePresentation
//
// Sends a propose presentation.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) SendProposePresentation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.SendProposePresentation, rw, req.Body)
}

// CreateRequestForInvitation swagger:route POST /presentproof/create-request-for-invitation present-proof presentProofCreateRequestForInvitation
//
// Creates a request presentation to embed in an out-of-band invitation.
//
// Responses:
//    default: genericError
//        200: presentProofInvitationMessageResponse
func (c *Operation) CreateRequestForInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.CreateRequestForInvitation, rw, req.Body)
}

// AcceptRequestPresentation swagger:route POST /presentproof/{id}/accept-request-presentation present-proof presentProofAcceptRequestPresentation
//
// Accepts a request presentation by presenting.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) AcceptRequestPresentation(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.AcceptRequestPresentation, rw, req)
}

// NegotiateRequestPresentation swagger:route POST /presentproof/{id}/negotiate-request-presentation present-proof presentProofNegotiateRequestPresentation
//
// Answers a request presentation with a counter proposal.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) NegotiateRequestPresentation(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.NegotiateRequestPresentation, rw, req)
}

// DeclineRequestPresentation swagger:route POST /presentproof/{id}/decline-request-presentation present-proof presentProofDeclineRequestPresentation
//
// Declines a request presentation.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) DeclineRequestPresentation(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.DeclineRequestPresentation, rw, req)
}

// AcceptProposePresentation swagger:route POST /presentproof/{id}/accept-propose-presentation present-proof presentProofAcceptProposePresentation
//
// Accepts a propose presentation by sending a request.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) AcceptProposePresentation(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.AcceptProposePresentation, rw, req)
}

// NegotiateProposePresentation swagger:route POST /presentproof/{id}/negotiate-propose-presentation present-proof presentProofNegotiateProposePresentation
//
// Answers a propose presentation with a different request.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) NegotiateProposePresentation(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.NegotiateProposePresentation, rw, req)
}

// DeclineProposePresentation swagger:route POST /presentproof/{id}/decline-propose-presentation present-proof presentProofDeclineProposePresentation
//
// Declines a propose presentation.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) DeclineProposePresentation(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.DeclineProposePresentation, rw, req)
}

// AcceptPresentation swagger:route POST /presentproof/{id}/accept-presentation present-proof presentProofAcceptPresentation
//
// Acknowledges a verified presentation.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) AcceptPresentation(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.AcceptPresentation, rw, req)
}

// SendProblemReport swagger:route POST /presentproof/{id}/problem-report present-proof presentProofSendProblemReport
//
// Abandons the exchange with a problem report.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) SendProblemReport(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.SendProblemReport, rw, req)
}

// Records swagger:route GET /presentproof/records present-proof presentProofRecords
//
// Returns the records matching the query parameters.
//
// Responses:
//    default: genericError
//        200: presentProofRecordsResponse
func (c *Operation) Records(rw http.ResponseWriter, req *http.Request) {
	rest.ExecuteWithQuery(c.command.Records, rw, req)
}

// Record swagger:route GET /presentproof/records/{id} present-proof presentProofRecord
//
// Returns a record.
//
// Responses:
//    default: genericError
//        200: presentProofRecordResponse
func (c *Operation) Record(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.Record, rw, req)
}

// FormatData swagger:route GET /presentproof/records/{id}/format-data present-proof presentProofFormatData
//
// Returns the format payloads of a record.
//
// Responses:
//    default: genericError
//        200: presentProofFormatDataResponse
func (c *Operation) FormatData(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.FormatData, rw, req)
}

// RemoveRecord swagger:route DELETE /presentproof/records/{id} present-proof presentProofRemoveRecord
//
// Removes a record.
//
// Responses:
//    default: genericError
func (c *Operation) RemoveRecord(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.RemoveRecord, rw, req)
}

func (c *Operation) onRecord(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	rest.ExecuteWithPathParams(exec, rw, req, presentproof.InvalidRequestErrorCode,
		map[string]string{"record_id": "id"})
}

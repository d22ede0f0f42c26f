/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"fmt"
	"net/http"

	client "github.com/hyperledger/aries-exchange-go/pkg/client/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/rest"
)

const (
	operationID                    = "/outofband"
	createInvitation               = operationID + "/create-invitation"
	acceptInvitation               = operationID + "/accept-invitation"
	connectPublicDID               = operationID + "/connect-public-did"
	createConnectionlessInvitation = operationID + "/create-connectionless-invitation"
	actionContinue                 = operationID + "/{id}/action-continue"
	records                        = operationID + "/records"
	record                         = records + "/{id}"
)

// Operation is controller REST service controller for outofband.
type Operation struct {
	command  *outofband.Command
	handlers []rest.Handler
}

// New returns new outofband rest client protocol instance.
func New(ctx client.Provider, notifier command.Notifier) (*Operation, error) {
	cmd, err := outofband.New(ctx, notifier)
	if err != nil {
		return nil, fmt.Errorf("outofband command : %w", err)
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
		cmdutil.NewHTTPHandler(createInvitation, http.MethodPost, c.CreateInvitation),
		cmdutil.NewHTTPHandler(acceptInvitation, http.MethodPost, c.AcceptInvitation),
		cmdutil.NewHTTPHandler(connectPublicDID, http.MethodPost, c.ConnectPublicDID),
		cmdutil.NewHTTPHandler(createConnectionlessInvitation, http.MethodPost, c.CreateConnectionlessInvitation),
		cmdutil.NewHTTPHandler(actionContinue, http.MethodPost, c.ActionContinue),
		cmdutil.NewHTTPHandler(records, http.MethodGet, c.Records),
		cmdutil.NewHTTPHandler(record, http.MethodGet, c.Record),
		cmdutil.NewHTTPHandler(record, http.MethodDelete, c.RemoveRecord),
	}
}

// CreateInvitation swagger:route POST /outofband/create-invitation outofband outofbandCreateInvitation
//
// Creates an invitation and returns it with its URL.
//
// Responses:
//    default: genericError
//        200: outofbandCreateInvitationResponse
func (c *Operation) CreateInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.CreateInvitation, rw, req.Body)
}

// AcceptInvitation swagger:route POST /outofband/accept-invitation outofband outofbandAcceptInvitation
//
// Accepts an invitation given as JSON or as a URL.
//
// Responses:
//    default: genericError
//        200: outofbandConnectionResponse
func (c *Operation) AcceptInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.AcceptInvitation, rw, req.Body)
}

// ConnectPublicDID swagger:route POST /outofband/connect-public-did outofband outofbandConnectPublicDID
//
// Connects to the owner of a public DID.
//
// Responses:
//    default: genericError
//        200: outofbandConnectionResponse
func (c *Operation) ConnectPublicDID(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.ConnectPublicDID, rw, req.Body)
}

// CreateConnectionlessInvitation swagger:route POST /outofband/create-connectionless-invitation outofband outofbandCreateConnectionlessInvitation
//
// Wraps a message in a connection-less invitation URL.
//
// Responses:
//    default: genericError
//        200: outofbandCreateConnectionlessResponse
func (c *Operation) CreateConnectionlessInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.CreateConnectionlessInvitation, rw, req.Body)
}

// ActionContinue swagger:route POST /outofband/{id}/action-continue outofband outofbandActionContinue
//
// Accepts an invitation received with manual_accept.
//
// Responses:
//    default: genericError
//        200: outofbandConnectionResponse
func (c *Operation) ActionContinue(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.ActionContinue, rw, req)
}

// Records swagger:route GET /outofband/records outofband outofbandRecords
//
// Returns the records matching the query parameters.
//
// Responses:
//    default: genericError
//        200: outofbandRecordsResponse
func (c *Operation) Records(rw http.ResponseWriter, req *http.Request) {
	rest.ExecuteWithQuery(c.command.Records, rw, req)
}

// Record swagger:route GET /outofband/records/{id} outofband outofbandRecord
//
// Returns a record.
//
// Responses:
//    default: genericError
//        200: outofbandRecordResponse
func (c *Operation) Record(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.Record, rw, req)
}

// RemoveRecord swagger:route DELETE /outofband/records/{id} outofband outofbandRemoveRecord
//
// Removes a record.
//
// Responses:
//    default: genericError
func (c *Operation) RemoveRecord(rw http.ResponseWriter, req *http.Request) {
	c.onRecord(c.command.RemoveRecord, rw, req)
}

func (c *Operation) onRecord(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	rest.ExecuteWithPathParams(exec, rw, req, outofband.InvalidRequestErrorCode,
		map[string]string{"record_id": "id"})
}

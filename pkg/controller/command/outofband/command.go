/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/client/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/webnotifier"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	protocol "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-exchange-go/pkg/internal/logutil"
)

const (
	// InvalidRequestErrorCode is typically a code for validation errors
	// for invalid outofband controller requests.
	InvalidRequestErrorCode = command.Code(iota + command.Outofband)
	// CreateInvitationErrorCode is for failures in create invitation command.
	CreateInvitationErrorCode
	// AcceptInvitationErrorCode is for failures in accept invitation command.
	AcceptInvitationErrorCode
	// ConnectPublicDIDErrorCode is for failures in connect public DID command.
	ConnectPublicDIDErrorCode
	// ActionContinueErrorCode is for failures in action continue command.
	ActionContinueErrorCode
	// CreateConnectionlessErrorCode is for failures in create connection-less invitation command.
	CreateConnectionlessErrorCode
	// RecordsErrorCode is for failures in the record lookup commands.
	RecordsErrorCode
)

const (
	// CommandName is the name of the outofband command.
	CommandName = "outofband"

	CreateInvitation               = "CreateInvitation"
	AcceptInvitation               = "AcceptInvitation"
	ConnectPublicDID               = "ConnectPublicDID"
	ActionContinue                 = "ActionContinue"
	CreateConnectionlessInvitation = "CreateConnectionlessInvitation"
	Records                        = "Records"
	Record                         = "Record"
	RemoveRecord                   = "RemoveRecord"

	// error messages.
	errEmptyInvitation = "an invitation or an invitation URL must be provided"
	errBothInvitations = "provide either an invitation or an invitation URL, not both"
	errEmptyDID        = "empty DID"
	errEmptyRecordID   = "empty record ID"
	errEmptyMessage    = "empty message"

	successString = "success"

	_states = "_states"
)

var logger = log.New("aries-framework/controller/outofband")

// Command is controller command for outofband.
type Command struct {
	client *outofband.Client
}

// New returns new outofband controller command instance. Record state changes are published to
// the notifier on the "out-of-band_states" topic.
func New(ctx outofband.Provider, notifier command.Notifier) (*Command, error) {
	client, err := outofband.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create a client: %w", err)
	}

	states := make(chan service.StateMsg)
	if err = client.RegisterMsgEvent(states); err != nil {
		return nil, fmt.Errorf("register msg event: %w", err)
	}

	webnotifier.NewObserver(notifier).RegisterStateMsg(protocol.Name+_states, states)

	return &Command{client: client}, nil
}

// GetHandlers returns list of all commands supported by this controller command.
func (c *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		cmdutil.NewCommandHandler(CommandName, CreateInvitation, c.CreateInvitation),
		cmdutil.NewCommandHandler(CommandName, AcceptInvitation, c.AcceptInvitation),
		cmdutil.NewCommandHandler(CommandName, ConnectPublicDID, c.ConnectPublicDID),
		cmdutil.NewCommandHandler(CommandName, ActionContinue, c.ActionContinue),
		cmdutil.NewCommandHandler(CommandName, CreateConnectionlessInvitation, c.CreateConnectionlessInvitation),
		cmdutil.NewCommandHandler(CommandName, Records, c.Records),
		cmdutil.NewCommandHandler(CommandName, Record, c.Record),
		cmdutil.NewCommandHandler(CommandName, RemoveRecord, c.RemoveRecord),
	}
}

// CreateInvitation creates and saves an out-of-band invitation and returns it with its URL.
// Protocols is an optional list of handshake protocols. DID Exchange is used when neither
// protocols nor requests are given.
func (c *Command) CreateInvitation(rw io.Writer, req io.Reader) command.Error {
	var args CreateInvitationArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, CreateInvitation, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	opts := []outofband.MessageOption{
		outofband.WithInvitationID(args.InvitationID),
		outofband.WithLabel(args.Label),
		outofband.WithGoal(args.Goal, args.GoalCode),
		outofband.WithImageURL(args.ImageURL),
		outofband.WithAlias(args.Alias),
		outofband.WithServices(args.Service...),
		outofband.WithHandshakeProtocols(args.Protocols...),
		outofband.WithMessages(args.Requests...),
		outofband.WithRouterConnections(args.RouterConnectionID),
	}

	if args.MultiUse {
		opts = append(opts, outofband.WithMultiUse())
	}

	if args.AutoAccept {
		opts = append(opts, outofband.WithAutoAcceptConnection())
	}

	invURL, inv, err := c.client.CreateInvitationURL(context.Background(), opts...)
	if err != nil {
		logutil.LogError(logger, CommandName, CreateInvitation, err.Error())

		return command.NewProtocolError(CreateInvitationErrorCode, err)
	}

	command.WriteNillableResponse(rw, &CreateInvitationResponse{
		Invitation:    inv,
		InvitationURL: invURL,
	}, logger)

	logutil.LogDebug(logger, CommandName, CreateInvitation, successString,
		logutil.CreateKeyValueString("invitationID", inv.ID))

	return nil
}

// AcceptInvitation from another agent and return the ID of the connection it resolved to.
func (c *Command) AcceptInvitation(rw io.Writer, req io.Reader) command.Error {
	var args AcceptInvitationArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, AcceptInvitation, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if args.Invitation == nil && args.InvitationURL == "" {
		logutil.LogDebug(logger, CommandName, AcceptInvitation, errEmptyInvitation)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyInvitation))
	}

	if args.Invitation != nil && args.InvitationURL != "" {
		logutil.LogDebug(logger, CommandName, AcceptInvitation, errBothInvitations)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errBothInvitations))
	}

	opts := []outofband.MessageOption{
		outofband.WithLabel(args.MyLabel),
		outofband.WithAlias(args.Alias),
		outofband.WithRouterConnections(args.RouterConnections),
	}

	if args.ReuseConnection {
		opts = append(opts, outofband.WithReuseConnection())
	}

	if args.AutoAccept {
		opts = append(opts, outofband.WithAutoAcceptConnection())
	}

	if args.ManualAccept {
		opts = append(opts, outofband.WithManualAccept())
	}

	var (
		connID string
		err    error
	)

	if args.Invitation != nil {
		connID, err = c.client.AcceptInvitation(context.Background(), args.Invitation, opts...)
	} else {
		connID, err = c.client.AcceptInvitationURL(context.Background(), args.InvitationURL, opts...)
	}

	return writeConnection(rw, AcceptInvitation, AcceptInvitationErrorCode, connID, err)
}

// ConnectPublicDID connects to the owner of a public DID through an implicit invitation.
func (c *Command) ConnectPublicDID(rw io.Writer, req io.Reader) command.Error {
	var args ConnectPublicDIDArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, ConnectPublicDID, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if args.DID == "" {
		logutil.LogDebug(logger, CommandName, ConnectPublicDID, errEmptyDID)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyDID))
	}

	opts := []outofband.MessageOption{
		outofband.WithLabel(args.MyLabel),
		outofband.WithHandshakeProtocols(args.Protocols...),
		outofband.WithRouterConnections(args.RouterConnections),
	}

	if args.AutoAccept {
		opts = append(opts, outofband.WithAutoAcceptConnection())
	}

	connID, err := c.client.ConnectToPublicDID(context.Background(), args.DID, opts...)

	return writeConnection(rw, ConnectPublicDID, ConnectPublicDIDErrorCode, connID, err)
}

// ActionContinue accepts an invitation previously received with manual_accept.
func (c *Command) ActionContinue(rw io.Writer, req io.Reader) command.Error {
	var args ActionContinueArgs

	if cmdErr := decodeRecordArgs(ActionContinue, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	opts := []outofband.MessageOption{
		outofband.WithLabel(args.Label),
		outofband.WithAlias(args.Alias),
		outofband.WithRouterConnections(args.RouterConnections),
	}

	if args.ReuseConnection {
		opts = append(opts, outofband.WithReuseConnection())
	}

	if args.AutoAccept {
		opts = append(opts, outofband.WithAutoAcceptConnection())
	}

	connID, err := c.client.ActionContinue(context.Background(), args.RecordID, opts...)

	return writeConnection(rw, ActionContinue, ActionContinueErrorCode, connID, err)
}

// CreateConnectionlessInvitation wraps a message in a legacy connection-less invitation URL.
func (c *Command) CreateConnectionlessInvitation(rw io.Writer, req io.Reader) command.Error {
	var args CreateConnectionlessArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, CreateConnectionlessInvitation, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if len(args.Message) == 0 {
		logutil.LogDebug(logger, CommandName, CreateConnectionlessInvitation, errEmptyMessage)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyMessage))
	}

	invURL, err := c.client.CreateConnectionlessURL(context.Background(), args.Message,
		outofband.WithRouterConnections(args.RouterConnections))
	if err != nil {
		logutil.LogError(logger, CommandName, CreateConnectionlessInvitation, err.Error())

		return command.NewProtocolError(CreateConnectionlessErrorCode, err)
	}

	command.WriteNillableResponse(rw, &CreateConnectionlessResponse{InvitationURL: invURL}, logger)

	logutil.LogDebug(logger, CommandName, CreateConnectionlessInvitation, successString)

	return nil
}

// Records returns the out-of-band records matching the query. An empty request returns every record.
func (c *Command) Records(rw io.Writer, req io.Reader) command.Error {
	var q outofband.Query

	if err := json.NewDecoder(req).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
		logutil.LogInfo(logger, CommandName, Records, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	records, err := c.client.Records(&q)
	if err != nil {
		logutil.LogError(logger, CommandName, Records, err.Error())

		return command.NewProtocolError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &RecordsResponse{Records: records}, logger)

	logutil.LogDebug(logger, CommandName, Records, successString)

	return nil
}

// Record returns the out-of-band record with the given ID.
func (c *Command) Record(rw io.Writer, req io.Reader) command.Error {
	var args RecordIDArgs

	if cmdErr := decodeRecordArgs(Record, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	rec, err := c.client.Record(args.RecordID)
	if err != nil {
		logutil.LogError(logger, CommandName, Record, err.Error())

		return command.NewProtocolError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &RecordResponse{Record: rec}, logger)

	logutil.LogDebug(logger, CommandName, Record, successString)

	return nil
}

// RemoveRecord removes the out-of-band record with the given ID.
func (c *Command) RemoveRecord(rw io.Writer, req io.Reader) command.Error {
	var args RecordIDArgs

	if cmdErr := decodeRecordArgs(RemoveRecord, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	if err := c.client.RemoveRecord(args.RecordID); err != nil {
		logutil.LogError(logger, CommandName, RemoveRecord, err.Error())

		return command.NewProtocolError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, nil, logger)

	logutil.LogDebug(logger, CommandName, RemoveRecord, successString,
		logutil.CreateKeyValueString("recordID", args.RecordID))

	return nil
}

func decodeRecordArgs(name string, req io.Reader, args interface{}, recordID *string) command.Error {
	if err := json.NewDecoder(req).Decode(args); err != nil {
		logutil.LogInfo(logger, CommandName, name, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if *recordID == "" {
		logutil.LogDebug(logger, CommandName, name, errEmptyRecordID)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyRecordID))
	}

	return nil
}

func writeConnection(rw io.Writer, name string, code command.Code, connID string, err error) command.Error {
	if err != nil {
		logutil.LogError(logger, CommandName, name, err.Error())

		return command.NewProtocolError(code, err)
	}

	command.WriteNillableResponse(rw, &ConnectionResponse{ConnectionID: connID}, logger)

	logutil.LogDebug(logger, CommandName, name, successString,
		logutil.CreateKeyValueString("connectionID", connID))

	return nil
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/internal/cmdutil"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/webnotifier"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	protocol "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-exchange-go/pkg/internal/logutil"
)

var logger = log.New("aries-framework/controller/issuecredential")

const (
	// InvalidRequestErrorCode is typically a code for validation errors
	// for invalid issue credential controller requests.
	InvalidRequestErrorCode = command.Code(iota + command.IssueCredential)
	// SendProposalErrorCode failures in send proposal command.
	SendProposalErrorCode
	// SendOfferErrorCode failures in send offer command.
	SendOfferErrorCode
	// SendRequestErrorCode failures in send request command.
	SendRequestErrorCode
	// CreateOfferErrorCode failures in create offer for invitation command.
	CreateOfferErrorCode
	// AcceptProposalErrorCode is for failures in accept proposal command.
	AcceptProposalErrorCode
	// NegotiateProposalErrorCode is for failures in negotiate proposal command.
	NegotiateProposalErrorCode
	// DeclineProposalErrorCode is for failures in decline proposal command.
	DeclineProposalErrorCode
	// AcceptOfferErrorCode is for failures in accept offer command.
	AcceptOfferErrorCode
	// NegotiateOfferErrorCode is for failures in negotiate offer command.
	NegotiateOfferErrorCode
	// DeclineOfferErrorCode is for failures in decline offer command.
	DeclineOfferErrorCode
	// AcceptRequestErrorCode is for failures in accept request command.
	AcceptRequestErrorCode
	// AcceptCredentialErrorCode is for failures in accept credential command.
	AcceptCredentialErrorCode
	// SendProblemReportErrorCode is for failures in send problem report command.
	SendProblemReportErrorCode
	// RecordsErrorCode is for failures in the record lookup commands.
	RecordsErrorCode
)

// constants for issue credential commands.
const (
	// command name.
	CommandName = "issuecredential"

	SendProposal             = "SendProposal"
	SendOffer                = "SendOffer"
	SendRequest              = "SendRequest"
	CreateOfferForInvitation = "CreateOfferForInvitation"
	AcceptProposal           = "AcceptProposal"
	NegotiateProposal        = "NegotiateProposal"
	DeclineProposal          = "DeclineProposal"
	AcceptOffer              = "AcceptOffer"
	NegotiateOffer           = "NegotiateOffer"
	DeclineOffer             = "DeclineOffer"
	AcceptRequest            = "AcceptRequest"
	AcceptCredential         = "AcceptCredential"
	SendProblemReport        = "SendProblemReport"
	Records                  = "Records"
	Record                   = "Record"
	FormatData               = "FormatData"
	RemoveRecord             = "RemoveRecord"
)

const (
	// error messages.
	errEmptyRecordID     = "empty record ID"
	errEmptyConnectionID = "empty connection ID"
	errEmptyFormats      = "at least one credential format must be provided"
	errEmptyDescription  = "empty problem description"
	// log constants.
	successString = "success"

	_actions = "_actions"
	_states  = "_states"
)

// ProtocolService is the issue credential service the command drives.
type ProtocolService interface {
	service.Event
	ProposeCredential(ctx context.Context, params *protocol.ProposeCredentialParams) (*exchange.Record, error)
	OfferCredential(ctx context.Context, params *protocol.OfferCredentialParams) (*exchange.Record, error)
	CreateOfferForInvitation(ctx context.Context,
		params *protocol.OfferCredentialParams) (*exchange.Record, service.DIDCommMsgMap, error)
	RequestCredential(ctx context.Context, params *protocol.RequestCredentialParams) (*exchange.Record, error)
	AcceptProposal(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	NegotiateProposal(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	DeclineProposal(ctx context.Context, recordID string, sendProblemReport bool) (*exchange.Record, error)
	AcceptOffer(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	NegotiateOffer(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	DeclineOffer(ctx context.Context, recordID string, sendProblemReport bool) (*exchange.Record, error)
	AcceptRequest(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	AcceptCredential(ctx context.Context, recordID string) (*exchange.Record, error)
	SendProblemReport(ctx context.Context, recordID, description string) (*exchange.Record, error)
	GetFormatData(recordID string) (*exchange.FormatData, error)
	Get(recordID string) (*exchange.Record, error)
	FindAllByQuery(q *exchange.Query) ([]*exchange.Record, error)
	Delete(recordID string) error
}

// Provider contains dependencies for the issuecredential command and is typically created by using agent.Context().
type Provider interface {
	Service(id string) (interface{}, error)
}

// Command is controller command for issue credential.
type Command struct {
	svc ProtocolService
}

// New returns new issue credential controller command instance. State and action events of the
// protocol are published to the notifier on the "issue-credential_states" and
// "issue-credential_actions" topics.
func New(ctx Provider, notifier command.Notifier) (*Command, error) {
	raw, err := ctx.Service(protocol.Name)
	if err != nil {
		return nil, fmt.Errorf("cannot create a client: %w", err)
	}

	svc, ok := raw.(ProtocolService)
	if !ok {
		return nil, errors.New("cannot create a client: cast service to issuecredential service failed")
	}

	states := make(chan service.StateMsg)
	if err = svc.RegisterMsgEvent(states); err != nil {
		return nil, fmt.Errorf("register msg event: %w", err)
	}

	actions := make(chan service.DIDCommAction)
	if err = svc.RegisterActionEvent(actions); err != nil {
		return nil, fmt.Errorf("register action event: %w", err)
	}

	obs := webnotifier.NewObserver(notifier)
	obs.RegisterStateMsg(protocol.Name+_states, states)
	obs.RegisterAction(protocol.Name+_actions, actions)

	return &Command{svc: svc}, nil
}

// GetHandlers returns list of all commands supported by this controller command.
func (c *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		cmdutil.NewCommandHandler(CommandName, SendProposal, c.SendProposal),
		cmdutil.NewCommandHandler(CommandName, SendOffer, c.SendOffer),
		cmdutil.NewCommandHandler(CommandName, SendRequest, c.SendRequest),
		cmdutil.NewCommandHandler(CommandName, CreateOfferForInvitation, c.CreateOfferForInvitation),
		cmdutil.NewCommandHandler(CommandName, AcceptProposal, c.AcceptProposal),
		cmdutil.NewCommandHandler(CommandName, NegotiateProposal, c.NegotiateProposal),
		cmdutil.NewCommandHandler(CommandName, DeclineProposal, c.DeclineProposal),
		cmdutil.NewCommandHandler(CommandName, AcceptOffer, c.AcceptOffer),
		cmdutil.NewCommandHandler(CommandName, NegotiateOffer, c.NegotiateOffer),
		cmdutil.NewCommandHandler(CommandName, DeclineOffer, c.DeclineOffer),
		cmdutil.NewCommandHandler(CommandName, AcceptRequest, c.AcceptRequest),
		cmdutil.NewCommandHandler(CommandName, AcceptCredential, c.AcceptCredential),
		cmdutil.NewCommandHandler(CommandName, SendProblemReport, c.SendProblemReport),
		cmdutil.NewCommandHandler(CommandName, Records, c.Records),
		cmdutil.NewCommandHandler(CommandName, Record, c.Record),
		cmdutil.NewCommandHandler(CommandName, FormatData, c.FormatData),
		cmdutil.NewCommandHandler(CommandName, RemoveRecord, c.RemoveRecord),
	}
}

// SendProposal is used by the Holder to open an exchange with a proposal.
func (c *Command) SendProposal(rw io.Writer, req io.Reader) command.Error {
	args, autoAccept, cmdErr := decodeStartArgs(SendProposal, req, true)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.ProposeCredential(context.Background(), &protocol.ProposeCredentialParams{
		ProtocolVersion:   args.ProtocolVersion,
		ConnectionID:      args.ConnectionID,
		ParentThreadID:    args.ParentThreadID,
		Comment:           args.Comment,
		GoalCode:          args.GoalCode,
		CredentialPreview: args.CredentialPreview,
		Formats:           formatParams(args.Formats),
		AutoAccept:        autoAccept,
	})

	return writeRecord(rw, SendProposal, SendProposalErrorCode, rec, err)
}

// SendOffer is used by the Issuer to open an exchange with an offer.
func (c *Command) SendOffer(rw io.Writer, req io.Reader) command.Error {
	args, autoAccept, cmdErr := decodeStartArgs(SendOffer, req, true)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.OfferCredential(context.Background(), offerParams(args, autoAccept))

	return writeRecord(rw, SendOffer, SendOfferErrorCode, rec, err)
}

// SendRequest is used by the Holder to request a credential without a prior offer.
func (c *Command) SendRequest(rw io.Writer, req io.Reader) command.Error {
	args, autoAccept, cmdErr := decodeStartArgs(SendRequest, req, true)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.RequestCredential(context.Background(), &protocol.RequestCredentialParams{
		ProtocolVersion: args.ProtocolVersion,
		ConnectionID:    args.ConnectionID,
		ParentThreadID:  args.ParentThreadID,
		Comment:         args.Comment,
		Formats:         formatParams(args.Formats),
		AutoAccept:      autoAccept,
	})

	return writeRecord(rw, SendRequest, SendRequestErrorCode, rec, err)
}

// CreateOfferForInvitation creates a connection-less offer for an out-of-band invitation. The
// parent thread ID should be the id of the invitation the offer is embedded in.
func (c *Command) CreateOfferForInvitation(rw io.Writer, req io.Reader) command.Error {
	args, autoAccept, cmdErr := decodeStartArgs(CreateOfferForInvitation, req, false)
	if cmdErr != nil {
		return cmdErr
	}

	rec, msg, err := c.svc.CreateOfferForInvitation(context.Background(), offerParams(args, autoAccept))
	if err != nil {
		logutil.LogError(logger, CommandName, CreateOfferForInvitation, err.Error())

		return command.NewProtocolError(CreateOfferErrorCode, err)
	}

	command.WriteNillableResponse(rw, &InvitationMessageResponse{Record: rec, Message: msg}, logger)

	logutil.LogDebug(logger, CommandName, CreateOfferForInvitation, successString,
		logutil.CreateKeyValueString("recordID", rec.ID))

	return nil
}

// AcceptProposal is used when the Issuer is willing to accept the proposal.
func (c *Command) AcceptProposal(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, AcceptProposal, AcceptProposalErrorCode, c.svc.AcceptProposal)
}

// NegotiateProposal is used when the Issuer answers a proposal with a different offer.
func (c *Command) NegotiateProposal(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, NegotiateProposal, NegotiateProposalErrorCode, c.svc.NegotiateProposal)
}

// DeclineProposal is used when the Issuer does not want to accept the proposal.
func (c *Command) DeclineProposal(rw io.Writer, req io.Reader) command.Error {
	return c.decline(rw, req, DeclineProposal, DeclineProposalErrorCode, c.svc.DeclineProposal)
}

// AcceptOffer is used when the Holder is willing to accept the offer.
func (c *Command) AcceptOffer(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, AcceptOffer, AcceptOfferErrorCode, c.svc.AcceptOffer)
}

// NegotiateOffer is used when the Holder answers an offer with a counter-proposal.
func (c *Command) NegotiateOffer(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, NegotiateOffer, NegotiateOfferErrorCode, c.svc.NegotiateOffer)
}

// DeclineOffer is used when the Holder does not want to accept the offer.
func (c *Command) DeclineOffer(rw io.Writer, req io.Reader) command.Error {
	return c.decline(rw, req, DeclineOffer, DeclineOfferErrorCode, c.svc.DeclineOffer)
}

// AcceptRequest is used when the Issuer is willing to issue the credential.
func (c *Command) AcceptRequest(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, AcceptRequest, AcceptRequestErrorCode, c.svc.AcceptRequest)
}

// AcceptCredential is used when the Holder acknowledges the received credential.
func (c *Command) AcceptCredential(rw io.Writer, req io.Reader) command.Error {
	var args RecordIDArgs

	if cmdErr := decodeRecordArgs(AcceptCredential, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.AcceptCredential(context.Background(), args.RecordID)

	return writeRecord(rw, AcceptCredential, AcceptCredentialErrorCode, rec, err)
}

// SendProblemReport abandons the exchange and tells the counterpart why.
func (c *Command) SendProblemReport(rw io.Writer, req io.Reader) command.Error {
	var args ProblemReportArgs

	if cmdErr := decodeRecordArgs(SendProblemReport, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	if args.Description == "" {
		logutil.LogDebug(logger, CommandName, SendProblemReport, errEmptyDescription)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyDescription))
	}

	rec, err := c.svc.SendProblemReport(context.Background(), args.RecordID, args.Description)

	return writeRecord(rw, SendProblemReport, SendProblemReportErrorCode, rec, err)
}

// Records returns the records matching the query. An empty query returns every record.
func (c *Command) Records(rw io.Writer, req io.Reader) command.Error {
	var q exchange.Query

	if err := json.NewDecoder(req).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
		logutil.LogInfo(logger, CommandName, Records, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	records, err := c.svc.FindAllByQuery(&q)
	if err != nil {
		logutil.LogError(logger, CommandName, Records, err.Error())

		return command.NewProtocolError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &RecordsResponse{Records: records}, logger)

	logutil.LogDebug(logger, CommandName, Records, successString)

	return nil
}

// Record returns the record with the given ID.
func (c *Command) Record(rw io.Writer, req io.Reader) command.Error {
	var args RecordIDArgs

	if cmdErr := decodeRecordArgs(Record, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.Get(args.RecordID)

	return writeRecord(rw, Record, RecordsErrorCode, rec, err)
}

// FormatData returns the latest payload of every format for each stage of the record.
func (c *Command) FormatData(rw io.Writer, req io.Reader) command.Error {
	var args RecordIDArgs

	if cmdErr := decodeRecordArgs(FormatData, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	data, err := c.svc.GetFormatData(args.RecordID)
	if err != nil {
		logutil.LogError(logger, CommandName, FormatData, err.Error())

		return command.NewProtocolError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &FormatDataResponse{FormatData: data}, logger)

	logutil.LogDebug(logger, CommandName, FormatData, successString)

	return nil
}

// RemoveRecord deletes the record with the given ID.
func (c *Command) RemoveRecord(rw io.Writer, req io.Reader) command.Error {
	var args RecordIDArgs

	if cmdErr := decodeRecordArgs(RemoveRecord, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	if err := c.svc.Delete(args.RecordID); err != nil {
		logutil.LogError(logger, CommandName, RemoveRecord, err.Error())

		return command.NewProtocolError(RecordsErrorCode, err)
	}

	command.WriteNillableResponse(rw, nil, logger)

	logutil.LogDebug(logger, CommandName, RemoveRecord, successString)

	return nil
}

type acceptFunc func(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)

func (c *Command) accept(rw io.Writer, req io.Reader, name string, code command.Code, fn acceptFunc) command.Error {
	var args AcceptArgs

	if cmdErr := decodeRecordArgs(name, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	rec, err := fn(context.Background(), args.RecordID, &protocol.AcceptParams{
		Comment:           args.Comment,
		CredentialPreview: args.CredentialPreview,
		Formats:           formatParams(args.Formats),
	})

	return writeRecord(rw, name, code, rec, err)
}

type declineFunc func(ctx context.Context, recordID string, sendProblemReport bool) (*exchange.Record, error)

func (c *Command) decline(rw io.Writer, req io.Reader, name string, code command.Code, fn declineFunc) command.Error {
	var args DeclineArgs

	if cmdErr := decodeRecordArgs(name, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	rec, err := fn(context.Background(), args.RecordID, args.SendProblemReport)

	return writeRecord(rw, name, code, rec, err)
}

func decodeStartArgs(name string, req io.Reader, connected bool) (*StartArgs, exchange.AutoAccept, command.Error) {
	var args StartArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, name, err.Error())

		return nil, "", command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if connected && args.ConnectionID == "" {
		logutil.LogDebug(logger, CommandName, name, errEmptyConnectionID)

		return nil, "", command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyConnectionID))
	}

	if len(args.Formats) == 0 {
		logutil.LogDebug(logger, CommandName, name, errEmptyFormats)

		return nil, "", command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyFormats))
	}

	autoAccept, err := exchange.ParseAutoAccept(args.AutoAccept)
	if err != nil {
		logutil.LogDebug(logger, CommandName, name, err.Error())

		return nil, "", command.NewValidationError(InvalidRequestErrorCode, err)
	}

	return &args, autoAccept, nil
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

func writeRecord(rw io.Writer, name string, code command.Code, rec *exchange.Record, err error) command.Error {
	if err != nil {
		logutil.LogError(logger, CommandName, name, err.Error())

		return command.NewProtocolError(code, err)
	}

	command.WriteNillableResponse(rw, &RecordResponse{Record: rec}, logger)

	logutil.LogDebug(logger, CommandName, name, successString,
		logutil.CreateKeyValueString("recordID", rec.ID),
		logutil.CreateKeyValueString("state", string(rec.State)))

	return nil
}

func offerParams(args *StartArgs, autoAccept exchange.AutoAccept) *protocol.OfferCredentialParams {
	return &protocol.OfferCredentialParams{
		ProtocolVersion:   args.ProtocolVersion,
		ConnectionID:      args.ConnectionID,
		ParentThreadID:    args.ParentThreadID,
		Comment:           args.Comment,
		GoalCode:          args.GoalCode,
		CredentialPreview: args.CredentialPreview,
		Formats:           formatParams(args.Formats),
		AutoAccept:        autoAccept,
	}
}

// formatParams hands the raw JSON of each format to its plugin, which decodes it.
func formatParams(formats map[string]json.RawMessage) map[string]interface{} {
	if len(formats) == 0 {
		return nil
	}

	params := make(map[string]interface{}, len(formats))

	for key, raw := range formats {
		params[key] = raw
	}

	return params
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

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
	protocol "github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/presentproof"
	"github.com/hyperledger/aries-exchange-go/pkg/internal/logutil"
)

var logger = log.New("aries-framework/controller/presentproof")

const (
	// InvalidRequestErrorCode is typically a code for validation errors
	// for invalid present proof controller requests.
	InvalidRequestErrorCode = command.Code(iota + command.PresentProof)
	// SendProposalErrorCode is for failures in send propose presentation command.
	SendProposalErrorCode
	// SendRequestErrorCode is for failures in send request presentation command.
	SendRequestErrorCode
	// CreateRequestErrorCode is for failures in create request for invitation command.
	CreateRequestErrorCode
	// AcceptProposalErrorCode is for failures in accept propose presentation command.
	AcceptProposalErrorCode
	// NegotiateProposalErrorCode is for failures in negotiate propose presentation command.
	NegotiateProposalErrorCode
	// DeclineProposalErrorCode is for failures in decline propose presentation command.
	DeclineProposalErrorCode
	// AcceptRequestErrorCode is for failures in accept request presentation command.
	AcceptRequestErrorCode
	// NegotiateRequestErrorCode is for failures in negotiate request presentation command.
	NegotiateRequestErrorCode
	// DeclineRequestErrorCode is for failures in decline request presentation command.
	DeclineRequestErrorCode
	// AcceptPresentationErrorCode is for failures in accept presentation command.
	AcceptPresentationErrorCode
	// SendProblemReportErrorCode is for failures in send problem report command.
	SendProblemReportErrorCode
	// RecordsErrorCode is for failures in the record lookup commands.
	RecordsErrorCode
)

// constants for the PresentProof operations.
const (
	// command name.
	CommandName = "presentproof"

	SendProposePresentation    = "SendProposePresentation"
	SendRequestPresentation    = "SendRequestPresentation"
	CreateRequestForInvitation = "CreateRequestForInvitation"
	AcceptProposePresentation  = "AcceptProposePresentation"
	NegotiateProposal          = "NegotiateProposePresentation"
	DeclineProposePresentation = "DeclineProposePresentation"
	AcceptRequestPresentation  = "AcceptRequestPresentation"
	NegotiateRequest           = "NegotiateRequestPresentation"
	DeclineRequestPresentation = "DeclineRequestPresentation"
	AcceptPresentation         = "AcceptPresentation"
	SendProblemReport          = "SendProblemReport"
	Records                    = "Records"
	Record                     = "Record"
	FormatData                 = "FormatData"
	RemoveRecord               = "RemoveRecord"
)

const (
	// error messages.
	errEmptyRecordID     = "empty record ID"
	errEmptyConnectionID = "empty connection ID"
	errEmptyFormats      = "at least one proof format must be provided"
	errEmptyDescription  = "empty problem description"
	// log constants.
	successString = "success"

	_actions = "_actions"
	_states  = "_states"
)

// ProtocolService is the present proof service the command drives.
type ProtocolService interface {
	service.Event
	ProposePresentation(ctx context.Context, params *protocol.ProposePresentationParams) (*exchange.Record, error)
	RequestPresentation(ctx context.Context, params *protocol.RequestPresentationParams) (*exchange.Record, error)
	CreateRequestForInvitation(ctx context.Context,
		params *protocol.RequestPresentationParams) (*exchange.Record, service.DIDCommMsgMap, error)
	AcceptProposal(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	NegotiateProposal(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	DeclineProposal(ctx context.Context, recordID string, sendProblemReport bool) (*exchange.Record, error)
	AcceptRequest(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	NegotiateRequest(ctx context.Context, recordID string, params *protocol.AcceptParams) (*exchange.Record, error)
	DeclineRequest(ctx context.Context, recordID string, sendProblemReport bool) (*exchange.Record, error)
	AcceptPresentation(ctx context.Context, recordID string) (*exchange.Record, error)
	SendProblemReport(ctx context.Context, recordID, description string) (*exchange.Record, error)
	GetFormatData(recordID string) (*exchange.FormatData, error)
	Get(recordID string) (*exchange.Record, error)
	FindAllByQuery(q *exchange.Query) ([]*exchange.Record, error)
	Delete(recordID string) error
}

// Provider contains dependencies for the presentproof command and is typically created by using agent.Context().
type Provider interface {
	Service(id string) (interface{}, error)
}

// Command is controller command for present proof.
type Command struct {
	svc ProtocolService
}

// New returns new present proof controller command instance. State and action events of the
// protocol are published to the notifier on the "present-proof_states" and
// "present-proof_actions" topics.
func New(ctx Provider, notifier command.Notifier) (*Command, error) {
	raw, err := ctx.Service(protocol.Name)
	if err != nil {
		return nil, fmt.Errorf("cannot create a client: %w", err)
	}

	svc, ok := raw.(ProtocolService)
	if !ok {
		return nil, errors.New("cannot create a client: cast service to presentproof service failed")
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
		cmdutil.NewCommandHandler(CommandName, SendProposePresentation, c.SendProposePresentation),
		cmdutil.NewCommandHandler(CommandName, SendRequestPresentation, c.SendRequestPresentation),
		cmdutil.NewCommandHandler(CommandName, CreateRequestForInvitation, c.CreateRequestForInvitation),
		cmdutil.NewCommandHandler(CommandName, AcceptProposePresentation, c.AcceptProposePresentation),
		cmdutil.NewCommandHandler(CommandName, NegotiateProposal, c.NegotiateProposePresentation),
		cmdutil.NewCommandHandler(CommandName, DeclineProposePresentation, c.DeclineProposePresentation),
		cmdutil.NewCommandHandler(CommandName, AcceptRequestPresentation, c.AcceptRequestPresentation),
		cmdutil.NewCommandHandler(CommandName, NegotiateRequest, c.NegotiateRequestPresentation),
		cmdutil.NewCommandHandler(CommandName, DeclineRequestPresentation, c.DeclineRequestPresentation),
		cmdutil.NewCommandHandler(CommandName, AcceptPresentation, c.AcceptPresentation),
		cmdutil.NewCommandHandler(CommandName, SendProblemReport, c.SendProblemReport),
		cmdutil.NewCommandHandler(CommandName, Records, c.Records),
		cmdutil.NewCommandHandler(CommandName, Record, c.Record),
		cmdutil.NewCommandHandler(CommandName, FormatData, c.FormatData),
		cmdutil.NewCommandHandler(CommandName, RemoveRecord, c.RemoveRecord),
	}
}

// SendProposePresentation is used by the Prover to open an exchange with a proposal.
func (c *Command) SendProposePresentation(rw io.Writer, req io.Reader) command.Error {
	args, autoAccept, cmdErr := decodeStartArgs(SendProposePresentation, req, true)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.ProposePresentation(context.Background(), &protocol.ProposePresentationParams{
		ProtocolVersion: args.ProtocolVersion,
		ConnectionID:    args.ConnectionID,
		ParentThreadID:  args.ParentThreadID,
		Comment:         args.Comment,
		GoalCode:        args.GoalCode,
		Formats:         formatParams(args.Formats),
		AutoAccept:      autoAccept,
	})

	return writeRecord(rw, SendProposePresentation, SendProposalErrorCode, rec, err)
}

// SendRequestPresentation is used by the Verifier to request a presentation.
func (c *Command) SendRequestPresentation(rw io.Writer, req io.Reader) command.Error {
	args, autoAccept, cmdErr := decodeStartArgs(SendRequestPresentation, req, true)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.RequestPresentation(context.Background(), requestParams(args, autoAccept))

	return writeRecord(rw, SendRequestPresentation, SendRequestErrorCode, rec, err)
}

// CreateRequestForInvitation creates a connection-less request for an out-of-band invitation.
// The parent thread ID should be the id of the invitation the request is embedded in.
func (c *Command) CreateRequestForInvitation(rw io.Writer, req io.Reader) command.Error {
	args, autoAccept, cmdErr := decodeStartArgs(CreateRequestForInvitation, req, false)
	if cmdErr != nil {
		return cmdErr
	}

	rec, msg, err := c.svc.CreateRequestForInvitation(context.Background(), requestParams(args, autoAccept))
	if err != nil {
		logutil.LogError(logger, CommandName, CreateRequestForInvitation, err.Error())

		return command.NewProtocolError(CreateRequestErrorCode, err)
	}

	command.WriteNillableResponse(rw, &InvitationMessageResponse{Record: rec, Message: msg}, logger)

	logutil.LogDebug(logger, CommandName, CreateRequestForInvitation, successString,
		logutil.CreateKeyValueString("recordID", rec.ID))

	return nil
}

// AcceptProposePresentation is used when the Verifier is willing to accept the proposal.
func (c *Command) AcceptProposePresentation(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, AcceptProposePresentation, AcceptProposalErrorCode, c.svc.AcceptProposal)
}

// NegotiateProposePresentation is used when the Verifier answers a proposal with a different request.
func (c *Command) NegotiateProposePresentation(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, NegotiateProposal, NegotiateProposalErrorCode, c.svc.NegotiateProposal)
}

// DeclineProposePresentation is used when the Verifier does not want to accept the proposal.
func (c *Command) DeclineProposePresentation(rw io.Writer, req io.Reader) command.Error {
	return c.decline(rw, req, DeclineProposePresentation, DeclineProposalErrorCode, c.svc.DeclineProposal)
}

// AcceptRequestPresentation is used by the Prover to answer a request with a presentation. Without
// format parameters the credentials are selected from the held ones.
func (c *Command) AcceptRequestPresentation(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, AcceptRequestPresentation, AcceptRequestErrorCode, c.svc.AcceptRequest)
}

// NegotiateRequestPresentation is used by the Prover to answer a request with a counter-proposal.
func (c *Command) NegotiateRequestPresentation(rw io.Writer, req io.Reader) command.Error {
	return c.accept(rw, req, NegotiateRequest, NegotiateRequestErrorCode, c.svc.NegotiateRequest)
}

// DeclineRequestPresentation is used when the Prover does not want to accept the request.
func (c *Command) DeclineRequestPresentation(rw io.Writer, req io.Reader) command.Error {
	return c.decline(rw, req, DeclineRequestPresentation, DeclineRequestErrorCode, c.svc.DeclineRequest)
}

// AcceptPresentation is used by the Verifier to acknowledge a verified presentation.
func (c *Command) AcceptPresentation(rw io.Writer, req io.Reader) command.Error {
	var args RecordIDArgs

	if cmdErr := decodeRecordArgs(AcceptPresentation, req, &args, &args.RecordID); cmdErr != nil {
		return cmdErr
	}

	rec, err := c.svc.AcceptPresentation(context.Background(), args.RecordID)

	return writeRecord(rw, AcceptPresentation, AcceptPresentationErrorCode, rec, err)
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
		Comment: args.Comment,
		Formats: formatParams(args.Formats),
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

func requestParams(args *StartArgs, autoAccept exchange.AutoAccept) *protocol.RequestPresentationParams {
	return &protocol.RequestPresentationParams{
		ProtocolVersion: args.ProtocolVersion,
		ConnectionID:    args.ConnectionID,
		ParentThreadID:  args.ParentThreadID,
		Comment:         args.Comment,
		GoalCode:        args.GoalCode,
		Formats:         formatParams(args.Formats),
		AutoAccept:      autoAccept,
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

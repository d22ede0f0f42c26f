/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"golang.org/x/exp/maps"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

const (
	codeRejected  = "rejected"
	codeAbandoned = "abandoned"

	// pseudo actions reported by state errors of accept and negotiate.
	actionAccept    Action = "accept"
	actionNegotiate Action = "negotiate"
)

var logger = log.New("aries-framework/exchange")

// Provider contains dependencies for the exchange engine.
type Provider interface {
	StorageProvider() storage.Provider
	Messenger() service.Messenger
}

// Option configures the Service.
type Option func(*Service)

// WithAutoAccept sets the policy used when neither the inbound context nor the record set one.
func WithAutoAccept(a AutoAccept) Option {
	return func(s *Service) {
		s.autoAccept = a
	}
}

// WithMaxNegotiationRounds bounds the counter-proposals sent on one record, 0 means unbounded.
func WithMaxNegotiationRounds(n int) Option {
	return func(s *Service) {
		s.maxRounds = n
	}
}

// Service drives exchange records of one protocol.
type Service struct {
	service.Action
	service.Message
	protocol   *Protocol
	formats    []Format
	store      *RecordStore
	messenger  service.Messenger
	autoAccept AutoAccept
	maxRounds  int
	now        func() time.Time
}

// New returns the exchange engine of the protocol, using the formats in the given order.
func New(p Provider, protocol *Protocol, formats []Format, opts ...Option) (*Service, error) {
	if err := protocol.Validate(); err != nil {
		return nil, err
	}

	if len(formats) == 0 {
		return nil, fmt.Errorf("protocol %s: at least one format is required", protocol.Name)
	}

	store, err := NewRecordStore(p.StorageProvider(), protocol.Name)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		protocol:  protocol,
		formats:   formats,
		store:     store,
		messenger: p.Messenger(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Name returns the protocol name.
func (s *Service) Name() string {
	return s.protocol.Name
}

// Accept reports whether the message type belongs to one of the protocol vocabularies.
func (s *Service) Accept(msgType string) bool {
	_, _, ok := s.protocol.vocabularyFor(msgType)

	return ok
}

// Protocol returns the protocol descriptor.
func (s *Service) Protocol() *Protocol {
	return s.protocol
}

// StartParams describe the first message of an exchange.
type StartParams struct {
	Stage           Stage
	ProtocolVersion string
	ConnectionID    string
	// Connectionless skips the send, the message is returned for out-of-band embedding.
	Connectionless bool
	ParentThreadID string
	Comment        string
	GoalCode       string
	Preview        []PreviewAttribute
	// FormatParams holds the parameters of every format taking part, keyed by format key.
	FormatParams map[string]interface{}
	AutoAccept   AutoAccept
}

// AcceptParams answer the last received message. Formats without parameters derive their payload
// from the exchange so far.
type AcceptParams struct {
	Comment      string
	Preview      []PreviewAttribute
	FormatParams map[string]interface{}
}

// NegotiateParams describe a counter-proposal.
type NegotiateParams struct {
	Comment      string
	Preview      []PreviewAttribute
	FormatParams map[string]interface{}
}

// Start sends the first message of a new exchange. The role follows from the stage.
func (s *Service) Start(ctx context.Context, params *StartParams) (*Record, service.DIDCommMsgMap, error) {
	role, ok := s.protocol.Senders[params.Stage]
	if !ok {
		return nil, nil, NewValidationError("%s has no %s stage", s.protocol.Name, params.Stage)
	}

	t, err := s.protocol.Lookup(CreateAction(params.Stage), role, "")
	if err != nil {
		return nil, nil, err
	}

	if params.ConnectionID == "" && !params.Connectionless {
		return nil, nil, NewValidationError("a connection id is required unless the exchange is connection-less")
	}

	if len(params.FormatParams) == 0 {
		return nil, nil, NewValidationError("no format parameters given")
	}

	vocab, err := s.protocol.Vocabulary(params.ProtocolVersion)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	rec := &Record{
		ID:              uuid.New().String(),
		Protocol:        s.protocol.Name,
		ProtocolVersion: vocab.Version(),
		Role:            role,
		ParentThreadID:  params.ParentThreadID,
		ConnectionID:    params.ConnectionID,
		AutoAccept:      params.AutoAccept,
		CreatedAt:       now,
	}

	msg := &Message{
		Kind:           MessageKind(params.Stage),
		ID:             uuid.New().String(),
		ParentThreadID: params.ParentThreadID,
		Comment:        params.Comment,
		GoalCode:       params.GoalCode,
		Preview:        params.Preview,
	}

	rec.ThreadID = msg.ID

	formats, err := s.formatsWithParams(params.FormatParams)
	if err != nil {
		return nil, nil, err
	}

	if err = s.createAttachments(ctx, rec, msg, params.Stage, formats, params.FormatParams); err != nil {
		return nil, nil, err
	}

	wire, err := vocab.Build(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s: %w", params.Stage, err)
	}

	rec.State = t.To
	rec.UpdatedAt = now

	if err = s.store.Save(rec); err != nil {
		return nil, nil, fmt.Errorf("save record: %w", err)
	}

	s.notify(rec, wire, nil)

	if params.Connectionless {
		return rec, wire, nil
	}

	if err = s.send(ctx, rec, wire, nil); err != nil {
		return rec, wire, err
	}

	return rec, wire, nil
}

// AcceptRecord answers the last received message of the record: a proposal, offer or request with
// the next stage and a result with an ack.
func (s *Service) AcceptRecord(ctx context.Context, recordID string, params *AcceptParams) (*Record, error) {
	if params == nil {
		params = &AcceptParams{}
	}

	return s.respond(ctx, recordID, params, nil, false)
}

// Negotiate answers the last received message with a counter-proposal on the same thread.
func (s *Service) Negotiate(ctx context.Context, recordID string, params *NegotiateParams) (*Record, error) {
	if params == nil || len(params.FormatParams) == 0 {
		return nil, NewValidationError("a counter-proposal needs format parameters")
	}

	return s.respond(ctx, recordID, &AcceptParams{
		Comment:      params.Comment,
		Preview:      params.Preview,
		FormatParams: params.FormatParams,
	}, nil, true)
}

// nolint: funlen,gocyclo
func (s *Service) respond(ctx context.Context, recordID string, params *AcceptParams,
	ictx *service.InboundContext, negotiate bool) (*Record, error) {
	var wire service.DIDCommMsgMap

	rec, err := s.store.Update(recordID, func(rec *Record) error {
		received, next, action, err := s.answer(rec, negotiate)
		if err != nil {
			return err
		}

		if negotiate && s.maxRounds > 0 && rec.NegotiationRounds >= s.maxRounds {
			return NewValidationError("record %s reached the limit of %d negotiation rounds", rec.ID, s.maxRounds)
		}

		if negotiate && rec.ConnectionID == "" {
			return NewValidationError("negotiation requires a connection")
		}

		t, err := s.protocol.Lookup(action, rec.Role, rec.State)
		if err != nil {
			return err
		}

		if !hasRoute(rec, ictx) {
			return NewValidationError("record %s has no connection or service to answer to", rec.ID)
		}

		vocab, err := s.protocol.Vocabulary(rec.ProtocolVersion)
		if err != nil {
			return err
		}

		msg := &Message{
			ID:             uuid.New().String(),
			ThreadID:       rec.ThreadID,
			ParentThreadID: rec.ParentThreadID,
			Comment:        params.Comment,
		}

		if action == ActionCreateAck {
			msg.Kind = KindAck
		} else {
			msg.Kind = MessageKind(next)

			formats, fErr := s.answerFormats(rec, received, params.FormatParams)
			if fErr != nil {
				return fErr
			}

			msg.Preview = params.Preview
			if len(msg.Preview) == 0 && !negotiate {
				msg.Preview = rec.LatestPreview(received)
			}

			if fErr = s.createAttachments(ctx, rec, msg, next, formats, params.FormatParams); fErr != nil {
				return fErr
			}
		}

		wire, err = vocab.Build(msg)
		if err != nil {
			return fmt.Errorf("build %s: %w", msg.Kind, err)
		}

		if negotiate {
			rec.NegotiationRounds++
		}

		rec.State = t.To
		rec.UpdatedAt = s.now()

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, wire, nil)

	if err = s.send(ctx, rec, wire, ictx); err != nil {
		return rec, err
	}

	return rec, nil
}

// answer returns the received stage of the record, the stage answering it and the action sending it.
func (s *Service) answer(rec *Record, negotiate bool) (Stage, Stage, Action, error) {
	pseudo := actionAccept
	if negotiate {
		pseudo = actionNegotiate
	}

	stateErr := &StateError{Action: pseudo, Role: rec.Role, Current: rec.State, Permitted: s.answerable(rec.Role, negotiate)}

	received, ok := stageOf(rec.State)
	if !ok || rec.State != received.ReceivedState() {
		return "", "", "", stateErr
	}

	if negotiate {
		next, ok := s.protocol.Counter[received]
		if !ok {
			return "", "", "", stateErr
		}

		return received, next, CreateAction(next), nil
	}

	if received == StageResult {
		return received, "", ActionCreateAck, nil
	}

	next, ok := s.protocol.Next[received]
	if !ok {
		return "", "", "", stateErr
	}

	return received, next, CreateAction(next), nil
}

// answerable lists the received states the role may answer.
func (s *Service) answerable(role Role, negotiate bool) []State {
	answers := s.protocol.Next
	if negotiate {
		answers = s.protocol.Counter
	}

	var states []State

	for stage, sender := range s.protocol.Senders {
		if sender == role {
			continue
		}

		if _, ok := answers[stage]; ok || (!negotiate && stage == StageResult) {
			states = append(states, stage.ReceivedState())
		}
	}

	return states
}

// Decline refuses the last received message.
func (s *Service) Decline(ctx context.Context, recordID string, sendProblemReport bool) (*Record, error) {
	return s.terminate(ctx, recordID, ActionDecline, codeRejected, "", sendProblemReport)
}

// Abandon unilaterally ends the exchange.
func (s *Service) Abandon(ctx context.Context, recordID, description string, sendProblemReport bool) (*Record, error) {
	return s.terminate(ctx, recordID, ActionAbandon, codeAbandoned, description, sendProblemReport)
}

func (s *Service) terminate(ctx context.Context, recordID string, action Action, code, description string,
	sendProblemReport bool) (*Record, error) {
	var report service.DIDCommMsgMap

	rec, err := s.store.Update(recordID, func(rec *Record) error {
		t, err := s.protocol.Lookup(action, rec.Role, rec.State)
		if err != nil {
			return err
		}

		if sendProblemReport {
			if !hasRoute(rec, nil) {
				return NewValidationError("record %s has no connection or service to report to", rec.ID)
			}

			report, err = s.problemReport(rec, code, description)
			if err != nil {
				return err
			}
		}

		rec.State = t.To
		rec.UpdatedAt = s.now()

		if action == ActionAbandon {
			rec.ErrorMessage = description
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, report, nil)

	if report == nil {
		return rec, nil
	}

	if err = s.send(ctx, rec, report, nil); err != nil {
		return rec, err
	}

	return rec, nil
}

// CreateProblemReport builds a problem report on the thread of the record without changing it.
func (s *Service) CreateProblemReport(recordID, description string) (service.DIDCommMsgMap, error) {
	rec, err := s.store.Get(recordID)
	if err != nil {
		return nil, err
	}

	return s.problemReport(rec, codeAbandoned, description)
}

func (s *Service) problemReport(rec *Record, code, description string) (service.DIDCommMsgMap, error) {
	vocab, err := s.protocol.Vocabulary(rec.ProtocolVersion)
	if err != nil {
		return nil, err
	}

	if description == "" {
		description = fmt.Sprintf("%s %s in state %s", s.protocol.Name, code, rec.State)
	}

	return vocab.Build(&Message{
		Kind:               KindProblemReport,
		ThreadID:           rec.ThreadID,
		ParentThreadID:     rec.ParentThreadID,
		ProblemCode:        code,
		ProblemDescription: description,
	})
}

// GetFormatData returns the latest payload of every format per stage.
func (s *Service) GetFormatData(recordID string) (*FormatData, error) {
	rec, err := s.store.Get(recordID)
	if err != nil {
		return nil, err
	}

	return newFormatData(rec), nil
}

// Get returns the record with the given id.
func (s *Service) Get(recordID string) (*Record, error) {
	return s.store.Get(recordID)
}

// FindByThreadAndRole returns the record of the role on the thread.
func (s *Service) FindByThreadAndRole(threadID string, role Role) (*Record, error) {
	return s.store.FindByThreadAndRole(threadID, role)
}

// FindAllByQuery returns the records matching the query.
func (s *Service) FindAllByQuery(q *Query) ([]*Record, error) {
	return s.store.Query(q)
}

// Delete removes the record.
func (s *Service) Delete(recordID string) error {
	return s.store.Delete(recordID)
}

// HandleInbound applies an inbound message of the protocol and returns the id of the affected record.
func (s *Service) HandleInbound(ctx context.Context, msg service.DIDCommMsg,
	ictx *service.InboundContext) (string, error) {
	vocab, kind, ok := s.protocol.vocabularyFor(msg.Type())
	if !ok {
		return "", fmt.Errorf("%s: unsupported message type %s", s.protocol.Name, msg.Type())
	}

	logger.Debugf("%s: handling inbound %s", s.protocol.Name, msg.Type())

	parsed, err := vocab.Parse(msg)
	if err != nil {
		s.abandonThread(msg, kind, err)

		return "", err
	}

	var rec *Record

	switch kind {
	case KindAck:
		rec, err = s.receiveAck(parsed)
	case KindProblemReport:
		rec, err = s.receiveProblemReport(parsed)
	default:
		rec, err = s.receiveStage(ctx, vocab, Stage(kind), parsed, msg, ictx)
	}

	if err != nil {
		return "", err
	}

	return rec.ID, nil
}

// nolint: funlen
func (s *Service) receiveStage(ctx context.Context, vocab Vocabulary, stage Stage, m *Message,
	raw service.DIDCommMsg, ictx *service.InboundContext) (*Record, error) {
	if ictx == nil {
		ictx = &service.InboundContext{}
	}

	role := s.protocol.Counterpart(s.protocol.Senders[stage])

	existing, err := s.store.FindByThreadAndRole(m.ThreadID, role)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var rec *Record

	if existing == nil {
		t, err := s.protocol.Lookup(ReceiveAction(stage), role, "")
		if err != nil {
			return nil, err
		}

		now := s.now()
		rec = &Record{
			ID:              uuid.New().String(),
			Protocol:        s.protocol.Name,
			ProtocolVersion: vocab.Version(),
			Role:            role,
			ThreadID:        m.ThreadID,
			ParentThreadID:  m.ParentThreadID,
			ConnectionID:    ictx.ConnectionID,
			TheirService:    ictx.TheirService,
			CreatedAt:       now,
		}

		err = checkParentThread("", m, ictx)
		if err == nil {
			err = s.applyReceive(ctx, rec, t, stage, m)
		}

		if err != nil {
			if abandons(err) {
				s.notifyRejected(rec, raw, err)
			}

			return nil, err
		}

		if err = s.store.Save(rec); err != nil {
			return nil, fmt.Errorf("save record: %w", err)
		}
	} else {
		rec, err = s.store.Update(existing.ID, func(rec *Record) error {
			if rec.hasReceived(m.ID) {
				return &StateError{
					Action:  ReceiveAction(stage),
					Role:    rec.Role,
					Current: rec.State,
					Err:     fmt.Errorf("message %s: %w", m.ID, ErrDuplicateMessage),
				}
			}

			t, err := s.protocol.Lookup(ReceiveAction(stage), role, rec.State)
			if err != nil {
				return err
			}

			if err = checkParentThread(rec.ParentThreadID, m, ictx); err != nil {
				return err
			}

			if rec.ParentThreadID == "" {
				rec.ParentThreadID = m.ParentThreadID
			}

			if ictx.TheirService != nil {
				rec.TheirService = ictx.TheirService
			}

			if rec.ConnectionID == "" {
				rec.ConnectionID = ictx.ConnectionID
			}

			return s.applyReceive(ctx, rec, t, stage, m)
		})
		if err != nil {
			if abandons(err) {
				s.abandonOnError(existing.ID, err)
			}

			return nil, err
		}
	}

	s.notify(rec, raw, nil)

	s.autoRespond(ctx, rec, stage, m, raw, ictx)

	return rec, nil
}

func (s *Service) applyReceive(ctx context.Context, rec *Record, t *Transition, stage Stage, m *Message) error {
	if len(m.Attachments) == 0 && stage != StageProposal {
		return NewValidationError("%s message %s carries no attachment", stage, m.ID)
	}

	sender := s.protocol.Senders[stage]

	for _, a := range m.Attachments {
		format := s.format(a.Format)
		if format == nil {
			return &FormatError{Format: a.Format, Stage: stage, Err: errors.New("no format supports the attachment")}
		}

		processed, err := format.Process(ctx, &ProcessRequest{
			Stage:      stage,
			Role:       rec.Role,
			Record:     rec.Clone(),
			FormatID:   a.Format,
			Attachment: a.Data,
		})
		if err != nil {
			return wrapFormatError(format.Key(), stage, err)
		}

		rec.FormatPayloads = append(rec.FormatPayloads, FormatPayload{
			Format:     format.Key(),
			FormatID:   a.Format,
			Stage:      stage,
			Sender:     sender,
			MessageID:  m.ID,
			Attachment: a.Data,
		})

		if processed != nil {
			mergeMetadata(rec, processed.Metadata)
		}
	}

	if len(m.Preview) > 0 {
		rec.Previews = append(rec.Previews, StagePreview{Stage: stage, Sender: sender, Attributes: m.Preview})
	}

	if m.ID != "" {
		rec.ReceivedMessages = append(rec.ReceivedMessages, m.ID)
	}

	rec.State = t.To
	rec.UpdatedAt = s.now()

	return nil
}

func (s *Service) receiveAck(m *Message) (*Record, error) {
	role := s.protocol.Senders[StageResult]

	rec, err := s.store.FindByThreadAndRole(m.ThreadID, role)
	if err != nil {
		return nil, err
	}

	rec, err = s.store.Update(rec.ID, func(rec *Record) error {
		t, err := s.protocol.Lookup(ActionReceiveAck, rec.Role, rec.State)
		if err != nil {
			return err
		}

		rec.State = t.To
		rec.UpdatedAt = s.now()

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, nil, nil)

	return rec, nil
}

// receiveProblemReport looks the record up by thread only, the report may come from any party.
func (s *Service) receiveProblemReport(m *Message) (*Record, error) {
	records, err := s.store.FindByThread(m.ThreadID)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &NotFoundError{Kind: "exchange record", Key: "thread " + m.ThreadID}
	}

	target := records[0]

	for _, rec := range records {
		if !rec.State.IsTerminal() {
			target = rec

			break
		}
	}

	rec, err := s.store.Update(target.ID, func(rec *Record) error {
		t, err := s.protocol.Lookup(ActionReceiveProblemReport, rec.Role, rec.State)
		if err != nil {
			return err
		}

		rec.State = t.To
		rec.ErrorMessage = m.ProblemDescription
		rec.UpdatedAt = s.now()

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, nil, nil)

	return rec, nil
}

func (s *Service) autoRespond(ctx context.Context, rec *Record, stage Stage, m *Message, raw service.DIDCommMsg,
	ictx *service.InboundContext) {
	ok, err := s.shouldAutoAccept(ctx, rec, stage, AutoAccept(ictx.AutoAccept), m)
	if err != nil {
		logger.Errorf("record %s: auto accept check: %v", rec.ID, err)
		s.notify(rec, raw, err)

		return
	}

	if !ok {
		s.triggerAction(rec, raw)

		return
	}

	logger.Debugf("record %s: auto accepting %s", rec.ID, stage)

	if _, err = s.respond(ctx, rec.ID, &AcceptParams{}, ictx, false); err != nil {
		logger.Errorf("record %s: auto accept %s: %v", rec.ID, stage, err)
		s.notify(rec, raw, err)
	}
}

// triggerAction lets a registered consumer decide on the record.
func (s *Service) triggerAction(rec *Record, raw service.DIDCommMsg) {
	id := rec.ID

	s.TriggerAction(service.DIDCommAction{
		ProtocolName: s.protocol.Name,
		Message:      raw,
		Continue: func(args interface{}) {
			params, _ := args.(*AcceptParams) // nolint: errcheck

			if _, err := s.AcceptRecord(context.Background(), id, params); err != nil {
				logger.Errorf("record %s: continue: %v", id, err)
			}
		},
		Stop: func(cErr error) {
			if _, err := s.Decline(context.Background(), id, false); err == nil {
				return
			}

			description := "stopped"
			if cErr != nil {
				description = cErr.Error()
			}

			if _, err := s.Abandon(context.Background(), id, description, false); err != nil {
				logger.Errorf("record %s: stop: %v", id, err)
			}
		},
		Properties: newEventProps(rec, nil),
	})
}

// abandonThread abandons the record of a message that could not be parsed, if there is one.
func (s *Service) abandonThread(msg service.DIDCommMsg, kind MessageKind, cause error) {
	sender, ok := s.protocol.Senders[Stage(kind)]
	if !ok || !abandons(cause) {
		return
	}

	thid, err := msg.ThreadID()
	if err != nil {
		return
	}

	role := s.protocol.Counterpart(sender)

	rec, err := s.store.FindByThreadAndRole(thid, role)
	if errors.Is(err, ErrNotFound) {
		s.notifyRejected(&Record{Protocol: s.protocol.Name, Role: role, ThreadID: thid}, msg, cause)

		return
	}

	if err != nil {
		return
	}

	s.abandonOnError(rec.ID, cause)
}

// notifyRejected emits the error event of a thread whose first message was rejected. No record is kept.
func (s *Service) notifyRejected(rec *Record, msg service.DIDCommMsg, cause error) {
	logger.Warnf("%s: thread %s rejected: %v", s.protocol.Name, rec.ThreadID, cause)

	failed := rec.Clone()
	failed.ID = ""
	failed.State = StateAbandoned
	failed.ErrorMessage = cause.Error()

	s.notify(failed, msg, cause)
}

func (s *Service) abandonOnError(recordID string, cause error) {
	rec, err := s.store.Update(recordID, func(rec *Record) error {
		if rec.State.IsTerminal() {
			return &StateError{Action: ActionAbandon, Role: rec.Role, Current: rec.State}
		}

		rec.State = StateAbandoned
		rec.ErrorMessage = cause.Error()
		rec.UpdatedAt = s.now()

		return nil
	})
	if err != nil {
		logger.Errorf("record %s: abandon after %v: %v", recordID, cause, err)

		return
	}

	logger.Warnf("record %s abandoned: %v", recordID, cause)

	s.notify(rec, nil, cause)
}

func (s *Service) createAttachments(ctx context.Context, rec *Record, msg *Message, stage Stage, formats []Format,
	params map[string]interface{}) error {
	snapshot := rec.Clone()

	for _, format := range formats {
		attachment, err := format.Create(ctx, &CreateRequest{
			Stage:  stage,
			Role:   rec.Role,
			Record: snapshot,
			Params: params[format.Key()],
		})
		if err != nil {
			return wrapFormatError(format.Key(), stage, err)
		}

		msg.Attachments = append(msg.Attachments, Attachment{
			ID:     format.Key(),
			Format: attachment.FormatID,
			Data:   attachment.Data,
		})

		rec.FormatPayloads = append(rec.FormatPayloads, FormatPayload{
			Format:     format.Key(),
			FormatID:   attachment.FormatID,
			Stage:      stage,
			Sender:     rec.Role,
			MessageID:  msg.ID,
			Attachment: attachment.Data,
		})

		mergeMetadata(rec, attachment.Metadata)
	}

	if len(msg.Preview) > 0 && (stage == StageProposal || stage == StageOffer) {
		rec.Previews = append(rec.Previews, StagePreview{Stage: stage, Sender: rec.Role, Attributes: msg.Preview})
	}

	return nil
}

// formatsWithParams returns the formats the caller gave parameters for, in plugin order.
func (s *Service) formatsWithParams(params map[string]interface{}) ([]Format, error) {
	var formats []Format

	for _, f := range s.formats {
		if _, ok := params[f.Key()]; ok {
			formats = append(formats, f)
		}
	}

	if len(formats) != len(params) {
		for key := range params {
			if s.formatByKey(key) == nil {
				return nil, NewValidationError("unknown format %q", key)
			}
		}
	}

	return formats, nil
}

// answerFormats returns the formats answering the received stage: the ones the caller gave
// parameters for, otherwise the ones of the received message.
func (s *Service) answerFormats(rec *Record, received Stage, params map[string]interface{}) ([]Format, error) {
	if len(params) > 0 {
		return s.formatsWithParams(params)
	}

	var formats []Format

	for _, key := range rec.formatsAt(received) {
		if f := s.formatByKey(key); f != nil {
			formats = append(formats, f)
		}
	}

	if len(formats) == 0 {
		return nil, NewValidationError("record %s: no format to answer the %s with", rec.ID, received)
	}

	return formats, nil
}

func (s *Service) format(formatID string) Format {
	for _, f := range s.formats {
		if f.Supports(formatID) {
			return f
		}
	}

	return nil
}

func (s *Service) formatByKey(key string) Format {
	for _, f := range s.formats {
		if f.Key() == key {
			return f
		}
	}

	return nil
}

func (s *Service) send(ctx context.Context, rec *Record, msg service.DIDCommMsgMap, ictx *service.InboundContext) error {
	target := &service.Target{ConnectionID: rec.ConnectionID, Destination: rec.TheirService}
	if ictx != nil {
		target.Responder = ictx.Responder
	}

	if err := s.messenger.Send(ctx, msg, target); err != nil {
		return fmt.Errorf("record %s: send %s: %w", rec.ID, msg.Type(), err)
	}

	return nil
}

func (s *Service) notify(rec *Record, msg service.DIDCommMsg, err error) {
	if m, ok := msg.(service.DIDCommMsgMap); ok && m == nil {
		msg = nil
	}

	s.Notify(service.StateMsg{
		ProtocolName: s.protocol.Name,
		Type:         service.PostState,
		StateID:      string(rec.State),
		Msg:          msg,
		Properties:   newEventProps(rec, err),
	})
}

func hasRoute(rec *Record, ictx *service.InboundContext) bool {
	return rec.ConnectionID != "" || rec.TheirService != nil || (ictx != nil && ictx.Responder != nil)
}

// checkParentThread enforces that a message spawned by an invitation or a prior exchange stays linked to it.
func checkParentThread(stored string, m *Message, ictx *service.InboundContext) error {
	if m.ParentThreadID == "" {
		return nil
	}

	if ictx != nil && ictx.OutOfBandID != "" && ictx.OutOfBandID != m.ParentThreadID {
		return NewValidationError("parent thread id %s does not match invitation %s", m.ParentThreadID,
			ictx.OutOfBandID)
	}

	if stored != "" && stored != m.ParentThreadID {
		return NewValidationError("parent thread id %s does not match the exchange parent thread id %s",
			m.ParentThreadID, stored)
	}

	return nil
}

// mergeMetadata replaces the record metadata with a copy holding the delta.
func mergeMetadata(rec *Record, delta map[string]interface{}) {
	if len(delta) == 0 {
		return
	}

	merged := maps.Clone(rec.Metadata)
	if merged == nil {
		merged = map[string]interface{}{}
	}

	maps.Copy(merged, delta)
	rec.Metadata = merged
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"context"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

const (
	// Name defines the protocol name.
	Name = "present-proof"
	// SpecV2 defines the protocol spec V2.
	SpecV2 = "https://didcomm.org/present-proof/2.0/"
	// ProposePresentationMsgTypeV2 defines the protocol propose-presentation message type.
	ProposePresentationMsgTypeV2 = SpecV2 + "propose-presentation"
	// RequestPresentationMsgTypeV2 defines the protocol request-presentation message type.
	RequestPresentationMsgTypeV2 = SpecV2 + "request-presentation"
	// PresentationMsgTypeV2 defines the protocol presentation message type.
	PresentationMsgTypeV2 = SpecV2 + "presentation"
	// AckMsgTypeV2 defines the protocol ack message type.
	AckMsgTypeV2 = SpecV2 + "ack"
	// ProblemReportMsgTypeV2 defines the protocol problem-report message type.
	ProblemReportMsgTypeV2 = SpecV2 + "problem-report"

	// SpecV3 defines the protocol spec V3.
	SpecV3 = "https://didcomm.org/present-proof/3.0/"
	// ProposePresentationMsgTypeV3 defines the protocol propose-presentation message type.
	ProposePresentationMsgTypeV3 = SpecV3 + "propose-presentation"
	// RequestPresentationMsgTypeV3 defines the protocol request-presentation message type.
	RequestPresentationMsgTypeV3 = SpecV3 + "request-presentation"
	// PresentationMsgTypeV3 defines the protocol presentation message type.
	PresentationMsgTypeV3 = SpecV3 + "presentation"
	// AckMsgTypeV3 defines the protocol ack message type.
	AckMsgTypeV3 = SpecV3 + "ack"
	// ProblemReportMsgTypeV3 defines the protocol problem-report message type.
	ProblemReportMsgTypeV3 = SpecV3 + "problem-report"

	// VersionV2 selects the DIDComm V1 shaped messages of present-proof 2.0.
	VersionV2 = "2.0"
	// VersionV3 selects the DIDComm V2 shaped messages of present-proof 3.0.
	VersionV3 = "3.0"
)

var logger = log.New("aries-framework/presentproof/service")

// NewProtocol returns the descriptor of the present-proof protocol. It has no offer stage and no preview.
func NewProtocol() *exchange.Protocol {
	types := map[exchange.MessageKind]string{
		exchange.KindProposal:      "propose-presentation",
		exchange.KindRequest:       "request-presentation",
		exchange.KindResult:        "presentation",
		exchange.KindAck:           "ack",
		exchange.KindProblemReport: "problem-report",
	}

	return &exchange.Protocol{
		Name:  Name,
		Roles: [2]exchange.Role{RoleProver, RoleVerifier},
		Senders: map[exchange.Stage]exchange.Role{
			exchange.StageProposal: RoleProver,
			exchange.StageRequest:  RoleVerifier,
			exchange.StageResult:   RoleProver,
		},
		Next: map[exchange.Stage]exchange.Stage{
			exchange.StageProposal: exchange.StageRequest,
			exchange.StageRequest:  exchange.StageResult,
		},
		Counter: map[exchange.Stage]exchange.Stage{
			exchange.StageProposal: exchange.StageRequest,
			exchange.StageRequest:  exchange.StageProposal,
		},
		Transitions: transitions(),
		Vocabularies: []exchange.Vocabulary{
			exchange.NewDecoratorVocabulary(exchange.VocabularyConfig{
				Version: VersionV2,
				Spec:    SpecV2,
				Types:   types,
				AttachFields: map[exchange.Stage]string{
					exchange.StageProposal: "proposals~attach",
					exchange.StageRequest:  "request_presentations~attach",
					exchange.StageResult:   "presentations~attach",
				},
			}),
			exchange.NewBodyVocabulary(exchange.VocabularyConfig{
				Version: VersionV3,
				Spec:    SpecV3,
				Types:   types,
			}),
		},
	}
}

// Provider contains dependencies for the protocol and is typically created by using aries.Context().
type Provider interface {
	exchange.Provider
}

// Service for the presentproof protocol.
type Service struct {
	*exchange.Service
}

// New returns the presentproof service using the given proof formats.
func New(p Provider, formats []exchange.Format, opts ...exchange.Option) (*Service, error) {
	svc, err := exchange.New(p, NewProtocol(), formats, opts...)
	if err != nil {
		return nil, err
	}

	return &Service{Service: svc}, nil
}

// ProposePresentation sends a proposal to the verifier on the connection.
func (s *Service) ProposePresentation(ctx context.Context,
	params *ProposePresentationParams) (*exchange.Record, error) {
	rec, _, err := s.Start(ctx, &exchange.StartParams{
		Stage:           exchange.StageProposal,
		ProtocolVersion: params.ProtocolVersion,
		ConnectionID:    params.ConnectionID,
		ParentThreadID:  params.ParentThreadID,
		Comment:         params.Comment,
		GoalCode:        params.GoalCode,
		FormatParams:    params.Formats,
		AutoAccept:      params.AutoAccept,
	})

	return rec, err
}

// RequestPresentation sends a request to the prover on the connection.
func (s *Service) RequestPresentation(ctx context.Context,
	params *RequestPresentationParams) (*exchange.Record, error) {
	rec, _, err := s.Start(ctx, params.startParams(false))
	if err != nil {
		return rec, err
	}

	logger.Debugf("requested presentation on thread %s", rec.ThreadID)

	return rec, nil
}

// CreateRequestForInvitation creates a connection-less request to be embedded in an out-of-band
// invitation. The record is created in the request-sent state, nothing is sent.
func (s *Service) CreateRequestForInvitation(ctx context.Context,
	params *RequestPresentationParams) (*exchange.Record, service.DIDCommMsgMap, error) {
	return s.Start(ctx, params.startParams(true))
}

// AcceptProposal answers a received proposal with a request. Without format parameters the
// request is derived from the proposal.
func (s *Service) AcceptProposal(ctx context.Context, recordID string, params *AcceptParams) (*exchange.Record, error) {
	return s.accept(ctx, recordID, StateProposalReceived, params)
}

// NegotiateProposal answers a received proposal with a different request.
func (s *Service) NegotiateProposal(ctx context.Context, recordID string,
	params *AcceptParams) (*exchange.Record, error) {
	return s.negotiate(ctx, recordID, StateProposalReceived, params)
}

// AcceptRequest answers a received request with the presentation.
func (s *Service) AcceptRequest(ctx context.Context, recordID string, params *AcceptParams) (*exchange.Record, error) {
	return s.accept(ctx, recordID, StateRequestReceived, params)
}

// NegotiateRequest answers a received request with a counter-proposal.
func (s *Service) NegotiateRequest(ctx context.Context, recordID string,
	params *AcceptParams) (*exchange.Record, error) {
	return s.negotiate(ctx, recordID, StateRequestReceived, params)
}

// DeclineRequest refuses a received request, optionally telling the verifier.
func (s *Service) DeclineRequest(ctx context.Context, recordID string,
	sendProblemReport bool) (*exchange.Record, error) {
	if err := s.expect(recordID, exchange.ActionDecline, StateRequestReceived); err != nil {
		return nil, err
	}

	return s.Decline(ctx, recordID, sendProblemReport)
}

// DeclineProposal refuses a received proposal, optionally telling the prover.
func (s *Service) DeclineProposal(ctx context.Context, recordID string,
	sendProblemReport bool) (*exchange.Record, error) {
	if err := s.expect(recordID, exchange.ActionDecline, StateProposalReceived); err != nil {
		return nil, err
	}

	return s.Decline(ctx, recordID, sendProblemReport)
}

// AcceptPresentation acknowledges a received presentation.
func (s *Service) AcceptPresentation(ctx context.Context, recordID string) (*exchange.Record, error) {
	return s.accept(ctx, recordID, StatePresentationReceived, nil)
}

// SendProblemReport abandons the exchange and tells the counterpart why.
func (s *Service) SendProblemReport(ctx context.Context, recordID, description string) (*exchange.Record, error) {
	return s.Abandon(ctx, recordID, description, true)
}

func (s *Service) accept(ctx context.Context, recordID string, expected exchange.State,
	params *AcceptParams) (*exchange.Record, error) {
	if err := s.expect(recordID, "accept", expected); err != nil {
		return nil, err
	}

	return s.AcceptRecord(ctx, recordID, params.exchangeParams())
}

func (s *Service) negotiate(ctx context.Context, recordID string, expected exchange.State,
	params *AcceptParams) (*exchange.Record, error) {
	if err := s.expect(recordID, "negotiate", expected); err != nil {
		return nil, err
	}

	p := params.exchangeParams()

	return s.Negotiate(ctx, recordID, &exchange.NegotiateParams{Comment: p.Comment, FormatParams: p.FormatParams})
}

func (s *Service) expect(recordID string, action exchange.Action, expected exchange.State) error {
	rec, err := s.Get(recordID)
	if err != nil {
		return err
	}

	if rec.State != expected {
		return &exchange.StateError{Action: action, Role: rec.Role, Current: rec.State,
			Permitted: []exchange.State{expected}}
	}

	return nil
}

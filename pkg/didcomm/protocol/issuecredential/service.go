/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

const (
	// Name defines the protocol name.
	Name = "issue-credential"
	// SpecV2 defines the protocol spec V2.
	SpecV2 = "https://didcomm.org/issue-credential/2.0/"
	// ProposeCredentialMsgTypeV2 defines the protocol propose-credential message type.
	ProposeCredentialMsgTypeV2 = SpecV2 + "propose-credential"
	// OfferCredentialMsgTypeV2 defines the protocol offer-credential message type.
	OfferCredentialMsgTypeV2 = SpecV2 + "offer-credential"
	// RequestCredentialMsgTypeV2 defines the protocol request-credential message type.
	RequestCredentialMsgTypeV2 = SpecV2 + "request-credential"
	// IssueCredentialMsgTypeV2 defines the protocol issue-credential message type.
	IssueCredentialMsgTypeV2 = SpecV2 + "issue-credential"
	// AckMsgTypeV2 defines the protocol ack message type.
	AckMsgTypeV2 = SpecV2 + "ack"
	// ProblemReportMsgTypeV2 defines the protocol problem-report message type.
	ProblemReportMsgTypeV2 = SpecV2 + "problem-report"

	// SpecV3 defines the protocol spec V3.
	SpecV3 = "https://didcomm.org/issue-credential/3.0/"
	// ProposeCredentialMsgTypeV3 defines the protocol propose-credential message type.
	ProposeCredentialMsgTypeV3 = SpecV3 + "propose-credential"
	// OfferCredentialMsgTypeV3 defines the protocol offer-credential message type.
	OfferCredentialMsgTypeV3 = SpecV3 + "offer-credential"
	// RequestCredentialMsgTypeV3 defines the protocol request-credential message type.
	RequestCredentialMsgTypeV3 = SpecV3 + "request-credential"
	// IssueCredentialMsgTypeV3 defines the protocol issue-credential message type.
	IssueCredentialMsgTypeV3 = SpecV3 + "issue-credential"
	// AckMsgTypeV3 defines the protocol ack message type.
	AckMsgTypeV3 = SpecV3 + "ack"
	// ProblemReportMsgTypeV3 defines the protocol problem-report message type.
	ProblemReportMsgTypeV3 = SpecV3 + "problem-report"

	// VersionV2 selects the DIDComm V1 shaped messages of issue-credential 2.0.
	VersionV2 = "2.0"
	// VersionV3 selects the DIDComm V2 shaped messages of issue-credential 3.0.
	VersionV3 = "3.0"

	previewField = "credential_preview"
	previewType  = "credential-preview"
)

var logger = log.New("aries-framework/issuecredential/service")

// NewProtocol returns the descriptor of the issue-credential protocol.
func NewProtocol() *exchange.Protocol {
	types := map[exchange.MessageKind]string{
		exchange.KindProposal:      "propose-credential",
		exchange.KindOffer:         "offer-credential",
		exchange.KindRequest:       "request-credential",
		exchange.KindResult:        "issue-credential",
		exchange.KindAck:           "ack",
		exchange.KindProblemReport: "problem-report",
	}

	return &exchange.Protocol{
		Name:  Name,
		Roles: [2]exchange.Role{RoleHolder, RoleIssuer},
		Senders: map[exchange.Stage]exchange.Role{
			exchange.StageProposal: RoleHolder,
			exchange.StageOffer:    RoleIssuer,
			exchange.StageRequest:  RoleHolder,
			exchange.StageResult:   RoleIssuer,
		},
		Next: map[exchange.Stage]exchange.Stage{
			exchange.StageProposal: exchange.StageOffer,
			exchange.StageOffer:    exchange.StageRequest,
			exchange.StageRequest:  exchange.StageResult,
		},
		Counter: map[exchange.Stage]exchange.Stage{
			exchange.StageProposal: exchange.StageOffer,
			exchange.StageOffer:    exchange.StageProposal,
		},
		Transitions: transitions(),
		Vocabularies: []exchange.Vocabulary{
			exchange.NewDecoratorVocabulary(exchange.VocabularyConfig{
				Version: VersionV2,
				Spec:    SpecV2,
				Types:   types,
				AttachFields: map[exchange.Stage]string{
					exchange.StageProposal: "filters~attach",
					exchange.StageOffer:    "offers~attach",
					exchange.StageRequest:  "requests~attach",
					exchange.StageResult:   "credentials~attach",
				},
				PreviewField: previewField,
				PreviewType:  previewType,
			}),
			exchange.NewBodyVocabulary(exchange.VocabularyConfig{
				Version:      VersionV3,
				Spec:         SpecV3,
				Types:        types,
				PreviewField: previewField,
				PreviewType:  previewType,
			}),
		},
	}
}

// Provider contains dependencies for the protocol and is typically created by using aries.Context().
type Provider interface {
	exchange.Provider
}

// Service for the issuecredential protocol.
type Service struct {
	*exchange.Service
}

// New returns the issuecredential service using the given credential formats.
func New(p Provider, formats []exchange.Format, opts ...exchange.Option) (*Service, error) {
	svc, err := exchange.New(p, NewProtocol(), formats, opts...)
	if err != nil {
		return nil, err
	}

	return &Service{Service: svc}, nil
}

// ProposeCredential sends a proposal to the issuer on the connection.
func (s *Service) ProposeCredential(ctx context.Context, params *ProposeCredentialParams) (*exchange.Record, error) {
	rec, _, err := s.Start(ctx, &exchange.StartParams{
		Stage:           exchange.StageProposal,
		ProtocolVersion: params.ProtocolVersion,
		ConnectionID:    params.ConnectionID,
		ParentThreadID:  params.ParentThreadID,
		Comment:         params.Comment,
		GoalCode:        params.GoalCode,
		Preview:         params.CredentialPreview,
		FormatParams:    params.Formats,
		AutoAccept:      params.AutoAccept,
	})
	if err != nil {
		return rec, err
	}

	logger.Debugf("proposed credential on thread %s", rec.ThreadID)

	return rec, nil
}

// OfferCredential sends an offer to the holder on the connection.
func (s *Service) OfferCredential(ctx context.Context, params *OfferCredentialParams) (*exchange.Record, error) {
	rec, _, err := s.Start(ctx, params.startParams(false))
	if err != nil {
		return rec, err
	}

	logger.Debugf("offered credential on thread %s", rec.ThreadID)

	return rec, nil
}

// CreateOfferForInvitation creates a connection-less offer to be embedded in an out-of-band invitation.
// The record is created in the offer-sent state, nothing is sent.
func (s *Service) CreateOfferForInvitation(ctx context.Context,
	params *OfferCredentialParams) (*exchange.Record, service.DIDCommMsgMap, error) {
	return s.Start(ctx, params.startParams(true))
}

// RequestCredential sends a request without a prior offer.
func (s *Service) RequestCredential(ctx context.Context, params *RequestCredentialParams) (*exchange.Record, error) {
	rec, _, err := s.Start(ctx, &exchange.StartParams{
		Stage:           exchange.StageRequest,
		ProtocolVersion: params.ProtocolVersion,
		ConnectionID:    params.ConnectionID,
		ParentThreadID:  params.ParentThreadID,
		Comment:         params.Comment,
		FormatParams:    params.Formats,
		AutoAccept:      params.AutoAccept,
	})

	return rec, err
}

// AcceptProposal answers a received proposal with an offer. Without format parameters the offer
// repeats the proposal.
func (s *Service) AcceptProposal(ctx context.Context, recordID string, params *AcceptParams) (*exchange.Record, error) {
	return s.accept(ctx, recordID, StateProposalReceived, params)
}

// NegotiateProposal answers a received proposal with a different offer.
func (s *Service) NegotiateProposal(ctx context.Context, recordID string,
	params *AcceptParams) (*exchange.Record, error) {
	return s.negotiate(ctx, recordID, StateProposalReceived, params)
}

// AcceptOffer answers a received offer with a request.
func (s *Service) AcceptOffer(ctx context.Context, recordID string, params *AcceptParams) (*exchange.Record, error) {
	return s.accept(ctx, recordID, StateOfferReceived, params)
}

// NegotiateOffer answers a received offer with a counter-proposal.
func (s *Service) NegotiateOffer(ctx context.Context, recordID string, params *AcceptParams) (*exchange.Record, error) {
	return s.negotiate(ctx, recordID, StateOfferReceived, params)
}

// DeclineOffer refuses a received offer, optionally telling the issuer.
func (s *Service) DeclineOffer(ctx context.Context, recordID string, sendProblemReport bool) (*exchange.Record, error) {
	if err := s.expect(recordID, exchange.ActionDecline, StateOfferReceived); err != nil {
		return nil, err
	}

	return s.Decline(ctx, recordID, sendProblemReport)
}

// DeclineProposal refuses a received proposal, optionally telling the holder.
func (s *Service) DeclineProposal(ctx context.Context, recordID string,
	sendProblemReport bool) (*exchange.Record, error) {
	if err := s.expect(recordID, exchange.ActionDecline, StateProposalReceived); err != nil {
		return nil, err
	}

	return s.Decline(ctx, recordID, sendProblemReport)
}

// AcceptRequest issues the credential.
func (s *Service) AcceptRequest(ctx context.Context, recordID string, params *AcceptParams) (*exchange.Record, error) {
	return s.accept(ctx, recordID, StateRequestReceived, params)
}

// AcceptCredential acknowledges a received credential.
func (s *Service) AcceptCredential(ctx context.Context, recordID string) (*exchange.Record, error) {
	return s.accept(ctx, recordID, StateCredentialReceived, nil)
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

	return s.Negotiate(ctx, recordID, &exchange.NegotiateParams{
		Comment:      p.Comment,
		Preview:      p.Preview,
		FormatParams: p.FormatParams,
	})
}

// expect guards the domain operations: accepting an offer is not accepting a request even though
// both answer the last received message.
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

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/issuecredential/format/ldcred"
)

func TestNewProtocol(t *testing.T) {
	p := NewProtocol()
	require.NoError(t, p.Validate())

	for _, msgType := range []string{
		ProposeCredentialMsgTypeV2, OfferCredentialMsgTypeV2, RequestCredentialMsgTypeV2,
		IssueCredentialMsgTypeV2, AckMsgTypeV2, ProblemReportMsgTypeV2,
		ProposeCredentialMsgTypeV3, OfferCredentialMsgTypeV3, RequestCredentialMsgTypeV3,
		IssueCredentialMsgTypeV3, AckMsgTypeV3, ProblemReportMsgTypeV3,
	} {
		found := false

		for _, vocab := range p.Vocabularies {
			if _, ok := vocab.Kind(msgType); ok {
				found = true
			}
		}

		require.True(t, found, msgType)
	}
}

func TestService_IssueCredential(t *testing.T) {
	for _, version := range []string{VersionV2, VersionV3} {
		version := version

		t.Run(version, func(t *testing.T) {
			ctx := context.Background()
			holder, issuer := newAgents(t, nil, nil)

			preview := []exchange.PreviewAttribute{{Name: "name", Value: "Alice"}, {Name: "age", Value: "55"}}

			rec, err := holder.svc.ProposeCredential(ctx, &ProposeCredentialParams{
				ProtocolVersion:   version,
				ConnectionID:      connID,
				CredentialPreview: preview,
				Formats:           map[string]interface{}{ldcred.Key: detail()},
			})
			require.NoError(t, err)
			require.Equal(t, StateProposalSent, rec.State)

			issuerRec := onlyRecord(t, issuer)
			require.Equal(t, StateProposalReceived, issuerRec.State)
			require.Equal(t, rec.ThreadID, issuerRec.ThreadID)

			_, err = issuer.svc.AcceptProposal(ctx, issuerRec.ID, nil)
			require.NoError(t, err)
			require.Equal(t, StateOfferReceived, onlyRecord(t, holder).State)

			_, err = holder.svc.AcceptOffer(ctx, rec.ID, nil)
			require.NoError(t, err)
			require.Equal(t, StateRequestReceived, onlyRecord(t, issuer).State)

			_, err = issuer.svc.AcceptRequest(ctx, issuerRec.ID, nil)
			require.NoError(t, err)

			holderRec := onlyRecord(t, holder)
			require.Equal(t, StateCredentialReceived, holderRec.State)
			require.Equal(t, StateCredentialIssued, onlyRecord(t, issuer).State)

			_, err = holder.svc.AcceptCredential(ctx, rec.ID)
			require.NoError(t, err)

			require.Equal(t, StateDone, onlyRecord(t, holder).State)
			require.Equal(t, StateDone, onlyRecord(t, issuer).State)

			c, err := holder.credentials.Get(holderRec.Metadata[ldcred.MetadataCredentialID].(string))
			require.NoError(t, err)
			require.Equal(t, holderDID, c.SubjectID())
			require.Equal(t, "cred-def-1", c.CredentialDefinitionID)

			data, err := holder.svc.GetFormatData(rec.ID)
			require.NoError(t, err)
			require.Contains(t, data.Proposal, ldcred.Key)
			require.Contains(t, data.Result, ldcred.Key)
			require.Equal(t, preview, data.Preview)

			spec := SpecV2
			if version == VersionV3 {
				spec = SpecV3
			}

			require.Equal(t, []string{
				spec + "propose-credential", spec + "request-credential", spec + "ack",
			}, holder.out.types())
			require.Equal(t, []string{spec + "offer-credential", spec + "issue-credential"}, issuer.out.types())
		})
	}
}

func TestService_AutoAccept(t *testing.T) {
	ctx := context.Background()
	holder, issuer := newAgents(t,
		[]exchange.Option{exchange.WithAutoAccept(exchange.AutoAcceptContentApproved)},
		[]exchange.Option{exchange.WithAutoAccept(exchange.AutoAcceptAlways)})

	rec, err := holder.svc.ProposeCredential(ctx, &ProposeCredentialParams{
		ConnectionID: connID,
		Formats:      map[string]interface{}{ldcred.Key: detail()},
	})
	require.NoError(t, err)

	// the holder approves the offer repeating its proposal and the issued credential matching its request
	holderRec, err := holder.svc.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, StateDone, holderRec.State)
	require.Equal(t, StateDone, onlyRecord(t, issuer).State)
	require.NotEmpty(t, holderRec.Metadata[ldcred.MetadataCredentialID])

	all, err := holder.credentials.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestService_Negotiation(t *testing.T) {
	ctx := context.Background()
	holder, issuer := newAgents(t, nil, nil)

	rec, err := holder.svc.ProposeCredential(ctx, &ProposeCredentialParams{
		ConnectionID: connID,
		Formats:      map[string]interface{}{ldcred.Key: detail()},
	})
	require.NoError(t, err)

	issuerRec := onlyRecord(t, issuer)

	counter := detail()
	counter.Attributes["age"] = "56"

	_, err = issuer.svc.NegotiateProposal(ctx, issuerRec.ID, &AcceptParams{
		Formats: map[string]interface{}{ldcred.Key: counter},
	})
	require.NoError(t, err)
	require.Equal(t, StateOfferReceived, onlyRecord(t, holder).State)

	_, err = holder.svc.NegotiateOffer(ctx, rec.ID, &AcceptParams{
		Formats: map[string]interface{}{ldcred.Key: detail()},
	})
	require.NoError(t, err)
	require.Equal(t, StateProposalReceived, onlyRecord(t, issuer).State)

	t.Run("accepting a proposal is not accepting an offer", func(t *testing.T) {
		_, err := holder.svc.AcceptOffer(ctx, rec.ID, nil)

		var stateErr *exchange.StateError
		require.ErrorAs(t, err, &stateErr)
		require.Equal(t, StateProposalSent, stateErr.Current)
		require.Equal(t, []exchange.State{StateOfferReceived}, stateErr.Permitted)
	})
}

func TestService_Decline(t *testing.T) {
	ctx := context.Background()
	holder, issuer := newAgents(t, nil, nil)

	_, err := issuer.svc.OfferCredential(ctx, &OfferCredentialParams{
		ConnectionID: connID,
		Formats:      map[string]interface{}{ldcred.Key: detail()},
	})
	require.NoError(t, err)

	holderRec := onlyRecord(t, holder)
	require.Equal(t, StateOfferReceived, holderRec.State)

	rec, err := holder.svc.DeclineOffer(ctx, holderRec.ID, true)
	require.NoError(t, err)
	require.Equal(t, StateDeclined, rec.State)

	issuerRec := onlyRecord(t, issuer)
	require.Equal(t, StateAbandoned, issuerRec.State)
	require.NotEmpty(t, issuerRec.ErrorMessage)

	_, err = holder.svc.DeclineOffer(ctx, holderRec.ID, true)
	require.Error(t, err)
}

func TestService_DeclineProposal(t *testing.T) {
	ctx := context.Background()
	holder, issuer := newAgents(t, nil, nil)

	_, err := holder.svc.ProposeCredential(ctx, &ProposeCredentialParams{
		ConnectionID: connID,
		Formats:      map[string]interface{}{ldcred.Key: detail()},
	})
	require.NoError(t, err)

	rec, err := issuer.svc.DeclineProposal(ctx, onlyRecord(t, issuer).ID, false)
	require.NoError(t, err)
	require.Equal(t, StateDeclined, rec.State)
	require.Equal(t, StateProposalSent, onlyRecord(t, holder).State)
}

func TestService_SendProblemReport(t *testing.T) {
	ctx := context.Background()
	holder, issuer := newAgents(t, nil, nil)

	rec, err := holder.svc.RequestCredential(ctx, &RequestCredentialParams{
		ConnectionID: connID,
		Formats:      map[string]interface{}{ldcred.Key: detail()},
	})
	require.NoError(t, err)
	require.Equal(t, StateRequestSent, rec.State)
	require.Equal(t, StateRequestReceived, onlyRecord(t, issuer).State)

	rec, err = holder.svc.SendProblemReport(ctx, rec.ID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, rec.State)

	issuerRec := onlyRecord(t, issuer)
	require.Equal(t, StateAbandoned, issuerRec.State)
	require.Contains(t, issuerRec.ErrorMessage, "changed my mind")
}

func TestService_CreateOfferForInvitation(t *testing.T) {
	ctx := context.Background()
	holder, issuer := newAgents(t, nil, nil)

	rec, msg, err := issuer.svc.CreateOfferForInvitation(ctx, &OfferCredentialParams{
		ParentThreadID: "invitation-1",
		Formats:        map[string]interface{}{ldcred.Key: detail()},
	})
	require.NoError(t, err)
	require.Equal(t, StateOfferSent, rec.State)
	require.Equal(t, OfferCredentialMsgTypeV2, msg.Type())
	require.Equal(t, "invitation-1", msg.ParentThreadID())
	require.Empty(t, issuer.out.types())

	// the holder receives the offer out of band
	_, err = holder.svc.HandleInbound(ctx, msg, &service.InboundContext{ConnectionID: connID, OutOfBandID: "invitation-1"})
	require.NoError(t, err)

	holderRec := onlyRecord(t, holder)
	require.Equal(t, StateOfferReceived, holderRec.State)
	require.Equal(t, "invitation-1", holderRec.ParentThreadID)

	_, err = holder.svc.AcceptOffer(ctx, holderRec.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StateRequestReceived, onlyRecord(t, issuer).State)
}

func TestService_UnknownRecord(t *testing.T) {
	holder, _ := newAgents(t, nil, nil)

	_, err := holder.svc.AcceptOffer(context.Background(), "unknown", nil)
	require.ErrorIs(t, err, exchange.ErrNotFound)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	mockstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mock/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, err := New(&testProvider{store: mem.NewProvider()}, testProtocol(), []Format{&testFormat{}})
		require.NoError(t, err)
		require.Equal(t, "test-credential", svc.Name())
		require.True(t, svc.Accept(testSpecV2+"offer-credential"))
		require.True(t, svc.Accept(testSpecV3+"problem-report"))
		require.False(t, svc.Accept("https://didcomm.org/present-proof/2.0/presentation"))
	})

	t.Run("invalid protocol", func(t *testing.T) {
		p := testProtocol()
		p.Roles[1] = holder

		_, err := New(&testProvider{store: mem.NewProvider()}, p, []Format{&testFormat{}})
		require.EqualError(t, err, "protocol test-credential: two distinct roles are required")
	})

	t.Run("no format", func(t *testing.T) {
		_, err := New(&testProvider{store: mem.NewProvider()}, testProtocol(), nil)
		require.EqualError(t, err, "protocol test-credential: at least one format is required")
	})

	t.Run("open store error", func(t *testing.T) {
		store := mockstorage.NewMockStoreProvider()
		store.ErrOpenStoreHandle = errors.New("test error")

		_, err := New(&testProvider{store: store}, testProtocol(), []Format{&testFormat{}})
		require.EqualError(t, err, "open store test-credential: test error")
	})
}

func TestService_Start(t *testing.T) {
	t.Run("connection-less request is returned, not sent", func(t *testing.T) {
		p := newParty(t)

		rec, msg, err := p.svc.Start(context.Background(), &StartParams{
			Stage:          StageOffer,
			Connectionless: true,
			FormatParams:   map[string]interface{}{attrsKey: attrs("name", "Alice")},
		})
		require.NoError(t, err)
		require.Equal(t, issuer, rec.Role)
		require.Equal(t, StateOfferSent, rec.State)
		require.Equal(t, msg.ID(), rec.ThreadID)
		require.Equal(t, testSpecV2+"offer-credential", msg.Type())
		require.Empty(t, p.out.messages())
	})

	t.Run("version 3.0 vocabulary", func(t *testing.T) {
		p := newParty(t)

		rec, msg, err := p.svc.Start(context.Background(), &StartParams{
			Stage:           StageProposal,
			ProtocolVersion: "3.0",
			ConnectionID:    testConnID,
			ParentThreadID:  "parent",
			FormatParams:    map[string]interface{}{attrsKey: attrs("name", "Alice")},
		})
		require.NoError(t, err)
		require.Equal(t, "3.0", rec.ProtocolVersion)
		require.Equal(t, service.V2, msg.Version())
		require.Equal(t, "parent", msg.ParentThreadID())
		require.Len(t, p.out.messages(), 1)
	})

	t.Run("a result never opens an exchange", func(t *testing.T) {
		p := newParty(t)

		_, _, err := p.svc.Start(context.Background(), &StartParams{
			Stage:        StageResult,
			ConnectionID: testConnID,
			FormatParams: map[string]interface{}{attrsKey: attrs()},
		})

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
		require.Equal(t, ActionCreateResult, stateErr.Action)
		require.Equal(t, []State{StateRequestReceived}, stateErr.Permitted)

		records, err := p.svc.FindAllByQuery(nil)
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("validation errors", func(t *testing.T) {
		p := newParty(t)

		var vErr *ValidationError

		_, _, err := p.svc.Start(context.Background(), &StartParams{Stage: "unknown"})
		require.ErrorAs(t, err, &vErr)

		_, _, err = p.svc.Start(context.Background(), &StartParams{
			Stage:        StageProposal,
			FormatParams: map[string]interface{}{attrsKey: attrs()},
		})
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, err.Error(), "a connection id is required")

		_, _, err = p.svc.Start(context.Background(), &StartParams{Stage: StageProposal, ConnectionID: testConnID})
		require.ErrorAs(t, err, &vErr)

		_, _, err = p.svc.Start(context.Background(), &StartParams{
			Stage:        StageProposal,
			ConnectionID: testConnID,
			FormatParams: map[string]interface{}{"indy": nil},
		})
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, err.Error(), `unknown format "indy"`)

		_, _, err = p.svc.Start(context.Background(), &StartParams{
			Stage:           StageProposal,
			ProtocolVersion: "9.0",
			ConnectionID:    testConnID,
			FormatParams:    map[string]interface{}{attrsKey: attrs()},
		})
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("format error leaves no record", func(t *testing.T) {
		p := newParty(t)
		p.format.createErr = map[Stage]error{StageProposal: errors.New("boom")}

		_, _, err := p.svc.Start(context.Background(), proposal(attrs("name", "Alice")))

		var fErr *FormatError
		require.ErrorAs(t, err, &fErr)
		require.Equal(t, attrsKey, fErr.Format)
		require.Equal(t, StageProposal, fErr.Stage)

		records, err := p.svc.FindAllByQuery(nil)
		require.NoError(t, err)
		require.Empty(t, records)
		require.Empty(t, p.out.messages())
	})

	t.Run("send error is returned with the persisted record", func(t *testing.T) {
		p := newParty(t)
		p.out.sendErr = errors.New("unreachable")

		rec, _, err := p.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.EqualError(t, err, "record "+rec.ID+": send "+testSpecV2+"propose-credential: unreachable")
		require.Equal(t, StateProposalSent, rec.State)
	})
}

func TestService_AutoAcceptAlways(t *testing.T) {
	for _, version := range []string{"2.0", "3.0"} {
		t.Run(version, func(t *testing.T) {
			h, i := newPair(t, []Option{WithAutoAccept(AutoAcceptAlways)}, []Option{WithAutoAccept(AutoAcceptAlways)})

			params := proposal(attrs("name", "Alice"), PreviewAttribute{Name: "name", Value: "Alice"})
			params.ProtocolVersion = version

			rec, _, err := h.svc.Start(context.Background(), params)
			require.NoError(t, err)
			require.Empty(t, h.out.inboundErrors())
			require.Empty(t, i.out.inboundErrors())

			rec, err = h.svc.Get(rec.ID)
			require.NoError(t, err)
			require.Equal(t, StateDone, rec.State)

			issued := onlyRecord(t, i.svc)
			require.Equal(t, StateDone, issued.State)
			require.Equal(t, rec.ThreadID, issued.ThreadID)
			require.Equal(t, version, issued.ProtocolVersion)

			// every message carries the thread of the first one
			for _, msg := range append(h.out.messages(), i.out.messages()...) {
				thid, err := msg.ThreadID()
				require.NoError(t, err)
				require.Equal(t, rec.ThreadID, thid)
			}

			require.Len(t, h.out.messages(), 3)
			require.Len(t, i.out.messages(), 2)
		})
	}
}

func TestService_AutoAcceptContentApproved(t *testing.T) {
	preview := []PreviewAttribute{{Name: "name", Value: "Alice"}}

	t.Run("offer equal to the proposal is answered automatically", func(t *testing.T) {
		h, i := newPair(t, []Option{WithAutoAccept(AutoAcceptContentApproved)}, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice"), preview...))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)
		require.Equal(t, StateProposalReceived, offered.State)
		require.Equal(t, preview, offered.LatestPreview(StageProposal))

		_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)
		require.NoError(t, err)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateRequestSent, rec.State)

		offered, err = i.svc.Get(offered.ID)
		require.NoError(t, err)
		require.Equal(t, StateRequestReceived, offered.State)

		// the issuer policy is never, the request waits for an explicit answer
		_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)
		require.NoError(t, err)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateDone, rec.State)
	})

	t.Run("offer differing in one attribute stalls", func(t *testing.T) {
		h, i := newPair(t, []Option{WithAutoAccept(AutoAcceptContentApproved)}, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice"), preview...))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)

		_, err = i.svc.Negotiate(context.Background(), offered.ID, &NegotiateParams{
			Preview:      []PreviewAttribute{{Name: "name", Value: "Bob"}},
			FormatParams: map[string]interface{}{attrsKey: attrs("name", "Bob")},
		})
		require.NoError(t, err)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateOfferReceived, rec.State)
	})

	t.Run("record policy wins over the default", func(t *testing.T) {
		h, i := newPair(t, []Option{WithAutoAccept(AutoAcceptAlways)}, []Option{WithAutoAccept(AutoAcceptAlways)})

		params := proposal(attrs("name", "Alice"))
		params.AutoAccept = AutoAcceptNever

		rec, _, err := h.svc.Start(context.Background(), params)
		require.NoError(t, err)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateOfferReceived, rec.State)
		require.Equal(t, StateOfferSent, onlyRecord(t, i.svc).State)
	})

	t.Run("format check error is swallowed", func(t *testing.T) {
		h, i := newPair(t, []Option{WithAutoAccept(AutoAcceptContentApproved)}, nil)
		h.format.autoRespErr = errors.New("cannot compare")

		events := make(chan service.StateMsg, 10)
		require.NoError(t, h.svc.RegisterMsgEvent(events))

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		_, err = i.svc.AcceptRecord(context.Background(), onlyRecord(t, i.svc).ID, nil)
		require.NoError(t, err)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateOfferReceived, rec.State)

		require.Equal(t, string(StateProposalSent), (<-events).StateID)
		require.Equal(t, string(StateOfferReceived), (<-events).StateID)

		failed := <-events
		require.Contains(t, failed.Properties.All()[errorPropKey], "cannot compare")
	})
}

func TestService_AutoAcceptFailureKeepsReceivedState(t *testing.T) {
	h, i := newPair(t, []Option{WithAutoAccept(AutoAcceptAlways)}, []Option{WithAutoAccept(AutoAcceptAlways)})
	i.format.createErr = map[Stage]error{StageResult: errors.New("cannot sign")}

	rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
	require.NoError(t, err)

	rec, err = h.svc.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, StateRequestSent, rec.State)

	issued := onlyRecord(t, i.svc)
	require.Equal(t, StateRequestReceived, issued.State)

	// an explicit retry fails the same way and changes nothing
	_, err = i.svc.AcceptRecord(context.Background(), issued.ID, nil)

	var fErr *FormatError
	require.ErrorAs(t, err, &fErr)

	i.format.createErr = nil

	_, err = i.svc.AcceptRecord(context.Background(), issued.ID, nil)
	require.NoError(t, err)

	rec, err = h.svc.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, StateDone, rec.State)
}

func TestService_Negotiation(t *testing.T) {
	t.Run("result reflects the negotiated content, proposal log keeps the original", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice", "age", "30")))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)

		_, err = i.svc.Negotiate(context.Background(), offered.ID, &NegotiateParams{
			FormatParams: map[string]interface{}{attrsKey: attrs("name", "Alice", "age", "31")},
		})
		require.NoError(t, err)

		_, err = h.svc.AcceptRecord(context.Background(), rec.ID, nil)
		require.NoError(t, err)

		_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)
		require.NoError(t, err)

		_, err = h.svc.AcceptRecord(context.Background(), rec.ID, nil)
		require.NoError(t, err)

		data, err := h.svc.GetFormatData(rec.ID)
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Alice","age":"30"}`, string(data.Proposal[attrsKey]))
		require.JSONEq(t, `{"name":"Alice","age":"31"}`, string(data.Result[attrsKey]))

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateDone, rec.State)
		require.Equal(t, StateDone, onlyRecord(t, i.svc).State)

		offered, err = i.svc.Get(offered.ID)
		require.NoError(t, err)
		require.Equal(t, 1, offered.NegotiationRounds)
		require.Equal(t, string(StageRequest), offered.Metadata[processedKey])
	})

	t.Run("holder counter-proposal loops back to proposal-sent", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)

		for round := 0; round < 3; round++ {
			_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)
			require.NoError(t, err)

			rec, err = h.svc.Negotiate(context.Background(), rec.ID, &NegotiateParams{
				FormatParams: map[string]interface{}{attrsKey: attrs("name", "Alice", "round", string(rune('a'+round)))},
			})
			require.NoError(t, err)
			require.Equal(t, StateProposalSent, rec.State)
		}

		require.Equal(t, 3, rec.NegotiationRounds)

		offered, err = i.svc.Get(offered.ID)
		require.NoError(t, err)
		require.Equal(t, StateProposalReceived, offered.State)
		require.Equal(t, rec.ThreadID, offered.ThreadID)
	})

	t.Run("round limit", func(t *testing.T) {
		h, i := newPair(t, nil, []Option{WithMaxNegotiationRounds(1)})

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)

		counter := &NegotiateParams{FormatParams: map[string]interface{}{attrsKey: attrs("name", "Bob")}}

		_, err = i.svc.Negotiate(context.Background(), offered.ID, counter)
		require.NoError(t, err)

		_, err = h.svc.Negotiate(context.Background(), rec.ID, &NegotiateParams{
			FormatParams: map[string]interface{}{attrsKey: attrs("name", "Carol")},
		})
		require.NoError(t, err)

		_, err = i.svc.Negotiate(context.Background(), offered.ID, counter)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, err.Error(), "limit of 1 negotiation rounds")
	})

	t.Run("needs format parameters and a connection", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		_, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)

		var vErr *ValidationError

		_, err = i.svc.Negotiate(context.Background(), offered.ID, nil)
		require.ErrorAs(t, err, &vErr)

		p := newParty(t)

		rec, msg, err := p.svc.Start(context.Background(), &StartParams{
			Stage:          StageOffer,
			Connectionless: true,
			FormatParams:   map[string]interface{}{attrsKey: attrs("name", "Alice")},
		})
		require.NoError(t, err)

		q := newParty(t)
		q.out.peer = p.svc

		_, err = q.svc.HandleInbound(context.Background(), msg, &service.InboundContext{
			TheirService: &service.Destination{ServiceEndpoint: "http://issuer", RecipientKeys: []string{"key"}},
		})
		require.NoError(t, err)

		_, err = q.svc.Negotiate(context.Background(), onlyRecord(t, q.svc).ID, &NegotiateParams{
			FormatParams: map[string]interface{}{attrsKey: attrs("name", "Bob")},
		})
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, err.Error(), "negotiation requires a connection")

		rec, err = p.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateOfferSent, rec.State)
	})
}

func TestService_IllegalTransitions(t *testing.T) {
	t.Run("accept from a sent state", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		_, err = h.svc.AcceptRecord(context.Background(), rec.ID, nil)

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
		require.Equal(t, StateProposalSent, stateErr.Current)
		require.ElementsMatch(t, []State{StateOfferReceived, StateResultReceived}, stateErr.Permitted)

		stored, err := h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, rec.State, stored.State)
		require.Equal(t, rec.UpdatedAt.UnixNano(), stored.UpdatedAt.UnixNano())
		require.Len(t, i.out.messages(), 0)
	})

	t.Run("retried offer re-fails", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		_, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)

		_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)
		require.NoError(t, err)

		_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
		require.Len(t, i.out.messages(), 1)
	})

	t.Run("duplicate inbound message", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		_, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		before := onlyRecord(t, i.svc)

		_, err = i.svc.HandleInbound(context.Background(), h.out.messages()[0], &service.InboundContext{
			ConnectionID: testConnID,
		})

		require.ErrorIs(t, err, ErrDuplicateMessage)

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
		require.Equal(t, ActionReceiveProposal, stateErr.Action)
		require.Equal(t, StateProposalReceived, stateErr.Current)

		after := onlyRecord(t, i.svc)
		require.Equal(t, before.State, after.State)
		require.Len(t, after.FormatPayloads, 1)
	})

	t.Run("redelivered proposal after the offer is not a counter-proposal", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		_, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		proposed := onlyRecord(t, i.svc)

		_, err = i.svc.AcceptRecord(context.Background(), proposed.ID, nil)
		require.NoError(t, err)

		before := onlyRecord(t, i.svc)
		require.Equal(t, StateOfferSent, before.State)
		require.Len(t, before.FormatPayloads, 2)

		_, err = i.svc.HandleInbound(context.Background(), h.out.messages()[0], &service.InboundContext{
			ConnectionID: testConnID,
		})
		require.ErrorIs(t, err, ErrDuplicateMessage)

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
		require.Equal(t, StateOfferSent, stateErr.Current)

		after := onlyRecord(t, i.svc)
		require.Equal(t, StateOfferSent, after.State)
		require.Len(t, after.FormatPayloads, 2)
		require.Equal(t, before.NegotiationRounds, after.NegotiationRounds)
		require.Equal(t, before.UpdatedAt.UnixNano(), after.UpdatedAt.UnixNano())
		require.Len(t, i.out.messages(), 1)
	})

	t.Run("redelivered proposal under auto accept sends no second offer", func(t *testing.T) {
		h, i := newPair(t, nil, []Option{WithAutoAccept(AutoAcceptAlways)})

		_, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)
		require.Len(t, i.out.messages(), 1)

		_, err = i.svc.HandleInbound(context.Background(), h.out.messages()[0], &service.InboundContext{
			ConnectionID: testConnID,
		})
		require.ErrorIs(t, err, ErrDuplicateMessage)

		require.NotEqual(t, StateAbandoned, onlyRecord(t, i.svc).State)
		require.Len(t, i.out.messages(), 1)
	})

	t.Run("unknown record", func(t *testing.T) {
		p := newParty(t)

		_, err := p.svc.AcceptRecord(context.Background(), "unknown", nil)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_DeclineAndAbandon(t *testing.T) {
	t.Run("decline with problem report", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		offered, err := i.svc.Decline(context.Background(), onlyRecord(t, i.svc).ID, true)
		require.NoError(t, err)
		require.Equal(t, StateDeclined, offered.State)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateAbandoned, rec.State)
		require.Contains(t, rec.ErrorMessage, "rejected")
	})

	t.Run("decline is not legal for the proposer", func(t *testing.T) {
		h, _ := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		_, err = h.svc.Decline(context.Background(), rec.ID, false)

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
	})

	t.Run("problem report moves the counterpart to abandoned", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)

		_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)
		require.NoError(t, err)

		_, err = h.svc.AcceptRecord(context.Background(), rec.ID, nil)
		require.NoError(t, err)

		offered, err = i.svc.Get(offered.ID)
		require.NoError(t, err)
		require.Equal(t, StateRequestReceived, offered.State)

		offered, err = i.svc.Abandon(context.Background(), offered.ID, "issuance abandoned", true)
		require.NoError(t, err)
		require.Equal(t, StateAbandoned, offered.State)
		require.Equal(t, "issuance abandoned", offered.ErrorMessage)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateAbandoned, rec.State)
		require.Equal(t, "issuance abandoned", rec.ErrorMessage)

		// a second report on a terminal record is illegal
		_, err = h.svc.HandleInbound(context.Background(), i.out.messages()[1], &service.InboundContext{})

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
	})

	t.Run("abandon without report", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		rec, err = h.svc.Abandon(context.Background(), rec.ID, "changed my mind", false)
		require.NoError(t, err)
		require.Equal(t, StateAbandoned, rec.State)
		require.Equal(t, StateProposalReceived, onlyRecord(t, i.svc).State)

		_, err = h.svc.Abandon(context.Background(), rec.ID, "again", false)

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
	})

	t.Run("problem report for an unknown thread", func(t *testing.T) {
		p := newParty(t)

		msg, err := testProtocol().Vocabularies[0].Build(&Message{
			Kind:               KindProblemReport,
			ThreadID:           "unknown",
			ProblemDescription: "nope",
		})
		require.NoError(t, err)

		_, err = p.svc.HandleInbound(context.Background(), msg, &service.InboundContext{})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create problem report keeps the record", func(t *testing.T) {
		h, _ := newPair(t, nil, nil)

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		report, err := h.svc.CreateProblemReport(rec.ID, "something went wrong")
		require.NoError(t, err)
		require.Equal(t, testSpecV2+"problem-report", report.Type())

		thid, err := report.ThreadID()
		require.NoError(t, err)
		require.Equal(t, rec.ThreadID, thid)

		stored, err := h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateProposalSent, stored.State)
	})
}

func TestService_InboundValidation(t *testing.T) {
	t.Run("parent thread mismatch abandons the record", func(t *testing.T) {
		h, i := newPair(t, nil, nil)

		params := proposal(attrs("name", "Alice"))
		params.ParentThreadID = "invitation-1"

		rec, _, err := h.svc.Start(context.Background(), params)
		require.NoError(t, err)

		offered := onlyRecord(t, i.svc)
		require.Equal(t, "invitation-1", offered.ParentThreadID)

		// detach the holder so the offer can be tampered with
		i.out.peer = nil

		_, err = i.svc.AcceptRecord(context.Background(), offered.ID, nil)
		require.NoError(t, err)

		offer := i.out.messages()[0].Clone()
		offer.SetThread(rec.ThreadID, "invitation-2")

		_, err = h.svc.HandleInbound(context.Background(), offer, &service.InboundContext{ConnectionID: testConnID})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateAbandoned, rec.State)
		require.Contains(t, rec.ErrorMessage, "invitation-2")
	})

	t.Run("parent thread must match the invitation", func(t *testing.T) {
		p := newParty(t)

		_, msg, err := p.svc.Start(context.Background(), &StartParams{
			Stage:          StageOffer,
			Connectionless: true,
			ParentThreadID: "invitation-1",
			FormatParams:   map[string]interface{}{attrsKey: attrs("name", "Alice")},
		})
		require.NoError(t, err)

		q := newParty(t)

		events := make(chan service.StateMsg, 10)
		require.NoError(t, q.svc.RegisterMsgEvent(events))

		_, err = q.svc.HandleInbound(context.Background(), msg, &service.InboundContext{OutOfBandID: "invitation-2"})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)

		records, err := q.svc.FindAllByQuery(nil)
		require.NoError(t, err)
		require.Empty(t, records)

		thid, err := msg.ThreadID()
		require.NoError(t, err)

		rejected := <-events
		require.Equal(t, string(StateAbandoned), rejected.StateID)
		require.Equal(t, msg.ID(), rejected.Msg.ID())
		require.Equal(t, thid, rejected.Properties.All()[threadIDPropKey])
		require.Empty(t, rejected.Properties.All()[recordIDPropKey])
		require.Contains(t, rejected.Properties.All()[errorPropKey], "invitation-2")
	})

	t.Run("format rejection abandons an existing record", func(t *testing.T) {
		h, i := newPair(t, nil, nil)
		h.format.processErr = map[Stage]error{StageOffer: errors.New("bad offer")}

		events := make(chan service.StateMsg, 10)
		require.NoError(t, h.svc.RegisterMsgEvent(events))

		rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
		require.NoError(t, err)

		_, err = i.svc.AcceptRecord(context.Background(), onlyRecord(t, i.svc).ID, nil)
		require.NoError(t, err)

		var fErr *FormatError
		require.Len(t, i.out.inboundErrors(), 1)
		require.ErrorAs(t, i.out.inboundErrors()[0], &fErr)

		rec, err = h.svc.Get(rec.ID)
		require.NoError(t, err)
		require.Equal(t, StateAbandoned, rec.State)
		require.Contains(t, rec.ErrorMessage, "bad offer")

		require.Equal(t, string(StateProposalSent), (<-events).StateID)

		abandoned := <-events
		require.Equal(t, string(StateAbandoned), abandoned.StateID)
		require.Contains(t, abandoned.Properties.All()[errorPropKey], "bad offer")
	})

	t.Run("unsupported attachment format", func(t *testing.T) {
		p := newParty(t)

		msg := service.DIDCommMsgMap{
			"@id":   "offer-1",
			"@type": testSpecV2 + "offer-credential",
			"formats": []interface{}{
				map[string]interface{}{"attach_id": "a", "format": "hlindy/cred-abstract@v2.0"},
			},
			"offers~attach": []interface{}{
				map[string]interface{}{"@id": "a", "data": map[string]interface{}{"json": map[string]interface{}{}}},
			},
		}

		events := make(chan service.StateMsg, 10)
		require.NoError(t, p.svc.RegisterMsgEvent(events))

		_, err := p.svc.HandleInbound(context.Background(), msg, &service.InboundContext{ConnectionID: testConnID})

		var fErr *FormatError
		require.ErrorAs(t, err, &fErr)
		require.Equal(t, "hlindy/cred-abstract@v2.0", fErr.Format)

		rejected := <-events
		require.Equal(t, string(StateAbandoned), rejected.StateID)
		require.Equal(t, "offer-1", rejected.Properties.All()[threadIDPropKey])
		require.Equal(t, testConnID, rejected.Properties.All()[connectionIDPropKey])
		require.Contains(t, rejected.Properties.All()[errorPropKey], "hlindy/cred-abstract@v2.0")

		records, err := p.svc.FindAllByQuery(nil)
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("unsupported message type", func(t *testing.T) {
		p := newParty(t)

		_, err := p.svc.HandleInbound(context.Background(), service.DIDCommMsgMap{"@type": "unknown"}, nil)
		require.EqualError(t, err, "test-credential: unsupported message type unknown")
	})
}

func TestService_ConnectionlessExchange(t *testing.T) {
	issuerParty := newParty(t, WithAutoAccept(AutoAcceptAlways))
	holderParty := newParty(t, WithAutoAccept(AutoAcceptAlways))

	holderParty.out.peer = issuerParty.svc
	issuerParty.out.peer = holderParty.svc

	offerRec, msg, err := issuerParty.svc.Start(context.Background(), &StartParams{
		Stage:          StageOffer,
		Connectionless: true,
		ParentThreadID: "invitation-1",
		FormatParams:   map[string]interface{}{attrsKey: attrs("name", "Alice")},
	})
	require.NoError(t, err)

	theirService := &service.Destination{ServiceEndpoint: "http://issuer", RecipientKeys: []string{"key"}}

	_, err = holderParty.svc.HandleInbound(context.Background(), msg, &service.InboundContext{
		TheirService: theirService,
		OutOfBandID:  "invitation-1",
	})
	require.NoError(t, err)

	held := onlyRecord(t, holderParty.svc)
	require.Equal(t, StateDone, held.State)
	require.Equal(t, theirService, held.TheirService)
	require.Equal(t, "invitation-1", held.ParentThreadID)

	offerRec, err = issuerParty.svc.Get(offerRec.ID)
	require.NoError(t, err)
	require.Equal(t, StateDone, offerRec.State)
}

func TestService_ActionEvents(t *testing.T) {
	h, i := newPair(t, nil, nil)

	actions := make(chan service.DIDCommAction, 1)
	require.NoError(t, i.svc.RegisterActionEvent(actions))

	rec, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
	require.NoError(t, err)

	select {
	case action := <-actions:
		require.Equal(t, "test-credential", action.ProtocolName)
		require.Equal(t, testSpecV2+"propose-credential", action.Message.Type())
		require.Equal(t, string(StateProposalReceived), action.Properties.All()[statePropKey])

		action.Continue(&AcceptParams{Comment: "here you go"})
	case <-time.After(time.Second):
		require.Fail(t, "no action event")
	}

	require.Eventually(t, func() bool {
		stored, err := h.svc.Get(rec.ID)

		return err == nil && stored.State == StateOfferReceived
	}, time.Second, 10*time.Millisecond)

	select {
	case action := <-actions:
		t.Fatalf("unexpected action %v", action.Message)
	default:
	}
}

func TestService_Queries(t *testing.T) {
	h, i := newPair(t, nil, nil)

	first, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Alice")))
	require.NoError(t, err)

	second, _, err := h.svc.Start(context.Background(), proposal(attrs("name", "Bob")))
	require.NoError(t, err)

	_, err = i.svc.AcceptRecord(context.Background(), onlyRecordOnThread(t, i.svc, first.ThreadID).ID, nil)
	require.NoError(t, err)

	found, err := h.svc.FindByThreadAndRole(first.ThreadID, holder)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	_, err = h.svc.FindByThreadAndRole(first.ThreadID, issuer)
	require.ErrorIs(t, err, ErrNotFound)

	records, err := h.svc.FindAllByQuery(&Query{State: StateOfferReceived})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, first.ID, records[0].ID)

	records, err = h.svc.FindAllByQuery(&Query{ConnectionID: testConnID, Role: holder})
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, h.svc.Delete(second.ID))

	_, err = h.svc.Get(second.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, h.svc.Delete(second.ID), ErrNotFound)

	data, err := h.svc.GetFormatData(first.ID)
	require.NoError(t, err)
	require.Contains(t, data.Offer, attrsKey)
	require.Empty(t, data.Request)
}

func onlyRecordOnThread(t *testing.T, svc *Service, threadID string) *Record {
	t.Helper()

	records, err := svc.FindAllByQuery(&Query{ThreadID: threadID})
	require.NoError(t, err)
	require.Len(t, records, 1)

	return records[0]
}

func TestParseAutoAccept(t *testing.T) {
	for _, s := range []string{"", "never", "contentApproved", "always"} {
		a, err := ParseAutoAccept(s)
		require.NoError(t, err)
		require.Equal(t, AutoAccept(s), a)
	}

	_, err := ParseAutoAccept("sometimes")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestPreviewEqual(t *testing.T) {
	a := []PreviewAttribute{{Name: "name", Value: "Alice"}, {Name: "age", Value: "30"}}
	b := []PreviewAttribute{{Name: "age", Value: "30"}, {Name: "name", Value: "Alice"}}

	require.True(t, PreviewEqual(a, b))
	require.False(t, PreviewEqual(a, b[:1]))
	require.False(t, PreviewEqual(a, []PreviewAttribute{{Name: "age", Value: "31"}, {Name: "name", Value: "Alice"}}))

	raw, err := json.Marshal(a[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"name","value":"Alice"}`, string(raw))
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"encoding/json"
	"sort"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

// Role of the party owning a record.
type Role string

// State of a record.
type State string

// States shared by every instantiation.
const (
	StateProposalSent     State = "proposal-sent"
	StateProposalReceived State = "proposal-received"
	StateOfferSent        State = "offer-sent"
	StateOfferReceived    State = "offer-received"
	StateRequestSent      State = "request-sent"
	StateRequestReceived  State = "request-received"
	StateResultSent       State = "result-sent"
	StateResultReceived   State = "result-received"
	StateDone             State = "done"
	StateDeclined         State = "declined"
	StateAbandoned        State = "abandoned"
)

// IsTerminal reports whether no further transition leaves the state.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateDeclined || s == StateAbandoned
}

// Stage of an exchange, each stage is carried by one message kind.
type Stage string

// Stages.
const (
	StageProposal Stage = "proposal"
	StageOffer    Stage = "offer"
	StageRequest  Stage = "request"
	StageResult   Stage = "result"
)

// SentState returns the state of the record that sent a message of the stage.
func (s Stage) SentState() State {
	return State(string(s) + "-sent")
}

// ReceivedState returns the state of the record that received a message of the stage.
func (s Stage) ReceivedState() State {
	return State(string(s) + "-received")
}

// stageOf returns the stage a sent/received state belongs to.
func stageOf(s State) (Stage, bool) {
	for _, stage := range []Stage{StageProposal, StageOffer, StageRequest, StageResult} {
		if s == stage.SentState() || s == stage.ReceivedState() {
			return stage, true
		}
	}

	return "", false
}

// Action moves a record from one state to another.
type Action string

// Actions.
const (
	ActionCreateProposal       Action = "create-proposal"
	ActionReceiveProposal      Action = "receive-proposal"
	ActionCreateOffer          Action = "create-offer"
	ActionReceiveOffer         Action = "receive-offer"
	ActionCreateRequest        Action = "create-request"
	ActionReceiveRequest       Action = "receive-request"
	ActionCreateResult         Action = "create-result"
	ActionReceiveResult        Action = "receive-result"
	ActionCreateAck            Action = "create-ack"
	ActionReceiveAck           Action = "receive-ack"
	ActionDecline              Action = "decline"
	ActionAbandon              Action = "abandon"
	ActionReceiveProblemReport Action = "receive-problem-report"
)

// CreateAction returns the action sending a message of the stage.
func CreateAction(s Stage) Action {
	return Action("create-" + string(s))
}

// ReceiveAction returns the action receiving a message of the stage.
func ReceiveAction(s Stage) Action {
	return Action("receive-" + string(s))
}

// PreviewAttribute is one attribute of a credential preview.
type PreviewAttribute struct {
	Name     string `json:"name"`
	MimeType string `json:"mime-type,omitempty"`
	Value    string `json:"value"`
}

// StagePreview is the preview carried by a message of the stage.
type StagePreview struct {
	Stage      Stage              `json:"stage"`
	Sender     Role               `json:"sender"`
	Attributes []PreviewAttribute `json:"attributes"`
}

// FormatPayload is one attachment exchanged during the exchange. Payloads are never overwritten.
type FormatPayload struct {
	Format     string          `json:"format"`
	FormatID   string          `json:"format_id"`
	Stage      Stage           `json:"stage"`
	Sender     Role            `json:"sender"`
	MessageID  string          `json:"message_id"`
	Attachment json.RawMessage `json:"attachment"`
}

// Record is the persisted state of one exchange.
type Record struct {
	ID                string                 `json:"id"`
	Protocol          string                 `json:"protocol"`
	ProtocolVersion   string                 `json:"protocol_version"`
	Role              Role                   `json:"role"`
	State             State                  `json:"state"`
	ThreadID          string                 `json:"thread_id"`
	ParentThreadID    string                 `json:"parent_thread_id,omitempty"`
	ConnectionID      string                 `json:"connection_id,omitempty"`
	TheirService      *service.Destination   `json:"their_service,omitempty"`
	FormatPayloads    []FormatPayload        `json:"format_payloads,omitempty"`
	Previews          []StagePreview         `json:"previews,omitempty"`
	ReceivedMessages  []string               `json:"received_messages,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	AutoAccept        AutoAccept             `json:"auto_accept,omitempty"`
	NegotiationRounds int                    `json:"negotiation_rounds,omitempty"`
	ErrorMessage      string                 `json:"error_message,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// LatestPayload returns the last payload of the format for the stage, nil if there is none.
func (r *Record) LatestPayload(format string, stage Stage) *FormatPayload {
	for i := len(r.FormatPayloads) - 1; i >= 0; i-- {
		p := r.FormatPayloads[i]
		if p.Format == format && p.Stage == stage {
			return &p
		}
	}

	return nil
}

// LatestPayloadFrom returns the last payload of the format sent by the role, nil if there is none.
func (r *Record) LatestPayloadFrom(format string, sender Role) *FormatPayload {
	for i := len(r.FormatPayloads) - 1; i >= 0; i-- {
		p := r.FormatPayloads[i]
		if p.Format == format && p.Sender == sender {
			return &p
		}
	}

	return nil
}

// LatestPreview returns the last preview of the stage, nil if there is none.
func (r *Record) LatestPreview(stage Stage) []PreviewAttribute {
	for i := len(r.Previews) - 1; i >= 0; i-- {
		if r.Previews[i].Stage == stage {
			return r.Previews[i].Attributes
		}
	}

	return nil
}

func (r *Record) latestPreviewFrom(sender Role) *StagePreview {
	for i := len(r.Previews) - 1; i >= 0; i-- {
		if r.Previews[i].Sender == sender {
			return &r.Previews[i]
		}
	}

	return nil
}

func (r *Record) hasReceived(msgID string) bool {
	return msgID != "" && slices.Contains(r.ReceivedMessages, msgID)
}

// formatsAt returns the formats of the payloads of the last message of the stage, in plugin order.
func (r *Record) formatsAt(stage Stage) []string {
	var (
		msgID   string
		formats []string
	)

	for i := len(r.FormatPayloads) - 1; i >= 0; i-- {
		p := r.FormatPayloads[i]
		if p.Stage != stage {
			continue
		}

		if msgID == "" {
			msgID = p.MessageID
		}

		if p.MessageID == msgID {
			formats = append([]string{p.Format}, formats...)
		}
	}

	return formats
}

// Clone returns a deep enough copy of the record, safe to mutate.
func (r *Record) Clone() *Record {
	c := *r
	c.FormatPayloads = slices.Clone(r.FormatPayloads)
	c.Previews = slices.Clone(r.Previews)
	c.ReceivedMessages = slices.Clone(r.ReceivedMessages)
	c.Metadata = maps.Clone(r.Metadata)

	if r.TheirService != nil {
		ts := *r.TheirService
		c.TheirService = &ts
	}

	return &c
}

// PreviewEqual reports whether both attribute sets hold the same attributes, in any order.
func PreviewEqual(a, b []PreviewAttribute) bool {
	if len(a) != len(b) {
		return false
	}

	sorted := func(attrs []PreviewAttribute) []PreviewAttribute {
		res := slices.Clone(attrs)
		sort.Slice(res, func(i, j int) bool {
			if res[i].Name != res[j].Name {
				return res[i].Name < res[j].Name
			}

			return res[i].Value < res[j].Value
		})

		return res
	}

	return slices.Equal(sorted(a), sorted(b))
}

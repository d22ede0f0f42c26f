/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"context"
	"encoding/json"
)

// Format produces and validates the payload of one credential or proof encoding.
type Format interface {
	// Key names the format in records and caller parameters.
	Key() string
	// Supports reports whether the attachment format identifier belongs to this format.
	Supports(formatID string) bool
	// Create builds the payload of an outbound message of the given stage.
	Create(ctx context.Context, req *CreateRequest) (*FormatAttachment, error)
	// Process validates the payload of an inbound message and returns the metadata it derives.
	Process(ctx context.Context, req *ProcessRequest) (*Processed, error)
	// ShouldAutoRespond compares the payload we sent last with the incoming one.
	ShouldAutoRespond(ctx context.Context, req *AutoRespondRequest) (bool, error)
}

// CreateRequest asks a format for an outbound payload.
type CreateRequest struct {
	Stage Stage
	// Role of the local party.
	Role Role
	// Record is a snapshot of the exchange so far, it must not be modified.
	Record *Record
	// Params are the caller parameters for this format, nil when the payload derives from the
	// previous messages of the exchange.
	Params interface{}
}

// FormatAttachment is a payload produced by a format.
type FormatAttachment struct {
	// FormatID is the attachment format identifier written to the message.
	FormatID string
	Data     json.RawMessage
	// Metadata is merged into the record metadata.
	Metadata map[string]interface{}
}

// ProcessRequest asks a format to validate an inbound payload.
type ProcessRequest struct {
	Stage Stage
	// Role of the local party.
	Role       Role
	Record     *Record
	FormatID   string
	Attachment json.RawMessage
}

// Processed is the outcome of a successful Process call.
type Processed struct {
	Metadata map[string]interface{}
}

// AutoRespondRequest asks a format whether an incoming payload matches what we sent last.
type AutoRespondRequest struct {
	Stage  Stage
	Role   Role
	Record *Record
	// Ours is the payload of this format we sent last, nil if we never sent one.
	Ours     *FormatPayload
	Incoming json.RawMessage
}

// FormatData holds the latest payload of every format per stage.
type FormatData struct {
	Proposal map[string]json.RawMessage `json:"proposal,omitempty"`
	Offer    map[string]json.RawMessage `json:"offer,omitempty"`
	Request  map[string]json.RawMessage `json:"request,omitempty"`
	Result   map[string]json.RawMessage `json:"result,omitempty"`
	Preview  []PreviewAttribute         `json:"preview,omitempty"`
}

func newFormatData(rec *Record) *FormatData {
	data := &FormatData{}

	for _, p := range rec.FormatPayloads {
		var target *map[string]json.RawMessage

		switch p.Stage {
		case StageProposal:
			target = &data.Proposal
		case StageOffer:
			target = &data.Offer
		case StageRequest:
			target = &data.Request
		case StageResult:
			target = &data.Result
		default:
			continue
		}

		if *target == nil {
			*target = map[string]json.RawMessage{}
		}

		(*target)[p.Format] = p.Attachment
	}

	if len(rec.Previews) > 0 {
		data.Preview = rec.Previews[len(rec.Previews)-1].Attributes
	}

	return data
}

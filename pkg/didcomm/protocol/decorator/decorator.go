/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package decorator

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

const (
	// TransportReturnRouteNone return route option none.
	TransportReturnRouteNone = "none"

	// TransportReturnRouteAll return route option all.
	TransportReturnRouteAll = "all"

	// TransportReturnRouteThread return route option thread.
	TransportReturnRouteThread = "thread"
)

// Thread thread data.
type Thread struct {
	ID             string         `json:"thid,omitempty"`
	PID            string         `json:"pthid,omitempty"`
	SenderOrder    int            `json:"sender_order,omitempty"`
	ReceivedOrders map[string]int `json:"received_orders,omitempty"`
}

// Timing keeps expiration time.
type Timing struct {
	ExpiresTime time.Time `json:"expires_time,omitempty"`
	OutTime     time.Time `json:"out_time,omitempty"`
}

// Transport transport decorator
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0092-transport-return-route.
type Transport struct {
	ReturnRoute *ReturnRoute `json:"~transport,omitempty"`
}

// ReturnRoute works with Transport decorator. Acceptable values - "none", "all" or "thread".
type ReturnRoute struct {
	Value string `json:"return_route,omitempty"`
}

// Service is the ~service decorator used by connection-less exchanges
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0056-service-decorator.
type Service struct {
	RecipientKeys   []string `json:"recipientKeys"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
}

// Attachment is intended to provide the possibility to include files, links or even JSON payload to the message.
// To find out more please visit https://github.com/hyperledger/aries-rfcs/tree/master/concepts/0017-attachments
type Attachment struct {
	// ID is a JSON-LD construct that uniquely identifies attached content within the scope of a given message.
	ID string `json:"@id,omitempty"`
	// Description is an optional human-readable description of the content.
	Description string `json:"description,omitempty"`
	// FileName is a hint about the name that might be used if this attachment is persisted as a file.
	FileName string `json:"filename,omitempty"`
	// MimeType describes the MIME type of the attached content. Optional but recommended.
	MimeType string `json:"mime-type,omitempty"`
	// LastModTime is a hint about when the content in this attachment was last modified.
	LastModTime time.Time `json:"lastmod_time,omitempty"`
	// ByteCount is an optional, and mostly relevant when content is included by reference instead of by value.
	ByteCount int64 `json:"byte_count,omitempty"`
	// Data is a JSON object that gives access to the actual content of the attachment.
	Data AttachmentData `json:"data,omitempty"`
}

// AttachmentV2 is the DIDComm V2 attachment shape.
type AttachmentV2 struct {
	ID          string         `json:"id,omitempty"`
	Description string         `json:"description,omitempty"`
	MediaType   string         `json:"media_type,omitempty"`
	Format      string         `json:"format,omitempty"`
	Data        AttachmentData `json:"data,omitempty"`
}

// AttachmentData contains attachment payload.
type AttachmentData struct {
	// Sha256 is a hash of the content. Optional. Used as an integrity check if content is inlined.
	Sha256 string `json:"sha256,omitempty"`
	// Links is a list of zero or more locations at which the content may be fetched.
	Links []string `json:"links,omitempty"`
	// Base64 encoded data, when representing arbitrary content inline instead of via links. Optional.
	Base64 string `json:"base64,omitempty"`
	// JSON is a directly embedded JSON data, when representing content inline instead of via links,
	// and when the content is natively conveyable as JSON. Optional.
	JSON interface{} `json:"json,omitempty"`
}

// Fetch returns the inline content of the attachment. Linked content is not fetched.
func (d *AttachmentData) Fetch() ([]byte, error) {
	if d.JSON != nil {
		return json.Marshal(d.JSON)
	}

	if d.Base64 != "" {
		return base64.StdEncoding.DecodeString(d.Base64)
	}

	return nil, errors.New("no contents in this attachment")
}

// NewJSONAttachmentData wraps the JSON encoding of v as base64 attachment data.
func NewJSONAttachmentData(v interface{}) (AttachmentData, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return AttachmentData{}, err
	}

	return AttachmentData{Base64: base64.StdEncoding.EncodeToString(raw)}, nil
}

// AttachmentFormat ties an attachment id to the format identifier of its content.
type AttachmentFormat struct {
	AttachID string `json:"attach_id"`
	Format   string `json:"format"`
}

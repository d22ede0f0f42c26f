/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
)

// MessageKind identifies a message of the protocol independently of its version.
type MessageKind string

// Message kinds. Stage kinds share the name of their stage.
const (
	KindProposal                  = MessageKind(StageProposal)
	KindOffer                     = MessageKind(StageOffer)
	KindRequest                   = MessageKind(StageRequest)
	KindResult                    = MessageKind(StageResult)
	KindAck           MessageKind = "ack"
	KindProblemReport MessageKind = "problem-report"
)

const jsonMediaType = "application/json"

// Attachment is a format payload carried by a message.
type Attachment struct {
	ID     string
	Format string
	Data   json.RawMessage
}

// Message is the version-neutral form of a protocol message.
type Message struct {
	Kind           MessageKind
	ID             string
	ThreadID       string
	ParentThreadID string
	Comment        string
	GoalCode       string
	Attachments    []Attachment
	Preview        []PreviewAttribute
	// Status of an ack.
	Status string
	// ProblemCode and ProblemDescription of a problem report.
	ProblemCode        string
	ProblemDescription string
}

// Vocabulary maps messages of one protocol version to and from the wire.
type Vocabulary interface {
	// Version is the protocol version, e.g. "2.0".
	Version() string
	// Kind returns the kind of the message type, false if the type is not part of the vocabulary.
	Kind(msgType string) (MessageKind, bool)
	// Type returns the message type of the kind.
	Type(kind MessageKind) string
	Build(msg *Message) (service.DIDCommMsgMap, error)
	Parse(msg service.DIDCommMsg) (*Message, error)
}

// VocabularyConfig names the message types and fields of a vocabulary.
type VocabularyConfig struct {
	Version string
	// Spec is the message type prefix, e.g. https://didcomm.org/issue-credential/2.0/.
	Spec string
	// Types holds the message type name of every kind.
	Types map[MessageKind]string
	// AttachFields holds the attachment field of every stage, used by decorator vocabularies only.
	AttachFields map[Stage]string
	// PreviewField and PreviewType name the preview object. An empty field disables previews.
	PreviewField string
	PreviewType  string
}

type vocabulary struct {
	cfg VocabularyConfig
}

func (v *vocabulary) Version() string {
	return v.cfg.Version
}

func (v *vocabulary) Kind(msgType string) (MessageKind, bool) {
	if !strings.HasPrefix(msgType, v.cfg.Spec) {
		return "", false
	}

	name := strings.TrimPrefix(msgType, v.cfg.Spec)

	for kind, t := range v.cfg.Types {
		if t == name {
			return kind, true
		}
	}

	return "", false
}

func (v *vocabulary) Type(kind MessageKind) string {
	return v.cfg.Spec + v.cfg.Types[kind]
}

func (v *vocabulary) hasPreview(kind MessageKind) bool {
	return v.cfg.PreviewField != "" && (kind == KindProposal || kind == KindOffer)
}

// NewDecoratorVocabulary returns the vocabulary of DIDComm V1 messages: "@type", "~thread", a
// "formats" list and one "<stage>~attach" field per stage.
func NewDecoratorVocabulary(cfg VocabularyConfig) Vocabulary {
	return &decoratorVocabulary{vocabulary{cfg: cfg}}
}

type decoratorVocabulary struct {
	vocabulary
}

type preview struct {
	Type       string             `json:"@type,omitempty"`
	Attributes []PreviewAttribute `json:"attributes"`
}

type decoratorMessage struct {
	ID       string            `json:"@id"`
	Type     string            `json:"@type"`
	Thread   *decorator.Thread `json:"~thread,omitempty"`
	Comment  string            `json:"comment,omitempty"`
	GoalCode string            `json:"goal_code,omitempty"`
	Status   string            `json:"status,omitempty"`

	Formats []decorator.AttachmentFormat `json:"formats,omitempty"`
}

func (v *decoratorVocabulary) Build(msg *Message) (service.DIDCommMsgMap, error) {
	if _, ok := v.cfg.Types[msg.Kind]; !ok {
		return nil, fmt.Errorf("%s has no %s message", v.cfg.Spec, msg.Kind)
	}

	var thread *decorator.Thread
	if msg.ThreadID != "" || msg.ParentThreadID != "" {
		thread = &decorator.Thread{ID: msg.ThreadID, PID: msg.ParentThreadID}
	}

	switch msg.Kind {
	case KindAck:
		return service.NewDIDCommMsgMap(&model.Ack{
			Type:   v.Type(msg.Kind),
			ID:     msgID(msg),
			Status: ackStatus(msg),
			Thread: thread,
		}), nil
	case KindProblemReport:
		return service.NewDIDCommMsgMap(&model.ProblemReport{
			Type:        v.Type(msg.Kind),
			ID:          msgID(msg),
			Description: model.Code{Code: msg.ProblemCode, En: msg.ProblemDescription},
			Thread:      thread,
		}), nil
	}

	wire := decoratorMessage{
		ID:       msgID(msg),
		Type:     v.Type(msg.Kind),
		Thread:   thread,
		Comment:  msg.Comment,
		GoalCode: msg.GoalCode,
	}

	var attachments []decorator.Attachment

	for i, a := range msg.Attachments {
		id := attachID(a, i)

		data, err := decorator.NewJSONAttachmentData(a.Data)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", id, err)
		}

		wire.Formats = append(wire.Formats, decorator.AttachmentFormat{AttachID: id, Format: a.Format})
		attachments = append(attachments, decorator.Attachment{ID: id, MimeType: jsonMediaType, Data: data})
	}

	res := service.NewDIDCommMsgMap(&wire)

	if len(attachments) > 0 {
		res[v.cfg.AttachFields[Stage(msg.Kind)]] = toJSONValue(attachments)
	}

	if v.hasPreview(msg.Kind) && len(msg.Preview) > 0 {
		res[v.cfg.PreviewField] = toJSONValue(&preview{
			Type:       v.cfg.Spec + v.cfg.PreviewType,
			Attributes: msg.Preview,
		})
	}

	return res, nil
}

func (v *decoratorVocabulary) Parse(m service.DIDCommMsg) (*Message, error) {
	kind, ok := v.Kind(m.Type())
	if !ok {
		return nil, fmt.Errorf("unsupported message type %s", m.Type())
	}

	var wire decoratorMessage
	if err := decodeJSON(m, &wire); err != nil {
		return nil, NewValidationError("decode %s: %v", kind, err)
	}

	msg := &Message{
		Kind:           kind,
		ID:             wire.ID,
		ParentThreadID: m.ParentThreadID(),
		Comment:        wire.Comment,
		GoalCode:       wire.GoalCode,
		Status:         wire.Status,
	}

	msg.ThreadID, _ = m.ThreadID() // nolint: errcheck

	switch kind {
	case KindAck:
		return msg, nil
	case KindProblemReport:
		var report model.ProblemReport
		if err := decodeJSON(m, &report); err != nil {
			return nil, NewValidationError("decode problem report: %v", err)
		}

		msg.ProblemCode = report.Description.Code
		msg.ProblemDescription = report.Text()

		return msg, nil
	}

	fields := m.Clone()

	var attachments []decorator.Attachment
	if err := convert(fields[v.cfg.AttachFields[Stage(kind)]], &attachments); err != nil {
		return nil, NewValidationError("decode %s attachments: %v", kind, err)
	}

	formats := map[string]string{}
	for _, f := range wire.Formats {
		formats[f.AttachID] = f.Format
	}

	for i := range attachments {
		a := attachments[i]

		format, ok := formats[a.ID]
		if !ok {
			return nil, NewValidationError("attachment %q has no format", a.ID)
		}

		data, err := a.Data.Fetch()
		if err != nil {
			return nil, NewValidationError("attachment %q: %v", a.ID, err)
		}

		msg.Attachments = append(msg.Attachments, Attachment{ID: a.ID, Format: format, Data: data})
	}

	if v.hasPreview(kind) && fields[v.cfg.PreviewField] != nil {
		var p preview
		if err := convert(fields[v.cfg.PreviewField], &p); err != nil {
			return nil, NewValidationError("decode preview: %v", err)
		}

		msg.Preview = p.Attributes
	}

	return msg, nil
}

// NewBodyVocabulary returns the vocabulary of DIDComm V2 messages: "type", top-level "thid" and
// "pthid", a "body" object and an "attachments" list carrying the format of every attachment.
func NewBodyVocabulary(cfg VocabularyConfig) Vocabulary {
	return &bodyVocabulary{vocabulary{cfg: cfg}}
}

type bodyVocabulary struct {
	vocabulary
}

type bodyMessage struct {
	ID          string                   `json:"id"`
	Type        string                   `json:"type"`
	ThreadID    string                   `json:"thid,omitempty"`
	PThreadID   string                   `json:"pthid,omitempty"`
	Body        map[string]interface{}   `json:"body"`
	Attachments []decorator.AttachmentV2 `json:"attachments,omitempty"`
}

type body struct {
	Comment  string `json:"comment,omitempty"`
	GoalCode string `json:"goal_code,omitempty"`
	Status   string `json:"status,omitempty"`
}

func (v *bodyVocabulary) Build(msg *Message) (service.DIDCommMsgMap, error) {
	if _, ok := v.cfg.Types[msg.Kind]; !ok {
		return nil, fmt.Errorf("%s has no %s message", v.cfg.Spec, msg.Kind)
	}

	switch msg.Kind {
	case KindAck:
		return service.NewDIDCommMsgMap(&model.AckV2{
			ID:     msgID(msg),
			Type:   v.Type(msg.Kind),
			Thread: msg.ThreadID,
			PThID:  msg.ParentThreadID,
			Body:   model.AckV2Body{Status: ackStatus(msg)},
		}), nil
	case KindProblemReport:
		return service.NewDIDCommMsgMap(&model.ProblemReportV2{
			ID:     msgID(msg),
			Type:   v.Type(msg.Kind),
			Thread: msg.ThreadID,
			PThID:  msg.ParentThreadID,
			Body:   model.ProblemReportV2Body{Code: msg.ProblemCode, Comment: msg.ProblemDescription},
		}), nil
	}

	wire := bodyMessage{
		ID:        msgID(msg),
		Type:      v.Type(msg.Kind),
		ThreadID:  msg.ThreadID,
		PThreadID: msg.ParentThreadID,
		Body:      service.NewDIDCommMsgMap(&body{Comment: msg.Comment, GoalCode: msg.GoalCode}),
	}

	for i, a := range msg.Attachments {
		wire.Attachments = append(wire.Attachments, decorator.AttachmentV2{
			ID:        attachID(a, i),
			MediaType: jsonMediaType,
			Format:    a.Format,
			Data:      decorator.AttachmentData{JSON: a.Data},
		})
	}

	if v.hasPreview(msg.Kind) && len(msg.Preview) > 0 {
		wire.Body[v.cfg.PreviewField] = toJSONValue(&preview{
			Type:       v.cfg.Spec + v.cfg.PreviewType,
			Attributes: msg.Preview,
		})
	}

	return service.NewDIDCommMsgMap(&wire), nil
}

func (v *bodyVocabulary) Parse(m service.DIDCommMsg) (*Message, error) {
	kind, ok := v.Kind(m.Type())
	if !ok {
		return nil, fmt.Errorf("unsupported message type %s", m.Type())
	}

	var wire bodyMessage
	if err := decodeJSON(m, &wire); err != nil {
		return nil, NewValidationError("decode %s: %v", kind, err)
	}

	var b body
	if err := convert(wire.Body, &b); err != nil {
		return nil, NewValidationError("decode %s body: %v", kind, err)
	}

	msg := &Message{
		Kind:           kind,
		ID:             wire.ID,
		ThreadID:       wire.ThreadID,
		ParentThreadID: wire.PThreadID,
		Comment:        b.Comment,
		GoalCode:       b.GoalCode,
		Status:         b.Status,
	}

	if msg.ThreadID == "" {
		msg.ThreadID = wire.ID
	}

	switch kind {
	case KindAck:
		return msg, nil
	case KindProblemReport:
		var report model.ProblemReportV2
		if err := decodeJSON(m, &report); err != nil {
			return nil, NewValidationError("decode problem report: %v", err)
		}

		msg.ProblemCode = report.Body.Code
		msg.ProblemDescription = report.Text()
		msg.Comment = ""

		return msg, nil
	}

	for i := range wire.Attachments {
		a := wire.Attachments[i]

		if a.Format == "" {
			return nil, NewValidationError("attachment %q has no format", a.ID)
		}

		data, err := a.Data.Fetch()
		if err != nil {
			return nil, NewValidationError("attachment %q: %v", a.ID, err)
		}

		msg.Attachments = append(msg.Attachments, Attachment{ID: a.ID, Format: a.Format, Data: data})
	}

	if v.hasPreview(kind) && wire.Body[v.cfg.PreviewField] != nil {
		var p preview
		if err := convert(wire.Body[v.cfg.PreviewField], &p); err != nil {
			return nil, NewValidationError("decode preview: %v", err)
		}

		msg.Preview = p.Attributes
	}

	return msg, nil
}

func msgID(msg *Message) string {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	return msg.ID
}

func attachID(a Attachment, i int) string {
	if a.ID != "" {
		return a.ID
	}

	return fmt.Sprintf("attachment-%d", i)
}

func ackStatus(msg *Message) string {
	if msg.Status == "" {
		return model.AckStatusOK
	}

	return msg.Status
}

// decodeJSON decodes the message through its JSON form, so maps built in memory and parsed
// from the wire decode the same way.
func decodeJSON(m service.DIDCommMsg, v interface{}) error {
	return convert(m.Clone(), v)
}

func convert(src, dst interface{}) error {
	if src == nil {
		return nil
	}

	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dst)
}

func toJSONValue(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}

	var res interface{}
	if err = json.Unmarshal(raw, &res); err != nil {
		return nil
	}

	return res
}

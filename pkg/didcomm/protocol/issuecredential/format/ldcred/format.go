/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ldcred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
)

const (
	// Key names the format in records and caller parameters.
	Key = "ldcred"
	// ProofVCDetailFormat is the attachment format of the proposal, offer and request.
	ProofVCDetailFormat = "aries/ld-proof-vc-detail@v1.0"
	// ProofVCFormat is the attachment format of the issued credential.
	ProofVCFormat = "aries/ld-proof-vc@v1.0"

	// MetadataCredentialID is the record metadata key holding the id of the issued credential.
	MetadataCredentialID = "credentialId"
	// MetadataCredentialName is the record metadata key holding the name the holder stored the credential under.
	MetadataCredentialName = "credentialName"
)

var logger = log.New("aries-framework/issuecredential/ldcred")

// CredentialDetail is the payload of proposals, offers and requests: the credential the parties
// agree on before it is signed.
type CredentialDetail struct {
	CredentialDefinitionID string            `json:"credentialDefinitionId"`
	Types                  []string          `json:"types,omitempty"`
	Attributes             map[string]string `json:"attributes"`
	// HolderDID is the subject id of the credential, set by the holder on the request.
	HolderDID string `json:"holderDid,omitempty"`
}

func (d *CredentialDetail) validate() error {
	if d.CredentialDefinitionID == "" {
		return errors.New("credential definition id is mandatory")
	}

	if len(d.Attributes) == 0 {
		return errors.New("credential detail has no attributes")
	}

	if _, ok := d.Attributes["id"]; ok {
		return errors.New(`attribute "id" is reserved for the holder DID`)
	}

	return nil
}

// sameContent compares the agreed part of two details, the holder DID aside.
func (d *CredentialDetail) sameContent(o *CredentialDetail) bool {
	return d.CredentialDefinitionID == o.CredentialDefinitionID &&
		maps.Equal(d.Attributes, o.Attributes) &&
		slices.Equal(sorted(d.Types), sorted(o.Types))
}

type credentialStore interface {
	Save(name string, c *vc.Credential) error
}

// Opt configures the Format.
type Opt func(*Format)

// WithHolderDID sets the DID the holder requests its credentials for.
func WithHolderDID(did string) Opt {
	return func(f *Format) {
		f.holderDID = did
	}
}

// WithCredentialName sets how the holder names stored credentials, by default after the record id.
func WithCredentialName(name func(rec *exchange.Record) string) Opt {
	return func(f *Format) {
		f.name = name
	}
}

// Format issues JSON-LD credentials signed with an Ed25519 proof. An issuer needs a signer, a
// holder needs a verifier and a store.
type Format struct {
	signer    *vc.Signer
	verifier  *vc.Verifier
	store     credentialStore
	holderDID string
	name      func(rec *exchange.Record) string
}

// New returns the format. Any of signer, verifier or store may be nil for an agent that never
// plays the role needing it.
func New(signer *vc.Signer, verifier *vc.Verifier, store credentialStore, opts ...Opt) *Format {
	f := &Format{
		signer:   signer,
		verifier: verifier,
		store:    store,
		name: func(rec *exchange.Record) string {
			return rec.ID
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Key returns the format key.
func (f *Format) Key() string {
	return Key
}

// Supports reports whether the attachment format identifier belongs to this format.
func (f *Format) Supports(formatID string) bool {
	return formatID == ProofVCDetailFormat || formatID == ProofVCFormat
}

// Create builds the payload of an outbound message.
func (f *Format) Create(_ context.Context, req *exchange.CreateRequest) (*exchange.FormatAttachment, error) {
	switch req.Stage {
	case exchange.StageProposal, exchange.StageOffer:
		detail, err := f.detail(req)
		if err != nil {
			return nil, err
		}

		return detailAttachment(detail)
	case exchange.StageRequest:
		return f.createRequest(req)
	case exchange.StageResult:
		return f.issue(req)
	default:
		return nil, fmt.Errorf("unsupported stage %s", req.Stage)
	}
}

// detail returns the caller's detail, or without one the last detail the counterpart sent.
func (f *Format) detail(req *exchange.CreateRequest) (*CredentialDetail, error) {
	if req.Params != nil {
		detail := &CredentialDetail{}
		if err := decodeParams(req.Params, detail); err != nil {
			return nil, err
		}

		return detail, detail.validate()
	}

	var last *exchange.FormatPayload

	for _, stage := range []exchange.Stage{exchange.StageOffer, exchange.StageProposal} {
		if p := req.Record.LatestPayload(Key, stage); p != nil && p.Sender != req.Role {
			last = p

			break
		}
	}

	if last == nil {
		return nil, errors.New("a credential detail is required")
	}

	return parseDetail(last.Attachment)
}

func (f *Format) createRequest(req *exchange.CreateRequest) (*exchange.FormatAttachment, error) {
	detail, err := f.detail(req)
	if err != nil {
		return nil, err
	}

	if detail.HolderDID == "" {
		detail.HolderDID = f.holderDID
	}

	if detail.HolderDID == "" {
		return nil, errors.New("the request needs a holder DID")
	}

	return detailAttachment(detail)
}

func (f *Format) issue(req *exchange.CreateRequest) (*exchange.FormatAttachment, error) {
	if f.signer == nil {
		return nil, errors.New("no signer to issue credentials with")
	}

	p := req.Record.LatestPayload(Key, exchange.StageRequest)
	if p == nil {
		return nil, errors.New("no credential request to issue for")
	}

	detail, err := parseDetail(p.Attachment)
	if err != nil {
		return nil, err
	}

	subject := map[string]interface{}{"id": detail.HolderDID}
	for name, value := range detail.Attributes {
		subject[name] = value
	}

	c := &vc.Credential{
		Context:                []string{vc.ContextURI},
		ID:                     "urn:uuid:" + uuid.New().String(),
		Types:                  append([]string{vc.TypeVerifiableCredential}, detail.Types...),
		CredentialDefinitionID: detail.CredentialDefinitionID,
		Subject:                subject,
	}

	if err = f.signer.Issue(c); err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	logger.Debugf("issued credential %s to %s", c.ID, detail.HolderDID)

	return &exchange.FormatAttachment{
		FormatID: ProofVCFormat,
		Data:     raw,
		Metadata: map[string]interface{}{MetadataCredentialID: c.ID},
	}, nil
}

// Process validates an inbound payload. The holder verifies and stores an issued credential.
func (f *Format) Process(_ context.Context, req *exchange.ProcessRequest) (*exchange.Processed, error) {
	if req.Stage == exchange.StageResult {
		return f.receiveCredential(req)
	}

	if req.FormatID != ProofVCDetailFormat {
		return nil, fmt.Errorf("unexpected attachment format %s for %s", req.FormatID, req.Stage)
	}

	detail, err := parseDetail(req.Attachment)
	if err != nil {
		return nil, err
	}

	if req.Stage != exchange.StageRequest {
		return &exchange.Processed{}, nil
	}

	if detail.HolderDID == "" {
		return nil, errors.New("credential request has no holder DID")
	}

	if offer := req.Record.LatestPayload(Key, exchange.StageOffer); offer != nil {
		offered, err := parseDetail(offer.Attachment)
		if err != nil {
			return nil, err
		}

		if !offered.sameContent(detail) {
			return nil, errors.New("credential request does not match the offer")
		}
	}

	return &exchange.Processed{}, nil
}

func (f *Format) receiveCredential(req *exchange.ProcessRequest) (*exchange.Processed, error) {
	if req.FormatID != ProofVCFormat {
		return nil, fmt.Errorf("unexpected attachment format %s for %s", req.FormatID, req.Stage)
	}

	if f.verifier == nil || f.store == nil {
		return nil, errors.New("no verifier or store to receive credentials with")
	}

	c, err := vc.Parse(req.Attachment)
	if err != nil {
		return nil, err
	}

	if err = f.verifier.Verify(c); err != nil {
		return nil, err
	}

	p := req.Record.LatestPayload(Key, exchange.StageRequest)
	if p == nil {
		return nil, errors.New("credential received without a request")
	}

	requested, err := parseDetail(p.Attachment)
	if err != nil {
		return nil, err
	}

	if err = matches(requested, c); err != nil {
		return nil, err
	}

	name := f.name(req.Record)

	if err = f.store.Save(name, c); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	return &exchange.Processed{Metadata: map[string]interface{}{
		MetadataCredentialID:   c.ID,
		MetadataCredentialName: name,
	}}, nil
}

// ShouldAutoRespond approves a detail equal to the one we sent last, or a credential matching our request.
func (f *Format) ShouldAutoRespond(_ context.Context, req *exchange.AutoRespondRequest) (bool, error) {
	if req.Ours == nil {
		return false, nil
	}

	ours, err := parseDetail(req.Ours.Attachment)
	if err != nil {
		return false, err
	}

	if req.Stage == exchange.StageResult {
		c, err := vc.Parse(req.Incoming)
		if err != nil {
			return false, err
		}

		return matches(ours, c) == nil, nil
	}

	incoming, err := parseDetail(req.Incoming)
	if err != nil {
		return false, err
	}

	return ours.sameContent(incoming), nil
}

// matches checks that the credential is the one requested.
func matches(requested *CredentialDetail, c *vc.Credential) error {
	if c.CredentialDefinitionID != requested.CredentialDefinitionID {
		return fmt.Errorf("credential definition %s was not requested", c.CredentialDefinitionID)
	}

	if c.SubjectID() != requested.HolderDID {
		return fmt.Errorf("credential subject %s is not the holder", c.SubjectID())
	}

	for name, value := range requested.Attributes {
		if got, ok := c.Attribute(name); !ok || got != value {
			return fmt.Errorf("credential attribute %q differs from the request", name)
		}
	}

	return nil
}

func detailAttachment(detail *CredentialDetail) (*exchange.FormatAttachment, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, err
	}

	return &exchange.FormatAttachment{FormatID: ProofVCDetailFormat, Data: raw}, nil
}

func parseDetail(raw json.RawMessage) (*CredentialDetail, error) {
	detail := &CredentialDetail{}
	if err := json.Unmarshal(raw, detail); err != nil {
		return nil, fmt.Errorf("unmarshal credential detail: %w", err)
	}

	return detail, detail.validate()
}

// decodeParams accepts a detail value or its generic JSON form.
func decodeParams(params, v interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal format params: %w", err)
	}

	if err = json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode format params: %w", err)
	}

	return nil
}

func sorted(values []string) []string {
	res := slices.Clone(values)
	slices.Sort(res)

	return res
}

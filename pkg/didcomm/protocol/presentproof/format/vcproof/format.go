/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vcproof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"golang.org/x/exp/maps"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
)

const (
	// Key names the format in records and caller parameters.
	Key = "vcproof"
	// ProofRequestFormat is the attachment format of proposals and requests.
	ProofRequestFormat = "aries/vc-proof-request@v1.0"
	// ProofFormat is the attachment format of presentations.
	ProofFormat = "aries/vc-proof@v1.0"

	// MetadataIsVerified is the record metadata key holding the verification outcome of a presentation.
	MetadataIsVerified = "isVerified"
	// MetadataVerificationError is the record metadata key holding why a presentation did not verify.
	MetadataVerificationError = "verificationError"
)

var logger = log.New("aries-framework/presentproof/vcproof")

type credentialStore interface {
	Get(id string) (*vc.Credential, error)
	All() ([]*vc.Credential, error)
}

// Format presents held credentials against proof requests and verifies such presentations. A
// prover needs a store, a verifier needs a vc.Verifier.
type Format struct {
	store    credentialStore
	verifier *vc.Verifier
	nonce    func() string
}

// Opt configures the Format.
type Opt func(*Format)

// WithNonce sets the nonce generator of requests.
func WithNonce(nonce func() string) Opt {
	return func(f *Format) {
		f.nonce = nonce
	}
}

// New returns the format. Either argument may be nil for an agent that never plays the role needing it.
func New(store credentialStore, verifier *vc.Verifier, opts ...Opt) *Format {
	f := &Format{
		store:    store,
		verifier: verifier,
		nonce: func() string {
			return uuid.New().String()
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
	return formatID == ProofRequestFormat || formatID == ProofFormat
}

// Create builds a proposal, a request or a presentation.
func (f *Format) Create(_ context.Context, req *exchange.CreateRequest) (*exchange.FormatAttachment, error) {
	switch req.Stage {
	case exchange.StageProposal:
		if req.Params == nil {
			return nil, errors.New("a proof request is required")
		}

		proposal := &ProofRequest{}
		if err := decodeParams(req.Params, proposal); err != nil {
			return nil, err
		}

		proposal.Nonce = ""

		return requestAttachment(proposal)
	case exchange.StageRequest:
		return f.createRequest(req)
	case exchange.StageResult:
		return f.present(req)
	default:
		return nil, fmt.Errorf("unsupported stage %s", req.Stage)
	}
}

// createRequest never reuses a nonce, a request derived from a proposal gets a fresh one.
func (f *Format) createRequest(req *exchange.CreateRequest) (*exchange.FormatAttachment, error) {
	request := &ProofRequest{}

	if req.Params != nil {
		if err := decodeParams(req.Params, request); err != nil {
			return nil, err
		}
	} else {
		p := req.Record.LatestPayload(Key, exchange.StageProposal)
		if p == nil {
			return nil, errors.New("a proof request is required")
		}

		if err := json.Unmarshal(p.Attachment, request); err != nil {
			return nil, fmt.Errorf("unmarshal proof proposal: %w", err)
		}

		request.Nonce = ""
	}

	if request.Nonce == "" {
		request.Nonce = f.nonce()
	}

	return requestAttachment(request)
}

func (f *Format) present(req *exchange.CreateRequest) (*exchange.FormatAttachment, error) {
	if f.store == nil {
		return nil, errors.New("no credential store to present from")
	}

	p := req.Record.LatestPayload(Key, exchange.StageRequest)
	if p == nil {
		return nil, errors.New("no proof request to present for")
	}

	request, err := parseRequest(p.Attachment)
	if err != nil {
		return nil, err
	}

	selected := &SelectedCredentials{}

	if req.Params != nil {
		if err = decodeParams(req.Params, selected); err != nil {
			return nil, err
		}
	} else {
		held, err := f.store.All()
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}

		if selected, err = SelectCredentials(request, held); err != nil {
			return nil, err
		}
	}

	presentation, err := f.buildPresentation(request, selected)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(presentation)
	if err != nil {
		return nil, err
	}

	return &exchange.FormatAttachment{FormatID: ProofFormat, Data: raw}, nil
}

func (f *Format) buildPresentation(request *ProofRequest, selected *SelectedCredentials) (*Presentation, error) {
	presentation := &Presentation{
		Nonce: request.Nonce,
		RequestedProof: RequestedProof{
			RevealedAttrs: map[string]*RevealedAttribute{},
			Predicates:    map[string]*SubProof{},
		},
	}

	index := map[string]int{}

	include := func(id string) (*vc.Credential, int, error) {
		c, err := f.store.Get(id)
		if err != nil {
			return nil, 0, fmt.Errorf("get credential %s: %w", id, err)
		}

		if i, ok := index[id]; ok {
			return c, i, nil
		}

		raw, err := json.Marshal(c)
		if err != nil {
			return nil, 0, err
		}

		index[id] = len(presentation.Credentials)
		presentation.Credentials = append(presentation.Credentials, raw)

		return c, index[id], nil
	}

	for _, group := range sortedKeys(request.RequestedAttributes) {
		id, ok := selected.RequestedAttributes[group]
		if !ok {
			return nil, fmt.Errorf("no credential selected for attribute group %q", group)
		}

		c, i, err := include(id)
		if err != nil {
			return nil, err
		}

		value, found, err := attributeString(c, request.RequestedAttributes[group].Name)
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, fmt.Errorf("credential %s has no attribute %q", id, request.RequestedAttributes[group].Name)
		}

		presentation.RequestedProof.RevealedAttrs[group] = &RevealedAttribute{SubProofIndex: i, Raw: value}
	}

	for _, group := range sortedKeys(request.RequestedPredicates) {
		id, ok := selected.RequestedPredicates[group]
		if !ok {
			return nil, fmt.Errorf("no credential selected for predicate group %q", group)
		}

		_, i, err := include(id)
		if err != nil {
			return nil, err
		}

		presentation.RequestedProof.Predicates[group] = &SubProof{SubProofIndex: i}
	}

	return presentation, nil
}

// Process validates proposals and requests and verifies presentations. A presentation that fails
// verification is not an error, the outcome is recorded in the metadata.
func (f *Format) Process(_ context.Context, req *exchange.ProcessRequest) (*exchange.Processed, error) {
	switch req.Stage {
	case exchange.StageProposal, exchange.StageRequest:
		if req.FormatID != ProofRequestFormat {
			return nil, fmt.Errorf("unexpected attachment format %s for %s", req.FormatID, req.Stage)
		}

		request, err := parseRequest(req.Attachment)
		if err != nil {
			return nil, err
		}

		if req.Stage == exchange.StageRequest && request.Nonce == "" {
			return nil, errors.New("proof request has no nonce")
		}

		return &exchange.Processed{}, nil
	case exchange.StageResult:
		return f.receivePresentation(req)
	default:
		return nil, fmt.Errorf("unsupported stage %s", req.Stage)
	}
}

func (f *Format) receivePresentation(req *exchange.ProcessRequest) (*exchange.Processed, error) {
	if req.FormatID != ProofFormat {
		return nil, fmt.Errorf("unexpected attachment format %s for %s", req.FormatID, req.Stage)
	}

	if f.verifier == nil {
		return nil, errors.New("no verifier to check presentations with")
	}

	p := req.Record.LatestPayload(Key, exchange.StageRequest)
	if p == nil {
		return nil, errors.New("presentation received without a request")
	}

	request, err := parseRequest(p.Attachment)
	if err != nil {
		return nil, err
	}

	presentation := &Presentation{}
	if err = json.Unmarshal(req.Attachment, presentation); err != nil {
		return nil, fmt.Errorf("unmarshal presentation: %w", err)
	}

	metadata := map[string]interface{}{MetadataIsVerified: true}

	if err = f.verify(request, presentation); err != nil {
		logger.Warnf("record %s: presentation does not verify: %v", req.Record.ID, err)

		metadata[MetadataIsVerified] = false
		metadata[MetadataVerificationError] = err.Error()
	}

	return &exchange.Processed{Metadata: metadata}, nil
}

// verify checks signatures, nonce, restrictions, revealed values and predicates.
func (f *Format) verify(request *ProofRequest, presentation *Presentation) error {
	if presentation.Nonce != request.Nonce {
		return errors.New("presentation nonce does not match the request")
	}

	credentials := make([]*vc.Credential, 0, len(presentation.Credentials))

	for _, raw := range presentation.Credentials {
		c, err := vc.Parse(raw)
		if err != nil {
			return err
		}

		if err = f.verifier.Verify(c); err != nil {
			return fmt.Errorf("credential %s: %w", c.ID, err)
		}

		credentials = append(credentials, c)
	}

	credential := func(i int) (*vc.Credential, error) {
		if i < 0 || i >= len(credentials) {
			return nil, fmt.Errorf("sub proof index %d out of range", i)
		}

		return credentials[i], nil
	}

	for group, a := range request.RequestedAttributes {
		revealed, ok := presentation.RequestedProof.RevealedAttrs[group]
		if !ok {
			return fmt.Errorf("attribute group %q is not revealed", group)
		}

		c, err := credential(revealed.SubProofIndex)
		if err != nil {
			return err
		}

		if !satisfies(c, a.Restrictions) {
			return fmt.Errorf("attribute group %q: credential does not satisfy the restrictions", group)
		}

		value, found, err := attributeString(c, a.Name)
		if err != nil {
			return err
		}

		if !found || value != revealed.Raw {
			return fmt.Errorf("attribute group %q: revealed value does not match the credential", group)
		}
	}

	for group, p := range request.RequestedPredicates {
		proof, ok := presentation.RequestedProof.Predicates[group]
		if !ok {
			return fmt.Errorf("predicate group %q is not proven", group)
		}

		c, err := credential(proof.SubProofIndex)
		if err != nil {
			return err
		}

		ok, err = answersPredicate(c, p)
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("predicate group %q does not hold", group)
		}
	}

	return nil
}

// ShouldAutoRespond approves a proposal or request equal to the one we sent last, and a
// presentation that verified.
func (f *Format) ShouldAutoRespond(_ context.Context, req *exchange.AutoRespondRequest) (bool, error) {
	if req.Stage == exchange.StageResult {
		verified, _ := req.Record.Metadata[MetadataIsVerified].(bool) // nolint: errcheck

		return verified, nil
	}

	if req.Ours == nil {
		return false, nil
	}

	ours, err := parseRequest(req.Ours.Attachment)
	if err != nil {
		return false, err
	}

	incoming, err := parseRequest(req.Incoming)
	if err != nil {
		return false, err
	}

	return ours.sameContent(incoming), nil
}

func requestAttachment(request *ProofRequest) (*exchange.FormatAttachment, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	return &exchange.FormatAttachment{FormatID: ProofRequestFormat, Data: raw}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)

	return keys
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vcproof

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

// Predicate types.
const (
	PredicateGE = ">="
	PredicateGT = ">"
	PredicateLE = "<="
	PredicateLT = "<"
)

// ProofRequest asks for attributes revealed from held credentials and predicates proven over them.
// Group names are unique across attributes and predicates.
type ProofRequest struct {
	Name                string                     `json:"name"`
	Version             string                     `json:"version"`
	Nonce               string                     `json:"nonce,omitempty"`
	RequestedAttributes map[string]*AttributeGroup `json:"requested_attributes,omitempty"`
	RequestedPredicates map[string]*PredicateGroup `json:"requested_predicates,omitempty"`
}

// AttributeGroup requests one attribute.
type AttributeGroup struct {
	Name         string        `json:"name"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
}

// PredicateGroup requests a proof that a numeric attribute compares to a value.
type PredicateGroup struct {
	Name         string        `json:"name"`
	PType        string        `json:"p_type"`
	PValue       int           `json:"p_value"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
}

// Restriction limits the credentials a group may be answered from. All set fields must match, a
// group is satisfied by a credential matching any of its restrictions.
type Restriction struct {
	CredDefID string `json:"cred_def_id,omitempty"`
	IssuerDID string `json:"issuer_did,omitempty"`
}

// Validate checks the request shape. Duplicate group names are reported as a validation error.
func (r *ProofRequest) Validate() error {
	if r.Name == "" || r.Version == "" {
		return errors.New("proof request name and version are mandatory")
	}

	if len(r.RequestedAttributes) == 0 && len(r.RequestedPredicates) == 0 {
		return errors.New("proof request has no attribute nor predicate group")
	}

	if err := r.checkGroupNames(); err != nil {
		return err
	}

	for group, a := range r.RequestedAttributes {
		if a == nil || a.Name == "" {
			return fmt.Errorf("attribute group %q has no attribute name", group)
		}
	}

	for group, p := range r.RequestedPredicates {
		if p == nil || p.Name == "" {
			return fmt.Errorf("predicate group %q has no attribute name", group)
		}

		switch p.PType {
		case PredicateGE, PredicateGT, PredicateLE, PredicateLT:
		default:
			return fmt.Errorf("predicate group %q has unsupported type %q", group, p.PType)
		}
	}

	return nil
}

func (r *ProofRequest) checkGroupNames() error {
	groups := maps.Keys(r.RequestedAttributes)
	sort.Strings(groups)

	for _, group := range groups {
		if _, ok := r.RequestedPredicates[group]; ok {
			return exchange.NewValidationError("the proof request defines group %q as both an attribute and a predicate",
				group)
		}
	}

	return nil
}

// sameContent compares two requests regardless of their nonce.
func (r *ProofRequest) sameContent(o *ProofRequest) bool {
	if r.Name != o.Name || r.Version != o.Version {
		return false
	}

	return maps.EqualFunc(r.RequestedAttributes, o.RequestedAttributes, func(a, b *AttributeGroup) bool {
		return a.Name == b.Name && slices.Equal(a.Restrictions, b.Restrictions)
	}) && maps.EqualFunc(r.RequestedPredicates, o.RequestedPredicates, func(a, b *PredicateGroup) bool {
		return a.Name == b.Name && a.PType == b.PType && a.PValue == b.PValue &&
			slices.Equal(a.Restrictions, b.Restrictions)
	})
}

// Presentation answers a proof request with the credentials it was built from.
type Presentation struct {
	Nonce          string            `json:"nonce"`
	Credentials    []json.RawMessage `json:"credentials"`
	RequestedProof RequestedProof    `json:"requested_proof"`
}

// RequestedProof maps every group of the request to the credential answering it.
type RequestedProof struct {
	RevealedAttrs map[string]*RevealedAttribute `json:"revealed_attrs,omitempty"`
	Predicates    map[string]*SubProof          `json:"predicates,omitempty"`
}

// RevealedAttribute is a disclosed attribute value.
type RevealedAttribute struct {
	SubProofIndex int    `json:"sub_proof_index"`
	Raw           string `json:"raw"`
}

// SubProof points at the credential proving a predicate.
type SubProof struct {
	SubProofIndex int `json:"sub_proof_index"`
}

// SelectedCredentials holds the credential id chosen for every group.
type SelectedCredentials struct {
	RequestedAttributes map[string]string `json:"requested_attributes,omitempty"`
	RequestedPredicates map[string]string `json:"requested_predicates,omitempty"`
}

func parseRequest(raw json.RawMessage) (*ProofRequest, error) {
	req := &ProofRequest{}
	if err := json.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("unmarshal proof request: %w", err)
	}

	return req, req.Validate()
}

// decodeParams accepts a typed value or its generic JSON form.
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

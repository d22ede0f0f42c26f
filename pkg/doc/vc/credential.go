/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vc

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/aries-framework-go/component/kmscrypto/doc/util/fingerprint"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/multiformats/go-multibase"
	"github.com/piprate/json-gold/ld"
)

const (
	// TypeVerifiableCredential is the base type of every credential.
	TypeVerifiableCredential = "VerifiableCredential"
	// ProofType is the only proof suite supported.
	ProofType = "Ed25519Signature2020"

	proofPurpose     = "assertionMethod"
	canonicalFormat  = "application/n-quads"
	defaultAlgorithm = "URDNA2015"
)

var logger = log.New("aries-framework/doc/vc")

// Credential is a verifiable credential with a flat subject.
type Credential struct {
	Context                []string               `json:"@context"`
	ID                     string                 `json:"id,omitempty"`
	Types                  []string               `json:"type"`
	Issuer                 string                 `json:"issuer"`
	IssuanceDate           string                 `json:"issuanceDate"`
	CredentialDefinitionID string                 `json:"credentialDefinitionId,omitempty"`
	Subject                map[string]interface{} `json:"credentialSubject"`
	Proof                  *Proof                 `json:"proof,omitempty"`
}

// Proof is an Ed25519Signature2020 proof.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue,omitempty"`
}

// SubjectID returns the id of the credential subject.
func (c *Credential) SubjectID() string {
	id, _ := c.Subject["id"].(string) // nolint: errcheck

	return id
}

// Attribute returns the subject attribute as a string.
func (c *Credential) Attribute(name string) (string, bool) {
	v, ok := c.Subject[name]
	if !ok {
		return "", false
	}

	if s, ok := v.(string); ok {
		return s, true
	}

	return fmt.Sprint(v), true
}

// Parse decodes a credential and checks its mandatory fields.
func Parse(raw []byte) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}

	if len(c.Context) == 0 || c.Context[0] != ContextURI {
		return nil, fmt.Errorf("credential context must start with %s", ContextURI)
	}

	if !contains(c.Types, TypeVerifiableCredential) {
		return nil, fmt.Errorf("credential type must include %s", TypeVerifiableCredential)
	}

	if c.Issuer == "" || c.IssuanceDate == "" || len(c.Subject) == 0 {
		return nil, errors.New("credential issuer, issuance date and subject are mandatory")
	}

	return &c, nil
}

// Signer signs credentials with an Ed25519 key published as a did:key.
type Signer struct {
	key    ed25519.PrivateKey
	did    string
	keyID  string
	loader ld.DocumentLoader
	now    func() time.Time
}

// Opt configures a Signer or a Verifier.
type Opt func(*options)

type options struct {
	loader ld.DocumentLoader
	now    func() time.Time
}

// WithDocumentLoader sets the JSON-LD document loader used for canonicalization.
func WithDocumentLoader(l ld.DocumentLoader) Opt {
	return func(o *options) {
		o.loader = l
	}
}

// WithTime sets the clock stamping issuance and proof creation.
func WithTime(now func() time.Time) Opt {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Opt) (*options, error) {
	o := &options{now: time.Now}

	for _, opt := range opts {
		opt(o)
	}

	if o.loader == nil {
		loader, err := NewDocumentLoader()
		if err != nil {
			return nil, err
		}

		o.loader = loader
	}

	return o, nil
}

// NewSigner returns a signer for the key. The issuer id is the did:key of its public part.
func NewSigner(key ed25519.PrivateKey, opts ...Opt) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key")
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	did, keyID := fingerprint.CreateDIDKey(key.Public().(ed25519.PublicKey))

	return &Signer{key: key, did: did, keyID: keyID, loader: o.loader, now: o.now}, nil
}

// DID returns the issuer id of the signer.
func (s *Signer) DID() string {
	return s.did
}

// Issue fills the issuer and issuance date and attaches the proof.
func (s *Signer) Issue(c *Credential) error {
	now := s.now().UTC().Format(time.RFC3339)

	c.Issuer = s.did
	c.Proof = nil

	if c.IssuanceDate == "" {
		c.IssuanceDate = now
	}

	proof := &Proof{
		Type:               ProofType,
		Created:            now,
		VerificationMethod: s.keyID,
		ProofPurpose:       proofPurpose,
	}

	input, err := signingInput(c, proof, s.loader)
	if err != nil {
		return err
	}

	value, err := multibase.Encode(multibase.Base58BTC, ed25519.Sign(s.key, input))
	if err != nil {
		return fmt.Errorf("encode proof value: %w", err)
	}

	proof.ProofValue = value
	c.Proof = proof

	return nil
}

// Verifier checks credential proofs against the issuer did:key.
type Verifier struct {
	loader ld.DocumentLoader
}

// NewVerifier returns a Verifier.
func NewVerifier(opts ...Opt) (*Verifier, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Verifier{loader: o.loader}, nil
}

// Verify checks that the proof was made by the issuer over the credential content.
func (v *Verifier) Verify(c *Credential) error {
	if c.Proof == nil {
		return errors.New("credential has no proof")
	}

	if c.Proof.Type != ProofType {
		return fmt.Errorf("unsupported proof type %s", c.Proof.Type)
	}

	did, _, _ := strings.Cut(c.Proof.VerificationMethod, "#")
	if did != c.Issuer {
		return fmt.Errorf("verification method %s does not belong to issuer %s", c.Proof.VerificationMethod, c.Issuer)
	}

	pubKey, err := fingerprint.PubKeyFromDIDKey(did)
	if err != nil {
		return fmt.Errorf("issuer key: %w", err)
	}

	_, sig, err := multibase.Decode(c.Proof.ProofValue)
	if err != nil {
		return fmt.Errorf("decode proof value: %w", err)
	}

	proof := *c.Proof
	proof.ProofValue = ""

	input, err := signingInput(c, &proof, v.loader)
	if err != nil {
		return err
	}

	if !ed25519.Verify(pubKey, input, sig) {
		return errors.New("invalid credential signature")
	}

	logger.Debugf("verified credential %s from %s", c.ID, c.Issuer)

	return nil
}

// signingInput is the hash of the canonical proof options followed by the hash of the canonical
// credential without its proof.
func signingInput(c *Credential, proof *Proof, loader ld.DocumentLoader) ([]byte, error) {
	unsigned := *c
	unsigned.Proof = nil

	doc, err := toMap(&unsigned)
	if err != nil {
		return nil, err
	}

	proofDoc, err := toMap(proof)
	if err != nil {
		return nil, err
	}

	proofDoc["@context"] = doc["@context"]

	canonicalProof, err := Canonicalize(proofDoc, loader)
	if err != nil {
		return nil, fmt.Errorf("canonicalize proof options: %w", err)
	}

	canonicalDoc, err := Canonicalize(doc, loader)
	if err != nil {
		return nil, fmt.Errorf("canonicalize credential: %w", err)
	}

	proofHash := sha256.Sum256(canonicalProof)
	docHash := sha256.Sum256(canonicalDoc)

	return append(proofHash[:], docHash[:]...), nil
}

// Canonicalize returns the URDNA2015 N-Quads of the JSON-LD document.
func Canonicalize(doc map[string]interface{}, loader ld.DocumentLoader) ([]byte, error) {
	proc := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	options.ProcessingMode = ld.JsonLd_1_1
	options.Algorithm = defaultAlgorithm
	options.Format = canonicalFormat
	options.ProduceGeneralizedRdf = true
	options.DocumentLoader = loader

	view, err := proc.Normalize(doc, options)
	if err != nil {
		return nil, fmt.Errorf("normalize JSON-LD document: %w", err)
	}

	s, ok := view.(string)
	if !ok || s == "" {
		return nil, errors.New("normalized JSON-LD document is empty")
	}

	return []byte(s), nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}
	if err = json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	return m, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}

	return false
}

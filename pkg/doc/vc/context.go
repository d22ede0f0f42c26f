/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vc

import (
	"fmt"
	"strings"

	"github.com/piprate/json-gold/ld"
)

// ContextURI identifies the JSON-LD context every credential issued here carries. The document is
// served from memory, canonicalization never needs the network for it.
const ContextURI = "https://w3id.org/aries-exchange/credentials/v1"

const contextDocument = `{
  "@context": {
    "@version": 1.1,
    "@protected": true,
    "@vocab": "https://w3id.org/aries-exchange/credentials#",
    "id": "@id",
    "type": "@type",
    "VerifiableCredential": "https://w3id.org/aries-exchange/credentials#VerifiableCredential",
    "Ed25519Signature2020": "https://w3id.org/security#Ed25519Signature2020",
    "issuer": {"@id": "https://w3id.org/aries-exchange/credentials#issuer", "@type": "@id"},
    "issuanceDate": {
      "@id": "https://w3id.org/aries-exchange/credentials#issuanceDate",
      "@type": "http://www.w3.org/2001/XMLSchema#dateTime"
    },
    "credentialDefinitionId": "https://w3id.org/aries-exchange/credentials#credentialDefinitionId",
    "credentialSubject": {"@id": "https://w3id.org/aries-exchange/credentials#credentialSubject", "@type": "@id"},
    "created": {"@id": "http://purl.org/dc/terms/created", "@type": "http://www.w3.org/2001/XMLSchema#dateTime"},
    "verificationMethod": {"@id": "https://w3id.org/security#verificationMethod", "@type": "@id"},
    "proofPurpose": {"@id": "https://w3id.org/security#proofPurpose", "@type": "@vocab"},
    "assertionMethod": {"@id": "https://w3id.org/security#assertionMethod", "@type": "@id"},
    "proofValue": "https://w3id.org/security#proofValue"
  }
}`

// NewDocumentLoader returns a caching loader holding the credential context. Other contexts fall
// through to the network.
func NewDocumentLoader() (*ld.CachingDocumentLoader, error) {
	loader := ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))

	if err := AddContext(loader, ContextURI, contextDocument); err != nil {
		return nil, err
	}

	return loader, nil
}

// AddContext caches a context document under the given URL.
func AddContext(loader *ld.CachingDocumentLoader, url, document string) error {
	doc, err := ld.DocumentFromReader(strings.NewReader(document))
	if err != nil {
		return fmt.Errorf("read context %s: %w", url, err)
	}

	loader.AddDocument(url, doc)

	return nil
}

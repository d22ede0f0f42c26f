/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/kmscrypto/doc/util/fingerprint"
)

// Destination provides the recipientKeys, routingKeys, and serviceEndpoint for an outbound message.
type Destination struct {
	RecipientKeys   []string `json:"recipientKeys"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
}

// NewDestination builds a Destination, converting raw base58 keys to did:key form.
func NewDestination(endpoint string, recipientKeys, routingKeys []string) (*Destination, error) {
	if endpoint == "" {
		return nil, errors.New("create destination: missing service endpoint")
	}

	if len(recipientKeys) == 0 {
		return nil, errors.New("create destination: no recipient keys")
	}

	return &Destination{
		RecipientKeys:   ConvertAnyB58Keys(recipientKeys),
		ServiceEndpoint: endpoint,
		RoutingKeys:     ConvertAnyB58Keys(routingKeys),
	}, nil
}

// ConvertAnyB58Keys converts raw base58 ed25519 keys into did:key identifiers. Keys that are already
// DIDs or relative DID URLs are returned as is.
func ConvertAnyB58Keys(keys []string) []string {
	var didKeys []string

	for _, key := range keys {
		didKeys = append(didKeys, convertB58Key(key))
	}

	return didKeys
}

func convertB58Key(key string) string {
	if key == "" || strings.HasPrefix(key, "did:") {
		return key
	}

	// relative did-url (ie, it starts with ?, /, or #)
	if strings.Contains("?/#", string(key[0])) { // nolint:gocritic
		return key
	}

	rawKey := base58.Decode(key)
	if len(rawKey) == 0 {
		return key
	}

	didKey, _ := fingerprint.CreateDIDKey(rawKey)

	return didKey
}

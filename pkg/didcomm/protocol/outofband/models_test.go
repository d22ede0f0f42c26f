/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/kmscrypto/doc/util/fingerprint"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
)

func newKey(t *testing.T) (string, string) {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	didKey, _ := fingerprint.CreateDIDKey(pub)

	return base58.Encode(pub), didKey
}

func TestInvitation_Services(t *testing.T) {
	_, didKey := newKey(t)

	raw, err := json.Marshal(&Invitation{
		ID:   "invitation-1",
		Type: InvitationMsgType,
		Services: []interface{}{
			"did:example:alice",
			&InlineService{
				ID:              "#inline-0",
				Type:            InlineServiceType,
				RecipientKeys:   []string{didKey},
				ServiceEndpoint: "https://alice.example.com",
			},
		},
		Protocols: []string{DIDExchangeProtocol},
	})
	require.NoError(t, err)

	inv := &Invitation{}
	require.NoError(t, json.Unmarshal(raw, inv))
	require.NoError(t, inv.validate())

	require.Equal(t, []string{"did:example:alice"}, inv.ServiceDIDs())

	inline, err := inv.InlineServices()
	require.NoError(t, err)
	require.Len(t, inline, 1)
	require.Equal(t, "https://alice.example.com", inline[0].ServiceEndpoint)
	require.Equal(t, []string{didKey}, inline[0].RecipientKeys)

	dest, err := inline[0].Destination()
	require.NoError(t, err)
	require.Equal(t, didKey, dest.RecipientKeys[0])

	t.Run("unsupported service", func(t *testing.T) {
		_, err := (&Invitation{Services: []interface{}{42}}).InlineServices()
		require.EqualError(t, err, "unsupported invitation service int")
	})
}

func TestInvitation_Validate(t *testing.T) {
	tests := []struct {
		name string
		inv  *Invitation
		err  string
	}{
		{
			name: "no id",
			inv:  &Invitation{Protocols: []string{DIDExchangeProtocol}, Services: []interface{}{"did:example:a"}},
			err:  "invitation id is mandatory",
		},
		{
			name: "no handshake and no requests",
			inv:  &Invitation{ID: "1", Services: []interface{}{"did:example:a"}},
			err:  "one or both of handshake_protocols and requests~attach must be included in the invitation",
		},
		{
			name: "no service",
			inv:  &Invitation{ID: "1", Protocols: []string{DIDExchangeProtocol}},
			err:  "invitation has no service",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.EqualError(t, tc.inv.validate(), tc.err)
		})
	}
}

func TestInvitation_RequestMessages(t *testing.T) {
	msg := service.DIDCommMsgMap{
		"@id":      "request-1",
		"@type":    "https://didcomm.org/present-proof/2.0/request-presentation",
		"~service": map[string]interface{}{"serviceEndpoint": "https://alice.example.com"},
	}

	attachment, err := requestAttachment(msg)
	require.NoError(t, err)

	inv := &Invitation{Requests: []*decorator.Attachment{attachment}}

	msgs, err := inv.RequestMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "request-1", msgs[0].ID())
	require.NotContains(t, msgs[0], "~service")
	require.Contains(t, msg, "~service")

	t.Run("empty attachment", func(t *testing.T) {
		inv := &Invitation{Requests: []*decorator.Attachment{{ID: "a"}}}

		_, err := inv.RequestMessages()
		require.EqualError(t, err, "request attachment a: no contents in this attachment")
	})
}

func TestConvertLegacyInvitation(t *testing.T) {
	rawKey, didKey := newKey(t)

	t.Run("keys and endpoint", func(t *testing.T) {
		inv, err := ConvertLegacyInvitation(&LegacyInvitation{
			ID:              "legacy-1",
			Type:            LegacyInvitationMsgType,
			Label:           "alice",
			RecipientKeys:   []string{rawKey},
			ServiceEndpoint: "https://alice.example.com",
		})
		require.NoError(t, err)
		require.Equal(t, "legacy-1", inv.ID)
		require.Equal(t, []string{ConnectionsProtocol}, inv.Protocols)

		inline, err := inv.InlineServices()
		require.NoError(t, err)
		require.Equal(t, []string{didKey}, inline[0].RecipientKeys)

		legacy, err := ToLegacyInvitation(inv)
		require.NoError(t, err)
		require.Equal(t, "https://alice.example.com", legacy.ServiceEndpoint)
		require.Equal(t, []string{didKey}, legacy.RecipientKeys)
	})

	t.Run("public did", func(t *testing.T) {
		inv, err := ConvertLegacyInvitation(&LegacyInvitation{ID: "legacy-2", DID: "did:example:alice"})
		require.NoError(t, err)
		require.Equal(t, []string{"did:example:alice"}, inv.ServiceDIDs())

		legacy, err := ToLegacyInvitation(inv)
		require.NoError(t, err)
		require.Equal(t, "did:example:alice", legacy.DID)
	})

	t.Run("neither", func(t *testing.T) {
		_, err := ConvertLegacyInvitation(&LegacyInvitation{ID: "legacy-3"})
		require.Error(t, err)
	})

	t.Run("more than one service", func(t *testing.T) {
		_, err := ToLegacyInvitation(&Invitation{Services: []interface{}{"did:example:a", "did:example:b"}})
		require.EqualError(t, err, "a legacy invitation carries exactly one service, got 2")
	})
}

func TestConvertConnectionlessMessage(t *testing.T) {
	rawKey, didKey := newKey(t)

	msg := service.DIDCommMsgMap{
		"@id":   "request-1",
		"@type": "https://didcomm.org/present-proof/2.0/request-presentation",
		"~service": map[string]interface{}{
			"recipientKeys":   []interface{}{rawKey},
			"serviceEndpoint": "https://verifier.example.com",
		},
	}

	inv, err := ConvertConnectionlessMessage(msg)
	require.NoError(t, err)
	require.Equal(t, "request-1", inv.ID)
	require.Empty(t, inv.Protocols)
	require.NoError(t, inv.validate())

	inline, err := inv.InlineServices()
	require.NoError(t, err)
	require.Equal(t, []string{didKey}, inline[0].RecipientKeys)
	require.Equal(t, "https://verifier.example.com", inline[0].ServiceEndpoint)

	msgs, err := inv.RequestMessages()
	require.NoError(t, err)
	require.Equal(t, "request-1", msgs[0].ID())

	t.Run("no ~service", func(t *testing.T) {
		_, err := ConvertConnectionlessMessage(service.DIDCommMsgMap{"@id": "1", "@type": "t"})
		require.EqualError(t, err, "connection-less message has no ~service decorator")
	})

	t.Run("no id", func(t *testing.T) {
		_, err := ConvertConnectionlessMessage(service.DIDCommMsgMap{"@type": "t"})
		require.EqualError(t, err, "connection-less message needs an id and a type")
	})
}

func TestKeyFingerprint(t *testing.T) {
	rawKey, didKey := newKey(t)

	fromRaw, err := keyFingerprint(rawKey)
	require.NoError(t, err)

	fromDIDKey, err := keyFingerprint(didKey)
	require.NoError(t, err)
	require.Equal(t, fromRaw, fromDIDKey)
	require.Equal(t, didKey, didKeyPrefix+fromDIDKey)

	_, err = keyFingerprint("did:example:alice")
	require.EqualError(t, err, "unsupported key format did:example:alice")
}

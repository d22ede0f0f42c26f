/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential_test

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	mockstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mock/storage"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
	. "github.com/hyperledger/aries-exchange-go/pkg/store/credential"
)

type provider struct {
	store storage.Provider
}

func (p *provider) StorageProvider() storage.Provider {
	return p.store
}

func credential(id, credDefID string) *vc.Credential {
	return &vc.Credential{
		Context:                []string{vc.ContextURI},
		ID:                     id,
		Types:                  []string{vc.TypeVerifiableCredential},
		Issuer:                 "did:key:z6Mk",
		IssuanceDate:           "2023-06-01T10:00:00Z",
		CredentialDefinitionID: credDefID,
		Subject:                map[string]interface{}{"name": "Alice"},
	}
}

func TestStore(t *testing.T) {
	s, err := New(&provider{store: mem.NewProvider()})
	require.NoError(t, err)

	require.NoError(t, s.Save("degree", credential("urn:1", "cred-def-1")))
	require.NoError(t, s.Save("", credential("urn:2", "cred-def-1")))
	require.NoError(t, s.Save("licence", credential("urn:3", "cred-def-2")))

	c, err := s.Get("urn:1")
	require.NoError(t, err)
	require.Equal(t, "cred-def-1", c.CredentialDefinitionID)

	c, err = s.GetByName("licence")
	require.NoError(t, err)
	require.Equal(t, "urn:3", c.ID)

	found, err := s.FindByCredentialDefinition("cred-def-1")
	require.NoError(t, err)
	require.Len(t, found, 2)

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, s.Delete("urn:1"))

	_, err = s.Get("urn:1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByName("degree")
	require.ErrorIs(t, err, ErrNotFound)

	require.EqualError(t, s.Save("x", credential("", "")), "credential id is mandatory")
}

func TestStore_Errors(t *testing.T) {
	t.Run("open store", func(t *testing.T) {
		p := mockstorage.NewMockStoreProvider()
		p.ErrOpenStoreHandle = errors.New("open error")

		_, err := New(&provider{store: p})
		require.EqualError(t, err, "failed to open credential store: open error")
	})

	t.Run("put and get", func(t *testing.T) {
		p := mockstorage.NewMockStoreProvider()
		p.Store.ErrPut = errors.New("put error")
		p.Store.ErrGet = errors.New("get error")

		s, err := New(&provider{store: p})
		require.NoError(t, err)

		require.EqualError(t, s.Save("x", credential("urn:1", "")), "failed to put credential: put error")

		_, err = s.Get("urn:1")
		require.EqualError(t, err, "failed to get credential: get error")
	})
}

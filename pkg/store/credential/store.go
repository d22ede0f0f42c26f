/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
)

const (
	nameSpace = "credential"

	credentialTag = "credential"
	credDefIDTag  = "credentialDefinitionId"
	nameTag       = "name"
)

var logger = log.New("aries-framework/store/credential")

// ErrNotFound signals that no credential is stored under the given id.
var ErrNotFound = errors.New("credential not found")

// Record is a stored credential and the name it was saved under.
type Record struct {
	Name       string         `json:"name,omitempty"`
	Credential *vc.Credential `json:"credential"`
}

// Store stores held credentials.
type Store struct {
	store storage.Store
}

type provider interface {
	StorageProvider() storage.Provider
}

// New returns a new credential store.
func New(ctx provider) (*Store, error) {
	store, err := ctx.StorageProvider().OpenStore(nameSpace)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	err = ctx.StorageProvider().SetStoreConfig(nameSpace, storage.StoreConfiguration{
		TagNames: []string{credentialTag, credDefIDTag, nameTag},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set credential store config: %w", err)
	}

	return &Store{store: store}, nil
}

// Save stores the credential under its id.
func (s *Store) Save(name string, c *vc.Credential) error {
	if c.ID == "" {
		return errors.New("credential id is mandatory")
	}

	src, err := json.Marshal(&Record{Name: name, Credential: c})
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	tags := []storage.Tag{{Name: credentialTag}}

	if c.CredentialDefinitionID != "" {
		tags = append(tags, storage.Tag{Name: credDefIDTag, Value: base58.Encode([]byte(c.CredentialDefinitionID))})
	}

	if name != "" {
		tags = append(tags, storage.Tag{Name: nameTag, Value: base58.Encode([]byte(name))})
	}

	if err = s.store.Put(c.ID, src, tags...); err != nil {
		return fmt.Errorf("failed to put credential: %w", err)
	}

	logger.Debugf("stored credential %s", c.ID)

	return nil
}

// Get returns the credential with the given id.
func (s *Store) Get(id string) (*vc.Credential, error) {
	src, err := s.store.Get(id)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var rec Record
	if err = json.Unmarshal(src, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return rec.Credential, nil
}

// GetByName returns the credential saved under the name.
func (s *Store) GetByName(name string) (*vc.Credential, error) {
	records, err := s.query(nameTag + ":" + base58.Encode([]byte(name)))
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: name %s", ErrNotFound, name)
	}

	return records[0].Credential, nil
}

// FindByCredentialDefinition returns every credential issued under the credential definition.
func (s *Store) FindByCredentialDefinition(credDefID string) ([]*vc.Credential, error) {
	records, err := s.query(credDefIDTag + ":" + base58.Encode([]byte(credDefID)))
	if err != nil {
		return nil, err
	}

	return credentials(records), nil
}

// List returns every stored credential record.
func (s *Store) List() ([]*Record, error) {
	return s.query(credentialTag)
}

// All returns every stored credential.
func (s *Store) All() ([]*vc.Credential, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}

	return credentials(records), nil
}

// Delete removes the credential.
func (s *Store) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}

func (s *Store) query(expression string) ([]*Record, error) {
	itr, err := s.store.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer storage.Close(itr, logger)

	var records []*Record

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next credential: %w", err)
	}

	for more {
		src, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to get credential value: %w", err)
		}

		var rec Record
		if err = json.Unmarshal(src, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
		}

		records = append(records, &rec)

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next credential: %w", err)
		}
	}

	return records, nil
}

func credentials(records []*Record) []*vc.Credential {
	res := make([]*vc.Credential, 0, len(records))

	for _, rec := range records {
		res = append(res, rec.Credential)
	}

	return res
}

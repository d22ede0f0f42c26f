/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/kmscrypto/doc/util/fingerprint"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

const (
	// Namespace is namespace of connection store name.
	Namespace = "connection"

	// StateCompleted is the state of a connection ready to carry messages.
	StateCompleted = "completed"

	keyPattern       = "%s_%s"
	connIDKeyPrefix  = "conn"
	invDIDTagName    = "invitationDID"
	theirKeyTagName  = "theirKey"
	keySeparator     = "_"
	errMsgInvalidKey = "invalid key"
)

// ErrNotFound is returned when a connection record does not exist.
var ErrNotFound = errors.New("connection not found")

var logger = log.New("aries-framework/store/connection")

// KeyPrefix is prefix builder for storage keys.
type KeyPrefix func(...string) string

type provider interface {
	StorageProvider() storage.Provider
}

// Record contain info about an established connection.
type Record struct {
	ConnectionID    string   `json:"connectionID"`
	State           string   `json:"state"`
	ThreadID        string   `json:"threadID,omitempty"`
	TheirLabel      string   `json:"theirLabel,omitempty"`
	TheirDID        string   `json:"theirDID,omitempty"`
	MyDID           string   `json:"myDID,omitempty"`
	MyKey           string   `json:"myKey,omitempty"`
	TheirKey        string   `json:"theirKey,omitempty"`
	ServiceEndPoint string   `json:"serviceEndPoint,omitempty"`
	RecipientKeys   []string `json:"recipientKeys,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	InvitationID    string   `json:"invitationID,omitempty"`
	InvitationDID   string   `json:"invitationDID,omitempty"`
	OutOfBandID     string   `json:"outOfBandID,omitempty"`
	Implicit        bool     `json:"implicit,omitempty"`
}

// IsReady reports whether the connection can carry messages.
func (r *Record) IsReady() bool {
	return r.State == StateCompleted
}

// NewLookup returns new connection lookup instance.
// Lookup is read only connection store. It provides connection record related query features.
func NewLookup(p provider) (*Lookup, error) {
	store, err := p.StorageProvider().OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open permanent store to create new connection recorder: %w", err)
	}

	err = p.StorageProvider().SetStoreConfig(Namespace,
		storage.StoreConfiguration{TagNames: []string{connIDKeyPrefix, invDIDTagName, theirKeyTagName}})
	if err != nil {
		return nil, fmt.Errorf("failed to set store config in permanent store: %w", err)
	}

	return &Lookup{store: store}, nil
}

// Lookup takes care of connection related persistence features.
type Lookup struct {
	store storage.Store
}

// GetConnectionRecord return connection record based on the connection ID.
func (c *Lookup) GetConnectionRecord(connectionID string) (*Record, error) {
	if connectionID == "" {
		return nil, errors.New(errMsgInvalidKey)
	}

	var rec Record

	err := getAndUnmarshal(getConnectionKeyPrefix()(connectionID), &rec, c.store)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("get connection %s: %w", connectionID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", connectionID, err)
	}

	return &rec, nil
}

// QueryConnectionRecords returns all connection records.
func (c *Lookup) QueryConnectionRecords() ([]*Record, error) {
	return c.query(connIDKeyPrefix)
}

// FindByInvitationDID returns the connections created from an invitation with the given DID
// (or recipient key). The most recently saved record is not guaranteed to come first.
func (c *Lookup) FindByInvitationDID(invitationDID string) ([]*Record, error) {
	if invitationDID == "" {
		return nil, nil
	}

	return c.query(fmt.Sprintf("%s:%s", invDIDTagName, base58.Encode([]byte(invitationDID))))
}

// GetConnectionRecordByKeys returns the connection bound to the given local and remote keys.
// The local key is optional.
func (c *Lookup) GetConnectionRecordByKeys(myKey, theirKey string) (*Record, error) {
	if theirKey == "" {
		return nil, ErrNotFound
	}

	records, err := c.query(fmt.Sprintf("%s:%s", theirKeyTagName, base58.Encode([]byte(theirKey))))
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if myKey == "" || sameKey(rec.MyKey, myKey) {
			return rec, nil
		}
	}

	return nil, ErrNotFound
}

// sameKey compares a stored base58 key with a key received raw or as a did:key.
func sameKey(stored, received string) bool {
	if stored == received {
		return true
	}

	raw := base58.Decode(stored)
	if len(raw) == 0 {
		return false
	}

	didKey, _ := fingerprint.CreateDIDKey(raw)

	return didKey == received
}

func (c *Lookup) query(expression string) ([]*Record, error) {
	itr, err := c.store.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to query connection store: %w", err)
	}

	defer storage.Close(itr, logger)

	var records []*Record

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next set of data from iterator: %w", err)
	}

	for more {
		value, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to get value from iterator: %w", err)
		}

		var record Record

		if err = json.Unmarshal(value, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection record: %w", err)
		}

		records = append(records, &record)

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next set of data from iterator: %w", err)
		}
	}

	return records, nil
}

func getAndUnmarshal(key string, target interface{}, store storage.Store) error {
	bytes, err := store.Get(key)
	if err != nil {
		return err
	}

	return json.Unmarshal(bytes, target)
}

// getConnectionKeyPrefix key prefix for connection record persisted.
func getConnectionKeyPrefix() KeyPrefix {
	return func(key ...string) string {
		return fmt.Sprintf(keyPattern, connIDKeyPrefix, strings.Join(key, keySeparator))
	}
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

// NewRecorder returns new connection record instance.
// Recorder is a read-write store of connection records.
func NewRecorder(p provider) (*Recorder, error) {
	lookup, err := NewLookup(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create new connection recorder : %w", err)
	}

	return &Recorder{Lookup: lookup}, nil
}

// Recorder is a connection record store.
type Recorder struct {
	*Lookup
}

// SaveConnectionRecord saves the connection record, replacing any record with the same connection id.
func (c *Recorder) SaveConnectionRecord(record *Record) error {
	if err := isValidConnection(record); err != nil {
		return fmt.Errorf("save connection record: %w", err)
	}

	bytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal connection record: %w", err)
	}

	tags := []storage.Tag{{Name: connIDKeyPrefix}}

	if record.InvitationDID != "" {
		tags = append(tags, storage.Tag{Name: invDIDTagName, Value: base58.Encode([]byte(record.InvitationDID))})
	}

	if record.TheirKey != "" {
		tags = append(tags, storage.Tag{Name: theirKeyTagName, Value: base58.Encode([]byte(record.TheirKey))})
	}

	if err = c.store.Put(getConnectionKeyPrefix()(record.ConnectionID), bytes, tags...); err != nil {
		return fmt.Errorf("save connection record in store: %w", err)
	}

	return nil
}

// RemoveConnection removes the connection record.
func (c *Recorder) RemoveConnection(connectionID string) error {
	if _, err := c.GetConnectionRecord(connectionID); err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}

	return c.store.Delete(getConnectionKeyPrefix()(connectionID))
}

func isValidConnection(r *Record) error {
	if r == nil || r.ConnectionID == "" {
		return errors.New("connection id is mandatory")
	}

	if r.State == StateCompleted && r.ServiceEndPoint == "" {
		return errors.New("completed connection requires a service endpoint")
	}

	return nil
}

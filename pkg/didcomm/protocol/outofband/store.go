/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
)

const (
	recordTag       = "outofband"
	roleTag         = "role"
	stateTag        = "state"
	invitationIDTag = "invitationID"
	threadIDTag     = "threadID"
	fingerprintTag  = "recipientKeyFingerprint"
)

type recordStore struct {
	store storage.Store
	// out-of-band records change rarely, one lock serializes every update
	mu sync.Mutex
}

func newRecordStore(p storage.Provider) (*recordStore, error) {
	store, err := p.OpenStore(Name)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", Name, err)
	}

	err = p.SetStoreConfig(Name, storage.StoreConfiguration{TagNames: []string{
		recordTag, roleTag, stateTag, invitationIDTag, threadIDTag, fingerprintTag,
	}})
	if err != nil {
		return nil, fmt.Errorf("set store config %s: %w", Name, err)
	}

	return &recordStore{store: store}, nil
}

func (s *recordStore) save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(rec)
}

// saveReceived stores a received invitation record unless the invitation has already been received.
func (s *recordStore) saveReceived(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.query(&Query{Role: RoleReceiver, InvitationID: rec.Invitation.ID})
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		return exchange.NewValidationError("invitation %s has already been received", rec.Invitation.ID)
	}

	return s.put(rec)
}

// update reads the record, hands it to fn and writes it back. Nothing is written when fn fails.
func (s *recordStore) update(id string, fn func(rec *Record) error) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.get(id)
	if err != nil {
		return nil, err
	}

	if err = fn(rec); err != nil {
		return nil, err
	}

	if rec.ID != id {
		return nil, fmt.Errorf("out-of-band record %s: id is immutable", id)
	}

	rec.UpdatedAt = time.Now().UTC()

	if err = s.put(rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *recordStore) get(id string) (*Record, error) {
	src, err := s.store.Get(id)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, &exchange.NotFoundError{Kind: "out-of-band record", Key: id}
	}

	if err != nil {
		return nil, fmt.Errorf("get out-of-band record %s: %w", id, err)
	}

	rec := &Record{}
	if err = json.Unmarshal(src, rec); err != nil {
		return nil, fmt.Errorf("unmarshal out-of-band record %s: %w", id, err)
	}

	return rec, nil
}

func (s *recordStore) query(q *Query) ([]*Record, error) {
	if q == nil {
		q = &Query{}
	}

	itr, err := s.store.Query(q.expression())
	if err != nil {
		return nil, fmt.Errorf("query out-of-band records: %w", err)
	}

	defer storage.Close(itr, logger)

	var records []*Record

	more, err := itr.Next()

	for ; err == nil && more; more, err = itr.Next() {
		value, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("out-of-band record value: %w", err)
		}

		rec := &Record{}
		if err = json.Unmarshal(value, rec); err != nil {
			return nil, fmt.Errorf("unmarshal out-of-band record: %w", err)
		}

		if q.matches(rec) {
			records = append(records, rec)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("next out-of-band record: %w", err)
	}

	return records, nil
}

func (s *recordStore) delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(id); err != nil {
		return err
	}

	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("delete out-of-band record %s: %w", id, err)
	}

	return nil
}

func (s *recordStore) put(rec *Record) error {
	src, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal out-of-band record %s: %w", rec.ID, err)
	}

	tags := []storage.Tag{
		{Name: recordTag},
		{Name: roleTag, Value: encodeTag(string(rec.Role))},
		{Name: stateTag, Value: encodeTag(string(rec.State))},
		{Name: threadIDTag, Value: encodeTag(rec.ThreadID)},
	}

	if rec.Invitation != nil {
		tags = append(tags, storage.Tag{Name: invitationIDTag, Value: encodeTag(rec.Invitation.ID)})
	}

	for _, fp := range rec.RecipientKeyFingerprints {
		tags = append(tags, storage.Tag{Name: fingerprintTag, Value: encodeTag(fp)})
	}

	if err = s.store.Put(rec.ID, src, tags...); err != nil {
		return fmt.Errorf("put out-of-band record %s: %w", rec.ID, err)
	}

	return nil
}

// expression picks the most selective tag of the query.
func (q *Query) expression() string {
	switch {
	case q.InvitationID != "":
		return invitationIDTag + ":" + encodeTag(q.InvitationID)
	case q.RecipientKeyFingerprint != "":
		return fingerprintTag + ":" + encodeTag(q.RecipientKeyFingerprint)
	case q.ThreadID != "":
		return threadIDTag + ":" + encodeTag(q.ThreadID)
	case q.State != "":
		return stateTag + ":" + encodeTag(string(q.State))
	case q.Role != "":
		return roleTag + ":" + encodeTag(string(q.Role))
	default:
		return recordTag
	}
}

// tag values are base58 encoded, a colon in a value would break the query expression.
func encodeTag(value string) string {
	return base58.Encode([]byte(value))
}

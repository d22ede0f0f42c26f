/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

const (
	recordTag         = "exchange"
	threadIDTag       = "threadID"
	parentThreadIDTag = "parentThreadID"
	connectionIDTag   = "connectionID"
	roleTag           = "role"
	stateTag          = "state"
	protocolTag       = "protocol"
)

// Query selects records, empty fields match everything.
type Query struct {
	ThreadID       string `json:"thread_id,omitempty"`
	ParentThreadID string `json:"parent_thread_id,omitempty"`
	ConnectionID   string `json:"connection_id,omitempty"`
	Role           Role   `json:"role,omitempty"`
	State          State  `json:"state,omitempty"`
}

func (q *Query) matches(rec *Record) bool {
	return (q.ThreadID == "" || q.ThreadID == rec.ThreadID) &&
		(q.ParentThreadID == "" || q.ParentThreadID == rec.ParentThreadID) &&
		(q.ConnectionID == "" || q.ConnectionID == rec.ConnectionID) &&
		(q.Role == "" || q.Role == rec.Role) &&
		(q.State == "" || q.State == rec.State)
}

// expression picks the most selective tag of the query.
func (q *Query) expression() string {
	switch {
	case q.ThreadID != "":
		return tagExpression(threadIDTag, q.ThreadID)
	case q.ConnectionID != "":
		return tagExpression(connectionIDTag, q.ConnectionID)
	case q.ParentThreadID != "":
		return tagExpression(parentThreadIDTag, q.ParentThreadID)
	case q.State != "":
		return tagExpression(stateTag, string(q.State))
	case q.Role != "":
		return tagExpression(roleTag, string(q.Role))
	default:
		return recordTag
	}
}

// tag values are base58 encoded, a colon in a value would break the query expression.
func tagExpression(name, value string) string {
	return name + ":" + base58.Encode([]byte(value))
}

// RecordStore persists exchange records of one protocol.
type RecordStore struct {
	store storage.Store
	locks keyedMutex
}

// NewRecordStore opens the record store with the given name.
func NewRecordStore(p storage.Provider, name string) (*RecordStore, error) {
	store, err := p.OpenStore(name)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", name, err)
	}

	err = p.SetStoreConfig(name, storage.StoreConfiguration{TagNames: []string{
		recordTag, threadIDTag, parentThreadIDTag, connectionIDTag, roleTag, stateTag, protocolTag,
	}})
	if err != nil {
		return nil, fmt.Errorf("set store config %s: %w", name, err)
	}

	return &RecordStore{store: store}, nil
}

// Save stores a new record. A second record for the same thread and role is rejected.
func (s *RecordStore) Save(rec *Record) error {
	if rec.ID == "" || rec.ThreadID == "" || rec.Role == "" {
		return errors.New("record id, thread id and role are mandatory")
	}

	unlock := s.locks.lock(string(rec.Role) + "/" + rec.ThreadID)
	defer unlock()

	existing, err := s.Query(&Query{ThreadID: rec.ThreadID, Role: rec.Role})
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		return NewValidationError("a %s record already exists for thread %s", rec.Role, rec.ThreadID)
	}

	return s.put(rec)
}

// Update is the serialization point of a record: the current record is read, handed to fn and
// written back while the record lock is held. Nothing is written when fn fails.
func (s *RecordStore) Update(id string, fn func(rec *Record) error) (*Record, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()

	if err = fn(next); err != nil {
		return nil, err
	}

	if next.ID != current.ID || next.ThreadID != current.ThreadID || next.Role != current.Role {
		return nil, fmt.Errorf("record %s: id, thread id and role are immutable", id)
	}

	if err = s.put(next); err != nil {
		return nil, err
	}

	return next, nil
}

// Get returns the record with the given id.
func (s *RecordStore) Get(id string) (*Record, error) {
	src, err := s.store.Get(id)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, &NotFoundError{Kind: "exchange record", Key: id}
	}

	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	var rec Record
	if err = json.Unmarshal(src, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}

	return &rec, nil
}

// FindByThreadAndRole returns the record of the role on the thread.
func (s *RecordStore) FindByThreadAndRole(threadID string, role Role) (*Record, error) {
	records, err := s.Query(&Query{ThreadID: threadID, Role: role})
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &NotFoundError{Kind: "exchange record", Key: fmt.Sprintf("thread %s role %s", threadID, role)}
	}

	return records[0], nil
}

// FindByThread returns every record of the thread.
func (s *RecordStore) FindByThread(threadID string) ([]*Record, error) {
	return s.Query(&Query{ThreadID: threadID})
}

// Query returns the records matching the query.
func (s *RecordStore) Query(q *Query) ([]*Record, error) {
	if q == nil {
		q = &Query{}
	}

	itr, err := s.store.Query(q.expression())
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	defer storage.Close(itr, logger)

	var records []*Record

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("next record: %w", err)
	}

	for more {
		value, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("record value: %w", err)
		}

		var rec Record
		if err = json.Unmarshal(value, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}

		if q.matches(&rec) {
			records = append(records, &rec)
		}

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("next record: %w", err)
		}
	}

	return records, nil
}

// Delete removes the record with the given id.
func (s *RecordStore) Delete(id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.Get(id); err != nil {
		return err
	}

	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}

	return nil
}

func (s *RecordStore) put(rec *Record) error {
	src, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	tags := []storage.Tag{
		{Name: recordTag},
		{Name: threadIDTag, Value: base58.Encode([]byte(rec.ThreadID))},
		{Name: roleTag, Value: base58.Encode([]byte(rec.Role))},
		{Name: stateTag, Value: base58.Encode([]byte(rec.State))},
		{Name: protocolTag, Value: base58.Encode([]byte(rec.Protocol))},
	}

	if rec.ParentThreadID != "" {
		tags = append(tags, storage.Tag{Name: parentThreadIDTag, Value: base58.Encode([]byte(rec.ParentThreadID))})
	}

	if rec.ConnectionID != "" {
		tags = append(tags, storage.Tag{Name: connectionIDTag, Value: base58.Encode([]byte(rec.ConnectionID))})
	}

	if err = s.store.Put(rec.ID, src, tags...); err != nil {
		return fmt.Errorf("put record %s: %w", rec.ID, err)
	}

	return nil
}

// keyedMutex serializes work per key, entries are dropped once nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()

	if k.locks == nil {
		k.locks = map[string]*refMutex{}
	}

	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}

	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--

		if m.refs == 0 {
			delete(k.locks, key)
		}

		k.mu.Unlock()
	}
}

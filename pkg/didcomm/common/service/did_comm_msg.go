/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	jsonID             = "@id"
	jsonIDV2           = "id"
	jsonType           = "@type"
	jsonTypeV2         = "type"
	jsonThread         = "~thread"
	jsonThreadID       = "thid"
	jsonParentThreadID = "pthid"
	jsonMetadata       = "_internal_metadata"
)

// Version represents the DIDComm messaging version a message is shaped for.
type Version string

const (
	// V1 messages use "@id", "@type" and the "~thread" decorator.
	V1 Version = "v1"
	// V2 messages use "id", "type" and top-level "thid"/"pthid".
	V2 Version = "v2"
)

// DIDCommMsg describes message interface.
type DIDCommMsg interface {
	ID() string
	SetID(id string)
	SetThread(thid, pthid string)
	UnsetThread()
	Type() string
	ThreadID() (string, error)
	ParentThreadID() string
	Version() Version
	Clone() DIDCommMsgMap
	Metadata() map[string]interface{}
	Decode(v interface{}) error
}

// DIDCommMsgMap describes message structure.
type DIDCommMsgMap map[string]interface{}

// ParseDIDCommMsgMap returns DIDCommMsg with Header.
func ParseDIDCommMsgMap(payload []byte) (DIDCommMsgMap, error) {
	var msg DIDCommMsgMap

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("invalid payload data format: %w", err)
	}

	if msg == nil {
		return nil, ErrInvalidMessage
	}

	return msg, nil
}

// NewDIDCommMsgMap converts structure(model) to DIDCommMsgMap.
// The function uses JSON tags to create the map, so only exported fields with tags survive.
func NewDIDCommMsgMap(v interface{}) DIDCommMsgMap {
	switch msg := v.(type) {
	case DIDCommMsgMap:
		return msg
	case *DIDCommMsgMap:
		return *msg
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return DIDCommMsgMap{}
	}

	var msg DIDCommMsgMap

	if err = json.Unmarshal(raw, &msg); err != nil || msg == nil {
		return DIDCommMsgMap{}
	}

	return msg
}

// Version returns the message version, detected by the keys present in the message.
func (m DIDCommMsgMap) Version() Version {
	if m == nil {
		return V1
	}

	if _, ok := m[jsonType]; ok {
		return V1
	}

	if _, ok := m[jsonTypeV2]; ok {
		return V2
	}

	return V1
}

// ID returns the message ID.
func (m DIDCommMsgMap) ID() string {
	if m == nil {
		return ""
	}

	key := jsonID
	if m.Version() == V2 {
		key = jsonIDV2
	}

	res, _ := m[key].(string) // nolint: errcheck

	return res
}

// SetID sets the message ID.
func (m DIDCommMsgMap) SetID(id string) {
	if m == nil {
		return
	}

	if m.Version() == V2 {
		m[jsonIDV2] = id

		return
	}

	m[jsonID] = id
}

// Type returns the message type.
func (m DIDCommMsgMap) Type() string {
	if m == nil {
		return ""
	}

	if res, ok := m[jsonType].(string); ok {
		return res
	}

	res, _ := m[jsonTypeV2].(string) // nolint: errcheck

	return res
}

// ThreadID returns the message thread ID. The first message of a thread carries no thread decorator,
// in that case the message ID is the thread ID.
func (m DIDCommMsgMap) ThreadID() (string, error) {
	if m == nil {
		return "", ErrThreadIDNotFound
	}

	if thID := m.threadValue(jsonThreadID); thID != "" {
		return thID, nil
	}

	if id := m.ID(); id != "" {
		return id, nil
	}

	return "", ErrThreadIDNotFound
}

// ParentThreadID returns the message parent thread ID.
func (m DIDCommMsgMap) ParentThreadID() string {
	if m == nil {
		return ""
	}

	return m.threadValue(jsonParentThreadID)
}

// SetThread sets the thread and parent thread IDs. Empty values are left out.
func (m DIDCommMsgMap) SetThread(thid, pthid string) {
	if m == nil || (thid == "" && pthid == "") {
		return
	}

	if m.Version() == V2 {
		if thid != "" {
			m[jsonThreadID] = thid
		}

		if pthid != "" {
			m[jsonParentThreadID] = pthid
		}

		return
	}

	thread := map[string]interface{}{}

	if existing, ok := m[jsonThread].(map[string]interface{}); ok {
		for k, v := range existing {
			thread[k] = v
		}
	}

	if thid != "" {
		thread[jsonThreadID] = thid
	}

	if pthid != "" {
		thread[jsonParentThreadID] = pthid
	}

	m[jsonThread] = thread
}

// UnsetThread removes the thread decorator.
func (m DIDCommMsgMap) UnsetThread() {
	if m == nil {
		return
	}

	delete(m, jsonThread)
	delete(m, jsonThreadID)
	delete(m, jsonParentThreadID)
}

// Metadata returns message metadata that never leaves the agent.
func (m DIDCommMsgMap) Metadata() map[string]interface{} {
	if m[jsonMetadata] == nil {
		return map[string]interface{}{}
	}

	metadata, ok := m[jsonMetadata].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}

	return metadata
}

// SetMetadata stores a metadata value on the message.
func (m DIDCommMsgMap) SetMetadata(key string, value interface{}) {
	if m == nil {
		return
	}

	metadata := map[string]interface{}{}

	for k, v := range m.Metadata() {
		metadata[k] = v
	}

	metadata[key] = value
	m[jsonMetadata] = metadata
}

// Clone copies first level keys-values into another map (DIDCommMsgMap).
func (m DIDCommMsgMap) Clone() DIDCommMsgMap {
	if m == nil {
		return nil
	}

	msg := DIDCommMsgMap{}
	for k, v := range m {
		msg[k] = v
	}

	return msg
}

// MarshalForWire returns the JSON form of the message without the internal metadata.
func (m DIDCommMsgMap) MarshalForWire() ([]byte, error) {
	msg := m.Clone()
	delete(msg, jsonMetadata)

	return json.Marshal(msg)
}

// Decode converts message to  struct.
func (m DIDCommMsgMap) Decode(v interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook,
		WeaklyTypedInput: true,
		Result:           v,
		TagName:          "json",
	})
	if err != nil {
		return err
	}

	return decoder.Decode(m)
}

var (
	rawMessageType = reflect.TypeOf(json.RawMessage{})
	timeType       = reflect.TypeOf(time.Time{})
)

func decodeHook(rt1, rt2 reflect.Type, v interface{}) (interface{}, error) {
	if rt2 == rawMessageType {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}

		return json.RawMessage(raw), nil
	}

	if rt1.Kind() != reflect.String {
		return v, nil
	}

	str, _ := v.(string) // nolint: errcheck

	if rt2 == timeType {
		return time.Parse(time.RFC3339Nano, str)
	}

	if rt2.Kind() == reflect.Slice && rt2.Elem().Kind() == reflect.Uint8 {
		return base64.StdEncoding.DecodeString(str)
	}

	return v, nil
}

func (m DIDCommMsgMap) threadValue(key string) string {
	if m.Version() == V2 {
		res, _ := m[key].(string) // nolint: errcheck

		return res
	}

	switch thread := m[jsonThread].(type) {
	case map[string]interface{}:
		res, _ := thread[key].(string) // nolint: errcheck

		return res
	case map[string]string:
		return thread[key]
	}

	return ""
}

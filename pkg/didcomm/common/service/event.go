/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

// StateMsgType tells whether a state message precedes or follows the transition.
type StateMsgType int

const (
	// PreState is sent before the record leaves its current state.
	PreState StateMsgType = iota
	// PostState is sent once the record has been saved in its new state.
	PostState
)

// StateMsg reports a record state transition of a protocol service.
type StateMsg struct {
	// ProtocolName is issue-credential, present-proof or out-of-band.
	ProtocolName string
	Type         StateMsgType
	// StateID is the state entered (PostState) or left (PreState).
	StateID string
	// Msg is the message that caused the transition, nil for transitions made by the API.
	Msg DIDCommMsg
	// Properties carries the record id and, when set, the error that ended the exchange.
	Properties EventProperties
}

// DIDCommAction asks the consumer to decide on an inbound message that was not accepted automatically.
type DIDCommAction struct {
	ProtocolName string
	Message      DIDCommMsg
	// Continue accepts the message. Protocol services take their accept params as args, nil for defaults.
	Continue func(args interface{})
	// Stop declines the message, err is used as the problem description.
	Stop       func(err error)
	Properties EventProperties
}

// EventProperties are the serializable details attached to an event.
type EventProperties interface {
	All() map[string]interface{}
}

// Event is the subscription API of a protocol service.
type Event interface {
	// RegisterActionEvent sets the single action consumer. It fails if one is already registered.
	RegisterActionEvent(ch chan<- DIDCommAction) error
	UnregisterActionEvent(ch chan<- DIDCommAction) error
	// RegisterMsgEvent adds a state message subscriber. No callback is expected.
	RegisterMsgEvent(ch chan<- StateMsg) error
	UnregisterMsgEvent(ch chan<- StateMsg) error
}

// PropertiesMap is a plain map implementation of EventProperties.
type PropertiesMap map[string]interface{}

// All returns all properties.
func (p PropertiesMap) All() map[string]interface{} {
	return p
}

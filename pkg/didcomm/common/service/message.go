/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Message keeps the state message subscribers of a protocol service.
type Message struct {
	mu     sync.RWMutex
	events []chan<- StateMsg
}

// MsgEvents returns a snapshot of the subscribed channels.
func (m *Message) MsgEvents() []chan<- StateMsg {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.events)
}

// RegisterMsgEvent subscribes ch to the state messages. No callback is expected, unlike action events.
func (m *Message) RegisterMsgEvent(ch chan<- StateMsg) error {
	if ch == nil {
		return ErrNilChannel
	}

	m.mu.Lock()
	m.events = append(m.events, ch)
	m.mu.Unlock()

	return nil
}

// UnregisterMsgEvent removes every subscription of ch.
func (m *Message) UnregisterMsgEvent(ch chan<- StateMsg) error {
	m.mu.Lock()
	m.events = slices.DeleteFunc(m.events, func(c chan<- StateMsg) bool { return c == ch })
	m.mu.Unlock()

	return nil
}

// Notify delivers msg to every subscriber in registration order. Delivery blocks on each channel,
// subscribers must drain them.
func (m *Message) Notify(msg StateMsg) {
	for _, ch := range m.MsgEvents() {
		ch <- msg
	}
}

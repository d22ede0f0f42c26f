/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

const (
	preState  = "pre_state"
	postState = "post_state"
)

// Action is the notification payload of an action event.
type Action struct {
	ProtocolName string                 `json:"protocol_name"`
	Message      service.DIDCommMsgMap  `json:"message"`
	Properties   map[string]interface{} `json:"properties"`
}

// StateMsg is the notification payload of a state event.
type StateMsg struct {
	ProtocolName string                 `json:"protocol_name"`
	StateID      string                 `json:"state_id"`
	Type         string                 `json:"type"`
	Message      service.DIDCommMsgMap  `json:"message"`
	Properties   map[string]interface{} `json:"properties"`
}

// Observer forwards protocol events to a notifier.
type Observer struct {
	notifier command.Notifier
}

// NewObserver returns an observer notifying through the given notifier.
func NewObserver(notifier command.Notifier) *Observer {
	return &Observer{notifier: notifier}
}

// RegisterAction forwards the action events of the channel on the topic until the channel is closed.
func (o *Observer) RegisterAction(topic string, ch <-chan service.DIDCommAction) {
	go func() {
		for action := range ch {
			o.notify(topic, Action{
				ProtocolName: action.ProtocolName,
				Message:      clone(action.Message),
				Properties:   all(action.Properties),
			})
		}
	}()
}

// RegisterStateMsg forwards the state events of the channel on the topic until the channel is closed.
func (o *Observer) RegisterStateMsg(topic string, ch <-chan service.StateMsg) {
	go func() {
		for msg := range ch {
			msgType := postState
			if msg.Type == service.PreState {
				msgType = preState
			}

			o.notify(topic, StateMsg{
				ProtocolName: msg.ProtocolName,
				StateID:      msg.StateID,
				Type:         msgType,
				Message:      clone(msg.Msg),
				Properties:   all(msg.Properties),
			})
		}
	}()
}

func (o *Observer) notify(topic string, payload interface{}) {
	src, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("observer: marshal %s event: %v", topic, err)

		return
	}

	if err = o.notifier.Notify(topic, src); err != nil {
		logger.Errorf("observer: notify %s: %v", topic, err)
	}
}

func clone(msg service.DIDCommMsg) service.DIDCommMsgMap {
	if msg == nil {
		return nil
	}

	return msg.Clone()
}

func all(props service.EventProperties) map[string]interface{} {
	if props == nil {
		return nil
	}

	return props.All()
}

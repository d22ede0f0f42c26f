/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-exchange-go/pkg/controller/command"
	"github.com/hyperledger/aries-exchange-go/pkg/controller/rest"
)

const (
	emptyTopicErrMsg     = "cannot notify with an empty topic"
	emptyMessageErrMsg   = "cannot notify with an empty message"
	failedToCreateErrMsg = "failed to create topic message : %w"

	notificationSendTimeout = 10 * time.Second
)

var logger = log.New("aries-framework/webnotifier")

// WebNotifier notifies webhook and WebSocket subscribers.
type WebNotifier struct {
	notifiers []command.Notifier
	handlers  []rest.Handler
}

// New returns a notifier serving WebSocket subscribers on wsPath and posting to the webhook URLs.
func New(wsPath string, webhookURLs []string) *WebNotifier {
	ws := NewWSNotifier(wsPath)

	return &WebNotifier{
		notifiers: []command.Notifier{ws, NewHTTPNotifier(webhookURLs)},
		handlers:  ws.GetRESTHandlers(),
	}
}

// Notify sends the message on the topic to every subscriber. The first error is returned.
func (n *WebNotifier) Notify(topic string, message []byte) error {
	var allErrs error

	for _, notifier := range n.notifiers {
		allErrs = appendError(allErrs, notifier.Notify(topic, message))
	}

	return allErrs
}

// GetRESTHandlers returns the WebSocket handler.
func (n *WebNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}

type topicMessage struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// PrepareTopicMessage wraps the message in the `{id, topic, message}` envelope sent to subscribers.
func PrepareTopicMessage(topic string, message []byte) ([]byte, error) {
	return json.Marshal(&topicMessage{
		ID:      uuid.New().String(),
		Topic:   topic,
		Message: message,
	})
}

func appendError(errList, err error) error {
	if errList == nil {
		return err
	}

	if err != nil {
		logger.Warnf("notification failed: %v", err)
	}

	return errList
}

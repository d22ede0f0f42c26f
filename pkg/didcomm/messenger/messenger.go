/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-exchange-go/pkg/store/connection"
)

// MessengerStore is messenger store name.
const MessengerStore = "messenger_store"

const jsonService = "~service"

// record is an internal structure and keeps payload about inbound message.
type record struct {
	ConnectionID   string               `json:"connection_id,omitempty"`
	ThreadID       string               `json:"thread_id,omitempty"`
	ParentThreadID string               `json:"parent_thread_id,omitempty"`
	TheirService   *service.Destination `json:"their_service,omitempty"`
}

type connectionLookup interface {
	GetConnectionRecord(connectionID string) (*connection.Record, error)
}

// Provider contains dependencies for the Messenger.
type Provider interface {
	OutboundDispatcher() dispatcher.Outbound
	StorageProvider() storage.Provider
	ConnectionLookup() *connection.Lookup
	// ServiceEndpoint is advertised in the ~service decorator of connection-less messages.
	ServiceEndpoint() string
	// SenderKey is the local key used for connection-less messages.
	SenderKey() string
}

// Messenger describes the messenger structure.
type Messenger struct {
	store       storage.Store
	dispatcher  dispatcher.Outbound
	connections connectionLookup
	endpoint    string
	senderKey   string
}

var logger = log.New("aries-framework/pkg/didcomm/messenger")

// NewMessenger returns a new instance of the Messenger.
func NewMessenger(ctx Provider) (*Messenger, error) {
	store, err := ctx.StorageProvider().OpenStore(MessengerStore)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &Messenger{
		store:       store,
		dispatcher:  ctx.OutboundDispatcher(),
		connections: ctx.ConnectionLookup(),
		endpoint:    ctx.ServiceEndpoint(),
		senderKey:   ctx.SenderKey(),
	}, nil
}

// HandleInbound handles all inbound messages.
func (m *Messenger) HandleInbound(msg service.DIDCommMsgMap, ictx *service.InboundContext) error {
	// an incoming message cannot be without id
	if msg.ID() == "" {
		return errors.New("message-id is absent and can't be processed")
	}

	// get message threadID
	thID, err := msg.ThreadID()
	if err != nil {
		// since we are checking ID above this should never happen
		// even if ~thread decorator is absent the message ID should be returned as a threadID
		return fmt.Errorf("threadID: %w", err)
	}

	rec := record{
		ParentThreadID: msg.ParentThreadID(),
		ThreadID:       thID,
	}

	if ictx != nil {
		rec.ConnectionID = ictx.ConnectionID
		rec.TheirService = ictx.TheirService
	}

	// saves message payload
	return m.saveRecord(msg.ID(), rec)
}

// Send sends the message to the target. The thread of the message is kept as is, a message
// without ID gets a new one.
func (m *Messenger) Send(ctx context.Context, msg service.DIDCommMsgMap, target *service.Target) error {
	// fills missing fields
	fillIfMissing(msg)

	return m.dispatch(ctx, msg, target)
}

// ReplyTo replies to the message by given msgID.
// The function adds ~thread decorator to the message according to the given msgID.
// Do not provide a message with ~thread decorator. It will be rewritten.
// A nil target replies to where the original message came from.
func (m *Messenger) ReplyTo(ctx context.Context, msgID string, msg service.DIDCommMsgMap,
	target *service.Target) error {
	// fills missing fields
	fillIfMissing(msg)

	rec, err := m.getRecord(msgID)
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}

	msg.UnsetThread()
	// sets thread
	msg.SetThread(rec.ThreadID, rec.ParentThreadID)

	if target == nil {
		target = &service.Target{ConnectionID: rec.ConnectionID, Destination: rec.TheirService}
	}

	return m.dispatch(ctx, msg, target)
}

func (m *Messenger) dispatch(ctx context.Context, msg service.DIDCommMsgMap, target *service.Target) error {
	if target == nil {
		return errors.New("message target is mandatory")
	}

	if target.Responder != nil {
		return target.Responder.Respond(ctx, msg)
	}

	if target.ConnectionID != "" {
		conn, err := m.connections.GetConnectionRecord(target.ConnectionID)
		if err != nil {
			return fmt.Errorf("get connection: %w", err)
		}

		if !conn.IsReady() {
			return fmt.Errorf("connection %s is not ready: state %s", conn.ConnectionID, conn.State)
		}

		dest, err := service.NewDestination(conn.ServiceEndPoint, conn.RecipientKeys, conn.RoutingKeys)
		if err != nil {
			return fmt.Errorf("connection destination: %w", err)
		}

		return m.dispatcher.Send(ctx, msg, conn.MyKey, dest)
	}

	if target.Destination != nil {
		m.addServiceDecorator(msg)

		return m.dispatcher.Send(ctx, msg, m.senderKey, target.Destination)
	}

	return errors.New("message target has no connection, destination or responder")
}

// addServiceDecorator lets the counterpart of a connection-less exchange reply.
func (m *Messenger) addServiceDecorator(msg service.DIDCommMsgMap) {
	if m.endpoint == "" || m.senderKey == "" {
		return
	}

	if _, ok := msg[jsonService]; ok {
		return
	}

	msg[jsonService] = map[string]interface{}(service.NewDIDCommMsgMap(&decorator.Service{
		RecipientKeys:   []string{m.senderKey},
		ServiceEndpoint: m.endpoint,
	}))
}

// fillIfMissing populates message with common fields such as ID.
func fillIfMissing(msg service.DIDCommMsgMap) {
	// if ID is empty we will create a new one
	if msg.ID() == "" {
		msg.SetID(uuid.New().String())
	}
}

// getRecord returns message payload by msgID.
func (m *Messenger) getRecord(msgID string) (*record, error) {
	src, err := m.store.Get(msgID)
	if err != nil {
		return nil, fmt.Errorf("store get: %w", err)
	}

	var r *record
	if err = json.Unmarshal(src, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}

	return r, nil
}

// saveRecord saves incoming message payload.
func (m *Messenger) saveRecord(msgID string, rec record) error {
	src, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if err = m.store.Put(msgID, src); err != nil {
		logger.Warnf("failed to save inbound message %s: %v", msgID, err)
		return fmt.Errorf("save record: %w", err)
	}

	return nil
}
